// Package command exposes go-command compatible command handlers implementing
// presence writes. Commands are wired by the service layer and can be invoked
// by any transport (the session writer, the REST surface, tests).
package command
