package presence

import "github.com/goliatone/go-presence/service"

// Re-export the service package entry point so consumers can do
// `presence.New(...)` without importing internal wiring helpers.
type (
	Service        = service.Service
	Config         = service.Config
	Commands       = service.Commands
	Queries        = service.Queries
	WriterOptions  = service.WriterOptions
	ReaderOptions  = service.ReaderOptions
	FlusherOptions = service.FlusherOptions
	RESTOptions    = service.RESTOptions
)

// New constructs the go-presence runtime using the provided configuration.
func New(cfg Config) *Service {
	return service.New(cfg)
}
