// Package feed provides types.ChangeFeed implementations: an in-process Hub
// and broker-backed feeds over Redis pub/sub, NATS subjects and Postgres
// LISTEN/NOTIFY. All of them share one JSON envelope (see Encode/Decode) so
// a postgres trigger, a command publisher and a reader agree on the wire.
package feed
