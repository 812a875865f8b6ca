package service

import (
	"context"
	"net/http"
	"time"

	featuregate "github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-presence/command"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/goliatone/go-presence/query"
	"github.com/goliatone/go-presence/reader"
	"github.com/goliatone/go-presence/restapi"
	"github.com/goliatone/go-presence/scope"
	"github.com/goliatone/go-presence/unload"
	"github.com/goliatone/go-presence/writer"
)

// Service is the entry point for go-presence. It wires the repository,
// change feed, hooks and policies supplied by the host application and
// hands out session writers, readers and unload flushers built on them.
type Service struct {
	cfg        Config
	commands   Commands
	queries    Queries
	scopeGuard scope.Guard
}

// Commands exposes the service command handlers.
type Commands struct {
	PresenceUpdate *command.PresenceUpdateCommand
}

// Queries exposes read-model helpers.
type Queries struct {
	Presence      *query.PresenceQuery
	PresenceBatch *query.PresenceBatchQuery
}

// Config captures all required dependencies so callers can provide their own
// instances (bun-backed repository, redis feed, hooks, etc.).
type Config struct {
	PresenceRepository types.PresenceRepository
	ChangeFeed         types.ChangeFeed
	// ChangePublisher defaults to ChangeFeed when the feed can publish.
	ChangePublisher types.ChangePublisher
	// NativeChangeCapture disables the publisher default for stores that
	// emit changes themselves (the postgres trigger).
	NativeChangeCapture bool
	Hooks               types.Hooks
	Clock               types.Clock
	Logger              types.Logger
	TransitionPolicy    types.TransitionPolicy
	AuthorizationPolicy types.AuthorizationPolicy
	FeatureGate         featuregate.FeatureGate
	Table               string
}

// New constructs a Service from the supplied configuration.
func New(cfg Config) *Service {
	norm := normalizeConfig(cfg)
	s := &Service{
		cfg:        norm,
		scopeGuard: scope.Ensure(scope.NewGuard(norm.AuthorizationPolicy)),
	}
	s.commands = s.buildCommands()
	s.queries = s.buildQueries()
	return s
}

func normalizeConfig(cfg Config) Config {
	if cfg.Clock == nil {
		cfg.Clock = types.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = types.NopLogger{}
	}
	if cfg.TransitionPolicy == nil {
		cfg.TransitionPolicy = types.DefaultTransitionPolicy()
	}
	if cfg.AuthorizationPolicy == nil {
		cfg.AuthorizationPolicy = types.OwnerWritePolicy{}
	}
	if cfg.Table == "" {
		cfg.Table = command.DefaultPresenceTable
	}
	if cfg.ChangePublisher == nil && !cfg.NativeChangeCapture {
		if pub, ok := cfg.ChangeFeed.(types.ChangePublisher); ok {
			cfg.ChangePublisher = pub
		}
	}
	return cfg
}

func (s *Service) buildCommands() Commands {
	return Commands{
		PresenceUpdate: command.NewPresenceUpdateCommand(command.PresenceCommandConfig{
			Repository:  s.cfg.PresenceRepository,
			Publisher:   s.cfg.ChangePublisher,
			Hooks:       s.cfg.Hooks,
			Clock:       s.cfg.Clock,
			Logger:      s.cfg.Logger,
			ScopeGuard:  s.scopeGuard,
			FeatureGate: s.cfg.FeatureGate,
			Table:       s.cfg.Table,
		}),
	}
}

func (s *Service) buildQueries() Queries {
	return Queries{
		Presence:      query.NewPresenceQuery(s.cfg.PresenceRepository, s.scopeGuard),
		PresenceBatch: query.NewPresenceBatchQuery(s.cfg.PresenceRepository, s.scopeGuard),
	}
}

// Commands returns the command facade.
func (s *Service) Commands() Commands {
	return s.commands
}

// Queries returns the query facade.
func (s *Service) Queries() Queries {
	return s.queries
}

// ScopeGuard returns the guard shared by commands and queries.
func (s *Service) ScopeGuard() scope.Guard {
	return s.scopeGuard
}

// WriterOptions configures a session writer. Zero values use the writer
// defaults.
type WriterOptions struct {
	Identity          types.IdentityResolver
	Flusher           writer.UnloadFlusher
	HeartbeatInterval time.Duration
	IdlePollInterval  time.Duration
	IdleThreshold     time.Duration
	NewTicker         writer.TickerFactory
}

// NewWriter builds a writer for one session.
func (s *Service) NewWriter(opts WriterOptions) *writer.Writer {
	return writer.New(writer.Config{
		Updater:           s.commands.PresenceUpdate,
		Identity:          opts.Identity,
		Flusher:           opts.Flusher,
		Policy:            s.cfg.TransitionPolicy,
		Clock:             s.cfg.Clock,
		Logger:            s.cfg.Logger,
		HeartbeatInterval: opts.HeartbeatInterval,
		IdlePollInterval:  opts.IdlePollInterval,
		IdleThreshold:     opts.IdleThreshold,
		NewTicker:         opts.NewTicker,
	})
}

// ReaderOptions configures a presence reader.
type ReaderOptions struct {
	Viewer          types.ActorRef
	FreshnessWindow time.Duration
}

// NewReader builds a reader on the service queries and change feed.
func (s *Service) NewReader(opts ReaderOptions) (*reader.Reader, error) {
	return reader.New(reader.Config{
		Status:          s.queries.Presence,
		Batch:           s.queries.PresenceBatch,
		Feed:            s.cfg.ChangeFeed,
		Viewer:          opts.Viewer,
		Table:           s.cfg.Table,
		FreshnessWindow: opts.FreshnessWindow,
		Clock:           s.cfg.Clock,
		Logger:          s.cfg.Logger,
	})
}

// FlusherOptions configures the unload flusher.
type FlusherOptions struct {
	BaseURL     string
	Credentials unload.CredentialStore
	Keepalive   unload.KeepaliveTransport
	Client      *http.Client
	SyncTimeout time.Duration
}

// NewFlusher builds the unload flusher targeting the REST surface.
func (s *Service) NewFlusher(opts FlusherOptions) (*unload.Flusher, error) {
	return unload.New(unload.Config{
		BaseURL:     opts.BaseURL,
		Table:       s.cfg.Table,
		Credentials: opts.Credentials,
		Keepalive:   opts.Keepalive,
		Client:      opts.Client,
		SyncTimeout: opts.SyncTimeout,
		Clock:       s.cfg.Clock,
		Logger:      s.cfg.Logger,
	})
}

// RESTOptions configures the REST handler.
type RESTOptions struct {
	Verifier restapi.TokenVerifier
	APIKeys  []string
}

// NewRESTHandler builds the REST surface on the service command and queries.
func (s *Service) NewRESTHandler(opts RESTOptions) (*restapi.Handler, error) {
	return restapi.New(restapi.Config{
		Update:   s.commands.PresenceUpdate,
		Batch:    s.queries.PresenceBatch,
		Verifier: opts.Verifier,
		APIKeys:  opts.APIKeys,
		Table:    s.cfg.Table,
		Clock:    s.cfg.Clock,
		Logger:   s.cfg.Logger,
	})
}

// Ready reports whether the service has the required dependencies wired in.
func (s *Service) Ready() bool {
	return s != nil &&
		s.cfg.PresenceRepository != nil &&
		s.cfg.ChangeFeed != nil
}

// HealthCheck surfaces missing configuration so upstream transports can fail
// fast on boot.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s == nil {
		return types.ErrServiceNotReady
	}
	if s.cfg.PresenceRepository == nil {
		return types.ErrMissingPresenceRepository
	}
	if s.cfg.ChangeFeed == nil {
		return types.ErrMissingChangeFeed
	}
	if pinger, ok := s.cfg.PresenceRepository.(interface {
		Ping(context.Context) error
	}); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
