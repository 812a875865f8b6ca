package restapi

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-presence/command"
	"github.com/goliatone/go-presence/pkg/authctx"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/goliatone/go-presence/query"
	"github.com/google/uuid"
)

// DefaultBasePath is where the row routes are mounted.
const DefaultBasePath = "/rest/v1"

// Config wires the REST handler.
type Config struct {
	Update   gocommand.Commander[command.PresenceUpdateInput]
	Batch    gocommand.Querier[query.PresenceBatchQueryInput, []types.PresenceRecord]
	Verifier TokenVerifier
	// APIKeys lists the accepted apikey header values. Empty disables the
	// check.
	APIKeys []string
	Table   string
	Clock   types.Clock
	Logger  types.Logger
}

// Handler serves PATCH and GET on /rest/v1/{table}.
type Handler struct {
	update   gocommand.Commander[command.PresenceUpdateInput]
	batch    gocommand.Querier[query.PresenceBatchQueryInput, []types.PresenceRecord]
	verifier TokenVerifier
	apiKeys  [][]byte
	table    string
	clock    types.Clock
	logger   types.Logger
}

// New validates the configuration and builds a handler.
func New(cfg Config) (*Handler, error) {
	if cfg.Update == nil || cfg.Batch == nil || cfg.Verifier == nil {
		return nil, types.ErrServiceNotReady
	}
	table := cfg.Table
	if table == "" {
		table = command.DefaultPresenceTable
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.SystemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = types.NopLogger{}
	}
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, []byte(key))
		}
	}
	return &Handler{
		update:   cfg.Update,
		batch:    cfg.Batch,
		verifier: cfg.Verifier,
		apiKeys:  keys,
		table:    table,
		clock:    clock,
		logger:   logger,
	}, nil
}

// NewApp returns a fiber app with the handler mounted at DefaultBasePath.
func NewApp(cfg Config) (*fiber.App, error) {
	h, err := New(cfg)
	if err != nil {
		return nil, err
	}
	app := fiber.New(fiber.Config{
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	h.Register(app.Group(DefaultBasePath))
	return app, nil
}

// Register mounts the routes on the router.
func (h *Handler) Register(router fiber.Router) {
	router.Patch("/:table", h.checkAPIKey, h.authenticate, h.patch)
	router.Get("/:table", h.checkAPIKey, h.authenticate, h.get)
}

func (h *Handler) checkAPIKey(c *fiber.Ctx) error {
	if len(h.apiKeys) == 0 {
		return c.Next()
	}
	got := []byte(c.Get("apikey"))
	for _, key := range h.apiKeys {
		if subtle.ConstantTimeCompare(got, key) == 1 {
			return c.Next()
		}
	}
	return unauthorized(nil, textCodeAPIKey, "invalid api key")
}

func (h *Handler) authenticate(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return unauthorized(nil, textCodeTokenMissing, "bearer token required")
	}
	actor, err := h.verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		h.logger.Debug("presence token rejected", "reason", err.Error(), "path", c.Path())
		return unauthorized(err, textCodeTokenInvalid, "invalid bearer token")
	}
	c.SetUserContext(authctx.WithActor(c.UserContext(), actor))
	return c.Next()
}

type patchRequest struct {
	Status          string     `json:"status"`
	LastSeenAt      *time.Time `json:"last_seen_at"`
	StatusUpdatedAt *time.Time `json:"status_updated_at"`
}

// Row is the JSON shape of a presence row.
type Row struct {
	ID              uuid.UUID  `json:"id"`
	Status          string     `json:"status"`
	LastSeenAt      *time.Time `json:"last_seen_at"`
	StatusUpdatedAt time.Time  `json:"status_updated_at"`
}

func toRow(rec types.PresenceRecord) Row {
	return Row{
		ID:              rec.UserID,
		Status:          string(rec.Status),
		LastSeenAt:      rec.LastSeenAt,
		StatusUpdatedAt: rec.StatusUpdatedAt,
	}
}

func (h *Handler) patch(c *fiber.Ctx) error {
	if err := h.checkTable(c); err != nil {
		return err
	}
	ids, err := parseIDFilter(c.Query("id"))
	if err != nil {
		return err
	}
	if len(ids) != 1 || !strings.HasPrefix(c.Query("id"), "eq.") {
		return badRequest(textCodeBadFilter, "presence updates require id=eq.<uuid>")
	}

	var body patchRequest
	if err := c.BodyParser(&body); err != nil {
		return badRequest(textCodeBadBody, "malformed json body")
	}
	status := types.PresenceStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if !status.Valid() {
		return badRequest(textCodeBadBody, "status must be online, away, busy or offline")
	}

	actor, _, err := authctx.ResolveActor(c.UserContext())
	if err != nil {
		return err
	}

	now := h.clock.Now()
	ts := now
	switch {
	case body.LastSeenAt != nil:
		ts = *body.LastSeenAt
	case body.StatusUpdatedAt != nil:
		ts = *body.StatusUpdatedAt
	}
	// never later than server time
	if ts.After(now) {
		ts = now
	}

	var change types.PresenceChange
	err = h.update.Execute(c.UserContext(), command.PresenceUpdateInput{
		UserID:    ids[0],
		Status:    status,
		Actor:     actor,
		Timestamp: ts,
		Result:    &change,
	})
	if err != nil {
		return translateError(err)
	}

	if strings.Contains(c.Get("Prefer"), "return=representation") {
		return c.Status(fiber.StatusOK).JSON([]Row{toRow(change.After)})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) get(c *fiber.Ctx) error {
	if err := h.checkTable(c); err != nil {
		return err
	}
	ids, err := parseIDFilter(c.Query("id"))
	if err != nil {
		return err
	}
	actor, _, err := authctx.ResolveActor(c.UserContext())
	if err != nil {
		return err
	}
	records, err := h.batch.Query(c.UserContext(), query.PresenceBatchQueryInput{
		UserIDs: ids,
		Actor:   actor,
	})
	if err != nil {
		return translateError(err)
	}
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		rows = append(rows, toRow(rec))
	}
	return c.JSON(rows)
}

func (h *Handler) checkTable(c *fiber.Ctx) error {
	if c.Params("table") != h.table {
		return unknownTable(c.Params("table"))
	}
	return nil
}
