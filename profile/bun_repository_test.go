package profile

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-presence/pkg/types"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestRepository_EnsureProfileDefaultsOffline(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	userID := uuid.New()
	created, err := repo.EnsureProfile(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, types.PresenceStatusOffline, created.Status)
	require.Nil(t, created.LastSeenAt)

	again, err := repo.EnsureProfile(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, userID, again.UserID)
}

func TestRepository_UpdatePresenceWritesTimestampsTogether(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	userID := uuid.New()
	_, err = repo.EnsureProfile(ctx, userID)
	require.NoError(t, err)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	change, err := repo.UpdatePresence(ctx, userID, types.PresencePatch{
		Status:    types.PresenceStatusOnline,
		Timestamp: ts,
	})
	require.NoError(t, err)
	require.Equal(t, types.PresenceStatusOffline, change.Before.Status)
	require.Equal(t, types.PresenceStatusOnline, change.After.Status)

	fetched, err := repo.GetPresence(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, types.PresenceStatusOnline, fetched.Status)
	require.NotNil(t, fetched.LastSeenAt)
	require.True(t, fetched.LastSeenAt.Equal(ts), "last_seen_at %s", fetched.LastSeenAt)
	require.True(t, fetched.StatusUpdatedAt.Equal(ts), "status_updated_at %s", fetched.StatusUpdatedAt)
}

func TestRepository_UpdatePresenceValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	_, err = repo.UpdatePresence(ctx, uuid.Nil, types.PresencePatch{Status: types.PresenceStatusOnline})
	require.ErrorIs(t, err, types.ErrUserIDRequired)

	_, err = repo.UpdatePresence(ctx, uuid.New(), types.PresencePatch{Status: "lurking"})
	require.ErrorIs(t, err, types.ErrInvalidStatus)

	_, err = repo.UpdatePresence(ctx, uuid.New(), types.PresencePatch{Status: types.PresenceStatusOnline})
	require.ErrorIs(t, err, types.ErrPresenceNotFound)

	_, err = repo.GetPresence(ctx, uuid.New())
	require.ErrorIs(t, err, types.ErrPresenceNotFound)
}

func TestRepository_ListPresenceSkipsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	applyDDL(t, db)

	repo, err := NewRepository(RepositoryConfig{DB: db})
	require.NoError(t, err)

	a, b := uuid.New(), uuid.New()
	_, err = repo.EnsureProfile(ctx, a)
	require.NoError(t, err)
	_, err = repo.EnsureProfile(ctx, b)
	require.NoError(t, err)

	records, err := repo.ListPresence(ctx, []uuid.UUID{a, b, a, uuid.New(), uuid.Nil})
	require.NoError(t, err)
	require.Len(t, records, 2)

	empty, err := repo.ListPresence(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func newTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite3", ":memory:?cache=shared")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})
	return db
}

func applyDDL(t *testing.T, db *bun.DB) {
	content, err := os.ReadFile("../data/sql/migrations/sqlite/00001_user_profiles_presence.up.sql")
	require.NoError(t, err)
	for _, stmt := range splitStatements(string(content)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func splitStatements(sql string) []string {
	lines := strings.Split(sql, "\n")
	var builder strings.Builder
	var statements []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSuffix(builder.String(), ";"))
			builder.Reset()
		} else {
			builder.WriteString(" ")
		}
	}
	if builder.Len() > 0 {
		statements = append(statements, builder.String())
	}
	return statements
}
