package restapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-presence/command"
	"github.com/goliatone/go-presence/memory"
	"github.com/goliatone/go-presence/pkg/types"
	"github.com/goliatone/go-presence/query"
	"github.com/goliatone/go-presence/scope"
	"github.com/goliatone/go-presence/unload"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testAPIKey = "anon-key"
)

var testNow = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type apiFixture struct {
	app  *fiber.App
	repo *memory.PresenceRepository
	user uuid.UUID
	peer uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	repo := memory.NewPresenceRepository()
	user := uuid.New()
	peer := uuid.New()
	for _, id := range []uuid.UUID{user, peer} {
		_, err := repo.EnsureProfile(t.Context(), id)
		require.NoError(t, err)
	}
	clock := fixedClock{t: testNow}
	guard := scope.NewGuard(types.OwnerWritePolicy{})
	verifier, err := NewHS256Verifier(VerifierConfig{Secret: testSecret, Clock: clock})
	require.NoError(t, err)

	app, err := NewApp(Config{
		Update: command.NewPresenceUpdateCommand(command.PresenceCommandConfig{
			Repository: repo,
			Clock:      clock,
			ScopeGuard: guard,
		}),
		Batch:    query.NewPresenceBatchQuery(repo, guard),
		Verifier: verifier,
		APIKeys:  []string{testAPIKey},
		Clock:    clock,
	})
	require.NoError(t, err)
	return &apiFixture{app: app, repo: repo, user: user, peer: peer}
}

func (f *apiFixture) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := SignToken(testSecret, userID, "authenticated", time.Hour, testNow)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, target, token, body string, headers map[string]string) (*http.Response, errorBody) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", testAPIKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	var out errorBody
	if resp.StatusCode >= http.StatusBadRequest {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestPatchUpdatesOwnRow(t *testing.T) {
	f := newAPIFixture(t)
	seen := testNow.Add(-time.Second)
	body := `{"status":"online","last_seen_at":"` + seen.Format(time.RFC3339Nano) + `","status_updated_at":"` + seen.Format(time.RFC3339Nano) + `"}`

	resp, _ := f.do(t, http.MethodPatch, "/rest/v1/user_profiles?id=eq."+f.user.String(), f.token(t, f.user), body,
		map[string]string{"Prefer": "return=minimal"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	rec, err := f.repo.GetPresence(t.Context(), f.user)
	require.NoError(t, err)
	require.Equal(t, types.PresenceStatusOnline, rec.Status)
	require.True(t, rec.LastSeenAt.Equal(seen))
	require.True(t, rec.StatusUpdatedAt.Equal(seen))
}

func TestPatchClampsFutureTimestamps(t *testing.T) {
	f := newAPIFixture(t)
	ahead := testNow.Add(2 * time.Hour).Format(time.RFC3339Nano)
	body := `{"status":"online","last_seen_at":"` + ahead + `","status_updated_at":"` + ahead + `"}`

	resp, _ := f.do(t, http.MethodPatch, "/rest/v1/user_profiles?id=eq."+f.user.String(), f.token(t, f.user), body, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	rec, err := f.repo.GetPresence(t.Context(), f.user)
	require.NoError(t, err)
	require.NotNil(t, rec.LastSeenAt)
	require.True(t, rec.LastSeenAt.Equal(testNow))
	require.True(t, rec.StatusUpdatedAt.Equal(testNow))
}

func TestPatchReturnsRepresentation(t *testing.T) {
	f := newAPIFixture(t)
	resp, _ := f.do(t, http.MethodPatch, "/rest/v1/user_profiles?id=eq."+f.user.String(), f.token(t, f.user),
		`{"status":"busy"}`, map[string]string{"Prefer": "return=representation"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []Row
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	require.Equal(t, f.user, rows[0].ID)
	require.Equal(t, "busy", rows[0].Status)
	require.True(t, rows[0].StatusUpdatedAt.Equal(testNow))
}

func TestPatchRejectsOtherUsersRow(t *testing.T) {
	f := newAPIFixture(t)
	resp, body := f.do(t, http.MethodPatch, "/rest/v1/user_profiles?id=eq."+f.peer.String(), f.token(t, f.user),
		`{"status":"offline"}`, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, textCodeWriteForbidden, body.TextCode)
	require.Empty(t, f.repo.Updates())
}

func TestPatchValidation(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, f.user)

	cases := []struct {
		name     string
		target   string
		body     string
		status   int
		textCode string
	}{
		{"bad status", "/rest/v1/user_profiles?id=eq." + f.user.String(), `{"status":"dancing"}`, http.StatusBadRequest, textCodeBadBody},
		{"malformed body", "/rest/v1/user_profiles?id=eq." + f.user.String(), `{`, http.StatusBadRequest, textCodeBadBody},
		{"missing filter", "/rest/v1/user_profiles", `{"status":"online"}`, http.StatusBadRequest, textCodeBadFilter},
		{"in filter", "/rest/v1/user_profiles?id=in.(" + f.user.String() + ")", `{"status":"online"}`, http.StatusBadRequest, textCodeBadFilter},
		{"unknown table", "/rest/v1/messages?id=eq." + f.user.String(), `{"status":"online"}`, http.StatusNotFound, textCodeUnknownTable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPatch, tc.target, token, tc.body, nil)
			require.Equal(t, tc.status, resp.StatusCode)
			require.Equal(t, tc.textCode, body.TextCode)
		})
	}
	require.Empty(t, f.repo.Updates())
}

func TestAuthentication(t *testing.T) {
	f := newAPIFixture(t)
	target := "/rest/v1/user_profiles?id=eq." + f.user.String()

	resp, body := f.do(t, http.MethodGet, target, "", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, textCodeTokenMissing, body.TextCode)

	resp, body = f.do(t, http.MethodGet, target, f.token(t, f.user), "", map[string]string{"apikey": "wrong"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, textCodeAPIKey, body.TextCode)

	expired, err := SignToken(testSecret, f.user, "", time.Minute, testNow.Add(-time.Hour))
	require.NoError(t, err)
	resp, body = f.do(t, http.MethodGet, target, expired, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, textCodeTokenInvalid, body.TextCode)

	forged, err := SignToken("other-secret", f.user, "", time.Hour, testNow)
	require.NoError(t, err)
	resp, _ = f.do(t, http.MethodGet, target, forged, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetReturnsRows(t *testing.T) {
	f := newAPIFixture(t)
	seen := testNow.Add(-time.Minute)
	f.repo.Seed(types.PresenceRecord{
		UserID:          f.peer,
		Status:          types.PresenceStatusAway,
		LastSeenAt:      &seen,
		StatusUpdatedAt: seen,
	})

	target := "/rest/v1/user_profiles?id=in.(" + f.user.String() + "," + f.peer.String() + "," + uuid.NewString() + ")"
	resp, _ := f.do(t, http.MethodGet, target, f.token(t, f.user), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rows []Row
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 2)
	byID := map[uuid.UUID]Row{}
	for _, row := range rows {
		byID[row.ID] = row
	}
	require.Equal(t, "offline", byID[f.user].Status)
	require.Nil(t, byID[f.user].LastSeenAt)
	require.Equal(t, "away", byID[f.peer].Status)
	require.True(t, byID[f.peer].LastSeenAt.Equal(seen))
}

func TestUnloadFlushAgainstRESTSurface(t *testing.T) {
	f := newAPIFixture(t)
	client := &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return f.app.Test(req, -1)
	})}
	flusher, err := unload.New(unload.Config{
		BaseURL: "http://presence.local",
		Credentials: unload.StaticCredentials{
			AccessToken: f.token(t, f.user),
			APIKey:      testAPIKey,
		},
		Client: client,
		Clock:  fixedClock{t: testNow},
	})
	require.NoError(t, err)

	require.NoError(t, flusher.Flush(f.user))

	rec, err := f.repo.GetPresence(t.Context(), f.user)
	require.NoError(t, err)
	require.Equal(t, types.PresenceStatusOffline, rec.Status)
	require.True(t, rec.LastSeenAt.Equal(testNow))

	require.Error(t, flusher.Flush(f.peer), "a session cannot flush another user's row")
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestParseIDFilter(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := parseIDFilter("eq." + a.String())
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a}, ids)

	ids, err = parseIDFilter(`in.("` + a.String() + `", ` + b.String() + `)`)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{a, b}, ids)

	for _, raw := range []string{"", "eq.nope", "in.()", "gt.5", "in.(" + a.String()} {
		_, err := parseIDFilter(raw)
		require.Error(t, err, raw)
	}
}
