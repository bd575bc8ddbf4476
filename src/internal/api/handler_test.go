package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/ce-fello/recruitment-review-service/src/internal/policy"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
	"github.com/ce-fello/recruitment-review-service/src/internal/service"
	"github.com/ce-fello/recruitment-review-service/src/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, apps ...model.Application) *httptest.Server {
	t.Helper()
	dir := roster.NewDirectory(roster.DefaultHierarchy())
	dir.Replace([]roster.Entry{
		{Email: "alice@x.com", Name: "Alice", Branch: "Software", Role: "Chief Engineer"},
		{Email: "bob@x.com", Name: "Bob", Branch: "Software", Role: "Engineer"},
	})
	repo := store.NewMemoryRepository(zap.NewNop())
	for _, a := range apps {
		_, err := repo.InsertApplication(context.Background(), a)
		require.NoError(t, err)
	}
	svc := service.NewService(repo, dir, service.Options{Rules: policy.DefaultRules()}, zap.NewNop())
	logger := zaptest.NewLogger(t)
	h := NewHandler(svc, IdentityConfig{JWTSecret: testSecret, AllowHeader: true}, time.Second, logger)

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware, LoggerMiddleware(logger), Recoverer(logger))
	RegisterRoutes(r, h)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, email string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if email != "" {
		req.Header.Set(HeaderUserEmail, email)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func seedApps() []model.Application {
	return []model.Application{
		{ID: "A1", Branch: "Software", Role: "Member", Status: model.StatusSubmitted, ApplicantEmail: "p@q.com"},
		{ID: "A2", Branch: "Software", Role: "Chief", Status: model.StatusSubmitted, ApplicantEmail: "r@q.com"},
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	code, body := call(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestReviewFlow(t *testing.T) {
	srv := newTestServer(t, seedApps()...)

	code, body := call(t, srv, http.MethodGet, "/review/queue/Software", "alice@x.com", nil)
	require.Equal(t, http.StatusOK, code)
	apps := body["applications"].([]any)
	require.Len(t, apps, 1)
	assert.Equal(t, "A1", apps[0].(map[string]any)["id"])

	code, _ = call(t, srv, http.MethodPost, "/review/claim/A1", "alice@x.com", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = call(t, srv, http.MethodPost, "/review/claim/A1", "bob@x.com", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", errorCode(body))

	code, body = call(t, srv, http.MethodPost, "/review/decision/A1", "alice@x.com",
		map[string]string{"decision": "waitlist", "notes": "good fit"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "waitlist", body["status"])

	code, body = call(t, srv, http.MethodGet, "/applications/A1", "alice@x.com", nil)
	require.Equal(t, http.StatusOK, code)
	app := body["application"].(map[string]any)
	assert.Nil(t, app["claim"])
	notes := app["notes"].([]any)
	require.Len(t, notes, 1)
	assert.Equal(t, "[Decision: WAITLIST] good fit", notes[0].(map[string]any)["content"])

	code, body = call(t, srv, http.MethodGet, "/review/history/A1", "alice@x.com", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)
}

func TestErrorMapping(t *testing.T) {
	srv := newTestServer(t, seedApps()...)

	tests := []struct {
		name   string
		method string
		path   string
		email  string
		body   any
		status int
		code   string
	}{
		{"no identity", http.MethodGet, "/review/queue/Software", "", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"not in roster", http.MethodGet, "/review/queue/Software", "mallory@x.com", nil, http.StatusForbidden, "FORBIDDEN"},
		{"other branch", http.MethodGet, "/review/queue/Hardware", "bob@x.com", nil, http.StatusForbidden, "FORBIDDEN"},
		{"hidden role", http.MethodPost, "/review/claim/A2", "alice@x.com", nil, http.StatusForbidden, "FORBIDDEN"},
		{"unknown id", http.MethodPost, "/review/claim/ZZ", "bob@x.com", nil, http.StatusNotFound, "NOT_FOUND"},
		{"bad decision", http.MethodPost, "/review/decision/A1", "bob@x.com", map[string]string{"decision": "maybe"}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"blank note", http.MethodPost, "/applications/A1/notes", "bob@x.com", map[string]string{"note": " "}, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"release unheld", http.MethodPost, "/review/release/A1", "bob@x.com", nil, http.StatusConflict, "CONFLICT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := call(t, srv, tt.method, tt.path, tt.email, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, errorCode(body))
		})
	}
}

func TestSubmitUsesCallerIdentity(t *testing.T) {
	srv := newTestServer(t)

	code, body := call(t, srv, http.MethodPost, "/applications", "Applicant@Q.com", map[string]any{
		"applicant_email": "someone-else@q.com",
		"branch":          "Software",
		"role":            "Member",
		"responses":       map[string]string{"why": "because"},
	})
	require.Equal(t, http.StatusCreated, code)
	app := body["application"].(map[string]any)
	assert.Equal(t, "applicant@q.com", app["applicant_email"])
	assert.Equal(t, "submitted", app["status"])

	code, body = call(t, srv, http.MethodGet, "/applications/mine", "applicant@q.com", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["applications"], 1)
}

func TestBearerToken(t *testing.T) {
	srv := newTestServer(t, seedApps()...)

	token, err := IssueToken(testSecret, "bob@x.com", time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Reviewer roster.Entry `json:"reviewer"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "bob@x.com", body.Reviewer.Email)
	assert.Equal(t, roster.LevelMember, body.Reviewer.Level)
}

func TestBearerToken_Rejected(t *testing.T) {
	srv := newTestServer(t)

	wrongKey, err := IssueToken("other-secret", "bob@x.com", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, "bob@x.com", -time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, EmailClaims{Email: "bob@x.com"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{"wrong key": wrongKey, "expired": expired, "alg none": none} {
		t.Run(name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			// a bearer token takes precedence over the development header
			req.Header.Set(HeaderUserEmail, "bob@x.com")
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-Id"))
}

func TestRecovererReturnsJSON(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Recoverer(zap.NewNop()))
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}
