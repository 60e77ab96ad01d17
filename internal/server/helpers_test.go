// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorkeep Contributors

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/doorkeep/doorkeep/internal/auth"
	"github.com/doorkeep/doorkeep/internal/config"
	"github.com/doorkeep/doorkeep/internal/observability"
)

const (
	testUsername = "test_user"
	testEmail    = "test@example.com"
	testPassword = "Password123"
)

// memUsers is an in-memory UserRepository enforcing uniqueness the
// way the postgres repository does. Setting err makes every method
// fail, standing in for a lost database.
type memUsers struct {
	users map[ulid.ULID]*auth.User
	err   error
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[ulid.ULID]*auth.User)}
}

func (r *memUsers) Create(_ context.Context, user *auth.User) error {
	if r.err != nil {
		return r.err
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("insert users: %w", auth.ErrDuplicateUsername)
		}
		if u.Email == user.Email {
			return fmt.Errorf("insert users: %w", auth.ErrDuplicateEmail)
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("select users: %w", auth.ErrNotFound)
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, fmt.Errorf("select users: %w", auth.ErrNotFound)
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("select users: %w", auth.ErrNotFound)
}

// memSessions is an in-memory SessionRepository.
type memSessions struct {
	sessions map[ulid.ULID]*auth.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[ulid.ULID]*auth.Session)}
}

func (r *memSessions) Create(_ context.Context, session *auth.Session) error {
	r.sessions[session.ID] = session
	return nil
}

func (r *memSessions) GetByID(_ context.Context, id ulid.ULID) (*auth.Session, error) {
	if s, ok := r.sessions[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("select sessions: %w", auth.ErrNotFound)
}

func (r *memSessions) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	for _, s := range r.sessions {
		if s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return nil, fmt.Errorf("select sessions: %w", auth.ErrNotFound)
}

func (r *memSessions) GetByUser(_ context.Context, userID ulid.ULID) ([]*auth.Session, error) {
	var out []*auth.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memSessions) UpdateLastSeen(_ context.Context, id ulid.ULID, lastSeen time.Time) error {
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("update sessions: %w", auth.ErrNotFound)
	}
	s.LastSeenAt = lastSeen
	return nil
}

func (r *memSessions) Delete(_ context.Context, id ulid.ULID) error {
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("delete sessions: %w", auth.ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

func (r *memSessions) DeleteByUser(_ context.Context, userID ulid.ULID) error {
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

func (r *memSessions) DeleteExpired(_ context.Context) (int64, error) {
	var n int64
	now := time.Now().UTC()
	for id, s := range r.sessions {
		if s.IsExpiredAt(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// plainHasher keeps handler tests fast; real argon2id coverage lives
// in the auth package.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Verify(password, hash string) bool {
	return hash == "hashed:"+password
}

type testEnv struct {
	srv      *Server
	users    *memUsers
	sessions *memSessions
	metrics  *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUsers()
	sessions := newMemSessions()
	svc := auth.NewService(users, sessions, plainHasher{})
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	cfg := &config.Config{}
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Session.CookieName = "doorkeep_session"
	cfg.Session.Secret = "0123456789abcdef0123456789abcdef"

	srv, err := New(cfg, svc, metrics, testLogger())
	require.NoError(t, err)

	return &testEnv{srv: srv, users: users, sessions: sessions, metrics: metrics}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// doJSON performs a request with a JSON body through the full
// middleware chain.
func (env *testEnv) doJSON(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.srv.echo.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) doGet(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.srv.echo.ServeHTTP(rec, req)
	return rec
}

func registerBody(overrides map[string]any) string {
	payload := map[string]any{
		auth.FieldUsername:        testUsername,
		auth.FieldEmail:           testEmail,
		auth.FieldPassword:        testPassword,
		auth.FieldConfirmPassword: testPassword,
	}
	for k, v := range overrides {
		if v == nil {
			delete(payload, k)
			continue
		}
		payload[k] = v
	}
	b, _ := json.Marshal(payload)
	return string(b)
}

func loginBody(identifier, password string) string {
	b, _ := json.Marshal(map[string]any{
		auth.FieldLoginIdentifier: identifier,
		auth.FieldPassword:        password,
	})
	return string(b)
}

// register creates the default test user through the API.
func (env *testEnv) register(t *testing.T) {
	t.Helper()
	rec := env.doJSON(http.MethodPost, "/auth/register", registerBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// login registers (if needed) and logs in, returning the session
// cookies the client would hold.
func (env *testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	if len(env.users.users) == 0 {
		env.register(t)
	}
	rec := env.doJSON(http.MethodPost, "/auth/login", loginBody(testEmail, testPassword))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
