// Package testserver runs the reference remote service on an in-memory
// database for tests.
package testserver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/tabletime/internal/server"
	"github.com/rpggio/tabletime/internal/sqlstore"
	"github.com/rpggio/tabletime/internal/transport"
)

// Start is the clock value every test server begins at.
var Start = time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlstore.DB
	Service *server.Service
	Token   string

	mu   sync.Mutex
	now  time.Time
	down atomic.Bool
}

// New starts a test server. A non-empty token is required on every request
// except /health.
func New(t *testing.T, token string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlstore.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(context.Background()))

	ts := &TestServer{DB: db, Token: token, now: Start}
	ts.Service = server.NewService(server.NewSQLStore(db), nil, server.WithClock(ts.Now))

	router := transport.NewServer(ts.Service, transport.Options{Token: token})
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ts.down.Load() {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
			return
		}
		router.ServeHTTP(w, r)
	}))

	t.Cleanup(func() {
		ts.Server.Close()
		_ = db.Close()
	})

	return ts
}

// URL returns the base URL of the server.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// Now is the server's clock.
func (ts *TestServer) Now() time.Time {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.now
}

// Advance moves the server's clock forward.
func (ts *TestServer) Advance(d time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.now = ts.now.Add(d)
}

// SetDown makes every request fail with 503 while down is true.
func (ts *TestServer) SetDown(down bool) {
	ts.down.Store(down)
}
