// Package transport exposes the reference remote service over HTTP.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/server"
)

const maxBodyBytes = 1 << 20

// Backend is the service the router exposes.
type Backend interface {
	Health(ctx context.Context) error
	ListTables(ctx context.Context) ([]table.TableStatus, error)
	GetTable(ctx context.Context, label string) (*table.TableStatus, error)
	UpsertTable(ctx context.Context, rec table.TableStatus) (*table.TableStatus, error)
	BulkUpsertTables(ctx context.Context, recs []table.TableStatus) error
	SeedTables(ctx context.Context, recs []table.TableStatus) error
	Start(ctx context.Context, label string, req session.StartRequest) (*session.Started, error)
	Stop(ctx context.Context, label string) (*billing.Bill, error)
	Move(ctx context.Context, from, to string) (*session.Moved, error)
	ForceFree(ctx context.Context, label string) (*table.TableStatus, error)
	Items(ctx context.Context, label string) ([]billing.ItemLine, error)
	ReplaceItems(ctx context.Context, label string, items []billing.ItemLine) ([]billing.ItemLine, error)
	ListBills(ctx context.Context, filter billing.BillFilter) ([]billing.Bill, error)
	GetBill(ctx context.Context, id string) (*billing.Bill, error)
	ActiveSessions(ctx context.Context) ([]billing.Session, error)
	ListSessions(ctx context.Context, filter billing.SessionFilter) ([]billing.Session, error)
	GetRate(ctx context.Context) (money.Money, error)
	SetRate(ctx context.Context, perMinute money.Money) error
}

var _ Backend = (*server.Service)(nil)

// Options configures the router middleware.
type Options struct {
	Token     string
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	backend Backend
	logger  *slog.Logger
}

// NewServer creates the HTTP router of the remote service.
func NewServer(backend Backend, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{backend: backend, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(RateLimitMiddleware(opts.RateLimit, opts.RateBurst))

	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(opts.Token))

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", srv.handleListTables)
			r.Post("/upsert", srv.handleUpsertTable)
			r.Post("/bulkUpsert", srv.handleBulkUpsert)
			r.Post("/seed", srv.handleSeed)
			r.Route("/{label}", func(r chi.Router) {
				r.Get("/", srv.handleGetTable)
				r.Put("/", srv.handlePutTable)
				r.Post("/start", srv.handleStart)
				r.Post("/stop", srv.handleStop)
				r.Post("/move", srv.handleMove)
				r.Post("/force-free", srv.handleForceFree)
				r.Get("/items", srv.handleListItems)
				r.Post("/items", srv.handleReplaceItems)
			})
		})

		r.Get("/bills", srv.handleListBills)
		r.Get("/bills/{id}", srv.handleGetBill)
		r.Get("/sessions", srv.handleListSessions)
		r.Get("/sessions/active", srv.handleActiveSessions)
		r.Get("/settings/rate", srv.handleGetRate)
		r.Put("/settings/rate", srv.handleSetRate)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Health(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		writeMessage(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.backend.ListTables(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	rec, err := s.backend.GetTable(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpsertTable(w http.ResponseWriter, r *http.Request) {
	var rec table.TableStatus
	if !s.decode(w, r, &rec) {
		return
	}
	s.upsert(w, r, rec)
}

func (s *Server) handlePutTable(w http.ResponseWriter, r *http.Request) {
	var rec table.TableStatus
	if !s.decode(w, r, &rec) {
		return
	}
	rec.Label = chi.URLParam(r, "label")
	s.upsert(w, r, rec)
}

func (s *Server) upsert(w http.ResponseWriter, r *http.Request, rec table.TableStatus) {
	saved, err := s.backend.UpsertTable(r.Context(), rec)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleBulkUpsert(w http.ResponseWriter, r *http.Request) {
	var recs []table.TableStatus
	if !s.decode(w, r, &recs) {
		return
	}
	if err := s.backend.BulkUpsertTables(r.Context(), recs); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var recs []table.TableStatus
	if !s.decode(w, r, &recs) {
		return
	}
	if err := s.backend.SeedTables(r.Context(), recs); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	started, err := s.backend.Start(r.Context(), chi.URLParam(r, "label"), req)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	bill, err := s.backend.Stop(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	moved, err := s.backend.Move(r.Context(), chi.URLParam(r, "label"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, moved)
}

func (s *Server) handleForceFree(w http.ResponseWriter, r *http.Request) {
	rec, err := s.backend.ForceFree(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.backend.Items(r.Context(), chi.URLParam(r, "label"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleReplaceItems(w http.ResponseWriter, r *http.Request) {
	var items []billing.ItemLine
	if !s.decode(w, r, &items) {
		return
	}
	saved, err := s.backend.ReplaceItems(r.Context(), chi.URLParam(r, "label"), items)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := billing.ParseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	bills, err := s.backend.ListBills(r.Context(), billing.BillFilter{
		From:   from,
		To:     to,
		Table:  q.Get("table"),
		Server: q.Get("server"),
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := s.backend.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.backend.ActiveSessions(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, err := billing.ParseRange(q.Get("from"), q.Get("to"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}
	sessions, err := s.backend.ListSessions(r.Context(), billing.SessionFilter{
		Limit:  limit,
		From:   from,
		To:     to,
		Table:  q.Get("table"),
		Server: q.Get("server"),
	})
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	perMinute, err := s.backend.GetRate(r.Context())
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(perMinute.String()))
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unreadable body")
		return
	}
	perMinute, err := money.Parse(strings.Trim(strings.TrimSpace(string(body)), `"`))
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	if err := s.backend.SetRate(r.Context(), perMinute); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(perMinute.String()))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}
