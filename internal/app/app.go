// Package app wires the tiers and domain services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rpggio/tabletime/internal/config"
	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/payment"
	"github.com/rpggio/tabletime/internal/domain/rate"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/local"
	"github.com/rpggio/tabletime/internal/remote"
	"github.com/rpggio/tabletime/internal/sqlstore"
	"github.com/rpggio/tabletime/internal/tier"
)

// Options tune New beyond the configuration.
type Options struct {
	Logger     *slog.Logger
	HTTPClient *http.Client
	Now        func() time.Time
}

// App holds the domain services sharing one tier selector.
type App struct {
	Tables   *table.Service
	Sessions *session.Manager
	Billing  *billing.Service
	Rates    *rate.Service
	Payments *payment.Resolver
	Selector *tier.Selector

	remote *remote.Client
	db     *sqlstore.DB
	local  local.Store
	logger *slog.Logger
}

// New builds the application and prepares every reachable tier. A
// relational tier that cannot be opened is disabled, not fatal; a local
// store that cannot be opened is.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{
		Selector: tier.NewSelector(tier.NewState(), cfg.Remote.Timeout, logger),
		logger:   logger,
	}

	tablesCfg := table.Config{
		Selector:      a.Selector,
		HealthTimeout: cfg.Remote.HealthTimeout,
		Logger:        logger.With("component", "tables"),
		Now:           opts.Now,
	}
	sessionsCfg := session.Config{
		Selector: a.Selector,
		Logger:   logger.With("component", "sessions"),
		Now:      opts.Now,
	}
	var billingRemote billing.Remote
	var rateRemote rate.Remote

	if cfg.Remote.BaseURL != "" {
		client, err := remote.NewClient(remote.Config{
			BaseURL:    cfg.Remote.BaseURL,
			Token:      cfg.Remote.Token,
			HTTPClient: opts.HTTPClient,
			Logger:     logger.With("component", "remote"),
		})
		if err != nil {
			return nil, err
		}
		a.remote = client
		tablesCfg.Remote = client
		sessionsCfg.Remote = client
		billingRemote = client
		rateRemote = client
	}

	if cfg.DB.DSN != "" {
		db, err := sqlstore.Open(cfg.DB.Driver, cfg.DB.DSN)
		if err != nil {
			a.Selector.State().DisableDatabase()
			logger.Warn("relational tier unavailable, tier disabled", "driver", cfg.DB.Driver, "error", err)
		} else {
			a.db = db
			tablesCfg.Database = sqlstore.NewTableRepository(db)
		}
	}

	store, err := local.Open(cfg.Local.Backend, cfg.Local.Path)
	if err != nil {
		a.closeDB()
		return nil, fmt.Errorf("%w: %w", tier.ErrLocalStore, err)
	}
	a.local = store
	tablesCfg.Local = store

	a.Tables = table.NewService(tablesCfg)
	sessionsCfg.Tables = a.Tables
	a.Sessions = session.NewManager(sessionsCfg)
	a.Billing = billing.NewService(billingRemote, a.Selector, logger.With("component", "billing"))
	a.Rates = rate.NewService(rateRemote, a.Selector, logger.With("component", "rate"))
	var tableLookup payment.TableLookup
	if a.remote != nil {
		tableLookup = a.remote
	}
	a.Payments = payment.NewResolver(a.Billing, a.Billing, tableLookup, logger.With("component", "payment"))

	if _, err := a.Tables.EnsureSchema(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Status describes the tier state.
type Status struct {
	Source           tier.Tier `json:"source"`
	RemoteConfigured bool      `json:"remoteConfigured"`
	DatabaseUsable   bool      `json:"databaseUsable"`
}

// Status reports the tier that served the latest operation and which tiers
// are still in play.
func (a *App) Status() Status {
	return Status{
		Source:           a.Selector.Active(),
		RemoteConfigured: a.remote != nil,
		DatabaseUsable:   a.db != nil && a.Selector.State().DatabaseUsable(),
	}
}

// Close releases the relational pool and the local store.
func (a *App) Close() error {
	var errs []error
	if a.local != nil {
		errs = append(errs, a.local.Close())
		a.local = nil
	}
	errs = append(errs, a.closeDB())
	return errors.Join(errs...)
}

func (a *App) closeDB() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
