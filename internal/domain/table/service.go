package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rpggio/tabletime/internal/repository"
	"github.com/rpggio/tabletime/internal/tier"
)

// DefaultHealthTimeout bounds the remote health probe run by EnsureSchema.
const DefaultHealthTimeout = 3 * time.Second

// Config wires the table service to its tiers. Remote and Database are
// optional; Local is required.
type Config struct {
	Remote        RemoteTables
	Database      Store
	Local         Store
	Selector      *tier.Selector
	HealthTimeout time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Service is the table state store. Every operation runs through the tier
// selector: remote service, then relational database, then local store.
type Service struct {
	remote        RemoteTables
	db            Store
	local         Store
	selector      *tier.Selector
	healthTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewService creates a table service.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	selector := cfg.Selector
	if selector == nil {
		selector = tier.NewSelector(nil, 0, logger)
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = DefaultHealthTimeout
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		remote:        cfg.Remote,
		db:            cfg.Database,
		local:         cfg.Local,
		selector:      selector,
		healthTimeout: healthTimeout,
		logger:        logger,
		now:           now,
	}
}

// Source returns the tier that served the most recent operation.
func (s *Service) Source() tier.Tier {
	return s.selector.Active()
}

// EnsureSchema prepares every reachable tier. The local store is always
// prepared since it has to be available when everything else is down. The
// returned tier is the most preferred one that is reachable.
func (s *Service) EnsureSchema(ctx context.Context) (tier.Tier, error) {
	if err := s.local.EnsureSchema(ctx); err != nil {
		return tier.Local, fmt.Errorf("%w: ensure schema: %w", tier.ErrLocalStore, err)
	}
	served := tier.Local

	state := s.selector.State()
	if s.db != nil && state.DatabaseUsable() {
		if err := s.db.EnsureSchema(ctx); err != nil {
			state.DisableDatabase()
			s.logger.Warn("relational schema unavailable, tier disabled", "error", err)
		} else {
			served = tier.Database
		}
	}

	if s.remote != nil {
		probeCtx, cancel := context.WithTimeout(ctx, s.healthTimeout)
		err := s.remote.Health(probeCtx)
		cancel()
		if err != nil {
			s.logger.Warn("remote service health probe failed", "error", err)
		} else {
			served = tier.Remote
		}
	}

	state.Mark(served)
	s.logger.Info("table store ready", "source", served.String())
	return served, nil
}

// GetAll returns every table record ordered by label.
func (s *Service) GetAll(ctx context.Context) (Snapshot, error) {
	q := tier.Query[[]TableStatus]{Op: "list_tables"}
	if s.remote != nil {
		q.Remote = s.remote.ListTables
	}
	if s.db != nil {
		q.Database = s.db.List
	}
	q.Local = s.local.List

	tables, served, err := tier.Fetch(ctx, s.selector, q)
	if err != nil {
		return Snapshot{Source: served}, err
	}
	if tables == nil {
		tables = []TableStatus{}
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Label < tables[j].Label })
	return Snapshot{Tables: tables, Source: served}, nil
}

// Get returns the record for label. ErrTableNotFound is an answer from the
// serving tier and does not degrade to the next one.
func (s *Service) Get(ctx context.Context, label string) (*TableStatus, tier.Tier, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, s.Source(), ErrInvalidInput
	}

	get := func(fn func(context.Context, string) (*TableStatus, error)) func(context.Context) (*TableStatus, error) {
		return func(ctx context.Context) (*TableStatus, error) {
			rec, err := fn(ctx, label)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, tier.Final(ErrTableNotFound)
			}
			return rec, err
		}
	}

	q := tier.Query[*TableStatus]{Op: "get_table", Local: get(s.local.Get)}
	if s.remote != nil {
		q.Remote = get(s.remote.GetTable)
	}
	if s.db != nil {
		q.Database = get(s.db.Get)
	}
	return tier.Fetch(ctx, s.selector, q)
}

// Upsert inserts or replaces the record with the same label. An occupied
// record without a start time keeps the stored start when the table was
// already occupied.
func (s *Service) Upsert(ctx context.Context, rec TableStatus) (tier.Tier, error) {
	if err := s.prepare(&rec); err != nil {
		return s.Source(), err
	}

	a := tier.Attempts{
		Op:    "upsert_table",
		Local: func(ctx context.Context) error { return s.local.Upsert(ctx, rec) },
	}
	if s.remote != nil {
		a.Remote = func(ctx context.Context) error { return s.remote.UpsertTable(ctx, rec) }
	}
	if s.db != nil {
		a.Database = func(ctx context.Context) error { return s.db.Upsert(ctx, rec) }
	}
	return s.selector.Run(ctx, a)
}

// UpsertMany upserts a batch. The relational and local tiers apply the batch
// atomically; the remote tier receives it as a single bulk request.
func (s *Service) UpsertMany(ctx context.Context, recs []TableStatus) (tier.Tier, error) {
	batch, err := s.prepareAll(recs)
	if err != nil {
		return s.Source(), err
	}
	if len(batch) == 0 {
		return s.Source(), nil
	}

	a := tier.Attempts{
		Op:    "bulk_upsert_tables",
		Local: func(ctx context.Context) error { return s.local.UpsertMany(ctx, batch) },
	}
	if s.remote != nil {
		a.Remote = func(ctx context.Context) error { return s.remote.BulkUpsertTables(ctx, batch) }
	}
	if s.db != nil {
		a.Database = func(ctx context.Context) error { return s.db.UpsertMany(ctx, batch) }
	}
	return s.selector.Run(ctx, a)
}

// Seed inserts the records whose labels do not exist yet. Existing records
// are left untouched.
func (s *Service) Seed(ctx context.Context, recs []TableStatus) (tier.Tier, error) {
	batch, err := s.prepareAll(recs)
	if err != nil {
		return s.Source(), err
	}
	for i := range batch {
		batch[i].Settle(nil)
	}

	a := tier.Attempts{
		Op:    "seed_tables",
		Local: func(ctx context.Context) error { return s.local.Seed(ctx, batch) },
	}
	if s.remote != nil {
		a.Remote = func(ctx context.Context) error { return s.remote.SeedTables(ctx, batch) }
	}
	if s.db != nil {
		a.Database = func(ctx context.Context) error { return s.db.Seed(ctx, batch) }
	}
	return s.selector.Run(ctx, a)
}

// GetAvailableLabels returns the labels of all free tables.
func (s *Service) GetAvailableLabels(ctx context.Context) ([]string, tier.Tier, error) {
	snap, err := s.GetAll(ctx)
	if err != nil {
		return nil, snap.Source, err
	}
	return snap.AvailableLabels(), snap.Source, nil
}

// MutateOffline applies fn to the record for label on the relational tier,
// falling back to the local store. The remote tier is skipped: this is the
// degraded write path used when the remote service cannot sequence a
// session transition. Errors returned by fn are final and never degrade.
func (s *Service) MutateOffline(ctx context.Context, label string, fn MutateFunc) (*TableStatus, tier.Tier, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, s.Source(), ErrInvalidInput
	}

	var result *TableStatus
	apply := func(store Store) tier.Attempt {
		return func(ctx context.Context) error {
			rec, err := store.Mutate(ctx, label, func(rec *TableStatus, found bool) error {
				if err := fn(rec, found); err != nil {
					return tier.Final(err)
				}
				rec.Label = label
				rec.Normalize(s.now())
				return nil
			})
			if err != nil {
				return err
			}
			result = rec
			return nil
		}
	}

	a := tier.Attempts{Op: "mutate_table_offline", Local: apply(s.local)}
	if s.db != nil {
		a.Database = apply(s.db)
	}
	served, err := s.selector.RunFallback(ctx, a)
	if err != nil {
		return nil, served, err
	}
	return result, served, nil
}

// prepare validates rec and stamps it. The start time of an occupied record
// without one is settled by the store against what it already holds.
func (s *Service) prepare(rec *TableStatus) error {
	if strings.TrimSpace(rec.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidInput)
	}
	rec.Touch(s.now())
	return nil
}

func (s *Service) prepareAll(recs []TableStatus) ([]TableStatus, error) {
	batch := make([]TableStatus, 0, len(recs))
	seen := make(map[string]int, len(recs))
	for _, rec := range recs {
		if err := s.prepare(&rec); err != nil {
			return nil, err
		}
		// Last write wins within a batch so a label is never stored twice.
		if idx, ok := seen[rec.Label]; ok {
			batch[idx] = rec
			continue
		}
		seen[rec.Label] = len(batch)
		batch = append(batch, rec)
	}
	return batch, nil
}
