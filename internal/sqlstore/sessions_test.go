package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository"
	"github.com/stretchr/testify/require"
)

func createSession(t *testing.T, repo *SessionRepository, id, label string, start time.Time) *billing.Session {
	t.Helper()
	sess := &billing.Session{
		SessionID:  id,
		BillingID:  "bill-" + id,
		TableLabel: label,
		ServerID:   "srv-1",
		ServerName: "Alice",
		StartTime:  start,
		Status:     billing.StatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), sess))
	return sess
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	createSession(t, repo, "s1", "T1", start)

	active, err := repo.ActiveByTable(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, "s1", active.SessionID)
	require.Equal(t, "bill-s1", active.BillingID)
	require.True(t, start.Equal(active.StartTime))

	require.NoError(t, repo.Relabel(ctx, "s1", "T2"))
	_, err = repo.ActiveByTable(ctx, "T1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Close(ctx, "s1", start.Add(time.Hour)))
	_, err = repo.ActiveByTable(ctx, "T2")
	require.ErrorIs(t, err, repository.ErrNotFound)

	closed, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, billing.StatusClosed, closed.Status)
	require.NotNil(t, closed.EndTime)

	require.ErrorIs(t, repo.Close(ctx, "s1", time.Now()), repository.ErrNotFound)
}

func TestSessionRepository_DuplicateBillingID(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	start := time.Now().UTC()

	createSession(t, repo, "s1", "T1", start)
	err := repo.Create(context.Background(), &billing.Session{
		SessionID:  "s2",
		BillingID:  "bill-s1",
		TableLabel: "T2",
		StartTime:  start,
		Status:     billing.StatusActive,
	})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestSessionRepository_ListFilters(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSessionRepository(db)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	createSession(t, repo, "s1", "T1", day.Add(10*time.Hour))
	createSession(t, repo, "s2", "T2", day.Add(12*time.Hour))
	createSession(t, repo, "s3", "T1", day.Add(36*time.Hour))

	all, err := repo.List(ctx, billing.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "s3", all[0].SessionID, "newest first")

	firstDay, err := repo.List(ctx, billing.SessionFilter{From: day, To: day.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, firstDay, 2)

	byTable, err := repo.List(ctx, billing.SessionFilter{Table: "T1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byTable, 1)
	require.Equal(t, "s3", byTable[0].SessionID)

	byServer, err := repo.List(ctx, billing.SessionFilter{Server: "Alice"})
	require.NoError(t, err)
	require.Len(t, byServer, 3)

	active, err := repo.Active(ctx)
	require.NoError(t, err)
	require.Len(t, active, 3)
	require.Equal(t, "s1", active[0].SessionID)
}

func TestItemRepository_Replace(t *testing.T) {
	db := NewTestDB(t)
	sessions := NewSessionRepository(db)
	items := NewItemRepository(db)
	ctx := context.Background()

	createSession(t, sessions, "s1", "T5", time.Now().UTC())

	require.NoError(t, items.Replace(ctx, "s1", []billing.ItemLine{
		{ItemID: "i1", Name: "Coffee", Quantity: 2, UnitPrice: money.MustParse("3.50")},
		{ItemID: "i2", Name: "Burger", Quantity: 1, UnitPrice: money.MustParse("8.00")},
	}))
	require.NoError(t, items.Replace(ctx, "s1", []billing.ItemLine{
		{ItemID: "i3", Name: "Tea", Quantity: 1, UnitPrice: money.MustParse("2.00")},
	}))

	lines, err := items.List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "Tea", lines[0].Name)
	require.Equal(t, money.FromCents(200), lines[0].UnitPrice)

	err = items.Replace(ctx, "missing", []billing.ItemLine{{ItemID: "x", Name: "X", Quantity: 1}})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestBillRepository_CreateGetList(t *testing.T) {
	db := NewTestDB(t)
	sessions := NewSessionRepository(db)
	items := NewItemRepository(db)
	bills := NewBillRepository(db)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	end := start.Add(45 * time.Minute)

	createSession(t, sessions, "s1", "T5", start)
	require.NoError(t, items.Replace(ctx, "s1", []billing.ItemLine{
		{ItemID: "i1", Name: "Coffee", Quantity: 2, UnitPrice: money.MustParse("3.50")},
	}))

	bill := &billing.Bill{
		BillID:      "b1",
		SessionID:   "s1",
		BillingID:   "bill-s1",
		TableLabel:  "T5",
		ServerName:  "Alice",
		StartTime:   start,
		EndTime:     &end,
		ItemsCost:   money.MustParse("7.00"),
		TimeCost:    money.MustParse("4.50"),
		TotalAmount: money.MustParse("11.50"),
	}
	require.NoError(t, bills.Create(ctx, bill))
	require.ErrorIs(t, bills.Create(ctx, bill), repository.ErrConflict)

	got, err := bills.Get(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, money.MustParse("11.50"), got.TotalAmount)
	require.Len(t, got.Items, 1)
	require.True(t, end.Equal(*got.EndTime))

	_, err = bills.Get(ctx, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := bills.List(ctx, billing.BillFilter{Table: "T5", Server: "Alice"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Items, 1)

	list, err = bills.List(ctx, billing.BillFilter{From: end.Add(time.Minute)})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestSettingsRepository_Rate(t *testing.T) {
	db := NewTestDB(t)
	repo := NewSettingsRepository(db)
	ctx := context.Background()

	_, err := repo.GetRate(ctx)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.SetRate(ctx, money.MustParse("0.25")))
	require.NoError(t, repo.SetRate(ctx, money.MustParse("0.30")))

	rate, err := repo.GetRate(ctx)
	require.NoError(t, err)
	require.Equal(t, money.FromCents(30), rate)
}
