package app_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/tabletime/internal/app"
	"github.com/rpggio/tabletime/internal/config"
	"github.com/rpggio/tabletime/internal/domain/billing"
	"github.com/rpggio/tabletime/internal/domain/session"
	"github.com/rpggio/tabletime/internal/domain/table"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/testserver"
	"github.com/rpggio/tabletime/internal/tier"
)

const token = "venue-token"

func testConfig(t *testing.T, remoteURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Remote.BaseURL = remoteURL
	cfg.Remote.Token = token
	cfg.Remote.Timeout = 2 * time.Second
	cfg.Remote.HealthTimeout = time.Second
	cfg.DB.DSN = "file:" + filepath.Join(dir, "client.db")
	cfg.Local.Path = filepath.Join(dir, "tables.db")
	return cfg
}

func newApp(t *testing.T, cfg config.Config) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, app.Options{Now: func() time.Time { return testserver.Start }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func seed(t *testing.T, a *app.App, labels ...string) {
	t.Helper()
	recs := make([]table.TableStatus, 0, len(labels))
	for _, l := range labels {
		recs = append(recs, table.TableStatus{Label: l, Type: "pool"})
	}
	_, err := a.Tables.Seed(context.Background(), recs)
	require.NoError(t, err)
}

func TestApp_StartStopOnRemote(t *testing.T) {
	ts := testserver.New(t, token)
	a := newApp(t, testConfig(t, ts.URL()))
	ctx := context.Background()
	require.Equal(t, tier.Remote, a.Status().Source)

	seed(t, a, "T1", "T2")
	require.NoError(t, a.Rates.Set(ctx, money.MustParse("0.10")))

	started, err := a.Sessions.Start(ctx, session.StartRequest{Label: "T1", ServerID: "alice"})
	require.NoError(t, err)
	require.False(t, started.Degraded)
	require.NotNil(t, started.Session)

	snap, err := a.Tables.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, tier.Remote, snap.Source)
	rec, ok := snap.Find("T1")
	require.True(t, ok)
	require.True(t, rec.Occupied)
	require.NotNil(t, rec.StartTime)
	require.Equal(t, []string{"T2"}, snap.AvailableLabels())

	_, err = a.Billing.ReplaceItems(ctx, "T1", []billing.ItemLine{
		{Name: "Cola", Quantity: 2, UnitPrice: money.MustParse("2.50")},
	})
	require.NoError(t, err)

	ts.Advance(10 * time.Minute)
	stopped, err := a.Sessions.Stop(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, "5.00", stopped.Bill.ItemsCost.String())
	require.Equal(t, "1.00", stopped.Bill.TimeCost.String())
	require.Equal(t, "6.00", stopped.Bill.TotalAmount.String())

	snap, err = a.Tables.GetAll(ctx)
	require.NoError(t, err)
	rec, _ = snap.Find("T1")
	require.False(t, rec.Occupied)
	require.Nil(t, rec.StartTime)

	id, err := a.Payments.Resolve(ctx, *stopped.Bill)
	require.NoError(t, err)
	require.False(t, id.Synthesized)
	require.Equal(t, started.Session.SessionID, id.SessionID)
	require.Equal(t, started.Session.BillingID, id.BillingID)
}

func TestApp_DegradesToDatabase(t *testing.T) {
	ts := testserver.New(t, token)
	a := newApp(t, testConfig(t, ts.URL()))
	ctx := context.Background()

	ts.SetDown(true)
	seed(t, a, "T1")
	require.Equal(t, tier.Database, a.Status().Source)

	started, err := a.Sessions.Start(ctx, session.StartRequest{Label: "T1"})
	require.NoError(t, err)
	require.True(t, started.Degraded)
	require.Equal(t, tier.Database, started.Source)
	require.Nil(t, started.Session)

	_, err = a.Sessions.Start(ctx, session.StartRequest{Label: "T1"})
	require.ErrorIs(t, err, session.ErrTableOccupied)

	_, err = a.Sessions.Move(ctx, "T1", "T2")
	require.ErrorIs(t, err, session.ErrRemoteUnavailable)

	bills, err := a.Billing.ListBills(ctx, billing.BillFilter{})
	require.ErrorIs(t, err, billing.ErrRemoteUnavailable)
	require.Empty(t, bills)

	stopped, err := a.Sessions.Stop(ctx, "T1")
	require.NoError(t, err)
	require.True(t, stopped.Degraded)
	require.Nil(t, stopped.Bill)

	// The remote service owns its own state and never saw the degraded session.
	ts.SetDown(false)
	snap, err := a.Tables.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, tier.Remote, snap.Source)
	require.Empty(t, snap.Tables)
}

func TestApp_StopOfflineAfterRemoteStart(t *testing.T) {
	ts := testserver.New(t, token)
	a := newApp(t, testConfig(t, ts.URL()))
	ctx := context.Background()

	ts.SetDown(true)
	seed(t, a, "T1")
	ts.SetDown(false)
	seed(t, a, "T1")

	started, err := a.Sessions.Start(ctx, session.StartRequest{Label: "T1", ServerID: "alice"})
	require.NoError(t, err)
	require.Equal(t, tier.Remote, started.Source)

	ts.SetDown(true)
	stopped, err := a.Sessions.Stop(ctx, "T1")
	require.NoError(t, err)
	require.True(t, stopped.Degraded)
	require.Equal(t, tier.Database, stopped.Source)
	require.Nil(t, stopped.Bill)
	require.False(t, stopped.Table.Occupied)

	rec, source, err := a.Tables.Get(ctx, "T1")
	require.NoError(t, err)
	require.Equal(t, tier.Database, source)
	require.False(t, rec.Occupied)
}

func TestApp_PaymentLookupKeepsActiveTier(t *testing.T) {
	ts := testserver.New(t, token)
	a := newApp(t, testConfig(t, ts.URL()))
	ctx := context.Background()
	require.Equal(t, tier.Remote, a.Status().Source)

	ts.SetDown(true)
	id, err := a.Payments.Resolve(ctx, billing.Bill{BillID: "bill-1", TableLabel: "T1"})
	require.NoError(t, err)
	require.True(t, id.Synthesized)
	require.Equal(t, "bill-1", id.BillingID)

	status := a.Status()
	require.Equal(t, tier.Remote, status.Source)
	require.True(t, status.DatabaseUsable)
}

func TestApp_DatabaseFailureFallsBackToLocal(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.DB.DSN = "file:" + filepath.Join(t.TempDir(), "missing", "dir", "client.db")
	a := newApp(t, cfg)
	ctx := context.Background()

	status := a.Status()
	require.False(t, status.RemoteConfigured)
	require.False(t, status.DatabaseUsable)
	require.Equal(t, tier.Local, status.Source)

	seed(t, a, "T1")
	started, err := a.Sessions.Start(ctx, session.StartRequest{Label: "T1"})
	require.NoError(t, err)
	require.Equal(t, tier.Local, started.Source)

	labels, served, err := a.Tables.GetAvailableLabels(ctx)
	require.NoError(t, err)
	require.Equal(t, tier.Local, served)
	require.Empty(t, labels)
}

func TestApp_LocalOnlyWithFileBackend(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.DB.DSN = ""
	cfg.Local.Backend = "file"
	cfg.Local.Path = filepath.Join(t.TempDir(), "tables.json")
	a := newApp(t, cfg)

	seed(t, a, "B1", "A1")
	snap, err := a.Tables.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, tier.Local, snap.Source)
	require.Equal(t, "A1", snap.Tables[0].Label)

	_, err = a.Rates.Get(context.Background())
	require.ErrorIs(t, err, tier.ErrUnavailable)
}

func TestApp_InvalidRemoteURL(t *testing.T) {
	cfg := testConfig(t, "ftp://pos.local")
	_, err := app.New(context.Background(), cfg, app.Options{})
	require.Error(t, err)
}
