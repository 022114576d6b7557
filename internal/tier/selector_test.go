package tier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []Tier
}

func (r *recorder) attempt(t Tier, err error) Attempt {
	return func(context.Context) error {
		r.calls = append(r.calls, t)
		return err
	}
}

var errDown = errors.New("down")

func TestSelector_RemoteSuccessShortCircuits(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(nil, time.Second, nil)

	served, err := sel.Run(context.Background(), Attempts{
		Op:       "upsert",
		Remote:   rec.attempt(Remote, nil),
		Database: rec.attempt(Database, nil),
		Local:    rec.attempt(Local, nil),
	})
	require.NoError(t, err)
	require.Equal(t, Remote, served)
	require.Equal(t, []Tier{Remote}, rec.calls)
	require.Equal(t, Remote, sel.Active())
}

func TestSelector_OrderOnFailures(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(nil, time.Second, nil)

	served, err := sel.Run(context.Background(), Attempts{
		Op:       "upsert",
		Remote:   rec.attempt(Remote, errDown),
		Database: rec.attempt(Database, errDown),
		Local:    rec.attempt(Local, nil),
	})
	require.NoError(t, err)
	require.Equal(t, Local, served)
	require.Equal(t, []Tier{Remote, Database, Local}, rec.calls)
	require.Equal(t, Local, sel.Active())
}

func TestSelector_DatabaseDisabledAfterFirstFailure(t *testing.T) {
	sel := NewSelector(nil, time.Second, nil)
	dbCalls := 0
	remoteCalls := 0
	attempts := Attempts{
		Op: "list",
		Remote: func(context.Context) error {
			remoteCalls++
			return errDown
		},
		Database: func(context.Context) error {
			dbCalls++
			return errDown
		},
		Local: func(context.Context) error { return nil },
	}

	for i := 0; i < 3; i++ {
		served, err := sel.Run(context.Background(), attempts)
		require.NoError(t, err)
		require.Equal(t, Local, served)
	}

	require.Equal(t, 1, dbCalls)
	require.Equal(t, 3, remoteCalls)
	require.False(t, sel.State().DatabaseUsable())
}

func TestSelector_DatabaseStaysUsableWhileHealthy(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(nil, time.Second, nil)

	for i := 0; i < 2; i++ {
		served, err := sel.Run(context.Background(), Attempts{
			Op:       "list",
			Remote:   rec.attempt(Remote, errDown),
			Database: rec.attempt(Database, nil),
			Local:    rec.attempt(Local, nil),
		})
		require.NoError(t, err)
		require.Equal(t, Database, served)
	}
	require.Equal(t, []Tier{Remote, Database, Remote, Database}, rec.calls)
	require.True(t, sel.State().DatabaseUsable())
}

func TestSelector_LocalFailureIsFatal(t *testing.T) {
	sel := NewSelector(nil, time.Second, nil)
	diskErr := errors.New("disk full")

	served, err := sel.Run(context.Background(), Attempts{
		Op:    "upsert",
		Local: func(context.Context) error { return diskErr },
	})
	require.Equal(t, Local, served)
	require.ErrorIs(t, err, ErrLocalStore)
	require.ErrorIs(t, err, diskErr)
}

func TestSelector_FinalAnswerStopsCascade(t *testing.T) {
	rec := &recorder{}
	notFound := errors.New("not found")
	sel := NewSelector(nil, time.Second, nil)

	served, err := sel.Run(context.Background(), Attempts{
		Op:       "get",
		Remote:   rec.attempt(Remote, Final(notFound)),
		Database: rec.attempt(Database, nil),
		Local:    rec.attempt(Local, nil),
	})
	require.Equal(t, Remote, served)
	require.ErrorIs(t, err, notFound)
	require.Equal(t, []Tier{Remote}, rec.calls)
	require.True(t, sel.State().DatabaseUsable())
}

func TestSelector_RemoteTimeoutDegrades(t *testing.T) {
	sel := NewSelector(nil, 20*time.Millisecond, nil)

	served, err := sel.Run(context.Background(), Attempts{
		Op: "list",
		Remote: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		Local: func(context.Context) error { return nil },
	})
	require.NoError(t, err)
	require.Equal(t, Local, served)
}

func TestSelector_CallerCancellationStops(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(nil, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := sel.Run(ctx, Attempts{
		Op: "list",
		Remote: func(context.Context) error {
			cancel()
			return context.Canceled
		},
		Database: rec.attempt(Database, nil),
		Local:    rec.attempt(Local, nil),
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, rec.calls)
}

func TestSelector_RunFallbackSkipsRemote(t *testing.T) {
	rec := &recorder{}
	sel := NewSelector(nil, time.Second, nil)

	served, err := sel.RunFallback(context.Background(), Attempts{
		Op:       "start",
		Remote:   rec.attempt(Remote, nil),
		Database: rec.attempt(Database, nil),
		Local:    rec.attempt(Local, nil),
	})
	require.NoError(t, err)
	require.Equal(t, Database, served)
	require.Equal(t, []Tier{Database}, rec.calls)
}

func TestFetch(t *testing.T) {
	sel := NewSelector(nil, time.Second, nil)

	got, served, err := Fetch(context.Background(), sel, Query[[]string]{
		Op: "labels",
		Remote: func(context.Context) ([]string, error) {
			return []string{"remote"}, errDown
		},
		Database: func(context.Context) ([]string, error) {
			return []string{"T1", "T2"}, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, Database, served)
	require.Equal(t, []string{"T1", "T2"}, got)
}

func TestTierString(t *testing.T) {
	require.Equal(t, "Remote", Remote.String())
	require.Equal(t, "Database", Database.String())
	require.Equal(t, "Local", Local.String())
}

func TestSelector_TryRemote(t *testing.T) {
	sel := NewSelector(nil, time.Second, nil)
	rejected := errors.New("409 occupied")

	err := sel.TryRemote(context.Background(), "start", func(context.Context) error {
		return Final(rejected)
	})
	require.ErrorIs(t, err, rejected)
	require.Equal(t, Remote, sel.Active())

	sel.State().Mark(Local)
	err = sel.TryRemote(context.Background(), "start", func(context.Context) error {
		return ErrUnavailable
	})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, Local, sel.Active())
}
