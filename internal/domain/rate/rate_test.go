package rate_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rpggio/tabletime/internal/domain/rate"
	"github.com/rpggio/tabletime/internal/money"
	"github.com/rpggio/tabletime/internal/repository/mocks"
	"github.com/rpggio/tabletime/internal/tier"
)

func TestRateService_GetSet(t *testing.T) {
	remote := &mocks.RateRemote{}
	remote.On("SetRate", mock.Anything, money.MustParse("0.10")).Return(nil)
	remote.On("GetRate", mock.Anything).Return(money.MustParse("0.10"), nil)

	svc := rate.NewService(remote, nil, nil)
	require.NoError(t, svc.Set(context.Background(), money.MustParse("0.10")))

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.10", got.String())
}

func TestRateService_RejectsNegative(t *testing.T) {
	remote := &mocks.RateRemote{}
	svc := rate.NewService(remote, nil, nil)

	err := svc.Set(context.Background(), money.MustParse("-0.01"))
	require.ErrorIs(t, err, rate.ErrInvalidRate)
	remote.AssertNotCalled(t, "SetRate", mock.Anything, mock.Anything)
}

func TestRateService_Unavailable(t *testing.T) {
	remote := &mocks.RateRemote{}
	remote.On("GetRate", mock.Anything).Return(money.Zero, fmt.Errorf("%w: 503", tier.ErrUnavailable))

	svc := rate.NewService(remote, nil, nil)
	_, err := svc.Get(context.Background())
	require.ErrorIs(t, err, rate.ErrRemoteUnavailable)

	_, err = rate.NewService(nil, nil, nil).Get(context.Background())
	require.ErrorIs(t, err, rate.ErrRemoteUnavailable)
}

func TestRateService_RemoteRejection(t *testing.T) {
	rejected := errors.New("400 invalid rate")
	remote := &mocks.RateRemote{}
	remote.On("SetRate", mock.Anything, mock.Anything).Return(rejected)

	sel := tier.NewSelector(nil, 0, nil)
	svc := rate.NewService(remote, sel, nil)
	err := svc.Set(context.Background(), money.MustParse("1.00"))
	require.ErrorIs(t, err, rejected)
	require.NotErrorIs(t, err, rate.ErrRemoteUnavailable)
	require.Equal(t, tier.Remote, sel.Active())
}
