package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

func newTestRepo(t *testing.T) (PendingPaymentRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return NewRedisPendingPaymentRepository(cli, logger.NewNop(), "test:pending", time.Hour), mr
}

func samplePending() models.PendingPaymentData {
	return models.PendingPaymentData{
		OrderNumber:    "10077",
		PaymentID:      "pay_1",
		BuyerPhone:     "+972500000000",
		BuyerFirstName: "Dana",
		Amount:         9000,
		Currency:       "ILS",
		Email:          "dana@example.com",
		CreatedAt:      time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestPendingPaymentSaveGetDelete(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "device-1", samplePending()))
	assert.True(t, mr.Exists("test:pending:device-1"))
	assert.Equal(t, time.Hour, mr.TTL("test:pending:device-1"))

	got, err := repo.Get(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, samplePending(), *got)

	_, err = repo.Get(ctx, "device-2")
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)

	require.NoError(t, repo.Delete(ctx, "device-1"))
	_, err = repo.Get(ctx, "device-1")
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)
}

func TestPendingPaymentUnreadableRecordIsDiscarded(t *testing.T) {
	repo, mr := newTestRepo(t)

	require.NoError(t, mr.Set("test:pending:device-1", "{not json"))
	_, err := repo.Get(context.Background(), "device-1")
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)
	assert.False(t, mr.Exists("test:pending:device-1"))

	require.NoError(t, mr.Set("test:pending:device-1", `{"orderNumber":"1"}`))
	_, err = repo.Get(context.Background(), "device-1")
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)
}

func TestPendingPaymentExpiresWithTTL(t *testing.T) {
	repo, mr := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "device-1", samplePending()))
	mr.FastForward(2 * time.Hour)

	_, err := repo.Get(ctx, "device-1")
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)
}

func TestPendingPaymentStorageUnavailable(t *testing.T) {
	repo, mr := newTestRepo(t)
	mr.Close()

	err := repo.Save(context.Background(), "device-1", samplePending())
	require.Error(t, err)
	_, err = repo.Get(context.Background(), "device-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPendingPaymentNotFound)
}
