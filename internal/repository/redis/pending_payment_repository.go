package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tonyboom3d/exact-view-framework/internal/models"
	"github.com/tonyboom3d/exact-view-framework/pkg/logger"
)

var ErrPendingPaymentNotFound = errors.New("pending payment not found")

const DefaultPendingPaymentTTL = 24 * time.Hour

// PendingPaymentRepository keeps at most one unresolved payment per device.
type PendingPaymentRepository interface {
	Save(ctx context.Context, deviceID string, p models.PendingPaymentData) error
	Get(ctx context.Context, deviceID string) (*models.PendingPaymentData, error)
	Delete(ctx context.Context, deviceID string) error
}

type redisPendingPaymentRepository struct {
	cli    *redis.Client
	l      logger.Logger
	prefix string
	ttl    time.Duration
}

func NewRedisPendingPaymentRepository(cli *redis.Client, l logger.Logger, prefix string, ttl time.Duration) PendingPaymentRepository {
	if prefix == "" {
		prefix = "checkout:pending_payment"
	}
	if ttl <= 0 {
		ttl = DefaultPendingPaymentTTL
	}
	return &redisPendingPaymentRepository{
		cli:    cli,
		l:      l,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *redisPendingPaymentRepository) key(deviceID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, deviceID)
}

func (r *redisPendingPaymentRepository) Save(ctx context.Context, deviceID string, p models.PendingPaymentData) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pending payment: %w", err)
	}

	if err := r.cli.Set(ctx, r.key(deviceID), data, r.ttl).Err(); err != nil {
		r.l.Errorf(ctx, "redisPendingPaymentRepository.Save: %v", err)
		return err
	}

	r.l.Debugf(ctx, "redisPendingPaymentRepository.Save: order %s payment %s", p.OrderNumber, p.PaymentID)
	return nil
}

// Get treats an unparsable value as absent and removes it.
func (r *redisPendingPaymentRepository) Get(ctx context.Context, deviceID string) (*models.PendingPaymentData, error) {
	key := r.key(deviceID)

	data, err := r.cli.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingPaymentNotFound
		}
		r.l.Errorf(ctx, "redisPendingPaymentRepository.Get: %v", err)
		return nil, err
	}

	var p models.PendingPaymentData
	if err := json.Unmarshal(data, &p); err != nil || p.PaymentID == "" {
		r.l.Warnf(ctx, "redisPendingPaymentRepository.Get: discarding unreadable record for %s", deviceID)
		if delErr := r.cli.Del(ctx, key).Err(); delErr != nil {
			r.l.Errorf(ctx, "redisPendingPaymentRepository.Get: %v", delErr)
		}
		return nil, ErrPendingPaymentNotFound
	}

	return &p, nil
}

func (r *redisPendingPaymentRepository) Delete(ctx context.Context, deviceID string) error {
	if err := r.cli.Del(ctx, r.key(deviceID)).Err(); err != nil {
		r.l.Errorf(ctx, "redisPendingPaymentRepository.Delete: %v", err)
		return err
	}
	return nil
}
