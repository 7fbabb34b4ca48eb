package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/yshimada/furima-backend/internal/orders"
	"github.com/yshimada/furima-backend/pkg/db/models"
	"github.com/yshimada/furima-backend/pkg/enums"
	"github.com/yshimada/furima-backend/pkg/logger"
	"github.com/yshimada/furima-backend/pkg/outbox"
	"github.com/yshimada/furima-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type itemReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error
}

// ReleaseExpiredReservationsJobParams configure the reservation sweep.
type ReleaseExpiredReservationsJobParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Orders         orders.Repository
	Items          itemReleaser
	Outbox         outboxEmitter
	ReservationTTL time.Duration
	BatchSize      int
}

// NewReleaseExpiredReservationsJob builds the cron job that puts items whose
// konbini payment never arrived back on sale.
func NewReleaseExpiredReservationsJob(params ReleaseExpiredReservationsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item releaser required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.ReservationTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &releaseExpiredReservationsJob{
		logg:      params.Logger,
		db:        params.DB,
		ordersRep: params.Orders,
		items:     params.Items,
		outbox:    params.Outbox,
		ttl:       ttl,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type releaseExpiredReservationsJob struct {
	logg      *logger.Logger
	db        txRunner
	ordersRep orders.Repository
	items     itemReleaser
	outbox    outboxEmitter
	ttl       time.Duration
	batch     int
	now       func() time.Time
}

func (j *releaseExpiredReservationsJob) Name() string { return "release-expired-reservations" }

func (j *releaseExpiredReservationsJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.ordersRep.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query stale reservations: %w", err)
	}
	if len(stale) > j.batch {
		stale = stale[:j.batch]
	}

	var errs []error
	released := 0
	for _, order := range stale {
		if err := j.releaseOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("release order %s: %w", order.ID, err))
			continue
		}
		released++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(stale),
		"released":   released,
	})
	j.logg.Info(logCtx, "reservation sweep complete")
	return multierr.Combine(errs...)
}

// releaseOrder cancels one stale order and frees its item in a single
// transaction. The conditional cancel keeps a payment that settled between
// the query and this update from being swept.
func (j *releaseExpiredReservationsJob) releaseOrder(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.ordersRep.WithTx(tx)
		changed, err := repo.MarkCanceled(ctx, order.ID)
		if err != nil {
			return err
		}
		if changed == 0 {
			return nil
		}
		if err := j.items.Release(ctx, tx, order.ItemID); err != nil {
			return err
		}

		sellerID := uuid.Nil
		if order.Item != nil {
			sellerID = order.Item.UserID
		}
		now := j.now().UTC()
		event := outbox.DomainEvent{
			EventType:     enums.EventItemReleased,
			AggregateType: enums.AggregateItem,
			AggregateID:   order.ItemID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.ItemReleasedEvent{
				ItemID:     order.ItemID,
				OrderID:    order.ID,
				SellerID:   sellerID,
				ReleasedAt: now,
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}
