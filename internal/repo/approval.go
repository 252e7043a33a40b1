package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

// ApprovalBatch applies the two writes of an approval atomically: either
// both become visible or neither does.
type ApprovalBatch interface {
	// CommitNewTrip creates trip and writes the approved request, linking it
	// to the new trip. The request is only written while still Pending.
	CommitNewTrip(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error)

	// CommitMerge writes the merged trip (guarded by its revision) and the
	// approved request (guarded by Pending status).
	CommitMerge(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error)
}

type pgApprovalBatch struct {
	db txBeginner
}

// NewApprovalBatch constructs an ApprovalBatch that runs each approval in
// its own transaction on db.
func NewApprovalBatch(db txBeginner) ApprovalBatch {
	return &pgApprovalBatch{db: db}
}

func (b *pgApprovalBatch) CommitNewTrip(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error) {
	var (
		gotReq  domain.Request
		gotTrip domain.Trip
	)
	err := b.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		gotTrip, err = NewTripRepo(tx).Create(ctx, trip)
		if err != nil {
			return err
		}
		req.TripID = &gotTrip.ID
		gotReq, err = updateRequest(ctx, tx, req, pendingStatus())
		return err
	})
	if err != nil {
		return domain.Request{}, domain.Trip{}, fmt.Errorf("repo.ApprovalBatch.CommitNewTrip: %w", err)
	}
	return gotReq, gotTrip, nil
}

func (b *pgApprovalBatch) CommitMerge(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error) {
	var (
		gotReq  domain.Request
		gotTrip domain.Trip
	)
	err := b.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		gotTrip, err = updateTrip(ctx, tx, trip)
		if err != nil {
			return err
		}
		req.TripID = &gotTrip.ID
		gotReq, err = updateRequest(ctx, tx, req, pendingStatus())
		return err
	})
	if err != nil {
		return domain.Request{}, domain.Trip{}, fmt.Errorf("repo.ApprovalBatch.CommitMerge: %w", err)
	}
	return gotReq, gotTrip, nil
}

func (b *pgApprovalBatch) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
