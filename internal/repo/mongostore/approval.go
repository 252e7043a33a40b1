package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

// ApprovalBatch implements repo.ApprovalBatch with a multi-document
// transaction per approval.
type ApprovalBatch struct {
	client   *mongo.Client
	requests *mongo.Collection
	trips    *mongo.Collection
}

var _ repo.ApprovalBatch = (*ApprovalBatch)(nil)

// NewApprovalBatch returns an ApprovalBatch over db.
func NewApprovalBatch(db *DB) *ApprovalBatch {
	return &ApprovalBatch{
		client:   db.client,
		requests: db.Collection(RequestsCollection),
		trips:    db.Collection(TripsCollection),
	}
}

func (b *ApprovalBatch) CommitNewTrip(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error) {
	gotReq, gotTrip, err := b.inTx(ctx, func(ctx context.Context) (domain.Request, domain.Trip, error) {
		t, err := insertTrip(ctx, b.trips, trip)
		if err != nil {
			return domain.Request{}, domain.Trip{}, err
		}
		req.TripID = &t.ID
		r, err := updateRequest(ctx, b.requests, req, pending())
		return r, t, err
	})
	if err != nil {
		return domain.Request{}, domain.Trip{}, fmt.Errorf("mongostore.ApprovalBatch.CommitNewTrip: %w", err)
	}
	return gotReq, gotTrip, nil
}

func (b *ApprovalBatch) CommitMerge(ctx context.Context, req domain.Request, trip domain.Trip) (domain.Request, domain.Trip, error) {
	gotReq, gotTrip, err := b.inTx(ctx, func(ctx context.Context) (domain.Request, domain.Trip, error) {
		t, err := updateTrip(ctx, b.trips, trip)
		if err != nil {
			return domain.Request{}, domain.Trip{}, err
		}
		req.TripID = &t.ID
		r, err := updateRequest(ctx, b.requests, req, pending())
		return r, t, err
	})
	if err != nil {
		return domain.Request{}, domain.Trip{}, fmt.Errorf("mongostore.ApprovalBatch.CommitMerge: %w", err)
	}
	return gotReq, gotTrip, nil
}

type txResult struct {
	req  domain.Request
	trip domain.Trip
}

func (b *ApprovalBatch) inTx(ctx context.Context, fn func(ctx context.Context) (domain.Request, domain.Trip, error)) (domain.Request, domain.Trip, error) {
	sess, err := b.client.StartSession()
	if err != nil {
		return domain.Request{}, domain.Trip{}, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		r, t, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return txResult{req: r, trip: t}, nil
	})
	if err != nil {
		return domain.Request{}, domain.Trip{}, err
	}
	res := out.(txResult)
	return res.req, res.trip, nil
}
