package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

func requestIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "trip_id", Value: 1}}},
	}
}

// RequestStore implements repo.RequestRepo on the requests collection.
type RequestStore struct {
	coll *mongo.Collection
}

var _ repo.RequestRepo = (*RequestStore)(nil)

// NewRequestStore returns a RequestStore over db.
func NewRequestStore(db *DB) *RequestStore {
	return &RequestStore{coll: db.Collection(RequestsCollection)}
}

func (s *RequestStore) Create(ctx context.Context, r domain.Request) (domain.Request, error) {
	now := storeNow()
	doc := toRequestDoc(r)
	doc.ID = bson.NewObjectID()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return domain.Request{}, fmt.Errorf("mongostore.RequestStore.Create: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *RequestStore) GetByID(ctx context.Context, id string) (domain.Request, error) {
	oid, err := objectID(id)
	if err != nil {
		return domain.Request{}, fmt.Errorf("mongostore.RequestStore.GetByID: %w", err)
	}

	var doc requestDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Request{}, fmt.Errorf("mongostore.RequestStore.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return domain.Request{}, fmt.Errorf("mongostore.RequestStore.GetByID: %w", err)
	}
	return doc.toDomain(), nil
}

// List filters in the database and orders in memory, since status rank is
// not a stored field.
func (s *RequestStore) List(ctx context.Context, f repo.RequestFilter) ([]domain.Request, error) {
	filter := bson.M{}
	if f.Status != nil {
		filter["status"] = string(*f.Status)
	}
	if f.Department != "" {
		filter["department"] = f.Department
	}
	if f.TripID != "" {
		filter["trip_id"] = f.TripID
	}
	created := bson.M{}
	if f.CreatedFrom != nil {
		created["$gte"] = *f.CreatedFrom
	}
	if f.CreatedBefore != nil {
		created["$lt"] = *f.CreatedBefore
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore.RequestStore.List: %w", err)
	}
	var docs []requestDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore.RequestStore.List: decode: %w", err)
	}

	reqs := make([]domain.Request, 0, len(docs))
	for _, d := range docs {
		reqs = append(reqs, d.toDomain())
	}
	domain.SortRequests(reqs)
	return reqs, nil
}

func (s *RequestStore) Update(ctx context.Context, r domain.Request) (domain.Request, error) {
	got, err := updateRequest(ctx, s.coll, r, nil)
	if err != nil {
		return domain.Request{}, fmt.Errorf("mongostore.RequestStore.Update: %w", err)
	}
	return got, nil
}

func (s *RequestStore) CompareAndUpdate(ctx context.Context, seen, next domain.Request) (domain.Request, error) {
	got, err := updateRequest(ctx, s.coll, next, unchangedSince(seen))
	if err != nil {
		return domain.Request{}, fmt.Errorf("mongostore.RequestStore.CompareAndUpdate: %w", err)
	}
	return got, nil
}

func (s *RequestStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return fmt.Errorf("mongostore.RequestStore.Delete: %w", err)
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongostore.RequestStore.Delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("mongostore.RequestStore.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// requestGuard restricts an update to a document still in the state it was
// read in. A document that no longer matches yields mismatch.
type requestGuard struct {
	status    domain.RequestStatus
	tripID    *string
	checkTrip bool
	mismatch  error
}

func pending() *requestGuard {
	return &requestGuard{status: domain.RequestPending, mismatch: domain.ErrInvalidState}
}

func unchangedSince(seen domain.Request) *requestGuard {
	return &requestGuard{status: seen.Status, tripID: seen.TripID, checkTrip: true, mismatch: domain.ErrConflict}
}

// updateRequest writes r; with guard set, only while the stored document
// still matches it.
func updateRequest(ctx context.Context, coll *mongo.Collection, r domain.Request, guard *requestGuard) (domain.Request, error) {
	oid, err := objectID(r.ID)
	if err != nil {
		return domain.Request{}, err
	}

	filter := bson.M{"_id": oid}
	if guard != nil {
		filter["status"] = string(guard.status)
		if guard.checkTrip {
			// nil matches both a null and a missing trip_id.
			filter["trip_id"] = guard.tripID
		}
	}
	update := bson.M{"$set": toRequestDoc(r).mutable(storeNow())}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc requestDoc
	err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if guard == nil {
			return domain.Request{}, domain.ErrNotFound
		}
		var current requestDoc
		if ferr := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&current); ferr != nil {
			return domain.Request{}, domain.ErrNotFound
		}
		return domain.Request{}, fmt.Errorf("%w: request %s changed since it was read (now %s)", guard.mismatch, r.ID, current.Status)
	}
	if err != nil {
		return domain.Request{}, err
	}
	return doc.toDomain(), nil
}

// storeNow matches MongoDB's millisecond date precision.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
