package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
	"github.com/pkordes/vehicle-requests/backend/internal/repo"
)

func tripIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "trip_code", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
}

// TripStore implements repo.TripRepo on the trips collection.
type TripStore struct {
	coll     *mongo.Collection
	requests *mongo.Collection
}

var _ repo.TripRepo = (*TripStore)(nil)

// NewTripStore returns a TripStore over db.
func NewTripStore(db *DB) *TripStore {
	return &TripStore{coll: db.Collection(TripsCollection), requests: db.Collection(RequestsCollection)}
}

func (s *TripStore) Create(ctx context.Context, t domain.Trip) (domain.Trip, error) {
	got, err := insertTrip(ctx, s.coll, t)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("mongostore.TripStore.Create: %w", err)
	}
	return got, nil
}

func (s *TripStore) GetByID(ctx context.Context, id string) (domain.Trip, error) {
	oid, err := objectID(id)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("mongostore.TripStore.GetByID: %w", err)
	}
	got, err := s.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("mongostore.TripStore.GetByID: %w", err)
	}
	return got, nil
}

func (s *TripStore) GetByCode(ctx context.Context, code string) (domain.Trip, error) {
	got, err := s.findOne(ctx, bson.M{"trip_code": code})
	if err != nil {
		return domain.Trip{}, fmt.Errorf("mongostore.TripStore.GetByCode: %w", err)
	}
	return got, nil
}

func (s *TripStore) List(ctx context.Context) ([]domain.Trip, error) {
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "trip_code", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore.TripStore.List: %w", err)
	}
	var docs []tripDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore.TripStore.List: decode: %w", err)
	}

	trips := make([]domain.Trip, 0, len(docs))
	for _, d := range docs {
		trips = append(trips, d.toDomain())
	}
	domain.SortTrips(trips)
	return trips, nil
}

func (s *TripStore) ListCodesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"trip_code": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().
		SetProjection(bson.D{{Key: "trip_code", Value: 1}}).
		SetSort(bson.D{{Key: "trip_code", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore.TripStore.ListCodesByPrefix: %w", err)
	}
	var docs []struct {
		TripCode string `bson:"trip_code"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore.TripStore.ListCodesByPrefix: decode: %w", err)
	}

	codes := make([]string, 0, len(docs))
	for _, d := range docs {
		codes = append(codes, d.TripCode)
	}
	return codes, nil
}

func (s *TripStore) Update(ctx context.Context, t domain.Trip) (domain.Trip, error) {
	got, err := updateTrip(ctx, s.coll, t)
	if err != nil {
		return domain.Trip{}, fmt.Errorf("mongostore.TripStore.Update: %w", err)
	}
	return got, nil
}

func (s *TripStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return fmt.Errorf("mongostore.TripStore.Delete: %w", err)
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongostore.TripStore.Delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("mongostore.TripStore.Delete: %w", domain.ErrNotFound)
	}
	// Same effect as ON DELETE SET NULL on the Postgres side.
	if _, err := s.requests.UpdateMany(ctx, bson.M{"trip_id": id}, bson.M{"$set": bson.M{"trip_id": nil}}); err != nil {
		return fmt.Errorf("mongostore.TripStore.Delete: unlink requests: %w", err)
	}
	return nil
}

func (s *TripStore) findOne(ctx context.Context, filter bson.M) (domain.Trip, error) {
	var doc tripDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Trip{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Trip{}, err
	}
	return doc.toDomain(), nil
}

func insertTrip(ctx context.Context, coll *mongo.Collection, t domain.Trip) (domain.Trip, error) {
	now := storeNow()
	doc := toTripDoc(t)
	doc.ID = bson.NewObjectID()
	doc.Revision = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Trip{}, fmt.Errorf("%w: trip code %s already exists", domain.ErrConflict, t.TripCode)
		}
		return domain.Trip{}, err
	}
	return doc.toDomain(), nil
}

// updateTrip replaces the mutable fields when the stored revision matches
// t.Revision and bumps it.
func updateTrip(ctx context.Context, coll *mongo.Collection, t domain.Trip) (domain.Trip, error) {
	oid, err := objectID(t.ID)
	if err != nil {
		return domain.Trip{}, err
	}

	filter := bson.M{"_id": oid, "revision": t.Revision}
	update := bson.M{
		"$set": toTripDoc(t).mutable(storeNow()),
		"$inc": bson.M{"revision": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc tripDoc
	err = coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := coll.CountDocuments(ctx, bson.M{"_id": oid})
		if cerr != nil {
			return domain.Trip{}, cerr
		}
		if n > 0 {
			return domain.Trip{}, fmt.Errorf("%w: trip %s changed since revision %d", domain.ErrConflict, t.TripCode, t.Revision)
		}
		return domain.Trip{}, domain.ErrNotFound
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Trip{}, fmt.Errorf("%w: trip code %s already exists", domain.ErrConflict, t.TripCode)
		}
		return domain.Trip{}, err
	}
	return doc.toDomain(), nil
}
