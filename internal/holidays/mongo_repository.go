package holidays

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wolfman30/clinic-booking/internal/availability"
)

// CollectionName is the Mongo collection holding overrides.
const CollectionName = "holidays"

// MongoRepository stores overrides as documents keyed by _id.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return NewMongoRepositoryWithCollection(db.Collection(CollectionName))
}

func NewMongoRepositoryWithCollection(collection *mongo.Collection) *MongoRepository {
	if collection == nil {
		panic("holidays: mongo collection cannot be nil")
	}
	return &MongoRepository{collection: collection}
}

// EnsureIndexes creates the date index used by every slot query.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "appliesTo", Value: 1}},
		Options: options.Index().SetName("date_scope"),
	})
	if err != nil {
		return fmt.Errorf("holidays: create index: %w", err)
	}
	return nil
}

func (r *MongoRepository) Create(ctx context.Context, o *availability.HolidayOverride) error {
	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("holidays: insert: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*availability.HolidayOverride, error) {
	var o availability.HolidayOverride
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("holidays: find %s: %w", id, err)
	}
	return &o, nil
}

func (r *MongoRepository) Replace(ctx context.Context, o *availability.HolidayOverride) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": o.ID}, o)
	if err != nil {
		return fmt.Errorf("holidays: replace %s: %w", o.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("holidays: delete %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListForDate(ctx context.Context, date string) ([]availability.HolidayOverride, error) {
	return r.find(ctx, bson.M{"date": date})
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter) ([]availability.HolidayOverride, error) {
	query := bson.M{}
	dateRange := bson.M{}
	if filter.From != "" {
		dateRange["$gte"] = filter.From
	}
	if filter.To != "" {
		dateRange["$lte"] = filter.To
	}
	if len(dateRange) > 0 {
		query["date"] = dateRange
	}
	if filter.DoctorID != "" {
		query["$or"] = bson.A{
			bson.M{"appliesTo": availability.ScopeAll},
			bson.M{"doctorId": filter.DoctorID},
		}
	}
	return r.find(ctx, query)
}

func (r *MongoRepository) find(ctx context.Context, query bson.M) ([]availability.HolidayOverride, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("holidays: find: %w", err)
	}
	var out []availability.HolidayOverride
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("holidays: decode: %w", err)
	}
	return out, nil
}
