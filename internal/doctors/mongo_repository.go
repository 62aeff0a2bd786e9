package doctors

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding doctor documents.
const CollectionName = "doctors"

// MongoRepository stores doctors as documents keyed by _id.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return NewMongoRepositoryWithCollection(db.Collection(CollectionName))
}

func NewMongoRepositoryWithCollection(collection *mongo.Collection) *MongoRepository {
	if collection == nil {
		panic("doctors: mongo collection cannot be nil")
	}
	return &MongoRepository{collection: collection}
}

func (r *MongoRepository) Create(ctx context.Context, doctor *Doctor) error {
	if _, err := r.collection.InsertOne(ctx, doctor); err != nil {
		return fmt.Errorf("doctors: insert: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*Doctor, error) {
	var doctor Doctor
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doctor)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("doctors: find %s: %w", id, err)
	}
	return &doctor, nil
}

func (r *MongoRepository) List(ctx context.Context, filter ListFilter) ([]*Doctor, error) {
	query := bson.M{}
	if filter.ActiveOnly {
		query["active"] = true
	}
	if filter.Specialization != "" {
		query["specialization"] = bson.M{"$regex": "^" + regexp.QuoteMeta(filter.Specialization) + "$", "$options": "i"}
	}
	cursor, err := r.collection.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("doctors: find: %w", err)
	}
	var out []*Doctor
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("doctors: decode: %w", err)
	}
	return out, nil
}

func (r *MongoRepository) Replace(ctx context.Context, doctor *Doctor) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doctor.ID}, doctor)
	if err != nil {
		return fmt.Errorf("doctors: replace %s: %w", doctor.ID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("doctors: delete %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
