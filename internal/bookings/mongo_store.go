package bookings

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding bookings.
const CollectionName = "bookings"

// mongoBooking adds the fields backing the partial unique index.
type mongoBooking struct {
	Booking `bson:",inline"`
	SlotKey string `bson:"slotKey"`
	Active  bool   `bson:"active"`
}

func toMongo(b *Booking) mongoBooking {
	return mongoBooking{Booking: *b, SlotKey: b.SlotKey(), Active: b.Occupying()}
}

// MongoStore enforces one active booking per slot with a partial unique
// index on slotKey, so concurrent inserts race inside the database.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return NewMongoStoreWithCollection(db.Collection(CollectionName))
}

func NewMongoStoreWithCollection(collection *mongo.Collection) *MongoStore {
	if collection == nil {
		panic("bookings: mongo collection cannot be nil")
	}
	return &MongoStore{collection: collection}
}

// EnsureIndexes creates the slot uniqueness and lookup indexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "slotKey", Value: 1}},
			Options: options.Index().
				SetName("active_slot_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys:    bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("doctor_date"),
		},
	})
	if err != nil {
		return fmt.Errorf("bookings: create indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, b *Booking) error {
	_, err := s.collection.InsertOne(ctx, toMongo(b))
	if mongo.IsDuplicateKeyError(err) {
		return ErrSlotConflict
	}
	if err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Booking, error) {
	var doc mongoBooking
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: find %s: %w", id, err)
	}
	return &doc.Booking, nil
}

func (s *MongoStore) ListForDoctorDate(ctx context.Context, doctorID, date string) ([]*Booking, error) {
	return s.find(ctx, bson.M{"doctorId": doctorID, "date": date}, 0)
}

func (s *MongoStore) List(ctx context.Context, filter ListFilter) ([]*Booking, error) {
	query := bson.M{}
	if filter.DoctorID != "" {
		query["doctorId"] = filter.DoctorID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Date != "" {
		query["date"] = filter.Date
	} else if filter.From != "" || filter.To != "" {
		dateRange := bson.M{}
		if filter.From != "" {
			dateRange["$gte"] = filter.From
		}
		if filter.To != "" {
			dateRange["$lte"] = filter.To
		}
		query["date"] = dateRange
	}
	return s.find(ctx, query, int64(filter.limit()))
}

func (s *MongoStore) find(ctx context.Context, query bson.M, limit int64) ([]*Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("bookings: find: %w", err)
	}
	var docs []mongoBooking
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("bookings: decode: %w", err)
	}
	out := make([]*Booking, 0, len(docs))
	for i := range docs {
		out = append(out, &docs[i].Booking)
	}
	return out, nil
}

func (s *MongoStore) Update(ctx context.Context, b *Booking, expected Status) error {
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": b.ID, "status": expected}, toMongo(b))
	if err != nil {
		return fmt.Errorf("bookings: replace %s: %w", b.ID, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.Get(ctx, b.ID); err != nil {
		return err
	}
	return ErrConcurrentUpdate
}
