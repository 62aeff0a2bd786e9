package coupons

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "coupons"

// MongoRepository stores coupons keyed by code. Usage counting relies on
// single-document conditional updates.
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return NewMongoRepositoryWithCollection(db.Collection(CollectionName))
}

func NewMongoRepositoryWithCollection(collection *mongo.Collection) *MongoRepository {
	if collection == nil {
		panic("coupons: mongo collection cannot be nil")
	}
	return &MongoRepository{collection: collection}
}

func (r *MongoRepository) Create(ctx context.Context, c *Coupon) error {
	_, err := r.collection.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("coupons: insert: %w", err)
	}
	return nil
}

func (r *MongoRepository) Get(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	err := r.collection.FindOne(ctx, bson.M{"_id": code}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("coupons: find %s: %w", code, err)
	}
	return &c, nil
}

func (r *MongoRepository) Replace(ctx context.Context, c *Coupon) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": c.Code}, bson.M{"$set": bson.M{
		"description":  c.Description,
		"discountType": c.DiscountType,
		"value":        c.Value,
		"maxDiscount":  c.MaxDiscount,
		"minAmount":    c.MinAmount,
		"usageLimit":   c.UsageLimit,
		"validFrom":    c.ValidFrom,
		"validUntil":   c.ValidUntil,
		"active":       c.Active,
		"updatedAt":    c.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("coupons: update %s: %w", c.Code, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, code string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": code})
	if err != nil {
		return fmt.Errorf("coupons: delete %s: %w", code, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) List(ctx context.Context) ([]*Coupon, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("coupons: find: %w", err)
	}
	var out []*Coupon
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("coupons: decode: %w", err)
	}
	return out, nil
}

// IncrementUsage bumps usedCount only while the coupon is active and under
// its limit, so concurrent redemptions can never overshoot.
func (r *MongoRepository) IncrementUsage(ctx context.Context, code string) error {
	filter := bson.M{
		"_id":    code,
		"active": true,
		"$or": bson.A{
			bson.M{"usageLimit": 0},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}}},
		},
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"usedCount": 1}})
	if err != nil {
		return fmt.Errorf("coupons: redeem %s: %w", code, err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := r.Get(ctx, code); err != nil {
		return err
	}
	return ErrExhausted
}

func (r *MongoRepository) DecrementUsage(ctx context.Context, code string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": code, "usedCount": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"usedCount": -1}},
	)
	if err != nil {
		return fmt.Errorf("coupons: release %s: %w", code, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.Get(ctx, code); err != nil {
			return err
		}
	}
	return nil
}
