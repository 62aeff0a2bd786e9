package doctors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const doctorsNS = "clinic.doctors"

func TestMongoRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get decodes document", func(mt *mtest.T) {
		repo := NewMongoRepositoryWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "d1"},
			{Key: "name", Value: "Dr. Asha Rao"},
			{Key: "consultationFee", Value: int64(80000)},
			{Key: "active", Value: true},
			{Key: "availability", Value: bson.D{
				{Key: "monday", Value: bson.D{
					{Key: "isAvailable", Value: true},
					{Key: "sessions", Value: bson.A{bson.D{
						{Key: "start", Value: "09:00"},
						{Key: "end", Value: "12:00"},
						{Key: "slotDuration", Value: 30},
						{Key: "isActive", Value: true},
					}}},
				}},
			}},
		}))

		doctor, err := repo.Get(context.Background(), "d1")
		require.NoError(mt, err)
		assert.Equal(mt, "Dr. Asha Rao", doctor.Name)
		assert.Equal(mt, int64(80000), doctor.ConsultationFee)
		assert.Equal(mt, 30, doctor.Availability["monday"].Sessions[0].SlotDuration)
	})

	mt.Run("get missing", func(mt *mtest.T) {
		repo := NewMongoRepositoryWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch))

		_, err := repo.Get(context.Background(), "nope")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewMongoRepositoryWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, doctorsNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "d1"}, {Key: "name", Value: "A"}, {Key: "active", Value: true}},
			bson.D{{Key: "_id", Value: "d2"}, {Key: "name", Value: "B"}, {Key: "active", Value: true}},
		))

		doctors, err := repo.List(context.Background(), ListFilter{ActiveOnly: true, Specialization: "ENT"})
		require.NoError(mt, err)
		require.Len(mt, doctors, 2)
		assert.Equal(mt, "d2", doctors[1].ID)
	})

	mt.Run("replace missing", func(mt *mtest.T) {
		repo := NewMongoRepositoryWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := repo.Replace(context.Background(), &Doctor{ID: "nope"})
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("replace existing", func(mt *mtest.T) {
		repo := NewMongoRepositoryWithCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		assert.NoError(mt, repo.Replace(context.Background(), &Doctor{ID: "d1", Name: "A"}))
	})

	mt.Run("insert and delete", func(mt *mtest.T) {
		repo := NewMongoRepositoryWithCollection(mt.Coll)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		require.NoError(mt, repo.Create(context.Background(), &Doctor{ID: "d1", Name: "A"}))
		require.NoError(mt, repo.Delete(context.Background(), "d1"))
		assert.ErrorIs(mt, repo.Delete(context.Background(), "d1"), ErrNotFound)
	})
}
