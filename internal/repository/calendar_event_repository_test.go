package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/noah-isme/study-companion-api/internal/models"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestCalendarEventRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	mt.Run("insert new event", func(mt *mtest.T) {
		repo := NewCalendarEventRepository(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: id}}}},
		))

		evt := &models.CalendarEvent{Details: "Machine Learning Exam", Datetime: due, IsAssignment: true}
		inserted, err := repo.InsertEvent(context.Background(), evt)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, id, evt.ID)
		assert.False(t, evt.CreatedAt.IsZero())
	})

	mt.Run("duplicate event is skipped", func(mt *mtest.T) {
		repo := NewCalendarEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 0},
		))

		inserted, err := repo.InsertEvent(context.Background(), &models.CalendarEvent{Details: "Machine Learning Exam", Datetime: due})
		require.NoError(t, err)
		assert.False(t, inserted)
	})

	mt.Run("insert surfaces server errors", func(mt *mtest.T) {
		repo := NewCalendarEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 11000, Message: "duplicate key", Name: "DuplicateKey"}))

		_, err := repo.InsertEvent(context.Background(), &models.CalendarEvent{Details: "x", Datetime: due})
		assert.Error(t, err)
	})

	mt.Run("list unprocessed", func(mt *mtest.T) {
		repo := NewCalendarEventRepository(mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "details", Value: "Physics Quiz"},
			{Key: "datetime", Value: due},
			{Key: "is_assignment", Value: true},
			{Key: "processed", Value: false},
		}))

		events, err := repo.ListUnprocessed(context.Background())
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, id, events[0].ID)
		assert.Equal(t, "Physics Quiz", events[0].Details)
		assert.True(t, events[0].Datetime.Equal(due))

		started := mt.GetStartedEvent()
		require.NotNil(t, started)
		assert.Equal(t, "find", started.CommandName)
	})

	mt.Run("list upcoming empty", func(mt *mtest.T) {
		repo := NewCalendarEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		events, err := repo.ListUpcoming(context.Background(), due.AddDate(0, 0, -3), 7)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	mt.Run("mark processed", func(mt *mtest.T) {
		repo := NewCalendarEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))
		require.NoError(t, repo.MarkProcessed(context.Background(), primitive.NewObjectID(), due))

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))
		err := repo.MarkReminderSent(context.Background(), primitive.NewObjectID(), due)
		require.Error(t, err)
		assert.True(t, IsNotFound(err))
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := NewCalendarEventRepository(mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(12)}}))

		n, err := repo.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)
	})
}
