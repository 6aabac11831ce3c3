package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/study-companion-api/internal/models"
)

// CalendarEventRepository mirrors calendar events into a MongoDB collection.
type CalendarEventRepository struct {
	coll *mongo.Collection
}

// NewCalendarEventRepository constructs the repository over coll.
func NewCalendarEventRepository(coll *mongo.Collection) *CalendarEventRepository {
	return &CalendarEventRepository{coll: coll}
}

// EnsureIndexes creates the dedupe and lookup indexes.
func (r *CalendarEventRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "details", Value: 1}, {Key: "datetime", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("details_datetime_unique"),
		},
		{
			Keys:    bson.D{{Key: "is_assignment", Value: 1}, {Key: "processed", Value: 1}, {Key: "datetime", Value: 1}},
			Options: options.Index().SetName("assignment_queue"),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure calendar event indexes: %w", err)
	}
	return nil
}

// InsertEvent stores evt unless an event with the same details and datetime
// already exists. It reports whether a new document was written.
func (r *CalendarEventRepository) InsertEvent(ctx context.Context, evt *models.CalendarEvent) (bool, error) {
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	evt.Processed = false
	evt.ReminderSent = false

	filter := bson.D{{Key: "details", Value: evt.Details}, {Key: "datetime", Value: evt.Datetime}}
	update := bson.D{{Key: "$setOnInsert", Value: bson.D{
		{Key: "google_event_id", Value: evt.GoogleEventID},
		{Key: "description", Value: evt.Description},
		{Key: "ends_at", Value: evt.EndsAt},
		{Key: "all_day", Value: evt.AllDay},
		{Key: "is_assignment", Value: evt.IsAssignment},
		{Key: "processed", Value: false},
		{Key: "reminder_sent", Value: false},
		{Key: "created_at", Value: evt.CreatedAt},
	}}}

	res, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("insert calendar event: %w", err)
	}
	if res.UpsertedCount == 0 {
		return false, nil
	}
	if id, ok := res.UpsertedID.(primitive.ObjectID); ok {
		evt.ID = id
	}
	return true, nil
}

// ListAll returns mirrored events ordered by datetime.
func (r *CalendarEventRepository) ListAll(ctx context.Context, limit int64) ([]models.CalendarEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "datetime", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.find(ctx, bson.D{}, opts)
}

// ListUnprocessed returns assignment events not yet bridged to the table store.
func (r *CalendarEventRepository) ListUnprocessed(ctx context.Context) ([]models.CalendarEvent, error) {
	filter := bson.D{{Key: "is_assignment", Value: true}, {Key: "processed", Value: false}}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "datetime", Value: 1}}))
}

// ListUpcoming returns unreminded assignment events due within days of now.
func (r *CalendarEventRepository) ListUpcoming(ctx context.Context, now time.Time, days int) ([]models.CalendarEvent, error) {
	filter := bson.D{
		{Key: "is_assignment", Value: true},
		{Key: "datetime", Value: bson.D{
			{Key: "$gte", Value: now},
			{Key: "$lte", Value: now.AddDate(0, 0, days)},
		}},
		{Key: "reminder_sent", Value: bson.D{{Key: "$ne", Value: true}}},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "datetime", Value: 1}}))
}

// ListPendingReminders returns unreminded assignment events up to now+days,
// including those already past.
func (r *CalendarEventRepository) ListPendingReminders(ctx context.Context, now time.Time, days int) ([]models.CalendarEvent, error) {
	filter := bson.D{
		{Key: "is_assignment", Value: true},
		{Key: "datetime", Value: bson.D{{Key: "$lte", Value: now.AddDate(0, 0, days)}}},
		{Key: "reminder_sent", Value: bson.D{{Key: "$ne", Value: true}}},
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "datetime", Value: 1}}))
}

// MarkProcessed flags an event as bridged.
func (r *CalendarEventRepository) MarkProcessed(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.setFlag(ctx, id, "processed", "processed_at", at)
}

// MarkReminderSent flags an event as reminded.
func (r *CalendarEventRepository) MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.setFlag(ctx, id, "reminder_sent", "reminder_sent_at", at)
}

// Count returns the number of mirrored events.
func (r *CalendarEventRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count calendar events: %w", err)
	}
	return n, nil
}

// CountUnprocessed returns the number of assignment events awaiting bridging.
func (r *CalendarEventRepository) CountUnprocessed(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "is_assignment", Value: true}, {Key: "processed", Value: false}})
	if err != nil {
		return 0, fmt.Errorf("count unprocessed calendar events: %w", err)
	}
	return n, nil
}

func (r *CalendarEventRepository) setFlag(ctx context.Context, id primitive.ObjectID, flag, stamp string, at time.Time) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: flag, Value: true},
		{Key: stamp, Value: at},
	}}}
	res, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("set calendar event %s: %w", flag, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("set calendar event %s: %w", flag, mongo.ErrNoDocuments)
	}
	return nil
}

func (r *CalendarEventRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]models.CalendarEvent, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find calendar events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]models.CalendarEvent, 0)
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode calendar events: %w", err)
	}
	return events, nil
}
