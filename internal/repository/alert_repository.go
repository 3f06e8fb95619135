package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/grigta/sentinel/internal/models"
)

// AlertRepository persists alerts in MongoDB.
type AlertRepository struct {
	collection *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) *AlertRepository {
	return &AlertRepository{
		collection: db.Collection("alerts"),
	}
}

// Insert stores a new alert and assigns its identity.
func (r *AlertRepository) Insert(ctx context.Context, alert *models.Alert) (primitive.ObjectID, error) {
	alert.ID = primitive.NewObjectID()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, alert)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return alert.ID, nil
}

// GetByID fetches one alert.
func (r *AlertRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	var alert models.Alert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&alert)
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// List returns a page of alerts matching the filter, newest first, plus the
// unpaginated total.
func (r *AlertRepository) List(ctx context.Context, filter models.AlertFilter, page models.Pagination) (*models.AlertPage, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	if filter.UnacknowledgedOnly {
		query["acknowledged"] = false
	}
	if !filter.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": filter.Since}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, err
	}

	if page.Limit <= 0 {
		page.Limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Offset).
		SetLimit(page.Limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []models.Alert
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}

	return &models.AlertPage{Items: items, Total: total}, nil
}

// Update applies a partial patch to one alert.
func (r *AlertRepository) Update(ctx context.Context, id primitive.ObjectID, patch bson.M) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": patch})
	return err
}

// Acknowledge marks an alert acknowledged by an actor.
func (r *AlertRepository) Acknowledge(ctx context.Context, id primitive.ObjectID, acknowledgedBy string) error {
	now := time.Now()
	return r.Update(ctx, id, bson.M{
		"acknowledged":    true,
		"acknowledged_at": now,
		"acknowledged_by": acknowledgedBy,
	})
}

// Resolve marks an alert resolved. Resolving implies acknowledgement.
func (r *AlertRepository) Resolve(ctx context.Context, id primitive.ObjectID, resolvedBy string) error {
	now := time.Now()
	return r.Update(ctx, id, bson.M{
		"acknowledged":    true,
		"acknowledged_at": now,
		"acknowledged_by": resolvedBy,
		"resolved_at":     now,
	})
}

// IncrementRetry bumps the delivery retry counter.
func (r *AlertRepository) IncrementRetry(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"retry_count": 1}})
	return err
}

// FindUnresolvedByType returns the newest unresolved alert of the given type
// created after since, or nil when there is none.
func (r *AlertRepository) FindUnresolvedByType(ctx context.Context, alertType string, since time.Time) (*models.Alert, error) {
	query := bson.M{
		"type":        alertType,
		"resolved_at": bson.M{"$exists": false},
		"created_at":  bson.M{"$gte": since},
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var alert models.Alert
	err := r.collection.FindOne(ctx, query, opts).Decode(&alert)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// RecentAlerts returns alerts created within the window, newest first.
func (r *AlertRepository) RecentAlerts(ctx context.Context, window time.Duration) ([]models.Alert, error) {
	query := bson.M{
		"created_at": bson.M{"$gte": time.Now().Add(-window)},
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}

	return alerts, nil
}

// SetCorrelationID tags a set of alerts with a shared correlation identifier.
// Only correlation metadata is touched.
func (r *AlertRepository) SetCorrelationID(ctx context.Context, ids []primitive.ObjectID, correlationID string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.collection.UpdateMany(
		ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"correlation_id": correlationID}},
	)
	return err
}

// Summary aggregates the alert history.
func (r *AlertRepository) Summary(ctx context.Context) (*models.AlertSummary, error) {
	totalCount, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}

	unacknowledgedCount, err := r.collection.CountDocuments(ctx, bson.M{"acknowledged": false})
	if err != nil {
		return nil, err
	}

	bySeverity, err := r.groupCount(ctx, "$severity")
	if err != nil {
		return nil, err
	}

	byType, err := r.groupCount(ctx, "$type")
	if err != nil {
		return nil, err
	}

	recent, _ := r.RecentAlerts(ctx, 24*time.Hour)

	return &models.AlertSummary{
		TotalAlerts:         totalCount,
		UnacknowledgedCount: unacknowledgedCount,
		BySeverity:          bySeverity,
		ByType:              byType,
		RecentAlerts:        recent,
	}, nil
}

func (r *AlertRepository) groupCount(ctx context.Context, field string) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   field,
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[string]int64)
	for cursor.Next(ctx) {
		var result struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		counts[result.ID] = result.Count
	}

	return counts, nil
}
