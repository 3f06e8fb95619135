package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LogRepository searches the application log collection written by the web
// product. The engine only counts matches; it never writes here.
type LogRepository struct {
	collection *mongo.Collection
}

func NewLogRepository(db *mongo.Database) *LogRepository {
	return &LogRepository{
		collection: db.Collection("logs"),
	}
}

// CountMatches counts log entries whose message matches the pattern within
// the window ending now.
func (r *LogRepository) CountMatches(ctx context.Context, pattern string, window time.Duration) (int64, error) {
	query := bson.M{
		"message":   bson.M{"$regex": pattern},
		"timestamp": bson.M{"$gte": time.Now().Add(-window)},
	}

	return r.collection.CountDocuments(ctx, query, options.Count())
}
