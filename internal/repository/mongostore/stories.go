package mongostore

import (
	"context"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const storiesCollection = "stories"

type StoryRepository struct {
	col *mongo.Collection
}

func NewStoryRepository(db *mongo.Database) *StoryRepository {
	return &StoryRepository{col: db.Collection(storiesCollection)}
}

func (r *StoryRepository) Create(ctx context.Context, s *models.Story) error {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, s)
	return translate(err)
}

// ListActive filters on expiresAt as well: the TTL monitor only runs once a minute.
func (r *StoryRepository) ListActive(ctx context.Context, now time.Time) ([]models.Story, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"expiresAt": bson.M{"$gt": now.UTC()}}, opts)
	if err != nil {
		return nil, err
	}
	stories := []models.Story{}
	if err := cur.All(ctx, &stories); err != nil {
		return nil, err
	}
	return stories, nil
}
