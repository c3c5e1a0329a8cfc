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

const commentsCollection = "comments"

type CommentRepository struct {
	col *mongo.Collection
}

func NewCommentRepository(db *mongo.Database) *CommentRepository {
	return &CommentRepository{col: db.Collection(commentsCollection)}
}

func (r *CommentRepository) Create(ctx context.Context, c *models.Comment) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt = time.Now().UTC()
	_, err := r.col.InsertOne(ctx, c)
	return translate(err)
}

func (r *CommentRepository) ListByPost(ctx context.Context, postID primitive.ObjectID) ([]models.Comment, error) {
	return r.find(ctx, bson.M{"post": postID})
}

func (r *CommentRepository) ListByPosts(ctx context.Context, postIDs []primitive.ObjectID) ([]models.Comment, error) {
	if len(postIDs) == 0 {
		return []models.Comment{}, nil
	}
	return r.find(ctx, bson.M{"post": bson.M{"$in": postIDs}})
}

func (r *CommentRepository) find(ctx context.Context, filter bson.M) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	if err := cur.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *CommentRepository) DeleteByPosts(ctx context.Context, postIDs []primitive.ObjectID) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := r.col.DeleteMany(ctx, bson.M{"post": bson.M{"$in": postIDs}})
	return err
}
