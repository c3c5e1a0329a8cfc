package mongostore

import (
	"context"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const postsCollection = "posts"

type PostRepository struct {
	col *mongo.Collection
}

func NewPostRepository(db *mongo.Database) *PostRepository {
	return &PostRepository{col: db.Collection(postsCollection)}
}

func (r *PostRepository) Create(ctx context.Context, p *models.Post) error {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Upvotes == nil {
		p.Upvotes = []primitive.ObjectID{}
	}
	if p.Downvotes == nil {
		p.Downvotes = []primitive.ObjectID{}
	}
	if p.Comments == nil {
		p.Comments = []primitive.ObjectID{}
	}
	_, err := r.col.InsertOne(ctx, p)
	return translate(err)
}

func (r *PostRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// FindByIDs returns the posts newest first.
func (r *PostRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
}

func (r *PostRepository) List(ctx context.Context, before *time.Time, limit int64) ([]models.Post, error) {
	filter := bson.M{}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": before.UTC()}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit)
	return r.find(ctx, filter, opts)
}

func (r *PostRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Post, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	posts := []models.Post{}
	if err := cur.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// ToggleVote runs the toggle as a single pipeline update, so the document never
// holds userID in both vote arrays, whatever the interleaving of requests.
func (r *PostRepository) ToggleVote(ctx context.Context, postID, userID primitive.ObjectID, kind models.VoteKind) (*models.Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var p models.Post
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": postID}, votePipeline(userID, kind, time.Now().UTC()), opts).Decode(&p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// votePipeline mirrors models.Post.ApplyVote. Field references inside one $set
// stage read the pre-update document, so both branches test the same state.
func votePipeline(userID primitive.ObjectID, kind models.VoteKind, now time.Time) mongo.Pipeline {
	same, opposite := "upvotes", "downvotes"
	if kind == models.Downvote {
		same, opposite = opposite, same
	}
	sameArr := bson.M{"$ifNull": bson.A{"$" + same, bson.A{}}}
	oppositeArr := bson.M{"$ifNull": bson.A{"$" + opposite, bson.A{}}}
	without := func(arr bson.M) bson.M {
		return bson.M{"$filter": bson.M{
			"input": arr,
			"cond":  bson.M{"$ne": bson.A{"$$this", userID}},
		}}
	}
	alreadyVoted := bson.M{"$in": bson.A{userID, sameArr}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: same, Value: bson.M{"$cond": bson.A{
				alreadyVoted,
				without(sameArr),
				bson.M{"$concatArrays": bson.A{sameArr, bson.A{userID}}},
			}}},
			{Key: opposite, Value: bson.M{"$cond": bson.A{
				alreadyVoted,
				oppositeArr,
				without(oppositeArr),
			}}},
			{Key: "updatedAt", Value: now},
		}}},
	}
}

func (r *PostRepository) AddComment(ctx context.Context, postID, commentID primitive.ObjectID) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{
		"$push": bson.M{"comments": commentID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostRepository) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{"project": projectID}
	cur, err := r.col.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if len(ids) == 0 {
		return ids, nil
	}
	if _, err := r.col.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return ids, nil
}
