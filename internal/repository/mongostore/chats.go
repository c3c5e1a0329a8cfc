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

const (
	chatsCollection    = "chats"
	messagesCollection = "messages"
)

type ChatRepository struct {
	col *mongo.Collection
}

func NewChatRepository(db *mongo.Database) *ChatRepository {
	return &ChatRepository{col: db.Collection(chatsCollection)}
}

// FindOrCreate upserts on the unique pair key. Two concurrent upserts can race
// to insert; the loser sees a duplicate key error and reads the winner's document.
func (r *ChatRepository) FindOrCreate(ctx context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	members, key := models.ChatPair(a, b)
	now := time.Now().UTC()
	update := bson.M{"$setOnInsert": bson.M{
		"members":   members,
		"pairKey":   key,
		"createdAt": now,
		"updatedAt": now,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var c models.Chat
	err := r.col.FindOneAndUpdate(ctx, bson.M{"pairKey": key}, update, opts).Decode(&c)
	if mongo.IsDuplicateKeyError(err) {
		err = r.col.FindOne(ctx, bson.M{"pairKey": key}).Decode(&c)
	}
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *ChatRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Chat, error) {
	var c models.Chat
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *ChatRepository) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"members": userID}, opts)
	if err != nil {
		return nil, err
	}
	chats := []models.Chat{}
	if err := cur.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *ChatRepository) Touch(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"updatedAt": at.UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	return &MessageRepository{col: db.Collection(messagesCollection)}
}

func (r *MessageRepository) Create(ctx context.Context, m *models.Message) error {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, m)
	return translate(err)
}

// ListByChat pages newest first over createdAt and returns the page oldest first.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID primitive.ObjectID, before *time.Time, limit int64) ([]models.Message, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{"chatId": chatID}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": before.UTC()}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	msgs := []models.Message{}
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(msgs)) > limit
	if hasMore {
		msgs = msgs[:len(msgs)-1]
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, hasMore, nil
}

