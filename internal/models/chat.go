package models

import (
	"bytes"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat is a direct conversation. Members is kept sorted and PairKey is unique,
// so a pair of users maps to exactly one document.
type Chat struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Members   []primitive.ObjectID `bson:"members" json:"members"`
	PairKey   string               `bson:"pairKey" json:"-"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (c *Chat) HasMember(id primitive.ObjectID) bool {
	return containsID(c.Members, id)
}

type ChatView struct {
	Chat
	Participants []UserSummary `json:"participants"`
}

// Message is stored one document per message for pagination.
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ChatID    primitive.ObjectID `bson:"chatId" json:"chatId"`
	Sender    primitive.ObjectID `bson:"sender" json:"sender"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// ChatPair orders a and b and returns them with their pair key.
func ChatPair(a, b primitive.ObjectID) ([]primitive.ObjectID, string) {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return []primitive.ObjectID{a, b}, a.Hex() + ":" + b.Hex()
}

// MessageView is a message with its sender's card in place of the sender id.
type MessageView struct {
	Message
	Author UserSummary `json:"sender"`
}
