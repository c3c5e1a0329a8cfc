package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestChatService_OpenIsSymmetric(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada", "bob")
	chats := NewChatService(store, &recordingNotifier{})

	a, err := chats.Open(ctx, ids[0], ids[1])
	require.NoError(t, err)
	b, err := chats.Open(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Len(t, a.Participants, 2)

	_, err = chats.Open(ctx, ids[0], ids[0])
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = chats.Open(ctx, ids[0], primitive.NewObjectID())
	assert.EqualError(t, err, "User not found")

	list, err := chats.List(ctx, ids[1])
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestChatService_SendNotifiesOtherMember(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada", "bob", "eve")
	ada, bob, eve := ids[0], ids[1], ids[2]
	notifier := &recordingNotifier{}
	chats := NewChatService(store, notifier)

	chat, err := chats.Open(ctx, ada, bob)
	require.NoError(t, err)

	msg, err := chats.Send(ctx, ada, chat.ID, " hello ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, "ada", msg.Author.Username)

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, bob, events[0].to)
	assert.Equal(t, EventMessage, events[0].event)
	ev, ok := events[0].data.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, chat.ID.Hex(), ev.ChatID)
	assert.Equal(t, msg.ID, ev.Message.ID)

	_, err = chats.Send(ctx, ada, chat.ID, "   ")
	assert.EqualError(t, err, "Missing fields")
	_, err = chats.Send(ctx, eve, chat.ID, "let me in")
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
	_, err = chats.Send(ctx, ada, primitive.NewObjectID(), "hi")
	assert.EqualError(t, err, "Chat not found")
	assert.Len(t, notifier.Events(), 1)
}

func TestChatService_History(t *testing.T) {
	ctx := context.Background()
	store, ids := newContentStore(t, "ada", "bob", "eve")
	chats := NewChatService(store, nil)

	chat, err := chats.Open(ctx, ids[0], ids[1])
	require.NoError(t, err)
	for _, text := range []string{"one", "two", "three"} {
		_, err := chats.Send(ctx, ids[0], chat.ID, text)
		require.NoError(t, err)
	}

	page, err := chats.History(ctx, ids[1], chat.ID, nil, 0)
	require.NoError(t, err)
	assert.False(t, page.HasMore)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, "ada", page.Messages[0].Author.Username)

	_, err = chats.History(ctx, ids[2], chat.ID, nil, 0)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))
}
