package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/models"
	"github.com/AnshRaj112/buildlog-backend/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageEvent is pushed to the other members of a chat when a message is sent.
type MessageEvent struct {
	Message models.MessageView `json:"message"`
	ChatID  string             `json:"chatId"`
}

// MessagePage is one page of history, oldest first.
type MessagePage struct {
	Messages []models.MessageView `json:"messages"`
	HasMore  bool                 `json:"hasMore"`
}

type ChatService struct {
	chats    repository.ChatRepository
	messages repository.MessageRepository
	users    repository.UserRepository
	notifier Notifier
}

func NewChatService(store *repository.Store, notifier Notifier) *ChatService {
	return &ChatService{
		chats:    store.Chats,
		messages: store.Messages,
		users:    store.Users,
		notifier: notifier,
	}
}

// List returns the caller's chats, most recently active first.
func (s *ChatService) List(ctx context.Context, caller primitive.ObjectID) ([]models.ChatView, error) {
	chats, err := s.chats.ListByMember(ctx, caller)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	return s.views(ctx, chats)
}

// Open returns the direct chat between caller and other, creating it on first use.
func (s *ChatService) Open(ctx context.Context, caller, other primitive.ObjectID) (*models.ChatView, error) {
	if caller == other {
		return nil, apperr.Validation("Cannot start a chat with yourself")
	}
	if _, err := s.users.FindByID(ctx, other); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User")
		}
		return nil, apperr.Internal("Server error", err)
	}
	chat, err := s.chats.FindOrCreate(ctx, caller, other)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	views, err := s.views(ctx, []models.Chat{*chat})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *ChatService) History(ctx context.Context, caller, chatID primitive.ObjectID, before *time.Time, limit int64) (*MessagePage, error) {
	if _, err := s.member(ctx, caller, chatID); err != nil {
		return nil, err
	}
	msgs, hasMore, err := s.messages.ListByChat(ctx, chatID, before, limit)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	views, err := s.messageViews(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return &MessagePage{Messages: views, HasMore: hasMore}, nil
}

// Send stores a message and pushes it to the other members.
func (s *ChatService) Send(ctx context.Context, caller, chatID primitive.ObjectID, text string) (*models.MessageView, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("Missing fields")
	}
	chat, err := s.member(ctx, caller, chatID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{ChatID: chatID, Sender: caller, Text: text, CreatedAt: time.Now().UTC()}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	if err := s.chats.Touch(ctx, chatID, msg.CreatedAt); err != nil {
		return nil, apperr.Internal("Server error", err)
	}

	views, err := s.messageViews(ctx, []models.Message{*msg})
	if err != nil {
		return nil, err
	}
	view := views[0]
	if s.notifier != nil {
		ev := MessageEvent{Message: view, ChatID: chatID.Hex()}
		for _, m := range chat.Members {
			if m != caller {
				s.notifier.Emit(m, EventMessage, ev)
			}
		}
	}
	return &view, nil
}

func (s *ChatService) member(ctx context.Context, caller, chatID primitive.ObjectID) (*models.Chat, error) {
	chat, err := s.chats.FindByID(ctx, chatID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Chat")
	}
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	if !chat.HasMember(caller) {
		return nil, apperr.Forbidden("Not a member of this chat")
	}
	return chat, nil
}

func (s *ChatService) views(ctx context.Context, chats []models.Chat) ([]models.ChatView, error) {
	var ids []primitive.ObjectID
	for i := range chats {
		ids = append(ids, chats[i].Members...)
	}
	people, err := summaryMap(ctx, s.users, ids)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	out := make([]models.ChatView, len(chats))
	for i, c := range chats {
		participants := make([]models.UserSummary, 0, len(c.Members))
		for _, m := range c.Members {
			if p, ok := people[m]; ok {
				participants = append(participants, p)
			}
		}
		out[i] = models.ChatView{Chat: c, Participants: participants}
	}
	return out, nil
}

func (s *ChatService) messageViews(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	ids := make([]primitive.ObjectID, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].Sender
	}
	senders, err := summaryMap(ctx, s.users, ids)
	if err != nil {
		return nil, apperr.Internal("Server error", err)
	}
	out := make([]models.MessageView, len(msgs))
	for i, m := range msgs {
		out[i] = models.MessageView{Message: m, Author: senders[m.Sender]}
	}
	return out, nil
}
