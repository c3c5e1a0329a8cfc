package handlers

import (
	"net/http"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatHandler struct {
	chats *services.ChatService
}

func NewChatHandler(chats *services.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type sendMessageRequest struct {
	ChatID string `json:"chatId" validate:"required"`
	Text   string `json:"text" validate:"required,max=4000"`
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.chats.List(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"chats": chats})
}

// Open returns the chat with {userId}, creating it on first contact.
func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	other, err := objectIDParam(r, "userId", "user")
	if err != nil {
		writeError(w, r, err)
		return
	}
	chat, err := h.chats.Open(r.Context(), caller(r), other)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"chat": chat})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	chatID, err := objectIDParam(r, "chatId", "chat")
	if err != nil {
		writeError(w, r, err)
		return
	}
	before, limit, err := pageParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.chats.History(r.Context(), caller(r), chatID, before, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, envelope{"messages": page.Messages, "hasMore": page.HasMore})
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := bindJSON(r, &req, "Missing fields"); err != nil {
		writeError(w, r, err)
		return
	}
	chatID, err := primitive.ObjectIDFromHex(req.ChatID)
	if err != nil {
		writeError(w, r, apperr.Validation("Invalid chat id"))
		return
	}
	msg, err := h.chats.Send(r.Context(), caller(r), chatID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, envelope{"message": msg})
}
