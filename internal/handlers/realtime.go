package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/AnshRaj112/buildlog-backend/internal/middleware"
	"github.com/AnshRaj112/buildlog-backend/internal/services"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 4 << 10
)

// clientFrame is what browsers send over the realtime socket.
type clientFrame struct {
	Type   string `json:"type"` // "register" or "ping"
	UserID string `json:"userId,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer per connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error { return c.conn.Close() }

type RealtimeHandler struct {
	notifier services.Notifier
	sessions middleware.TokenVerifier
	upgrader websocket.Upgrader
}

// NewRealtimeHandler accepts upgrades from allowedOrigins only; requests
// without an Origin header (non-browser clients) are accepted.
func NewRealtimeHandler(notifier services.Notifier, sessions middleware.TokenVerifier, allowedOrigins []string) *RealtimeHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimSpace(o))] = true
	}
	return &RealtimeHandler{
		notifier: notifier,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := strings.ToLower(strings.TrimSpace(r.Header.Get("Origin")))
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Serve upgrades GET /ws?token=<session>. The connection is registered for
// the token's user right away; a later {"type":"register"} frame is only
// acknowledged when it names that same user.
func (h *RealtimeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = middleware.TokenFromRequest(r)
	}
	if token == "" {
		writeError(w, r, apperr.Unauthorized("No token provided"))
		return
	}
	userID, err := h.sessions.Verify(token)
	if err != nil {
		writeError(w, r, apperr.Unauthorized("Token invalid or expired"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	wc := &wsConn{conn: conn}
	sub := h.notifier.Register(userID, wc)
	defer func() {
		h.notifier.Unregister(sub)
		_ = conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", userID.Hex()).Msg("websocket closed")
			}
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		h.handleFrame(wc, userID, frame)
	}
}

func (h *RealtimeHandler) handleFrame(wc *wsConn, userID primitive.ObjectID, frame clientFrame) {
	var reply services.Event
	switch frame.Type {
	case "register":
		if frame.UserID != userID.Hex() {
			reply = services.Event{Name: "error", Data: envelope{"message": "Cannot register as another user"}}
		} else {
			reply = services.Event{Name: "registered", Data: envelope{"userId": userID.Hex()}}
		}
	case "ping":
		reply = services.Event{Name: "pong"}
	default:
		return
	}
	if err := wc.WriteJSON(reply); err != nil {
		log.Debug().Err(err).Str("user_id", userID.Hex()).Msg("websocket reply failed")
	}
}

// keepAlive pings until done closes or a ping fails. WriteControl is safe
// alongside WriteJSON.
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
