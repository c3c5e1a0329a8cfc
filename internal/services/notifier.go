package services

import (
	"sync"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Realtime event names.
const (
	EventNotification = "notification"
	EventMessage      = "message"
)

const defaultQueueSize = 32

// Event is the frame written to a realtime connection.
type Event struct {
	Name string      `json:"event"`
	Data interface{} `json:"data"`
}

// Conn is the minimal interface a realtime transport must satisfy.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Notifier delivers realtime events to connected users. Emit is best-effort:
// it never blocks on a slow connection and never reports delivery failures.
type Notifier interface {
	Register(userID primitive.ObjectID, conn Conn) *Subscription
	Unregister(sub *Subscription)
	Emit(userID primitive.ObjectID, event string, payload interface{})
}

// Subscription is one registered connection. Events are queued and written by
// a dedicated goroutine so the emitter never waits on the network.
type Subscription struct {
	UserID primitive.ObjectID
	conn   Conn
	queue  chan Event
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) run() {
	for {
		select {
		case ev := <-s.queue:
			if err := s.conn.WriteJSON(ev); err != nil {
				log.Debug().Err(err).Str("user_id", s.UserID.Hex()).Msg("realtime write failed")
			}
		case <-s.done:
			return
		}
	}
}

func (s *Subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// offer enqueues ev without blocking and reports whether it was accepted.
func (s *Subscription) offer(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- ev:
		return true
	default:
		return false
	}
}

// Hub is the in-process registry of realtime connections. A user may hold
// several connections at once; events go to all of them.
type Hub struct {
	mu        sync.RWMutex
	subs      map[primitive.ObjectID]map[*Subscription]struct{}
	queueSize int
}

func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		subs:      make(map[primitive.ObjectID]map[*Subscription]struct{}),
		queueSize: queueSize,
	}
}

func (h *Hub) Register(userID primitive.ObjectID, conn Conn) *Subscription {
	sub := &Subscription{
		UserID: userID,
		conn:   conn,
		queue:  make(chan Event, h.queueSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	go sub.run()
	return sub
}

// Unregister removes sub. Removing an unknown or already removed subscription is a no-op.
func (h *Hub) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if set, ok := h.subs[sub.UserID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.UserID)
		}
	}
	h.mu.Unlock()
	sub.stop()
}

func (h *Hub) Emit(userID primitive.ObjectID, event string, payload interface{}) {
	h.Deliver(userID, Event{Name: event, Data: payload})
}

// Deliver queues ev on every connection of userID and returns how many accepted it.
func (h *Hub) Deliver(userID primitive.ObjectID, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.subs[userID]
	if len(set) == 0 {
		log.Debug().Str("user_id", userID.Hex()).Str("event", ev.Name).Msg("no realtime connection, event dropped")
		return 0
	}
	delivered := 0
	for sub := range set {
		if sub.offer(ev) {
			delivered++
		} else {
			log.Warn().Str("user_id", userID.Hex()).Str("event", ev.Name).Msg("realtime queue full, event dropped")
		}
	}
	return delivered
}

// Connections returns the number of live connections of userID.
func (h *Hub) Connections(userID primitive.ObjectID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Close unregisters every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[primitive.ObjectID]map[*Subscription]struct{})
	h.mu.Unlock()
	for _, set := range all {
		for sub := range set {
			sub.stop()
		}
	}
}
