package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const notifyChannelPrefix = "notify:user:"

// notifyEnvelope is what crosses Redis; the user id travels in the channel name.
type notifyEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RedisNotifier publishes events to Redis so that every instance can deliver
// them to its own local connections.
type RedisNotifier struct {
	hub     *Hub
	client  *redis.Client
	timeout time.Duration
	started sync.Once
}

func NewRedisNotifier(client *redis.Client, hub *Hub) *RedisNotifier {
	return &RedisNotifier{hub: hub, client: client, timeout: 2 * time.Second}
}

func (n *RedisNotifier) Register(userID primitive.ObjectID, conn Conn) *Subscription {
	return n.hub.Register(userID, conn)
}

func (n *RedisNotifier) Unregister(sub *Subscription) {
	n.hub.Unregister(sub)
}

// Emit publishes in the background; the caller never waits on Redis.
func (n *RedisNotifier) Emit(userID primitive.ObjectID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode realtime payload")
		return
	}
	body, err := json.Marshal(notifyEnvelope{Event: event, Data: data})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode realtime envelope")
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := n.client.Publish(ctx, notifyChannelPrefix+userID.Hex(), body).Err(); err != nil {
			log.Warn().Err(err).Str("event", event).Msg("realtime publish failed")
		}
	}()
}

// Start runs the single pattern subscriber of this instance until ctx is done.
func (n *RedisNotifier) Start(ctx context.Context) {
	n.started.Do(func() {
		go n.run(ctx)
	})
}

func (n *RedisNotifier) run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if n.consume(ctx) {
			backoff = time.Second
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

// consume reads until the subscription fails and reports whether any message arrived.
func (n *RedisNotifier) consume(ctx context.Context) bool {
	pubsub := n.client.PSubscribe(ctx, notifyChannelPrefix+"*")
	defer pubsub.Close()

	log.Info().Str("pattern", notifyChannelPrefix+"*").Msg("✅ Realtime Redis subscriber started")

	received := false
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("realtime subscriber error")
			}
			return received
		}
		received = true
		n.dispatch(msg.Channel, msg.Payload)
	}
}

func (n *RedisNotifier) dispatch(channel, payload string) {
	userID, err := primitive.ObjectIDFromHex(strings.TrimPrefix(channel, notifyChannelPrefix))
	if err != nil {
		log.Warn().Str("channel", channel).Msg("realtime message on malformed channel")
		return
	}
	var env notifyEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		log.Warn().Err(err).Msg("failed to decode realtime envelope")
		return
	}
	n.hub.Deliver(userID, Event{Name: env.Event, Data: env.Data})
}
