package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisChannel carries every live event across instances. Each envelope is
// tagged with its conversation so an instance fans out only to the local
// members of that room.
const redisChannel = "chat:events"

const publishTimeout = 5 * time.Second

type envelope struct {
	ConversationID int64           `json:"conversation_id"`
	Payload        json.RawMessage `json:"payload"`
}

type membership struct {
	client         *Client
	conversationID int64
}

// Hub routes live events between connections. It maintains the set of
// connected clients and their per-conversation room memberships. All state is
// owned by the Run goroutine; channels are the only way in.
type Hub struct {
	clients map[*Client]bool

	// rooms maps a conversation id to the local connections joined to it.
	rooms map[int64]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	Join       chan membership
	Leave      chan membership

	publish   chan envelope // local events headed to redis
	broadcast chan envelope // events arriving from redis

	redis *redis.Client
	svc   *Service
}

func NewHub(redisClient *redis.Client, svc *Service) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Join:       make(chan membership),
		Leave:      make(chan membership),
		publish:    make(chan envelope),
		broadcast:  make(chan envelope),
		redis:      redisClient,
		svc:        svc,
	}
}

// Run manages hub state until ctx is cancelled. It is the only goroutine
// that touches h.clients and h.rooms, so both are thread-safe by design.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.Register:
			h.clients[client] = true

		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case m := <-h.Join:
			if !h.clients[m.client] {
				break
			}
			room := h.rooms[m.conversationID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[m.conversationID] = room
			}
			room[m.client] = true
			m.client.rooms[m.conversationID] = true

		case m := <-h.Leave:
			h.leaveRoom(m.client, m.conversationID)

		case env := <-h.publish:
			data, err := json.Marshal(env)
			if err != nil {
				slog.Error("marshaling envelope", "err", err)
				break
			}
			pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			if err := h.redis.Publish(pubCtx, redisChannel, data).Err(); err != nil {
				slog.Error("redis publish", "err", err)
			}
			cancel()

		case env := <-h.broadcast:
			for client := range h.rooms[env.ConversationID] {
				select {
				case client.Send <- env.Payload:
				default:
					// Slow consumer; disconnect rather than block the hub.
					h.drop(client)
				}
			}
		}
	}
}

// SubscribeToRedis forwards envelopes published by any instance (including
// this one) into the local broadcast loop. Blocks until ctx is cancelled.
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				slog.Error("unmarshaling envelope", "err", err)
				continue
			}
			select {
			case h.broadcast <- env:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Broadcast fans payload out to every connection in the conversation's room,
// on every instance. Fire-and-forget.
func (h *Hub) Broadcast(conversationID int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshaling broadcast payload", "err", err)
		return
	}
	h.publish <- envelope{ConversationID: conversationID, Payload: data}
}

// drop removes a client from every room and closes its write channel to stop
// the write pump. Must only be called from the Run goroutine.
func (h *Hub) drop(client *Client) {
	for id := range client.rooms {
		h.leaveRoom(client, id)
	}
	delete(h.clients, client)
	close(client.Send)
}

func (h *Hub) leaveRoom(client *Client, conversationID int64) {
	if room := h.rooms[conversationID]; room != nil {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	delete(client.rooms, conversationID)
}
