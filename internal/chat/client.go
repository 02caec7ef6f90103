package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	apperrors "bookswap/pkg/errors"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 64 * 1024           // Maximum frame size allowed from peer.

	// eventTimeout bounds the ledger work done for a single inbound event.
	eventTimeout = 5 * time.Second
)

// Client is a middleman between one websocket connection and the hub. The
// connection is authenticated before the client exists; UserID is the
// verified identity from the handshake credential.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	// Buffered channel of outbound frames.
	Send chan []byte

	UserID   int64
	Username string

	// ConnID correlates log lines for one connection.
	ConnID string

	// rooms is owned by the hub's Run goroutine.
	rooms map[int64]bool
}

// ReadPump pumps events from the websocket connection into the hub and the
// chat service. Inbound events on one connection are handled serially, in
// arrival order.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read", "conn", c.ConnID, "err", err)
			}
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.ack(Ack{Type: EventAck, OK: false, Error: "malformed event"})
			continue
		}
		c.handleEvent(&ev)
	}
}

func (c *Client) handleEvent(ev *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch ev.Type {
	case EventJoin:
		ok, err := c.Hub.svc.IsParticipant(ctx, ev.ConversationID, c.UserID)
		if err != nil || !ok {
			// The live room is only for the conversation's two parties.
			slog.Warn("join refused", "conn", c.ConnID, "conversation", ev.ConversationID, "user", c.UserID)
			c.ackErr(ev.ID, apperrors.ErrNotParticipant)
			return
		}
		c.Hub.Join <- membership{client: c, conversationID: ev.ConversationID}
		c.ack(Ack{Type: EventAck, ID: ev.ID, OK: true})

	case EventLeave:
		c.Hub.Leave <- membership{client: c, conversationID: ev.ConversationID}

	case EventSend:
		msg, err := c.Hub.svc.SendMessage(ctx, ev.ConversationID, c.UserID, ev.Text, ev.Attachments)
		if err != nil {
			c.ackErr(ev.ID, err)
			return
		}
		c.ack(Ack{Type: EventAck, ID: ev.ID, OK: true, Message: msg})
		c.Hub.Broadcast(ev.ConversationID, NewMessageEvent{Type: EventNewMessage, Message: msg})

	case EventRead:
		if err := c.Hub.svc.MarkConversationRead(ctx, ev.ConversationID, c.UserID); err != nil {
			c.ackErr(ev.ID, err)
			return
		}
		c.ack(Ack{Type: EventAck, ID: ev.ID, OK: true})
		c.Hub.Broadcast(ev.ConversationID, ReadReceiptEvent{
			Type:           EventReadReceipt,
			ConversationID: ev.ConversationID,
			UserID:         c.UserID,
		})

	default:
		c.ack(Ack{Type: EventAck, ID: ev.ID, OK: false, Error: "unknown event type"})
	}
}

func (c *Client) ackErr(id string, err error) {
	c.ack(Ack{
		Type:  EventAck,
		ID:    id,
		OK:    false,
		Error: err.Error(),
		Code:  string(apperrors.CodeOf(err)),
	})
}

func (c *Client) ack(a Ack) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
		// Write queue is saturated; the hub will drop us soon anyway.
	}
}

// WritePump pumps frames from the hub to the websocket connection, with a
// ping heartbeat to keep the connection alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
