package chat

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bookswap/internal/middleware"
	"bookswap/internal/respond"
	apperrors "bookswap/pkg/errors"
)

var errUnauthorizedChannel = apperrors.Unauthorized("missing channel credential")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (dev mode)
	},
}

type Handler struct {
	hub     *Hub
	service *Service
}

func NewHandler(hub *Hub, service *Service) *Handler {
	return &Handler{hub: hub, service: service}
}

// ServeWs upgrades an authenticated request to the live channel. The bearer
// credential was already verified by the auth middleware; a connection
// without one never reaches this handler.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	username, ok2 := middleware.Username(r.Context())
	if !ok || !ok2 {
		respond.Error(w, errUnauthorizedChannel)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade", "err", err)
		return
	}

	client := &Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		UserID:   userID,
		Username: username,
		ConnID:   uuid.NewString(),
		rooms:    make(map[int64]bool),
	}
	client.Hub.Register <- client

	slog.Info("websocket connected", "conn", client.ConnID, "user", userID)

	go client.WritePump()
	go client.ReadPump()
}

type startChatBody struct {
	ParticipantID int64 `json:"participant_id"`
}

// StartConversation handles POST /api/chats/start.
func (h *Handler) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	var body startChatBody
	if err := respond.Decode(r, &body); err != nil || body.ParticipantID <= 0 {
		respond.BadRequest(w, "participant_id is required")
		return
	}

	c, err := h.service.StartConversation(r.Context(), userID, body.ParticipantID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"conversation": c})
}

// ListConversations handles GET /api/chats.
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	conversations, err := h.service.ListConversations(r.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if conversations == nil {
		conversations = []Conversation{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

// ListMessages handles GET /api/chats/{id}/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || conversationID <= 0 {
		respond.BadRequest(w, "invalid conversation id")
		return
	}

	var before time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		before, err = time.Parse(time.RFC3339Nano, v)
		if err != nil {
			respond.BadRequest(w, "before must be an RFC 3339 timestamp")
			return
		}
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.service.Messages(r.Context(), conversationID, before, limit)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if messages == nil {
		messages = []Message{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type postMessageBody struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// PostMessage handles POST /api/chats/{id}/messages, the synchronous fallback
// for senders whose live channel is unavailable.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	conversationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || conversationID <= 0 {
		respond.BadRequest(w, "invalid conversation id")
		return
	}

	var body postMessageBody
	if err := respond.Decode(r, &body); err != nil {
		respond.BadRequest(w, "invalid request body")
		return
	}

	msg, err := h.service.SendMessage(r.Context(), conversationID, userID, body.Text, body.Attachments)
	if err != nil {
		respond.Error(w, err)
		return
	}

	// Parity with the live path: connected participants still hear about it.
	h.hub.Broadcast(conversationID, NewMessageEvent{Type: EventNewMessage, Message: msg})

	respond.JSON(w, http.StatusCreated, map[string]any{"message": msg})
}

// MarkRead handles PUT /api/chats/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	conversationID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || conversationID <= 0 {
		respond.BadRequest(w, "invalid conversation id")
		return
	}

	if err := h.service.MarkConversationRead(r.Context(), conversationID, userID); err != nil {
		respond.Error(w, err)
		return
	}

	h.hub.Broadcast(conversationID, ReadReceiptEvent{
		Type:           EventReadReceipt,
		ConversationID: conversationID,
		UserID:         userID,
	})

	respond.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}
