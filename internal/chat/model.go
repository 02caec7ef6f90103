package chat

import (
	"strings"
	"time"

	"bookswap/internal/user"
)

// Conversation is the canonical two-party thread between a pair of users.
// The participant pair is stored normalized (UserA < UserB).
type Conversation struct {
	ID           int64     `json:"id"`
	UserA        int64     `json:"-"`
	UserB        int64     `json:"-"`
	LastMessage  string    `json:"last_message"`
	LastSenderID int64     `json:"last_sender_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Participants resolved for display (not always populated).
	Participants []user.User `json:"participants,omitempty"`
}

// HasParticipant reports whether id is one of the conversation's two users.
func (c *Conversation) HasParticipant(id int64) bool {
	return c.UserA == id || c.UserB == id
}

// Other returns the counterpart of userID in the conversation, or 0 when
// userID is not a participant.
func (c *Conversation) Other(userID int64) int64 {
	switch userID {
	case c.UserA:
		return c.UserB
	case c.UserB:
		return c.UserA
	default:
		return 0
	}
}

// Message is an append-only ledger entry. Nothing mutates a message after
// creation except growth of its ReadBy set.
type Message struct {
	ID             int64        `json:"id"`
	ConversationID int64        `json:"conversation_id"`
	SenderID       int64        `json:"sender_id"`
	SenderName     string       `json:"sender_name,omitempty"` // Denormalized for UI speed (fetched via JOIN)
	Text           string       `json:"text"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ReadBy         []int64      `json:"read_by"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Attachment is a reference to an uploaded file; upload signing is handled
// elsewhere.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Preview is the conversation list snippet for a message: trimmed text, or a
// placeholder when only attachments were sent.
func (m *Message) Preview() string {
	if s := strings.TrimSpace(m.Text); s != "" {
		return s
	}
	if len(m.Attachments) > 0 {
		return "[attachment]"
	}
	return ""
}
