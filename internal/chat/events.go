package chat

// Live-channel wire contract. Every frame in either direction carries a
// "type" tag from this closed set; payload fields are fixed per type.

// Inbound event types.
const (
	EventJoin  = "conversation:join"
	EventLeave = "conversation:leave"
	EventSend  = "message:send"
	EventRead  = "conversation:read"
)

// Outbound event types. EventNewMessage and EventReadReceipt are
// fire-and-forget room broadcasts; EventAck answers exactly one inbound
// event on the connection that issued it.
const (
	EventAck         = "ack"
	EventNewMessage  = "message:new"
	EventReadReceipt = "conversation:read"
)

// Event is an inbound frame from a connected client.
type Event struct {
	Type           string       `json:"type"`
	ID             string       `json:"id,omitempty"` // ack correlation, client-assigned
	ConversationID int64        `json:"conversation_id"`
	Text           string       `json:"text,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// Ack answers an inbound event: success plus the created message, or failure
// with a stable error kind. Callers that never see an ok ack fall back to the
// REST send path so the message is not silently dropped.
type Ack struct {
	Type    string   `json:"type"`
	ID      string   `json:"id,omitempty"`
	OK      bool     `json:"ok"`
	Message *Message `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Code    string   `json:"code,omitempty"`
}

// NewMessageEvent is broadcast to a conversation's room when a message lands.
type NewMessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

// ReadReceiptEvent is broadcast when a participant marks the thread read.
type ReadReceiptEvent struct {
	Type           string `json:"type"`
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
}
