package exchange

import "time"

// Transaction is a borrow request against one book. Lifecycle:
// pending -> accepted (terminal) or pending -> rejected (terminal).
type Transaction struct {
	ID         int64     `json:"id"`
	BookID     int64     `json:"book_id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	BookTitle    string `json:"book_title,omitempty"`
	SenderName   string `json:"sender_name,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
}

// Transaction statuses.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)
