package book

import "time"

// Book rows are owned and mutated by the catalog/moderation subsystem. The
// exchange core reads the review status and reads/writes the availability
// flag as a side effect of transaction acceptance.
type Book struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	Title        string    `json:"title"`
	ReviewStatus string    `json:"review_status"`
	Availability string    `json:"availability"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Review statuses, assigned by the moderation workflow.
const (
	ReviewPending  = "pending"
	ReviewAccepted = "accepted"
	ReviewRejected = "rejected"
)

// Availability states.
const (
	Available   = "available"
	Unavailable = "unavailable"
)
