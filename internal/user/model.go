package user

import "time"

// User is owned by the identity subsystem; the core only reads ids and
// usernames for display resolution.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
