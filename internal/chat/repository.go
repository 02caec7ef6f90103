package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bookswap/internal/user"
	apperrors "bookswap/pkg/errors"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreateConversation resolves the conversation for a normalized pair
// (userA < userB), creating it on first contact. The lookup-then-create is a
// known race window: two simultaneous first contacts can produce duplicate
// rows. That is deliberate — duplicates are reconciled at read time by the
// projection instead of a uniqueness constraint here.
func (r *Repository) FindOrCreateConversation(ctx context.Context, userA, userB int64) (*Conversation, error) {
	c := &Conversation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_a, user_b, last_message, last_sender_id, created_at, updated_at
		 FROM conversations WHERE user_a = $1 AND user_b = $2
		 ORDER BY updated_at DESC LIMIT 1`,
		userA, userB,
	).Scan(&c.ID, &c.UserA, &c.UserB, &c.LastMessage, &nullInt64{&c.LastSenderID}, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	now := time.Now().UTC()
	c = &Conversation{UserA: userA, UserB: userB, CreatedAt: now, UpdatedAt: now}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO conversations (user_a, user_b, last_message, created_at, updated_at)
		 VALUES ($1, $2, '', $3, $4) RETURNING id`,
		userA, userB, now, now,
	).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return c, nil
}

// GetConversation returns a conversation by id.
func (r *Repository) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	c := &Conversation{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_a, user_b, last_message, last_sender_id, created_at, updated_at
		 FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserA, &c.UserB, &c.LastMessage, &nullInt64{&c.LastSenderID}, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return c, nil
}

// ListConversations returns a user's conversation summaries, most recently
// updated first, with both participants resolved for display.
func (r *Repository) ListConversations(ctx context.Context, userID int64, limit, offset int) ([]Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.user_a, c.user_b, c.last_message, c.last_sender_id, c.created_at, c.updated_at,
		        ua.username, ub.username
		 FROM conversations c
		 JOIN users ua ON ua.id = c.user_a
		 JOIN users ub ON ub.id = c.user_b
		 WHERE c.user_a = $1 OR c.user_b = $1
		 ORDER BY c.updated_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		var nameA, nameB string
		if err := rows.Scan(&c.ID, &c.UserA, &c.UserB, &c.LastMessage, &nullInt64{&c.LastSenderID},
			&c.CreatedAt, &c.UpdatedAt, &nameA, &nameB); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.Participants = []user.User{
			{ID: c.UserA, Username: nameA},
			{ID: c.UserB, Username: nameB},
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// InsertMessage appends a message, records the sender's implicit read receipt
// and updates the parent conversation's preview, all in one transaction.
func (r *Repository) InsertMessage(ctx context.Context, m *Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, text, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		m.ConversationID, m.SenderID, m.Text, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	for _, a := range m.Attachments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message_attachments (message_id, url, name, type, size)
			 VALUES ($1, $2, $3, $4, $5)`,
			m.ID, a.URL, a.Name, a.Type, a.Size,
		); err != nil {
			return fmt.Errorf("inserting attachment: %w", err)
		}
	}

	// The sender has implicitly read their own message.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)`,
		m.ID, m.SenderID,
	); err != nil {
		return fmt.Errorf("recording sender read: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET last_message = $1, last_sender_id = $2, updated_at = $3 WHERE id = $4`,
		m.Preview(), m.SenderID, m.CreatedAt, m.ConversationID,
	); err != nil {
		return fmt.Errorf("updating conversation preview: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing message: %w", err)
	}
	return nil
}

// ListMessages returns up to limit messages strictly before the cursor,
// newest first. Callers reverse for display and page backward by feeding the
// oldest returned created_at back as the next cursor.
func (r *Repository) ListMessages(ctx context.Context, conversationID int64, before time.Time, limit int) ([]Message, error) {
	query := `SELECT m.id, m.conversation_id, m.sender_id, m.text, m.created_at, u.username
	          FROM messages m
	          JOIN users u ON u.id = m.sender_id
	          WHERE m.conversation_id = $1`
	args := []any{conversationID}

	if !before.IsZero() {
		query += ` AND m.created_at < $2`
		args = append(args, before.UTC())
	}

	query += fmt.Sprintf(` ORDER BY m.created_at DESC, m.id DESC LIMIT %d`, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	index := make(map[int64]*Message)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt, &m.SenderName); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range messages {
		index[messages[i].ID] = &messages[i]
	}

	if err := r.loadAttachments(ctx, index); err != nil {
		return nil, err
	}
	if err := r.loadReads(ctx, index); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *Repository) loadAttachments(ctx context.Context, index map[int64]*Message) error {
	if len(index) == 0 {
		return nil
	}
	ids, params := idParams(index)

	rows, err := r.db.QueryContext(ctx,
		`SELECT message_id, url, name, type, size FROM message_attachments
		 WHERE message_id IN (`+params+`)`, ids...)
	if err != nil {
		return fmt.Errorf("loading attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msgID int64
		var a Attachment
		if err := rows.Scan(&msgID, &a.URL, &a.Name, &a.Type, &a.Size); err != nil {
			return fmt.Errorf("scanning attachment: %w", err)
		}
		if m := index[msgID]; m != nil {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return rows.Err()
}

func (r *Repository) loadReads(ctx context.Context, index map[int64]*Message) error {
	if len(index) == 0 {
		return nil
	}
	ids, params := idParams(index)

	rows, err := r.db.QueryContext(ctx,
		`SELECT message_id, user_id FROM message_reads
		 WHERE message_id IN (`+params+`) ORDER BY user_id`, ids...)
	if err != nil {
		return fmt.Errorf("loading read receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msgID, userID int64
		if err := rows.Scan(&msgID, &userID); err != nil {
			return fmt.Errorf("scanning read receipt: %w", err)
		}
		if m := index[msgID]; m != nil {
			m.ReadBy = append(m.ReadBy, userID)
		}
	}
	return rows.Err()
}

// MarkConversationRead adds userID to the readBy set of every message in the
// conversation. Idempotent: messages already read are left untouched.
func (r *Repository) MarkConversationRead(ctx context.Context, conversationID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
		 SELECT id, $1 FROM messages WHERE conversation_id = $2
		 ON CONFLICT (message_id, user_id) DO NOTHING`,
		userID, conversationID,
	)
	if err != nil {
		return fmt.Errorf("marking conversation read: %w", err)
	}
	return nil
}

func idParams(index map[int64]*Message) ([]any, string) {
	ids := make([]any, 0, len(index))
	params := ""
	i := 1
	for id := range index {
		if i > 1 {
			params += ", "
		}
		params += fmt.Sprintf("$%d", i)
		ids = append(ids, id)
		i++
	}
	return ids, params
}

// nullInt64 scans a nullable column into an int64, leaving zero for NULL.
type nullInt64 struct {
	dst *int64
}

func (n *nullInt64) Scan(src any) error {
	var v sql.NullInt64
	if err := v.Scan(src); err != nil {
		return err
	}
	*n.dst = v.Int64
	return nil
}
