package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bookswap/internal/user"
	apperrors "bookswap/pkg/errors"
)

const (
	// DefaultPageSize is the message page size when the caller doesn't ask.
	DefaultPageSize = 50

	// DefaultConversationLimit bounds the conversation overview.
	DefaultConversationLimit = 30
)

type Service struct {
	repo  *Repository
	users *user.Repository
}

func NewService(repo *Repository, users *user.Repository) *Service {
	return &Service{repo: repo, users: users}
}

// StartConversation finds or creates the canonical thread between two users.
// The pair is normalized so (A,B) and (B,A) resolve to the same conversation.
func (s *Service) StartConversation(ctx context.Context, userA, userB int64) (*Conversation, error) {
	if userA == userB {
		return nil, apperrors.ErrSelfChat
	}
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}
	return s.repo.FindOrCreateConversation(ctx, lo, hi)
}

// ListConversations returns the caller's conversation summaries with
// duplicate pair records collapsed to their canonical entry.
func (s *Service) ListConversations(ctx context.Context, userID int64, limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	conversations, err := s.repo.ListConversations(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return Dedupe(conversations, userID), nil
}

// SendMessage appends a message to the ledger on behalf of senderID.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID int64, text string, attachments []Attachment) (*Message, error) {
	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(senderID) {
		return nil, apperrors.ErrNotParticipant
	}
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, apperrors.ErrEmptyMessage
	}

	m := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Attachments:    attachments,
		ReadBy:         []int64{senderID},
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}

	// Resolve the sender identity for display.
	if sender, err := s.users.GetByID(ctx, senderID); err == nil {
		m.SenderName = sender.Username
	}

	slog.Debug("message sent", "conversation", conversationID, "message", m.ID, "sender", senderID)
	return m, nil
}

// Messages returns a page of the conversation's ledger, oldest to newest.
// A zero before cursor starts from the newest message; paging backward is
// restartable by passing the oldest returned created_at as the next cursor.
func (s *Service) Messages(ctx context.Context, conversationID int64, before time.Time, limit int) ([]Message, error) {
	if _, err := s.repo.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	page, err := s.repo.ListMessages(ctx, conversationID, before, limit)
	if err != nil {
		return nil, err
	}

	// Stored newest-first for the cursor; served oldest-first.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// MarkConversationRead records that userID has seen every message in the
// conversation. Calling it again is a no-op.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID, userID int64) error {
	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	if !c.HasParticipant(userID) {
		return apperrors.ErrNotParticipant
	}
	return s.repo.MarkConversationRead(ctx, conversationID, userID)
}

// IsParticipant reports whether userID belongs to the conversation. The
// gateway uses it to gate room joins.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	c, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return c.HasParticipant(userID), nil
}
