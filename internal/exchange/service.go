package exchange

import (
	"context"
	"log/slog"

	"bookswap/internal/book"
	apperrors "bookswap/pkg/errors"
)

type Service struct {
	repo  *Repository
	books *book.Repository
}

func NewService(repo *Repository, books *book.Repository) *Service {
	return &Service{repo: repo, books: books}
}

// CreateRequest opens a pending borrow request against an approved, available
// book owned by someone else.
func (s *Service) CreateRequest(ctx context.Context, bookID, senderID int64) (*Transaction, error) {
	b, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID == senderID {
		return nil, apperrors.ErrOwnBookRequest
	}
	if b.ReviewStatus != book.ReviewAccepted {
		return nil, apperrors.ErrBookNotApproved
	}
	if b.Availability != book.Available {
		return nil, apperrors.ErrBookUnavailable
	}

	t, err := s.repo.Create(ctx, b.ID, senderID, b.OwnerID)
	if err != nil {
		return nil, err
	}

	slog.Info("borrow request created", "transaction", t.ID, "book", b.ID, "sender", senderID)
	return t, nil
}

// Accept resolves a pending request in the requester's favor. As a single
// unit the transaction is accepted, the book flips unavailable and every
// other pending request for the book is rejected.
func (s *Service) Accept(ctx context.Context, txID, ownerID int64) (*Transaction, error) {
	t, err := s.repo.Get(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.ReceiverID != ownerID {
		return nil, apperrors.ErrNotRequestReceiver
	}
	if t.Status != StatusPending {
		return nil, apperrors.ErrRequestNotPending
	}

	if err := s.repo.Accept(ctx, t.ID, t.BookID); err != nil {
		return nil, err
	}

	slog.Info("borrow request accepted", "transaction", t.ID, "book", t.BookID, "owner", ownerID)
	return s.repo.GetDetailed(ctx, t.ID)
}

// ListForBook returns the caller's transactions for one book.
func (s *Service) ListForBook(ctx context.Context, bookID, userID int64) ([]Transaction, error) {
	return s.repo.ListForBook(ctx, bookID, userID)
}

// ListMine returns every transaction the caller participates in.
func (s *Service) ListMine(ctx context.Context, userID int64) ([]Transaction, error) {
	return s.repo.ListMine(ctx, userID)
}
