package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"bookswap/internal/book"
	apperrors "bookswap/pkg/errors"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a pending transaction. A duplicate pending request for the
// same (book, sender) pair is stopped by the partial unique index, so two
// concurrent submissions cannot both succeed.
func (r *Repository) Create(ctx context.Context, bookID, senderID, receiverID int64) (*Transaction, error) {
	now := time.Now().UTC()
	t := &Transaction{
		BookID:     bookID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (book_id, sender_id, receiver_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.BookID, t.SenderID, t.ReceiverID, t.Status, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrRequestPending
		}
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	return t, nil
}

// Get returns a bare transaction row without joins.
func (r *Repository) Get(ctx context.Context, id int64) (*Transaction, error) {
	t := &Transaction{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, book_id, sender_id, receiver_id, status, created_at, updated_at
		 FROM transactions WHERE id = $1`, id,
	).Scan(&t.ID, &t.BookID, &t.SenderID, &t.ReceiverID, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return t, nil
}

// GetDetailed returns a transaction with display fields resolved.
func (r *Repository) GetDetailed(ctx context.Context, id int64) (*Transaction, error) {
	t := &Transaction{}
	err := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.book_id, t.sender_id, t.receiver_id, t.status, t.created_at, t.updated_at,
		        b.title, s.username, rc.username
		 FROM transactions t
		 JOIN books b ON b.id = t.book_id
		 JOIN users s ON s.id = t.sender_id
		 JOIN users rc ON rc.id = t.receiver_id
		 WHERE t.id = $1`, id,
	).Scan(&t.ID, &t.BookID, &t.SenderID, &t.ReceiverID, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		&t.BookTitle, &t.SenderName, &t.ReceiverName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return t, nil
}

// Accept applies the acceptance workflow as one transactional unit: mark the
// transaction accepted, flip the book unavailable, reject all sibling pending
// requests for the same book. Every update is conditioned on the prior state
// so two near-simultaneous accepts cannot both succeed; if any condition
// fails the whole unit rolls back.
func (r *Repository) Accept(ctx context.Context, txID, bookID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		StatusAccepted, now, txID, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("accepting request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrRequestNotPending
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE books SET availability = $1, updated_at = $2 WHERE id = $3 AND availability = $4`,
		book.Unavailable, now, bookID, book.Available,
	)
	if err != nil {
		return fmt.Errorf("updating book availability: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrBookUnavailable
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = $2
		 WHERE book_id = $3 AND status = $4 AND id <> $5`,
		StatusRejected, now, bookID, StatusPending, txID,
	)
	if err != nil {
		return fmt.Errorf("rejecting sibling requests: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing acceptance: %w", err)
	}
	return nil
}

// ListForBook returns the caller's transactions for one book, newest first.
func (r *Repository) ListForBook(ctx context.Context, bookID, userID int64) ([]Transaction, error) {
	return r.list(ctx,
		`WHERE t.book_id = $1 AND (t.sender_id = $2 OR t.receiver_id = $2)
		 ORDER BY t.created_at DESC`, bookID, userID)
}

// ListMine returns every transaction where the caller is sender or receiver,
// most recently updated first.
func (r *Repository) ListMine(ctx context.Context, userID int64) ([]Transaction, error) {
	return r.list(ctx,
		`WHERE t.sender_id = $1 OR t.receiver_id = $1
		 ORDER BY t.updated_at DESC`, userID)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]Transaction, error) {
	query := `SELECT t.id, t.book_id, t.sender_id, t.receiver_id, t.status, t.created_at, t.updated_at,
	                 b.title, s.username, rc.username
	          FROM transactions t
	          JOIN books b ON b.id = t.book_id
	          JOIN users s ON s.id = t.sender_id
	          JOIN users rc ON rc.id = t.receiver_id ` + where

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.BookID, &t.SenderID, &t.ReceiverID, &t.Status,
			&t.CreatedAt, &t.UpdatedAt, &t.BookTitle, &t.SenderName, &t.ReceiverName); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// isUniqueViolation reports whether err is a unique-constraint violation from
// either the pgx driver (23505) or the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
