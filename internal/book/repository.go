package book

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "bookswap/pkg/errors"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a book row. Listing creation belongs to the catalog
// subsystem; this exists for seeding and tests.
func (r *Repository) Create(ctx context.Context, ownerID int64, title, reviewStatus, availability string) (*Book, error) {
	now := time.Now().UTC()
	b := &Book{
		OwnerID:      ownerID,
		Title:        title,
		ReviewStatus: reviewStatus,
		Availability: availability,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO books (owner_id, title, review_status, availability, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		b.OwnerID, b.Title, b.ReviewStatus, b.Availability, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Book, error) {
	b := &Book{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, title, review_status, availability, created_at, updated_at
		 FROM books WHERE id = $1`, id,
	).Scan(&b.ID, &b.OwnerID, &b.Title, &b.ReviewStatus, &b.Availability, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, err
	}
	return b, nil
}
