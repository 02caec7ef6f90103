package user

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

func (r *Repository) Create(ctx context.Context, username string) (*User, error) {
	u := &User{Username: username, CreatedAt: time.Now().UTC()}
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (username, created_at) VALUES ($1, $2) RETURNING id",
		u.Username, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	err := r.db.QueryRowContext(ctx,
		"SELECT id, username, created_at FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
