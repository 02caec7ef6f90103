package exchange

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookswap/internal/book"
	"bookswap/internal/db"
	"bookswap/internal/user"
	apperrors "bookswap/pkg/errors"
)

type fixture struct {
	db      *sql.DB
	service *Service
	users   *user.Repository
	books   *book.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := db.NewTestDB(t)
	books := book.NewRepository(conn)
	return &fixture{
		db:      conn,
		service: NewService(NewRepository(conn), books),
		users:   user.NewRepository(conn),
		books:   books,
	}
}

func (f *fixture) user(t *testing.T, name string) int64 {
	t.Helper()
	u, err := f.users.Create(context.Background(), name)
	require.NoError(t, err)
	return u.ID
}

func (f *fixture) book(t *testing.T, ownerID int64, review, availability string) int64 {
	t.Helper()
	b, err := f.books.Create(context.Background(), ownerID, "The Go Programming Language", review, availability)
	require.NoError(t, err)
	return b.ID
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	borrower := f.user(t, "borrower")
	bookID := f.book(t, owner, book.ReviewAccepted, book.Available)

	tx, err := f.service.CreateRequest(ctx, bookID, borrower)
	require.NoError(t, err)

	assert.Equal(t, StatusPending, tx.Status)
	assert.Equal(t, borrower, tx.SenderID)
	assert.Equal(t, owner, tx.ReceiverID)
	assert.Equal(t, bookID, tx.BookID)
}

func TestCreateRequestRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	borrower := f.user(t, "borrower")

	t.Run("missing book", func(t *testing.T) {
		_, err := f.service.CreateRequest(ctx, 9999, borrower)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	})

	t.Run("own book", func(t *testing.T) {
		bookID := f.book(t, owner, book.ReviewAccepted, book.Available)
		_, err := f.service.CreateRequest(ctx, bookID, owner)
		assert.ErrorIs(t, err, apperrors.ErrOwnBookRequest)
	})

	t.Run("not approved", func(t *testing.T) {
		bookID := f.book(t, owner, book.ReviewPending, book.Available)
		_, err := f.service.CreateRequest(ctx, bookID, borrower)
		assert.ErrorIs(t, err, apperrors.ErrBookNotApproved)
	})

	t.Run("unavailable", func(t *testing.T) {
		bookID := f.book(t, owner, book.ReviewAccepted, book.Unavailable)
		_, err := f.service.CreateRequest(ctx, bookID, borrower)
		assert.ErrorIs(t, err, apperrors.ErrBookUnavailable)
	})
}

func TestDuplicatePendingRequestRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	borrower := f.user(t, "borrower")
	bookID := f.book(t, owner, book.ReviewAccepted, book.Available)

	_, err := f.service.CreateRequest(ctx, bookID, borrower)
	require.NoError(t, err)

	// The partial unique index stops the duplicate, not just the service.
	_, err = f.service.CreateRequest(ctx, bookID, borrower)
	assert.ErrorIs(t, err, apperrors.ErrRequestPending)
	assert.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(err))
}

func TestRetryAfterRejectionAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	u2 := f.user(t, "u2")
	u3 := f.user(t, "u3")
	bookID := f.book(t, owner, book.ReviewAccepted, book.Available)

	tx2, err := f.service.CreateRequest(ctx, bookID, u2)
	require.NoError(t, err)
	_, err = f.service.CreateRequest(ctx, bookID, u3)
	require.NoError(t, err)

	// u3's request is auto-rejected by the acceptance below, the book flips
	// back available by the (external) catalog, and u3 may ask again.
	_, err = f.service.Accept(ctx, tx2.ID, owner)
	require.NoError(t, err)

	_, err = f.db.Exec(`UPDATE books SET availability = 'available' WHERE id = $1`, bookID)
	require.NoError(t, err)

	_, err = f.service.CreateRequest(ctx, bookID, u3)
	assert.NoError(t, err, "pending-only uniqueness must allow a retry after rejection")
}

func TestAcceptResolvesCompetingRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	u2 := f.user(t, "u2")
	u3 := f.user(t, "u3")
	bookID := f.book(t, owner, book.ReviewAccepted, book.Available)

	tx2, err := f.service.CreateRequest(ctx, bookID, u2)
	require.NoError(t, err)
	tx3, err := f.service.CreateRequest(ctx, bookID, u3)
	require.NoError(t, err)

	accepted, err := f.service.Accept(ctx, tx2.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	assert.Equal(t, "The Go Programming Language", accepted.BookTitle)

	// The book flipped unavailable.
	b, err := f.books.GetByID(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, book.Unavailable, b.Availability)

	// The competing pending request was rejected in the same unit.
	repo := NewRepository(f.db)
	sibling, err := repo.Get(ctx, tx3.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, sibling.Status)
}

func TestAcceptAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	borrower := f.user(t, "borrower")
	stranger := f.user(t, "stranger")
	bookID := f.book(t, owner, book.ReviewAccepted, book.Available)

	tx, err := f.service.CreateRequest(ctx, bookID, borrower)
	require.NoError(t, err)

	_, err = f.service.Accept(ctx, tx.ID, stranger)
	assert.ErrorIs(t, err, apperrors.ErrNotRequestReceiver)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))

	_, err = f.service.Accept(ctx, 9999, owner)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestAcceptIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	borrower := f.user(t, "borrower")
	bookID := f.book(t, owner, book.ReviewAccepted, book.Available)

	tx, err := f.service.CreateRequest(ctx, bookID, borrower)
	require.NoError(t, err)

	_, err = f.service.Accept(ctx, tx.ID, owner)
	require.NoError(t, err)

	_, err = f.service.Accept(ctx, tx.ID, owner)
	assert.ErrorIs(t, err, apperrors.ErrRequestNotPending)
}

func TestListScopedToCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.user(t, "owner")
	u2 := f.user(t, "u2")
	u3 := f.user(t, "u3")
	bystander := f.user(t, "bystander")
	bookID := f.book(t, owner, book.ReviewAccepted, book.Available)

	_, err := f.service.CreateRequest(ctx, bookID, u2)
	require.NoError(t, err)
	_, err = f.service.CreateRequest(ctx, bookID, u3)
	require.NoError(t, err)

	ownerView, err := f.service.ListForBook(ctx, bookID, owner)
	require.NoError(t, err)
	assert.Len(t, ownerView, 2)

	u2View, err := f.service.ListForBook(ctx, bookID, u2)
	require.NoError(t, err)
	require.Len(t, u2View, 1)
	assert.Equal(t, u2, u2View[0].SenderID)
	assert.Equal(t, "u2", u2View[0].SenderName)
	assert.Equal(t, "owner", u2View[0].ReceiverName)

	bystanderView, err := f.service.ListForBook(ctx, bookID, bystander)
	require.NoError(t, err)
	assert.Empty(t, bystanderView)

	mine, err := f.service.ListMine(ctx, u3)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, bookID, mine[0].BookID)
}
