package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookswap/internal/auth"
	"bookswap/internal/book"
	"bookswap/internal/middleware"
)

const testSecret = "test-secret"

type server struct {
	*fixture
	srv *httptest.Server
}

func newServer(t *testing.T) *server {
	t.Helper()

	f := newFixture(t)
	handler := NewHandler(f.service)

	authMW := middleware.NewAuthMiddleware(func(tokenString string) (int64, string, error) {
		claims, err := auth.ValidateToken(testSecret, tokenString)
		if err != nil {
			return 0, "", err
		}
		return claims.UserID, claims.Username, nil
	})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authMW.Handle)
		r.Post("/api/transactions", handler.Create)
		r.Get("/api/transactions", handler.ListForBook)
		r.Get("/api/transactions/mine", handler.ListMine)
		r.Patch("/api/transactions/{id}/accept", handler.Accept)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &server{fixture: f, srv: srv}
}

func (s *server) token(t *testing.T, userID int64, username string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, userID, username)
	require.NoError(t, err)
	return tok
}

func (s *server) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.srv.URL+path, payload)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTransactionEndpointsRequireToken(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, "/api/transactions/mine", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	owner := s.user(t, "owner")
	borrower := s.user(t, "borrower")
	stranger := s.user(t, "stranger")
	bookID := s.book(t, owner, book.ReviewAccepted, book.Available)

	ownerTok := s.token(t, owner, "owner")
	borrowerTok := s.token(t, borrower, "borrower")
	strangerTok := s.token(t, stranger, "stranger")

	// Owner cannot request their own book.
	resp := s.do(t, http.MethodPost, "/api/transactions", ownerTok, map[string]int64{"book_id": bookID})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var failed struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failed))
	assert.Equal(t, "you cannot request your own book", failed.Error)

	// Borrower opens a request.
	resp = s.do(t, http.MethodPost, "/api/transactions", borrowerTok, map[string]int64{"book_id": bookID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Transaction Transaction `json:"transaction"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, StatusPending, created.Transaction.Status)
	txID := created.Transaction.ID

	// A second pending request for the same book is refused.
	resp = s.do(t, http.MethodPost, "/api/transactions", borrowerTok, map[string]int64{"book_id": bookID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Only the owner may accept.
	resp = s.do(t, http.MethodPatch, fmt.Sprintf("/api/transactions/%d/accept", txID), strangerTok, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodPatch, fmt.Sprintf("/api/transactions/%d/accept", txID), ownerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var accepted struct {
		Transaction Transaction `json:"transaction"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	assert.Equal(t, StatusAccepted, accepted.Transaction.Status)
	assert.Equal(t, "borrower", accepted.Transaction.SenderName)

	// Accepting twice is refused.
	resp = s.do(t, http.MethodPatch, fmt.Sprintf("/api/transactions/%d/accept", txID), ownerTok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Missing transaction maps to 404.
	resp = s.do(t, http.MethodPatch, "/api/transactions/9999/accept", ownerTok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Both sides see the transaction in their own list.
	for name, tok := range map[string]string{"owner": ownerTok, "borrower": borrowerTok} {
		resp = s.do(t, http.MethodGet, "/api/transactions/mine", tok, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, name)
		var listed struct {
			Transactions []Transaction `json:"transactions"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
		assert.Len(t, listed.Transactions, 1, name)
	}

	resp = s.do(t, http.MethodGet, fmt.Sprintf("/api/transactions?book_id=%d", bookID), strangerTok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scoped struct {
		Transactions []Transaction `json:"transactions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&scoped))
	assert.Empty(t, scoped.Transactions)
}
