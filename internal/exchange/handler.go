package exchange

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bookswap/internal/middleware"
	"bookswap/internal/respond"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

type createRequestBody struct {
	BookID int64 `json:"book_id"`
}

// Create handles POST /api/transactions.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		respond.BadRequest(w, "missing caller identity")
		return
	}

	var body createRequestBody
	if err := respond.Decode(r, &body); err != nil || body.BookID <= 0 {
		respond.BadRequest(w, "book_id is required")
		return
	}

	t, err := h.service.CreateRequest(r.Context(), body.BookID, userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]any{"transaction": t})
}

// ListForBook handles GET /api/transactions?book_id=...
func (h *Handler) ListForBook(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	bookID, err := strconv.ParseInt(r.URL.Query().Get("book_id"), 10, 64)
	if err != nil || bookID <= 0 {
		respond.BadRequest(w, "book_id is required")
		return
	}

	transactions, err := h.service.ListForBook(r.Context(), bookID, userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// ListMine handles GET /api/transactions/mine.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	transactions, err := h.service.ListMine(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// Accept handles PATCH /api/transactions/{id}/accept.
func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())

	txID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || txID <= 0 {
		respond.BadRequest(w, "invalid transaction id")
		return
	}

	t, err := h.service.Accept(r.Context(), txID, userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{"transaction": t})
}
