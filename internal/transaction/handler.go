package transaction

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/auth"
	"github.com/frahmantamala/finance-tracker/internal/transport"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

type ServiceAPI interface {
	ListForUser(ctx context.Context, userID int64, f ListFilter) (*Page, bool, error)
	ListAll(ctx context.Context, f ListFilter) (*Page, error)
	Get(ctx context.Context, id int64, ownerID *int64) (*View, error)
	Create(ctx context.Context, ownerID, actorID int64, dto CreateTransactionDTO) (*View, error)
	Update(ctx context.Context, id int64, ownerID *int64, actorID int64, dto UpdateTransactionDTO) (*View, error)
	Delete(ctx context.Context, id int64, ownerID *int64, actorID int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// ListTransactions handles GET /transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	f, err := ParseListFilter(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	page, fromCache, err := h.Service.ListForUser(r.Context(), user.ID, f)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteCached(w, page, fromCache)
}

// GetTransaction handles GET /transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	v, err := h.Service.Get(r.Context(), id, &user.ID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, v)
}

// CreateTransaction handles POST /transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.Service.Create(r.Context(), user.ID, user.ID, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, "Transaction created successfully", v)
}

// UpdateTransaction handles PUT /transactions/{id}
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	var dto UpdateTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.Service.Update(r.Context(), id, &user.ID, user.ID, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Transaction updated successfully", v)
}

// DeleteTransaction handles DELETE /transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id, &user.ID, user.ID); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Transaction deleted successfully", nil)
}

// AdminListTransactions handles GET /admin/transactions
func (h *Handler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseListFilter(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("limit") == "" {
		f.Limit = 20
	}

	page, err := h.Service.ListAll(r.Context(), f)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteSuccess(w, http.StatusOK, page)
}

// AdminCreateTransaction handles POST /admin/transactions
func (h *Handler) AdminCreateTransaction(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.UserID == nil || *dto.UserID <= 0 {
		h.HandleServiceError(w, r, internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeValidationFailed))
		return
	}

	v, err := h.Service.Create(r.Context(), *dto.UserID, admin.ID, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusCreated, "Transaction created successfully", v)
}

// AdminUpdateTransaction handles PUT /admin/transactions/{id}
func (h *Handler) AdminUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	admin, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	var dto UpdateTransactionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := h.Service.Update(r.Context(), id, nil, admin.ID, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Transaction updated successfully", v)
}

// AdminDeleteTransaction handles DELETE /admin/transactions/{id}
func (h *Handler) AdminDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	admin, id, ok := h.userAndID(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), id, nil, admin.ID); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteMessage(w, http.StatusOK, "Transaction deleted successfully", nil)
}

func (h *Handler) userAndID(w http.ResponseWriter, r *http.Request) (*auth.User, int64, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return nil, 0, false
	}

	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.Log(r).Warn("invalid transaction ID", "id", idStr)
		h.WriteError(w, r, http.StatusBadRequest, "invalid transaction ID")
		return nil, 0, false
	}
	return user, id, true
}
