package analytics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/internal/auth"
	"github.com/frahmantamala/finance-tracker/internal/transport"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

type ServiceAPI interface {
	GetUserAnalytics(ctx context.Context, userID int64, q Query) (*Result, bool, error)
	GetGlobalAnalytics(ctx context.Context, q Query) (*Result, bool, error)
	GetCategoryAnalytics(ctx context.Context, userID int64, q Query) ([]CategoryStat, bool, error)
	GetSpendingTrends(ctx context.Context, userID int64, months int) ([]TrendPoint, bool, error)
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

// GetUserAnalytics handles GET /analytics/user
func (h *Handler) GetUserAnalytics(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	res, fromCache, err := h.Service.GetUserAnalytics(r.Context(), user.ID, q)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteCached(w, res, fromCache)
}

// GetGlobalAnalytics handles GET /analytics/global
func (h *Handler) GetGlobalAnalytics(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !user.CanViewGlobal() {
		h.HandleServiceError(w, r, internal.ErrInsufficientRole)
		return
	}

	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	res, fromCache, err := h.Service.GetGlobalAnalytics(r.Context(), q)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteCached(w, res, fromCache)
}

// GetCategoryAnalytics handles GET /analytics/categories
func (h *Handler) GetCategoryAnalytics(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	stats, fromCache, err := h.Service.GetCategoryAnalytics(r.Context(), user.ID, q)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteCached(w, stats, fromCache)
}

// GetSpendingTrends handles GET /analytics/trends
func (h *Handler) GetSpendingTrends(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	months, err := ParseTrendMonths(r.URL.Query())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	points, fromCache, err := h.Service.GetSpendingTrends(r.Context(), user.ID, months)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteCached(w, points, fromCache)
}
