package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/finance-tracker/internal"
	"github.com/frahmantamala/finance-tracker/pkg/logger"
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
		if lg == nil {
			lg = slog.Default()
		}
	}
	return &BaseHandler{Logger: lg}
}

// CacheHeader tells clients and the access log whether a read was served
// from the cache.
const (
	CacheHeader = "X-Cache"
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
)

// Envelope is the success body of every JSON endpoint.
type Envelope struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	FromCache *bool       `json:"fromCache,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	Limit       int   `json:"limit"`
	HasNext     bool  `json:"has_next"`
	HasPrev     bool  `json:"has_prev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalCount:  total,
		Limit:       limit,
		HasNext:     page < pages,
		HasPrev:     page > 1,
	}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

func (h *BaseHandler) WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	h.WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteCached writes data along with whether it was served from the cache.
func (h *BaseHandler) WriteCached(w http.ResponseWriter, data interface{}, fromCache bool) {
	if fromCache {
		w.Header().Set(CacheHeader, CacheHit)
	} else {
		w.Header().Set(CacheHeader, CacheMiss)
	}
	h.WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data, FromCache: &fromCache})
}

func (h *BaseHandler) WriteMessage(w http.ResponseWriter, status int, message string, data interface{}) {
	h.WriteJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Log returns the handler logger annotated with the request fields.
func (h *BaseHandler) Log(r *http.Request) *slog.Logger {
	return logger.From(r.Context(), h.Logger)
}

// WriteError writes an error response
func (h *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, status int, message string) {
	lg := h.Log(r)
	if status >= http.StatusInternalServerError {
		lg.Error("http error", "status", status, "message", message)
	} else {
		lg.Debug("http error", "status", status, "message", message)
	}

	appErr := &internal.AppError{
		Type:       errorTypeForStatus(status),
		Code:       errorCodeForStatus(status),
		Message:    message,
		StatusCode: status,
	}
	h.writeAppError(w, appErr)
}

// HandleServiceError maps an error returned by a service to its HTTP
// response. Anything that is not an AppError becomes a generic 500.
func (h *BaseHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		h.Log(r).Error("unhandled service error", "error", err)
		appErr = internal.NewInternalError("Internal server error", err)
	} else if appErr.StatusCode >= http.StatusInternalServerError {
		h.Log(r).Error("service error", "code", appErr.Code, "error", appErr)
	}
	h.writeAppError(w, appErr)
}

func (h *BaseHandler) writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	status, body := appErr.ToHTTPResponse()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.WriteJSON(w, status, body)
}

func errorTypeForStatus(status int) internal.ErrorType {
	switch status {
	case http.StatusBadRequest:
		return internal.ErrorTypeValidation
	case http.StatusUnauthorized:
		return internal.ErrorTypeUnauthorized
	case http.StatusForbidden:
		return internal.ErrorTypeForbidden
	case http.StatusNotFound:
		return internal.ErrorTypeNotFound
	case http.StatusConflict:
		return internal.ErrorTypeConflict
	default:
		return internal.ErrorTypeInternal
	}
}

func errorCodeForStatus(status int) internal.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return internal.ErrCodeValidationFailed
	case http.StatusUnauthorized:
		return internal.ErrCodeInvalidToken
	case http.StatusForbidden:
		return internal.ErrCodeInsufficientRole
	default:
		return internal.ErrCodeInternal
	}
}

// ExtractTokenFromHeader extracts Bearer token from Authorization header
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}

	return authHeader[7:]
}
