// Package handler содержит HTTP-обработчики API кошелька, покупок курсов и прогресса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/catalog"
	"github.com/mmeshcher/eduhive-ledger/internal/metrics"
	"github.com/mmeshcher/eduhive-ledger/internal/middleware"
	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
	"github.com/mmeshcher/eduhive-ledger/internal/service"
	"github.com/mmeshcher/eduhive-ledger/internal/validation"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error)
	RequestTopUp(ctx context.Context, userID string, amount decimal.Decimal, utr, description string) (*model.WalletTransaction, error)
	ApproveTopUp(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, decimal.Decimal, error)
	RejectTopUp(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, error)
	ListTopUps(ctx context.Context, status model.TransactionStatus) ([]model.WalletTransaction, error)
	Purchase(ctx context.Context, userID, courseID string) (*model.PurchaseResult, error)
	PurchaseMany(ctx context.Context, userID string, courseIDs []string) ([]model.BatchItem, decimal.Decimal, error)
	CheckPurchased(ctx context.Context, userID, courseID string) (bool, error)
	ListPurchases(ctx context.Context, userID string) ([]model.PurchaseWithCourse, error)
	UpsertProgress(ctx context.Context, in service.ProgressInput) (*model.LectureProgress, error)
	GetCourseProgress(ctx context.Context, userID, courseID string) (*model.CourseProgress, error)
	GetNextLecture(ctx context.Context, userID, courseID string) (string, error)
	ListLectures(ctx context.Context, userID, courseID string) ([]model.LectureState, error)
	OpenLecture(ctx context.Context, userID, courseID, lectureID string) (*model.LectureState, error)
	AuditLedger(ctx context.Context) ([]model.LedgerMismatch, error)
	GetStats(ctx context.Context) (*model.Stats, error)
}

// Pinger проверяет доступность хранилища для /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler реализует HTTP-обработчики API.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Metrics
	pinger         Pinger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, m *metrics.Metrics, pinger Pinger) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        m,
		pinger:         pinger,
	}
}

type errorResponse struct {
	Error             string            `json:"error"`
	Message           string            `json:"message,omitempty"`
	Details           map[string]string `json:"details,omitempty"`
	Required          *decimal.Decimal  `json:"required,omitempty"`
	Available         *decimal.Decimal  `json:"available,omitempty"`
	CourseID          string            `json:"courseId,omitempty"`
	Price             *decimal.Decimal  `json:"price,omitempty"`
	LectureID         string            `json:"lectureId,omitempty"`
	RequiredLectureID string            `json:"requiredLectureId,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// decodeJSON читает тело запроса и проверяет его по тегам validate. При ошибке ответ уже записан.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}

	if details := validation.Struct(dst); details != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation_failed",
			Message: "request body failed validation",
			Details: details,
		})
		return false
	}
	return true
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

// handleServiceError переводит ошибку бизнес-логики в HTTP-ответ.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error, op string, fields ...zap.Field) {
	var (
		insufficient *repository.InsufficientFundsError
		notPurchased *service.NotPurchasedError
		locked       *service.LockedError
	)

	switch {
	case errors.As(err, &insufficient):
		h.writeJSON(w, http.StatusPaymentRequired, errorResponse{
			Error:     "insufficient_funds",
			Message:   "wallet balance is too low",
			Required:  &insufficient.Required,
			Available: &insufficient.Available,
		})
	case errors.As(err, &notPurchased):
		h.writeJSON(w, http.StatusForbidden, errorResponse{
			Error:    "not_purchased",
			Message:  "course must be purchased first",
			CourseID: notPurchased.CourseID,
			Price:    &notPurchased.Price,
		})
	case errors.As(err, &locked):
		h.writeJSON(w, http.StatusLocked, errorResponse{
			Error:             "locked",
			Message:           "complete the previous lecture first",
			LectureID:         locked.LectureID,
			RequiredLectureID: locked.RequiredLectureID,
		})
	case errors.Is(err, catalog.ErrCourseNotFound):
		h.writeError(w, http.StatusNotFound, "course_not_found", "course not found")
	case errors.Is(err, service.ErrLectureNotFound), errors.Is(err, service.ErrNoLectures):
		h.writeError(w, http.StatusNotFound, "lecture_not_found", err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound):
		h.writeError(w, http.StatusNotFound, "transaction_not_found", "transaction not found")
	case errors.Is(err, repository.ErrAlreadyPurchased):
		h.writeError(w, http.StatusConflict, "already_purchased", "course already purchased")
	case errors.Is(err, repository.ErrAlreadyResolved):
		h.writeError(w, http.StatusConflict, "already_resolved", "transaction already resolved")
	case errors.Is(err, service.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, service.ErrInvalidReference):
		h.writeError(w, http.StatusBadRequest, "invalid_reference", err.Error())
	case errors.Is(err, service.ErrInvalidProgress):
		h.writeError(w, http.StatusBadRequest, "invalid_progress", err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		h.writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	default:
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		h.writeError(w, http.StatusInternalServerError, "internal_error", http.StatusText(http.StatusInternalServerError))
	}
}

// Healthz проверяет доступность базы данных.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
