package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/catalog"
	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
	"github.com/mmeshcher/eduhive-ledger/internal/service"
)

// PurchaseCourse покупает курс за счёт кошелька текущего пользователя.
func (h *Handler) PurchaseCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")

	res, err := h.service.Purchase(r.Context(), userID, courseID)
	if err != nil {
		h.handleServiceError(w, err, "purchase course", zap.String("userID", userID), zap.String("courseID", courseID))
		return
	}

	h.writeJSON(w, http.StatusCreated, res)
}

type purchasedResponse struct {
	CourseID  string `json:"courseId"`
	Purchased bool   `json:"purchased"`
}

// CheckPurchased сообщает, купил ли текущий пользователь курс.
func (h *Handler) CheckPurchased(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")

	purchased, err := h.service.CheckPurchased(r.Context(), userID, courseID)
	if err != nil {
		h.handleServiceError(w, err, "check purchased", zap.String("userID", userID), zap.String("courseID", courseID))
		return
	}

	h.writeJSON(w, http.StatusOK, purchasedResponse{CourseID: courseID, Purchased: purchased})
}

type courseSummary struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	IsPaid       bool            `json:"isPaid"`
	LectureCount int             `json:"lectureCount"`
}

type purchaseResponse struct {
	model.CoursePurchase
	Course *courseSummary `json:"course"`
}

// GetPurchases возвращает покупки текущего пользователя с данными курсов.
func (h *Handler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	purchases, err := h.service.ListPurchases(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "list purchases", zap.String("userID", userID))
		return
	}

	resp := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		item := purchaseResponse{CoursePurchase: p.CoursePurchase}
		if p.Course != nil {
			item.Course = &courseSummary{
				ID:           p.Course.ID,
				Title:        p.Course.Title,
				Price:        p.Course.Price,
				IsPaid:       p.Course.IsPaid,
				LectureCount: len(p.Course.Lectures),
			}
		}
		resp = append(resp, item)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type batchRequest struct {
	CourseIDs []string `json:"courseIds" validate:"required,min=1,max=50,dive,required"`
}

type batchItemResponse struct {
	CourseID string                `json:"courseId"`
	Status   string                `json:"status"`
	Error    string                `json:"error,omitempty"`
	Purchase *model.CoursePurchase `json:"purchase,omitempty"`
}

type batchResponse struct {
	Items      []batchItemResponse `json:"items"`
	NewBalance decimal.Decimal     `json:"newBalance"`
}

// PurchaseBatch покупает несколько курсов из корзины, каждый независимо от остальных.
func (h *Handler) PurchaseBatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req batchRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	items, balance, err := h.service.PurchaseMany(r.Context(), userID, req.CourseIDs)
	if err != nil {
		h.handleServiceError(w, err, "purchase batch", zap.String("userID", userID))
		return
	}

	resp := batchResponse{Items: make([]batchItemResponse, 0, len(items)), NewBalance: balance}
	for _, it := range items {
		item := batchItemResponse{CourseID: it.CourseID, Status: "purchased", Purchase: it.Purchase}
		if it.Err != nil {
			item.Status = "failed"
			item.Error = batchErrorCode(it.Err)
			if item.Error == "internal_error" {
				h.logger.Error("purchase batch item error", zap.String("courseID", it.CourseID), zap.Error(it.Err))
			}
		}
		resp.Items = append(resp.Items, item)
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func batchErrorCode(err error) string {
	switch {
	case errors.Is(err, repository.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, repository.ErrAlreadyPurchased):
		return "already_purchased"
	case errors.Is(err, catalog.ErrCourseNotFound):
		return "course_not_found"
	case errors.Is(err, service.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "internal_error"
	}
}
