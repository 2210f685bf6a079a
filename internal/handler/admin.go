package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

// ListTopUps возвращает очередь пополнений для проверки. По умолчанию status=pending.
func (h *Handler) ListTopUps(w http.ResponseWriter, r *http.Request) {
	status := model.TransactionStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.TransactionPending
	}

	txs, err := h.service.ListTopUps(r.Context(), status)
	if err != nil {
		h.handleServiceError(w, err, "list top-ups", zap.String("status", string(status)))
		return
	}

	if txs == nil {
		txs = []model.WalletTransaction{}
	}
	h.writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) transactionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "transaction_not_found", "transaction not found")
		return uuid.Nil, false
	}
	return id, true
}

type approveResponse struct {
	Transaction *model.WalletTransaction `json:"transaction"`
	NewBalance  decimal.Decimal          `json:"newBalance"`
}

// ApproveTopUp подтверждает пополнение и зачисляет сумму на кошелёк.
func (h *Handler) ApproveTopUp(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	tx, balance, err := h.service.ApproveTopUp(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "approve top-up", zap.String("transactionID", id.String()))
		return
	}

	h.writeJSON(w, http.StatusOK, approveResponse{Transaction: tx, NewBalance: balance})
}

// RejectTopUp отклоняет пополнение без изменения баланса.
func (h *Handler) RejectTopUp(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	tx, err := h.service.RejectTopUp(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err, "reject top-up", zap.String("transactionID", id.String()))
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// GetStats возвращает агрегаты для панели администратора.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "get stats")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

type auditResponse struct {
	Mismatches []model.LedgerMismatch `json:"mismatches"`
}

// AuditLedger запускает сверку балансов с журналом и возвращает найденные расхождения.
func (h *Handler) AuditLedger(w http.ResponseWriter, r *http.Request) {
	mismatches, err := h.service.AuditLedger(r.Context())
	if err != nil {
		h.handleServiceError(w, err, "audit ledger")
		return
	}

	if mismatches == nil {
		mismatches = []model.LedgerMismatch{}
	}
	h.writeJSON(w, http.StatusOK, auditResponse{Mismatches: mismatches})
}
