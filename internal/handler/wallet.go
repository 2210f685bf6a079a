package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// GetBalance возвращает баланс кошелька текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "get balance", zap.String("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}

// GetTransactions возвращает журнал кошелька текущего пользователя, новые записи первыми.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, err, "list transactions", zap.String("userID", userID))
		return
	}

	if txs == nil {
		txs = []model.WalletTransaction{}
	}
	h.writeJSON(w, http.StatusOK, txs)
}

type topUpRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	UTRReference string          `json:"utrReference" validate:"required,utr"`
	Description  string          `json:"description" validate:"max=255"`
}

// TopUp регистрирует заявку на пополнение кошелька по номеру внешнего платежа.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req topUpRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	tx, err := h.service.RequestTopUp(r.Context(), userID, req.Amount, req.UTRReference, req.Description)
	if err != nil {
		h.handleServiceError(w, err, "request top-up", zap.String("userID", userID))
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}
