package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
	"github.com/mmeshcher/eduhive-ledger/internal/validation"
)

// GetBalance возвращает текущий баланс кошелька пользователя.
func (s *Service) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	cents, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return model.FromCents(cents), nil
}

// ListTransactions возвращает журнал кошелька пользователя, новые записи первыми.
func (s *Service) ListTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error) {
	return s.repo.ListTransactions(ctx, userID)
}

// RecordTransaction добавляет запись в журнал кошелька. Завершённая операция меняет баланс атомарно с записью.
func (s *Service) RecordTransaction(
	ctx context.Context,
	userID string,
	amount decimal.Decimal,
	txType model.TransactionType,
	status model.TransactionStatus,
	description string,
	reference *string,
) (*model.WalletTransaction, error) {
	cents, err := amountToCents(amount)
	if err != nil {
		return nil, err
	}
	if txType != model.TransactionCredit && txType != model.TransactionDebit {
		return nil, fmt.Errorf("%w: transaction type %q", ErrInvalidStatus, txType)
	}
	if status != model.TransactionPending && status != model.TransactionCompleted {
		return nil, fmt.Errorf("%w: initial status %q", ErrInvalidStatus, status)
	}

	t, _, err := s.repo.RecordTransaction(ctx, repository.TransactionParams{
		UserID:       userID,
		AmountCents:  cents,
		Type:         txType,
		Status:       status,
		Description:  description,
		UTRReference: reference,
	})
	return t, err
}

// RequestTopUp регистрирует заявку на пополнение по номеру внешнего платежа. Баланс не меняется
// до подтверждения администратором.
func (s *Service) RequestTopUp(ctx context.Context, userID string, amount decimal.Decimal, utr, description string) (*model.WalletTransaction, error) {
	utr = strings.TrimSpace(utr)
	if !validation.IsValidUTR(utr) {
		return nil, ErrInvalidReference
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = "Wallet top-up - UTR: " + utr
	}

	t, err := s.RecordTransaction(ctx, userID, amount, model.TransactionCredit, model.TransactionPending, description, &utr)
	if err != nil {
		return nil, err
	}

	s.metrics.IncTopUp("requested")
	s.logger.Info("top-up requested",
		zap.String("userID", userID),
		zap.String("transactionID", t.ID.String()),
		zap.String("amount", t.Amount.StringFixed(2)),
	)
	return t, nil
}

// ApproveTopUp подтверждает ожидающее пополнение и зачисляет сумму. Повторное подтверждение
// возвращает repository.ErrAlreadyResolved.
func (s *Service) ApproveTopUp(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, decimal.Decimal, error) {
	t, balance, err := s.repo.ResolveTopUp(ctx, id, model.TransactionCompleted)
	if err != nil {
		return nil, decimal.Zero, err
	}

	s.metrics.IncTopUp("approved")
	s.logger.Info("top-up approved", zap.String("transactionID", id.String()), zap.String("userID", t.UserID))
	return t, model.FromCents(balance), nil
}

// RejectTopUp отклоняет ожидающее пополнение без изменения баланса.
func (s *Service) RejectTopUp(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, error) {
	t, _, err := s.repo.ResolveTopUp(ctx, id, model.TransactionRejected)
	if err != nil {
		return nil, err
	}

	s.metrics.IncTopUp("rejected")
	s.logger.Info("top-up rejected", zap.String("transactionID", id.String()), zap.String("userID", t.UserID))
	return t, nil
}

// ListTopUps возвращает пополнения с указанным статусом для очереди проверки.
func (s *Service) ListTopUps(ctx context.Context, status model.TransactionStatus) ([]model.WalletTransaction, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.ListTopUps(ctx, status)
}

func amountToCents(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	cents, err := model.ToCents(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	return cents, nil
}
