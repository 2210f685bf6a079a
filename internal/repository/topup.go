package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

// ResolveTopUp переводит ожидающее пополнение в completed или rejected. Подтверждение зачисляет сумму
// на баланс в той же транзакции. Возвращает обновлённую запись и баланс пользователя в копейках.
func (r *PostgresRepository) ResolveTopUp(ctx context.Context, id uuid.UUID, to model.TransactionStatus) (*model.WalletTransaction, int64, error) {
	if to != model.TransactionCompleted && to != model.TransactionRejected {
		return nil, 0, fmt.Errorf("unsupported resolution status %q", to)
	}

	var (
		res     *model.WalletTransaction
		balance int64
	)
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		// Блокируем запись пополнения, чтобы второе подтверждение увидело итоговый статус.
		var (
			userID      string
			amountCents int64
			txType      string
			status      string
		)
		err = tx.QueryRow(ctx,
			`SELECT user_id, amount, type, status FROM wallet_transactions WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&userID, &amountCents, &txType, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("lock transaction: %w", err)
		}

		if model.TransactionType(txType) != model.TransactionCredit {
			return ErrTransactionNotFound
		}
		if model.TransactionStatus(status) != model.TransactionPending {
			return ErrAlreadyResolved
		}

		balance, err = lockAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if to == model.TransactionCompleted {
			balance, err = applyBalance(ctx, tx, userID, amountCents)
			if err != nil {
				return err
			}
		}

		row := tx.QueryRow(ctx,
			`UPDATE wallet_transactions SET status = $2, resolved_at = now()
			 WHERE id = $1
			 RETURNING `+transactionColumns,
			id, string(to),
		)
		res, err = scanTransaction(row)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res, balance, nil
}
