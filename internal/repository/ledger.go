package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

const transactionColumns = `id, user_id, amount, type, status, description, utr_reference, created_at, resolved_at`

// TransactionParams описывает новую запись журнала кошелька. Сумма задаётся в копейках.
type TransactionParams struct {
	UserID       string
	AmountCents  int64
	Type         model.TransactionType
	Status       model.TransactionStatus
	Description  string
	UTRReference *string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.WalletTransaction, error) {
	var (
		t           model.WalletTransaction
		amountCents int64
		txType      string
		status      string
		utr         *string
		resolvedAt  *time.Time
	)
	if err := row.Scan(&t.ID, &t.UserID, &amountCents, &txType, &status, &t.Description, &utr, &t.CreatedAt, &resolvedAt); err != nil {
		return nil, err
	}
	t.Amount = model.FromCents(amountCents)
	t.Type = model.TransactionType(txType)
	t.Status = model.TransactionStatus(status)
	t.UTRReference = utr
	t.ResolvedAt = resolvedAt
	return &t, nil
}

// lockAccount создаёт строку пользователя при первом обращении и блокирует её до конца транзакции.
// Все изменения баланса проходят через эту блокировку, поэтому проверки баланса сериализуются.
func lockAccount(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	if _, err := tx.Exec(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return 0, fmt.Errorf("ensure user: %w", err)
	}

	var balance int64
	err := tx.QueryRow(ctx, `SELECT wallet_balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("lock user for update: %w", err)
	}
	return balance, nil
}

func applyBalance(ctx context.Context, tx pgx.Tx, userID string, deltaCents int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`UPDATE users SET wallet_balance = wallet_balance + $2, updated_at = now() WHERE id = $1 RETURNING wallet_balance`,
		userID, deltaCents,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, p TransactionParams) (*model.WalletTransaction, error) {
	row := tx.QueryRow(ctx,
		`INSERT INTO wallet_transactions (id, user_id, amount, type, status, description, utr_reference, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, CASE WHEN $5 = 'pending' THEN NULL ELSE now() END)
		 RETURNING `+transactionColumns,
		uuid.New(), p.UserID, p.AmountCents, string(p.Type), string(p.Status), p.Description, p.UTRReference,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// recordInTx добавляет запись журнала и, для завершённой операции, меняет баланс в той же транзакции.
func recordInTx(ctx context.Context, tx pgx.Tx, p TransactionParams) (*model.WalletTransaction, int64, error) {
	balance, err := lockAccount(ctx, tx, p.UserID)
	if err != nil {
		return nil, 0, err
	}

	if p.Status != model.TransactionCompleted {
		t, err := insertTransaction(ctx, tx, p)
		return t, balance, err
	}

	delta := p.AmountCents
	if p.Type == model.TransactionDebit {
		if balance < p.AmountCents {
			return nil, balance, &InsufficientFundsError{
				Required:  model.FromCents(p.AmountCents),
				Available: model.FromCents(balance),
			}
		}
		delta = -p.AmountCents
	}

	t, err := insertTransaction(ctx, tx, p)
	if err != nil {
		return nil, 0, err
	}

	balance, err = applyBalance(ctx, tx, p.UserID, delta)
	if err != nil {
		return nil, 0, err
	}
	return t, balance, nil
}

// GetBalance возвращает баланс пользователя в копейках. Пользователь без счёта имеет нулевой баланс.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT wallet_balance FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// RecordTransaction добавляет запись в журнал. Для статуса completed баланс меняется атомарно с записью;
// списание сверх баланса завершается InsufficientFundsError без изменений.
func (r *PostgresRepository) RecordTransaction(ctx context.Context, p TransactionParams) (*model.WalletTransaction, int64, error) {
	if p.AmountCents <= 0 {
		return nil, 0, fmt.Errorf("transaction amount must be positive")
	}
	if p.Status != model.TransactionPending && p.Status != model.TransactionCompleted {
		return nil, 0, fmt.Errorf("unsupported initial status %q", p.Status)
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

		res, balance, err = recordInTx(ctx, tx, p)
		if err != nil {
			return err
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

// ListTransactions возвращает журнал кошелька пользователя, новые записи первыми.
func (r *PostgresRepository) ListTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM wallet_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return collectTransactions(rows)
}

// ListTopUps возвращает пополнения с указанным статусом, старые первыми.
func (r *PostgresRepository) ListTopUps(ctx context.Context, status model.TransactionStatus) ([]model.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM wallet_transactions
		 WHERE type = $1 AND status = $2 AND utr_reference IS NOT NULL
		 ORDER BY created_at, id`,
		string(model.TransactionCredit), string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select top-ups: %w", err)
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]model.WalletTransaction, error) {
	defer rows.Close()

	var res []model.WalletTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
