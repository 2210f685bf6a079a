package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

const (
	purchaseColumns      = `id, user_id, course_id, amount, status, transaction_id, created_at`
	purchaseUniqueKey    = "course_purchases_user_course_key"
	freeTransactionLabel = "FREE-"
)

// PurchaseParams описывает покупку курса. Нулевая цена означает бесплатную запись на курс.
type PurchaseParams struct {
	UserID      string
	CourseID    string
	PriceCents  int64
	Description string
}

func scanPurchase(row rowScanner) (*model.CoursePurchase, error) {
	var (
		p           model.CoursePurchase
		amountCents int64
		status      string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &amountCents, &status, &p.TransactionID, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Amount = model.FromCents(amountCents)
	p.Status = model.PurchaseStatus(status)
	return &p, nil
}

// CreatePurchase атомарно списывает цену курса и создаёт запись о покупке.
// Либо сохраняются и списание, и покупка, либо ничего. Возвращает покупку и баланс в копейках.
func (r *PostgresRepository) CreatePurchase(ctx context.Context, p PurchaseParams) (*model.CoursePurchase, int64, error) {
	var (
		res     *model.CoursePurchase
		balance int64
	)
	err := r.withRetry(ctx, func() error {
		var err error
		res, balance, err = r.createPurchase(ctx, p)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return res, balance, nil
}

func (r *PostgresRepository) createPurchase(ctx context.Context, p PurchaseParams) (*model.CoursePurchase, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку пользователя для предотвращения параллельных списаний, превышающих баланс.
	balance, err := lockAccount(ctx, tx, p.UserID)
	if err != nil {
		return nil, 0, err
	}

	exists, err := hasPurchase(ctx, tx, p.UserID, p.CourseID)
	if err != nil {
		return nil, 0, err
	}
	if exists {
		return nil, 0, ErrAlreadyPurchased
	}

	purchaseID := uuid.New()
	transactionID := freeTransactionLabel + purchaseID.String()

	if p.PriceCents > 0 {
		var debit *model.WalletTransaction
		debit, balance, err = recordInTx(ctx, tx, TransactionParams{
			UserID:      p.UserID,
			AmountCents: p.PriceCents,
			Type:        model.TransactionDebit,
			Status:      model.TransactionCompleted,
			Description: p.Description,
		})
		if err != nil {
			return nil, 0, err
		}
		transactionID = debit.ID.String()
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO course_purchases (id, user_id, course_id, amount, status, transaction_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+purchaseColumns,
		purchaseID, p.UserID, p.CourseID, max(p.PriceCents, 0), string(model.PurchaseCompleted), transactionID,
	)
	purchase, err := scanPurchase(row)
	if err != nil {
		if isUniqueViolation(err, purchaseUniqueKey) {
			return nil, 0, ErrAlreadyPurchased
		}
		return nil, 0, fmt.Errorf("insert purchase: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err, purchaseUniqueKey) {
			return nil, 0, ErrAlreadyPurchased
		}
		return nil, 0, fmt.Errorf("commit tx: %w", err)
	}

	return purchase, balance, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func hasPurchase(ctx context.Context, q querier, userID, courseID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM course_purchases WHERE user_id = $1 AND course_id = $2 AND status = $3)`,
		userID, courseID, string(model.PurchaseCompleted),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// HasPurchase сообщает, купил ли пользователь курс.
func (r *PostgresRepository) HasPurchase(ctx context.Context, userID, courseID string) (bool, error) {
	return hasPurchase(ctx, r.pool, userID, courseID)
}

// ListPurchases возвращает покупки пользователя, новые первыми.
func (r *PostgresRepository) ListPurchases(ctx context.Context, userID string) ([]model.CoursePurchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+purchaseColumns+`
		 FROM course_purchases
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at DESC, id DESC`,
		userID, string(model.PurchaseCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	defer rows.Close()

	var res []model.CoursePurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
