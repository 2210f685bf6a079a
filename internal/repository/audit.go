package repository

import (
	"context"
	"fmt"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

// AuditBalances сверяет сохранённые балансы с суммой завершённых операций журнала
// и возвращает счета с расхождением.
func (r *PostgresRepository) AuditBalances(ctx context.Context) ([]model.LedgerMismatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.wallet_balance, COALESCE(SUM(
		   CASE WHEN t.type = 'credit' THEN t.amount ELSE -t.amount END
		 ), 0)::BIGINT AS computed
		 FROM users u
		 LEFT JOIN wallet_transactions t ON t.user_id = u.id AND t.status = $1
		 GROUP BY u.id, u.wallet_balance
		 HAVING u.wallet_balance <> COALESCE(SUM(
		   CASE WHEN t.type = 'credit' THEN t.amount ELSE -t.amount END
		 ), 0)`,
		string(model.TransactionCompleted),
	)
	if err != nil {
		return nil, fmt.Errorf("audit balances: %w", err)
	}
	defer rows.Close()

	var res []model.LedgerMismatch
	for rows.Next() {
		var (
			userID   string
			stored   int64
			computed int64
		)
		if err := rows.Scan(&userID, &stored, &computed); err != nil {
			return nil, fmt.Errorf("scan mismatch: %w", err)
		}
		res = append(res, model.LedgerMismatch{
			UserID:   userID,
			Stored:   model.FromCents(stored),
			Computed: model.FromCents(computed),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetStats возвращает агрегаты для панели администратора.
func (r *PostgresRepository) GetStats(ctx context.Context) (*model.Stats, error) {
	var (
		s             model.Stats
		revenueCents  int64
		floatingCents int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM wallet_transactions WHERE status = $1 AND type = $2),
		   (SELECT COUNT(*) FROM course_purchases),
		   (SELECT COALESCE(SUM(amount), 0)::BIGINT FROM course_purchases),
		   (SELECT COALESCE(SUM(wallet_balance), 0)::BIGINT FROM users)`,
		string(model.TransactionPending), string(model.TransactionCredit),
	).Scan(&s.PendingTopUps, &s.TotalPurchases, &revenueCents, &floatingCents)
	if err != nil {
		return nil, fmt.Errorf("select stats: %w", err)
	}

	s.PurchaseRevenue = model.FromCents(revenueCents)
	s.WalletFloat = model.FromCents(floatingCents)
	return &s, nil
}
