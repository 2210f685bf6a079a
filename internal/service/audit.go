package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

// AuditLedger сверяет балансы всех счетов с журналом операций и публикует число расхождений в метриках.
func (s *Service) AuditLedger(ctx context.Context) ([]model.LedgerMismatch, error) {
	mismatches, err := s.repo.AuditBalances(ctx)
	if err != nil {
		return nil, err
	}

	s.metrics.SetLedgerMismatches(len(mismatches))
	for _, m := range mismatches {
		s.logger.Error("ledger balance mismatch",
			zap.String("userID", m.UserID),
			zap.String("stored", m.Stored.StringFixed(2)),
			zap.String("computed", m.Computed.StringFixed(2)),
		)
	}
	return mismatches, nil
}

// StartLedgerAudit периодически запускает сверку журнала до отмены контекста.
// При неположительном интервале сверка отключена.
func (s *Service) StartLedgerAudit(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mismatches, err := s.AuditLedger(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("ledger audit failed", zap.Error(err))
				continue
			}
			s.logger.Debug("ledger audit finished", zap.Int("mismatches", len(mismatches)))
		}
	}
}
