package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/catalog"
	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
)

// Purchase покупает курс за счёт кошелька. Цена берётся из каталога, для бесплатного курса
// создаётся только запись о покупке. Списание и запись о покупке фиксируются вместе или не фиксируются вовсе.
func (s *Service) Purchase(ctx context.Context, userID, courseID string) (*model.PurchaseResult, error) {
	purchase, balance, err := s.purchase(ctx, userID, courseID)
	s.metrics.IncPurchase(purchaseOutcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("course purchased",
		zap.String("userID", userID),
		zap.String("courseID", courseID),
		zap.String("amount", purchase.Amount.StringFixed(2)),
	)
	return &model.PurchaseResult{Purchase: purchase, NewBalance: model.FromCents(balance)}, nil
}

func (s *Service) purchase(ctx context.Context, userID, courseID string) (*model.CoursePurchase, int64, error) {
	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return nil, 0, err
	}

	var priceCents int64
	if course.RequiresPurchase() {
		priceCents, err = model.ToCents(course.Price)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: course price: %w", ErrInvalidAmount, err)
		}
	}

	return s.repo.CreatePurchase(ctx, repository.PurchaseParams{
		UserID:      userID,
		CourseID:    courseID,
		PriceCents:  priceCents,
		Description: "Course purchase: " + course.Title,
	})
}

// PurchaseMany покупает курсы по очереди, каждый в своей транзакции. Ошибка одного курса
// не отменяет уже выполненные покупки. Возвращает итоги по каждому курсу и итоговый баланс.
func (s *Service) PurchaseMany(ctx context.Context, userID string, courseIDs []string) ([]model.BatchItem, decimal.Decimal, error) {
	items := make([]model.BatchItem, 0, len(courseIDs))
	for _, id := range courseIDs {
		if err := ctx.Err(); err != nil {
			items = append(items, model.BatchItem{CourseID: id, Err: err})
			continue
		}
		res, err := s.Purchase(ctx, userID, id)
		item := model.BatchItem{CourseID: id, Err: err}
		if res != nil {
			item.Purchase = res.Purchase
		}
		items = append(items, item)
	}

	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return items, decimal.Zero, err
	}
	return items, balance, nil
}

// CheckPurchased сообщает, купил ли пользователь курс.
func (s *Service) CheckPurchased(ctx context.Context, userID, courseID string) (bool, error) {
	return s.repo.HasPurchase(ctx, userID, courseID)
}

// ListPurchases возвращает покупки пользователя вместе с данными курсов. Курсы, которых
// больше нет в каталоге, отдаются с пустым полем Course.
func (s *Service) ListPurchases(ctx context.Context, userID string) ([]model.PurchaseWithCourse, error) {
	purchases, err := s.repo.ListPurchases(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make([]model.PurchaseWithCourse, 0, len(purchases))
	for _, p := range purchases {
		item := model.PurchaseWithCourse{CoursePurchase: p}
		course, err := s.catalog.GetCourse(ctx, p.CourseID)
		switch {
		case err == nil:
			item.Course = course
		case errors.Is(err, catalog.ErrCourseNotFound):
			s.logger.Warn("purchased course missing from catalog", zap.String("courseID", p.CourseID))
		default:
			return nil, fmt.Errorf("get course %s: %w", p.CourseID, err)
		}
		res = append(res, item)
	}
	return res, nil
}

func purchaseOutcome(err error) string {
	switch {
	case err == nil:
		return "purchased"
	case errors.Is(err, repository.ErrAlreadyPurchased):
		return "already_purchased"
	case errors.Is(err, repository.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, catalog.ErrCourseNotFound):
		return "not_found"
	default:
		return "error"
	}
}
