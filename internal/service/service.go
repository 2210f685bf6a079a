// Package service реализует бизнес-логику кошелька, покупок курсов и прогресса просмотра.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/catalog"
	"github.com/mmeshcher/eduhive-ledger/internal/metrics"
	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
)

var (
	// ErrInvalidAmount возвращается для неположительных сумм и сумм точнее копейки.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidReference возвращается для пустого или некорректного номера платежа (UTR).
	ErrInvalidReference = errors.New("invalid payment reference")
	// ErrInvalidProgress возвращается для отрицательной или нечисловой позиции либо длительности.
	ErrInvalidProgress = errors.New("invalid progress")
	// ErrInvalidStatus возвращается для неизвестного статуса операции.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrLectureNotFound возвращается, если лекции нет в курсе.
	ErrLectureNotFound = errors.New("lecture not found")
	// ErrNoLectures возвращается для курса без лекций.
	ErrNoLectures = errors.New("course has no lectures")
	// ErrNotPurchased возвращается при обращении к лекциям платного курса без покупки.
	ErrNotPurchased = errors.New("course not purchased")
	// ErrLocked возвращается при попытке открыть лекцию раньше предыдущих.
	ErrLocked = errors.New("lecture locked")
)

// NotPurchasedError уточняет ErrNotPurchased данными для предложения покупки.
type NotPurchasedError struct {
	CourseID string
	Price    decimal.Decimal
}

func (e *NotPurchasedError) Error() string {
	return fmt.Sprintf("course %s not purchased", e.CourseID)
}

// Is позволяет сравнивать ошибку с ErrNotPurchased через errors.Is.
func (e *NotPurchasedError) Is(target error) bool {
	return target == ErrNotPurchased
}

// LockedError уточняет ErrLocked лекцией, которую нужно завершить.
type LockedError struct {
	LectureID         string
	RequiredLectureID string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("lecture %s locked until %s is completed", e.LectureID, e.RequiredLectureID)
}

// Is позволяет сравнивать ошибку с ErrLocked через errors.Is.
func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	GetBalance(ctx context.Context, userID string) (int64, error)
	RecordTransaction(ctx context.Context, p repository.TransactionParams) (*model.WalletTransaction, int64, error)
	ListTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error)
	ListTopUps(ctx context.Context, status model.TransactionStatus) ([]model.WalletTransaction, error)
	ResolveTopUp(ctx context.Context, id uuid.UUID, to model.TransactionStatus) (*model.WalletTransaction, int64, error)
	CreatePurchase(ctx context.Context, p repository.PurchaseParams) (*model.CoursePurchase, int64, error)
	HasPurchase(ctx context.Context, userID, courseID string) (bool, error)
	ListPurchases(ctx context.Context, userID string) ([]model.CoursePurchase, error)
	UpsertProgress(ctx context.Context, p repository.ProgressParams) (*model.LectureProgress, error)
	GetProgress(ctx context.Context, userID string, lectureIDs []string) ([]model.LectureProgress, error)
	AuditBalances(ctx context.Context) ([]model.LedgerMismatch, error)
	GetStats(ctx context.Context) (*model.Stats, error)
}

// Service содержит бизнес-логику сервиса.
type Service struct {
	repo    Repository
	catalog catalog.Source
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и источником каталога.
func NewService(repo Repository, source catalog.Source, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		catalog: source,
		metrics: m,
		logger:  logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) getCourse(ctx context.Context, courseID string) (*model.Course, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return course, nil
}

// GetStats возвращает агрегаты для панели администратора.
func (s *Service) GetStats(ctx context.Context) (*model.Stats, error) {
	return s.repo.GetStats(ctx)
}
