// Package model содержит доменные сущности кошелька, покупок курсов и прогресса просмотра.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType описывает направление движения средств по кошельку.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// TransactionStatus описывает состояние записи в журнале кошелька.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionRejected  TransactionStatus = "rejected"
)

// IsValid сообщает, известен ли статус.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionPending, TransactionCompleted, TransactionRejected:
		return true
	}
	return false
}

// WalletTransaction: неизменяемая запись журнала кошелька.
// Единственное допустимое изменение: перевод пополнения из pending в completed или rejected.
type WalletTransaction struct {
	ID           uuid.UUID         `json:"id"`
	UserID       string            `json:"userId"`
	Amount       decimal.Decimal   `json:"amount"`
	Type         TransactionType   `json:"type"`
	Status       TransactionStatus `json:"status"`
	Description  string            `json:"description"`
	UTRReference *string           `json:"utrReference,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	ResolvedAt   *time.Time        `json:"resolvedAt,omitempty"`
}

// PurchaseStatus описывает состояние записи о покупке курса.
type PurchaseStatus string

// PurchaseCompleted: единственное состояние покупки, возвраты не поддерживаются.
const PurchaseCompleted PurchaseStatus = "completed"

// CoursePurchase: запись о зачислении пользователя на курс.
type CoursePurchase struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"userId"`
	CourseID      string          `json:"courseId"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PurchaseStatus  `json:"status"`
	TransactionID string          `json:"transactionId"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PurchaseResult возвращается после успешной покупки.
type PurchaseResult struct {
	Purchase   *CoursePurchase `json:"purchase"`
	NewBalance decimal.Decimal `json:"newBalance"`
}

// PurchaseWithCourse: покупка вместе с данными курса из каталога.
// Course равен nil, если курс пропал из каталога.
type PurchaseWithCourse struct {
	CoursePurchase
	Course *Course `json:"course"`
}

// BatchItem: результат покупки одного курса в составе корзины.
type BatchItem struct {
	CourseID string
	Purchase *CoursePurchase
	Err      error
}

// LectureProgress хранит позицию просмотра лекции пользователем.
type LectureProgress struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"userId"`
	CourseID  string    `json:"courseId"`
	LectureID string    `json:"lectureId"`
	Position  float64   `json:"position"`
	Duration  float64   `json:"duration"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProgressSummary: агрегат прогресса по курсу.
type ProgressSummary struct {
	Percent           float64 `json:"percent"`
	CompletedLectures int     `json:"completedLectures"`
	TotalLectures     int     `json:"totalLectures"`
	RemainingSeconds  float64 `json:"remainingSeconds"`
}

// CourseProgress объединяет сводку и строки прогресса по лекциям курса.
type CourseProgress struct {
	Summary ProgressSummary   `json:"summary"`
	Items   []LectureProgress `json:"items"`
}

// Course описывает курс из внешнего каталога.
type Course struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	IsPaid   bool            `json:"isPaid"`
	Lectures []Lecture       `json:"lectures,omitempty"`
}

// RequiresPurchase сообщает, нужен ли доступ по покупке.
func (c *Course) RequiresPurchase() bool {
	return c.IsPaid && c.Price.IsPositive()
}

// Lecture описывает лекцию курса.
type Lecture struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	OrderIndex int     `json:"orderIndex"`
	Duration   float64 `json:"duration"`
}

// LectureState: лекция с признаками завершения и блокировки для конкретного пользователя.
type LectureState struct {
	Lecture
	Completed bool `json:"completed"`
	Locked    bool `json:"locked"`
}

// LedgerMismatch описывает расхождение сохранённого баланса и суммы по журналу.
type LedgerMismatch struct {
	UserID   string          `json:"userId"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
}

// Stats: простые агрегаты для панели администратора.
type Stats struct {
	PendingTopUps   int64           `json:"pendingWalletRequests"`
	TotalPurchases  int64           `json:"totalPurchases"`
	PurchaseRevenue decimal.Decimal `json:"purchaseRevenue"`
	WalletFloat     decimal.Decimal `json:"walletFloat"`
}
