package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/catalog"
	"github.com/mmeshcher/eduhive-ledger/internal/metrics"
	"github.com/mmeshcher/eduhive-ledger/internal/middleware"
	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
	"github.com/mmeshcher/eduhive-ledger/internal/service"
)

type stubService struct {
	balanceResp decimal.Decimal
	balanceErr  error

	txsResp []model.WalletTransaction

	topUpResp *model.WalletTransaction
	topUpErr  error
	topUpUTR  string

	approveResp    *model.WalletTransaction
	approveBalance decimal.Decimal
	approveErr     error

	purchaseResp *model.PurchaseResult
	purchaseErr  error

	batchItems   []model.BatchItem
	batchBalance decimal.Decimal

	purchasesResp []model.PurchaseWithCourse

	progressIn   service.ProgressInput
	progressResp *model.LectureProgress
	progressErr  error

	courseProgress *model.CourseProgress

	lecturesResp []model.LectureState
	lecturesErr  error

	openErr error

	statsResp *model.Stats

	userID string
}

func (s *stubService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	s.userID = userID
	return s.balanceResp, s.balanceErr
}

func (s *stubService) ListTransactions(ctx context.Context, userID string) ([]model.WalletTransaction, error) {
	return s.txsResp, nil
}

func (s *stubService) RequestTopUp(ctx context.Context, userID string, amount decimal.Decimal, utr, description string) (*model.WalletTransaction, error) {
	s.topUpUTR = utr
	return s.topUpResp, s.topUpErr
}

func (s *stubService) ApproveTopUp(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, decimal.Decimal, error) {
	return s.approveResp, s.approveBalance, s.approveErr
}

func (s *stubService) RejectTopUp(ctx context.Context, id uuid.UUID) (*model.WalletTransaction, error) {
	return s.approveResp, s.approveErr
}

func (s *stubService) ListTopUps(ctx context.Context, status model.TransactionStatus) ([]model.WalletTransaction, error) {
	if !status.IsValid() {
		return nil, service.ErrInvalidStatus
	}
	return s.txsResp, nil
}

func (s *stubService) Purchase(ctx context.Context, userID, courseID string) (*model.PurchaseResult, error) {
	return s.purchaseResp, s.purchaseErr
}

func (s *stubService) PurchaseMany(ctx context.Context, userID string, courseIDs []string) ([]model.BatchItem, decimal.Decimal, error) {
	return s.batchItems, s.batchBalance, nil
}

func (s *stubService) CheckPurchased(ctx context.Context, userID, courseID string) (bool, error) {
	return courseID == "owned", nil
}

func (s *stubService) ListPurchases(ctx context.Context, userID string) ([]model.PurchaseWithCourse, error) {
	return s.purchasesResp, nil
}

func (s *stubService) UpsertProgress(ctx context.Context, in service.ProgressInput) (*model.LectureProgress, error) {
	s.progressIn = in
	return s.progressResp, s.progressErr
}

func (s *stubService) GetCourseProgress(ctx context.Context, userID, courseID string) (*model.CourseProgress, error) {
	return s.courseProgress, nil
}

func (s *stubService) GetNextLecture(ctx context.Context, userID, courseID string) (string, error) {
	return "l2", nil
}

func (s *stubService) ListLectures(ctx context.Context, userID, courseID string) ([]model.LectureState, error) {
	return s.lecturesResp, s.lecturesErr
}

func (s *stubService) OpenLecture(ctx context.Context, userID, courseID, lectureID string) (*model.LectureState, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &model.LectureState{Lecture: model.Lecture{ID: lectureID}}, nil
}

func (s *stubService) AuditLedger(ctx context.Context) ([]model.LedgerMismatch, error) {
	return nil, nil
}

func (s *stubService) GetStats(ctx context.Context) (*model.Stats, error) {
	return s.statsResp, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

const testSecret = "test-secret"

func newTestRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware(testSecret)
	return NewHandler(svc, logger, auth, metrics.New(), stubPinger{}).SetupRouter()
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := middleware.NewAuthMiddleware(testSecret).IssueToken(userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, h http.Handler, method, target, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAPI_RequiresToken(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/api/wallet/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetBalance(t *testing.T) {
	svc := &stubService{balanceResp: decimal.RequireFromString("12.50")}
	h := newTestRouter(t, svc)

	w := doRequest(t, h, http.MethodGet, "/api/wallet/balance", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", svc.userID)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Balance.Equal(decimal.RequireFromString("12.5")))
}

func TestGetBalance_InternalError(t *testing.T) {
	h := newTestRouter(t, &stubService{balanceErr: errors.New("db down")})

	w := doRequest(t, h, http.MethodGet, "/api/wallet/balance", bearer(t, "u1", ""), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal_error", decodeBody(t, w)["error"])
}

func TestGetTransactions_EmptyList(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/api/wallet/transactions", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestTopUp(t *testing.T) {
	tx := &model.WalletTransaction{ID: uuid.New(), Status: model.TransactionPending, Type: model.TransactionCredit}

	tests := []struct {
		name       string
		svc        *stubService
		body       map[string]any
		wantStatus int
		wantError  string
	}{
		{
			name:       "created",
			svc:        &stubService{topUpResp: tx},
			body:       map[string]any{"amount": 500, "utrReference": "UTR123"},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "missing reference",
			svc:        &stubService{topUpResp: tx},
			body:       map[string]any{"amount": 500},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_failed",
		},
		{
			name:       "invalid amount",
			svc:        &stubService{topUpErr: service.ErrInvalidAmount},
			body:       map[string]any{"amount": 0, "utrReference": "UTR123"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_amount",
		},
		{
			name:       "padded reference accepted",
			svc:        &stubService{topUpResp: tx},
			body:       map[string]any{"amount": 500, "utrReference": "  UTR123 "},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "reference with inner space",
			svc:        &stubService{topUpResp: tx},
			body:       map[string]any{"amount": 5, "utrReference": "bad ref"},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_failed",
		},
		{
			name:       "reference too long",
			svc:        &stubService{topUpResp: tx},
			body:       map[string]any{"amount": 5, "utrReference": strings.Repeat("A", 65)},
			wantStatus: http.StatusBadRequest,
			wantError:  "validation_failed",
		},
		{
			name:       "amount out of range",
			svc:        &stubService{topUpErr: fmt.Errorf("%w: %w", service.ErrInvalidAmount, model.ErrAmountOutOfRange)},
			body:       map[string]any{"amount": "184467440737095516.17", "utrReference": "UTR123"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_amount",
		},
		{
			name:       "invalid reference from service",
			svc:        &stubService{topUpErr: service.ErrInvalidReference},
			body:       map[string]any{"amount": 5, "utrReference": "UTR123"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_reference",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, tt.svc)

			w := doRequest(t, h, http.MethodPost, "/api/wallet/topup", bearer(t, "u1", ""), tt.body)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeBody(t, w)["error"])
			}
		})
	}
}

func TestTopUp_InvalidJSON(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/wallet/topup", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", bearer(t, "u1", ""))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPurchaseCourse_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{name: "already purchased", err: repository.ErrAlreadyPurchased, wantStatus: http.StatusConflict, wantError: "already_purchased"},
		{name: "unknown course", err: catalog.ErrCourseNotFound, wantStatus: http.StatusNotFound, wantError: "course_not_found"},
		{name: "internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantError: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, &stubService{purchaseErr: tt.err})

			w := doRequest(t, h, http.MethodPost, "/api/courses/c1/purchase", bearer(t, "u1", ""), nil)
			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeBody(t, w)["error"])
		})
	}
}

func TestPurchaseCourse_InsufficientFunds(t *testing.T) {
	err := &repository.InsufficientFundsError{
		Required:  decimal.RequireFromString("499.99"),
		Available: decimal.RequireFromString("100"),
	}
	h := newTestRouter(t, &stubService{purchaseErr: err})

	w := doRequest(t, h, http.MethodPost, "/api/courses/c1/purchase", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "insufficient_funds", body["error"])
	assert.Equal(t, "499.99", body["required"])
	assert.Equal(t, "100", body["available"])
}

func TestPurchaseCourse_Created(t *testing.T) {
	res := &model.PurchaseResult{
		Purchase:   &model.CoursePurchase{ID: uuid.New(), CourseID: "c1", Status: model.PurchaseCompleted},
		NewBalance: decimal.RequireFromString("500.01"),
	}
	h := newTestRouter(t, &stubService{purchaseResp: res})

	w := doRequest(t, h, http.MethodPost, "/api/courses/c1/purchase", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "500.01", decodeBody(t, w)["newBalance"])
}

func TestCheckPurchased(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/api/courses/owned/purchased", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["purchased"])
}

func TestGetPurchases_MissingCourseIsNull(t *testing.T) {
	svc := &stubService{purchasesResp: []model.PurchaseWithCourse{
		{
			CoursePurchase: model.CoursePurchase{ID: uuid.New(), CourseID: "c1"},
			Course: &model.Course{ID: "c1", Title: "Go", Lectures: []model.Lecture{{ID: "l1"}, {ID: "l2"}}},
		},
		{CoursePurchase: model.CoursePurchase{ID: uuid.New(), CourseID: "gone"}},
	}}
	h := newTestRouter(t, svc)

	w := doRequest(t, h, http.MethodGet, "/api/purchases", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	course, ok := resp[0]["course"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Go", course["title"])
	assert.Equal(t, 2.0, course["lectureCount"])

	v, present := resp[1]["course"]
	assert.True(t, present)
	assert.Nil(t, v)
}

func TestPurchaseBatch(t *testing.T) {
	svc := &stubService{
		batchItems: []model.BatchItem{
			{CourseID: "c1", Purchase: &model.CoursePurchase{ID: uuid.New(), CourseID: "c1"}},
			{CourseID: "c2", Err: &repository.InsufficientFundsError{}},
			{CourseID: "c1", Err: repository.ErrAlreadyPurchased},
		},
		batchBalance: decimal.NewFromInt(70),
	}
	h := newTestRouter(t, svc)

	w := doRequest(t, h, http.MethodPost, "/api/purchases/batch", bearer(t, "u1", ""),
		map[string]any{"courseIds": []string{"c1", "c2", "c1"}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Items []batchItemResponse `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "purchased", resp.Items[0].Status)
	assert.Equal(t, "failed", resp.Items[1].Status)
	assert.Equal(t, "insufficient_funds", resp.Items[1].Error)
	assert.Equal(t, "already_purchased", resp.Items[2].Error)
}

func TestPurchaseBatch_EmptyList(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodPost, "/api/purchases/batch", bearer(t, "u1", ""),
		map[string]any{"courseIds": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertProgress(t *testing.T) {
	svc := &stubService{progressResp: &model.LectureProgress{LectureID: "l1", Completed: true}}
	h := newTestRouter(t, svc)

	w := doRequest(t, h, http.MethodPost, "/api/progress/upsert", bearer(t, "u1", ""),
		map[string]any{"courseId": "c1", "lectureId": "l1", "position": 95, "duration": 100})
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "u1", svc.progressIn.UserID)
	assert.Equal(t, 95.0, svc.progressIn.Position)
	assert.Equal(t, true, decodeBody(t, w)["completed"])
}

func TestUpsertProgress_Validation(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodPost, "/api/progress/upsert", bearer(t, "u1", ""),
		map[string]any{"courseId": "c1", "lectureId": "l1", "position": -5, "duration": 100})
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decodeBody(t, w)
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "position")
}

func TestUpsertProgress_Locked(t *testing.T) {
	svc := &stubService{progressErr: &service.LockedError{LectureID: "l3", RequiredLectureID: "l2"}}
	h := newTestRouter(t, svc)

	w := doRequest(t, h, http.MethodPost, "/api/progress/upsert", bearer(t, "u1", ""),
		map[string]any{"courseId": "c1", "lectureId": "l3", "position": 1, "duration": 100})
	require.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "l2", decodeBody(t, w)["requiredLectureId"])
}

func TestGetCourseProgress_EmptyItems(t *testing.T) {
	svc := &stubService{courseProgress: &model.CourseProgress{Summary: model.ProgressSummary{TotalLectures: 3}}}
	h := newTestRouter(t, svc)

	w := doRequest(t, h, http.MethodGet, "/api/progress/course/c1", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, []any{}, body["items"])
}

func TestGetNextLecture(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/api/progress/next/c1", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "l2", decodeBody(t, w)["lectureId"])
}

func TestGetLectures_NotPurchased(t *testing.T) {
	svc := &stubService{lecturesErr: &service.NotPurchasedError{CourseID: "c1", Price: decimal.RequireFromString("49.99")}}
	h := newTestRouter(t, svc)

	w := doRequest(t, h, http.MethodGet, "/api/courses/c1/lectures", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "not_purchased", body["error"])
	assert.Equal(t, "c1", body["courseId"])
	assert.Equal(t, "49.99", body["price"])
}

func TestOpenLecture(t *testing.T) {
	h := newTestRouter(t, &stubService{})
	w := doRequest(t, h, http.MethodGet, "/api/courses/c1/lectures/l1/access", bearer(t, "u1", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "l1", decodeBody(t, w)["id"])

	h = newTestRouter(t, &stubService{openErr: service.ErrLectureNotFound})
	w = doRequest(t, h, http.MethodGet, "/api/courses/c1/lectures/zz/access", bearer(t, "u1", ""), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	h := newTestRouter(t, &stubService{statsResp: &model.Stats{}})

	w := doRequest(t, h, http.MethodGet, "/api/admin/stats", bearer(t, "u1", "student"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(t, h, http.MethodGet, "/api/admin/stats", bearer(t, "a1", middleware.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdmin_ListTopUps(t *testing.T) {
	h := newTestRouter(t, &stubService{})
	admin := bearer(t, "a1", middleware.RoleAdmin)

	w := doRequest(t, h, http.MethodGet, "/api/admin/topups", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = doRequest(t, h, http.MethodGet, "/api/admin/topups?status=archived", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_ApproveTopUp(t *testing.T) {
	admin := bearer(t, "a1", middleware.RoleAdmin)
	id := uuid.New()

	h := newTestRouter(t, &stubService{
		approveResp:    &model.WalletTransaction{ID: id, Status: model.TransactionCompleted},
		approveBalance: decimal.NewFromInt(500),
	})
	w := doRequest(t, h, http.MethodPost, "/api/admin/topups/"+id.String()+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "500", decodeBody(t, w)["newBalance"])

	w = doRequest(t, h, http.MethodPost, "/api/admin/topups/not-a-uuid/approve", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	h = newTestRouter(t, &stubService{approveErr: repository.ErrAlreadyResolved})
	w = doRequest(t, h, http.MethodPost, "/api/admin/topups/"+id.String()+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	h = newTestRouter(t, &stubService{approveErr: repository.ErrTransactionNotFound})
	w = doRequest(t, h, http.MethodPost, "/api/admin/topups/"+id.String()+"/reject", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_AuditLedger(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/api/admin/ledger/audit", bearer(t, "a1", middleware.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"mismatches":[]}`, w.Body.String())
}

func TestUnknownRoutesReturnJSON(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "route_not_found", decodeBody(t, w)["error"])

	w = doRequest(t, h, http.MethodPost, "/healthz", "", nil)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "method_not_allowed", decodeBody(t, w)["error"])
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	logger := zap.NewNop()
	failing := NewHandler(&stubService{}, logger, middleware.NewAuthMiddleware(testSecret), nil, stubPinger{err: errors.New("down")})
	w = doRequest(t, failing.SetupRouter(), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t, &stubService{})

	w := doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
