// Package catalog предоставляет доступ к внешнему каталогу курсов.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

// ErrCourseNotFound возвращается, если курса нет в каталоге.
var ErrCourseNotFound = errors.New("course not found")

// Source описывает источник данных каталога.
type Source interface {
	GetCourse(ctx context.Context, courseID string) (*model.Course, error)
}

const (
	maxAttempts   = 3
	maxRetryAfter = 5 * time.Second
)

// Client инкапсулирует HTTP-взаимодействие с сервисом каталога.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type lectureResponse struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	OrderIndex int     `json:"orderIndex"`
	Duration   float64 `json:"duration"`
}

type courseResponse struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Price    decimal.Decimal   `json:"price"`
	IsPaid   bool              `json:"isPaid"`
	Lectures []lectureResponse `json:"lectures"`
}

// NewClient создаёт HTTP-клиент каталога по указанному адресу.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetCourse запрашивает курс вместе со списком лекций. При ответе 429 запрос повторяется
// после паузы из Retry-After.
func (c *Client) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("catalog client not configured")
	}

	for attempt := 1; ; attempt++ {
		course, retryAfter, err := c.fetchCourse(ctx, courseID)
		if err != nil || retryAfter == 0 {
			return course, err
		}
		if attempt == maxAttempts {
			return nil, fmt.Errorf("catalog rate limited after %d attempts", attempt)
		}

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) fetchCourse(ctx context.Context, courseID string) (*model.Course, time.Duration, error) {
	endpoint := fmt.Sprintf("%s/api/courses/%s", c.baseURL, url.PathEscape(courseID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, 0, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
	case http.StatusTooManyRequests:
		retryAfter := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, min(retryAfter, maxRetryAfter), nil
	default:
		return nil, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result courseResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}

	course := &model.Course{
		ID:       result.ID,
		Title:    result.Title,
		Price:    result.Price,
		IsPaid:   result.IsPaid,
		Lectures: make([]model.Lecture, 0, len(result.Lectures)),
	}
	if course.ID == "" {
		course.ID = courseID
	}
	for _, l := range result.Lectures {
		course.Lectures = append(course.Lectures, model.Lecture{
			ID:         l.ID,
			Title:      l.Title,
			OrderIndex: l.OrderIndex,
			Duration:   l.Duration,
		})
	}

	return course, 0, nil
}
