package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/eduhive-ledger/internal/catalog"
	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

// GetCourse читает курс и его лекции из локальных таблиц каталога.
// Используется, когда внешний сервис каталога не настроен.
func (r *PostgresRepository) GetCourse(ctx context.Context, courseID string) (*model.Course, error) {
	var (
		c          model.Course
		priceCents int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, price, is_paid FROM courses WHERE id = $1 AND is_active`,
		courseID,
	).Scan(&c.ID, &c.Title, &priceCents, &c.IsPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrCourseNotFound, courseID)
		}
		return nil, fmt.Errorf("select course: %w", err)
	}
	c.Price = model.FromCents(priceCents)

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, order_index, duration
		 FROM lectures
		 WHERE course_id = $1
		 ORDER BY order_index, id`,
		courseID,
	)
	if err != nil {
		return nil, fmt.Errorf("select lectures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.Lecture
		if err := rows.Scan(&l.ID, &l.Title, &l.OrderIndex, &l.Duration); err != nil {
			return nil, fmt.Errorf("scan lecture: %w", err)
		}
		c.Lectures = append(c.Lectures, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &c, nil
}
