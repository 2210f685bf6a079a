package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

const progressColumns = `id, user_id, course_id, lecture_id, position, duration, completed, updated_at`

// ProgressParams описывает отчёт о позиции просмотра лекции.
type ProgressParams struct {
	UserID    string
	CourseID  string
	LectureID string
	Position  float64
	Duration  float64
	Completed bool
	// Threshold: доля просмотра для завершения, применяется когда длительность берётся из сохранённой строки.
	Threshold float64
}

func scanProgress(row rowScanner) (*model.LectureProgress, error) {
	var p model.LectureProgress
	if err := row.Scan(&p.ID, &p.UserID, &p.CourseID, &p.LectureID, &p.Position, &p.Duration, &p.Completed, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProgress создаёт или обновляет строку прогресса (user, lecture).
// Признак completed только включается: OR со старым значением в одном запросе.
func (r *PostgresRepository) UpsertProgress(ctx context.Context, p ProgressParams) (*model.LectureProgress, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO lecture_progress AS lp (id, user_id, course_id, lecture_id, position, duration, completed, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		 ON CONFLICT (user_id, lecture_id) DO UPDATE SET
		   course_id = EXCLUDED.course_id,
		   position = CASE
		     WHEN EXCLUDED.duration = 0 AND lp.duration > 0 THEN LEAST(EXCLUDED.position, lp.duration)
		     ELSE EXCLUDED.position
		   END,
		   duration = CASE WHEN EXCLUDED.duration > 0 THEN EXCLUDED.duration ELSE lp.duration END,
		   completed = lp.completed OR EXCLUDED.completed OR (
		     EXCLUDED.duration = 0 AND lp.duration > 0 AND EXCLUDED.position >= $8 * lp.duration
		   ),
		   updated_at = now()
		 RETURNING `+progressColumns,
		uuid.New(), p.UserID, p.CourseID, p.LectureID, p.Position, p.Duration, p.Completed, p.Threshold,
	)
	progress, err := scanProgress(row)
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}
	return progress, nil
}

// GetProgress возвращает строки прогресса пользователя по перечисленным лекциям.
func (r *PostgresRepository) GetProgress(ctx context.Context, userID string, lectureIDs []string) ([]model.LectureProgress, error) {
	if len(lectureIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+progressColumns+`
		 FROM lecture_progress
		 WHERE user_id = $1 AND lecture_id = ANY($2)`,
		userID, lectureIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select progress: %w", err)
	}
	defer rows.Close()

	var res []model.LectureProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
