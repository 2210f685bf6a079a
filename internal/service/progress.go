package service

import (
	"context"
	"math"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/policy"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
)

// ProgressInput: отчёт плеера о позиции просмотра.
type ProgressInput struct {
	UserID    string
	CourseID  string
	LectureID string
	Position  float64
	// Duration равна нулю, если плеер ещё не знает длительность.
	Duration float64
}

// UpsertProgress сохраняет позицию просмотра лекции. Позиция ограничивается длительностью,
// лекция считается завершённой с 90% просмотра, завершение не отменяется последующими отчётами.
func (s *Service) UpsertProgress(ctx context.Context, in ProgressInput) (*model.LectureProgress, error) {
	if !validSeconds(in.Position) || !validSeconds(in.Duration) {
		return nil, ErrInvalidProgress
	}

	_, lectures, items, err := s.courseState(ctx, in.UserID, in.CourseID)
	if err != nil {
		return nil, err
	}

	idx, required := policy.CheckAccess(lectures, policy.CompletedSet(items), in.LectureID)
	if idx < 0 {
		return nil, ErrLectureNotFound
	}
	if required != "" {
		return nil, &LockedError{LectureID: in.LectureID, RequiredLectureID: required}
	}

	position := policy.ClampPosition(in.Position, in.Duration)
	return s.repo.UpsertProgress(ctx, repository.ProgressParams{
		UserID:    in.UserID,
		CourseID:  in.CourseID,
		LectureID: in.LectureID,
		Position:  position,
		Duration:  in.Duration,
		Completed: policy.IsCompleted(position, in.Duration),
		Threshold: policy.CompletionThreshold,
	})
}

// GetCourseProgress возвращает сводку и строки прогресса по лекциям курса в порядке курса.
func (s *Service) GetCourseProgress(ctx context.Context, userID, courseID string) (*model.CourseProgress, error) {
	_, lectures, items, err := s.courseState(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	byLecture := make(map[string]model.LectureProgress, len(items))
	for _, p := range items {
		byLecture[p.LectureID] = p
	}
	ordered := make([]model.LectureProgress, 0, len(items))
	for _, l := range lectures {
		if p, ok := byLecture[l.ID]; ok {
			ordered = append(ordered, p)
		}
	}

	return &model.CourseProgress{
		Summary: policy.Summarize(lectures, items),
		Items:   ordered,
	}, nil
}

// GetNextLecture возвращает лекцию, с которой стоит продолжить просмотр.
func (s *Service) GetNextLecture(ctx context.Context, userID, courseID string) (string, error) {
	_, lectures, items, err := s.courseState(ctx, userID, courseID)
	if err != nil {
		return "", err
	}

	id, ok := policy.NextLecture(lectures, policy.CompletedSet(items))
	if !ok {
		return "", ErrNoLectures
	}
	return id, nil
}

// courseState загружает курс, проверяет доступ и возвращает упорядоченные лекции с прогрессом пользователя.
func (s *Service) courseState(ctx context.Context, userID, courseID string) (*model.Course, []model.Lecture, []model.LectureProgress, error) {
	course, err := s.getCourse(ctx, courseID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := s.ensureEntitled(ctx, userID, course); err != nil {
		return nil, nil, nil, err
	}

	lectures := policy.SortLectures(course.Lectures)
	ids := make([]string, 0, len(lectures))
	for _, l := range lectures {
		ids = append(ids, l.ID)
	}

	items, err := s.repo.GetProgress(ctx, userID, ids)
	if err != nil {
		return nil, nil, nil, err
	}
	return course, lectures, items, nil
}

func validSeconds(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
