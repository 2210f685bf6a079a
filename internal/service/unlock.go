package service

import (
	"context"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/policy"
)

// ensureEntitled пропускает бесплатные курсы и курсы, купленные пользователем.
func (s *Service) ensureEntitled(ctx context.Context, userID string, course *model.Course) error {
	if !course.RequiresPurchase() {
		return nil
	}

	ok, err := s.repo.HasPurchase(ctx, userID, course.ID)
	if err != nil {
		return err
	}
	if !ok {
		return &NotPurchasedError{CourseID: course.ID, Price: course.Price}
	}
	return nil
}

// ListLectures возвращает лекции курса с признаками завершения и блокировки.
func (s *Service) ListLectures(ctx context.Context, userID, courseID string) ([]model.LectureState, error) {
	_, lectures, items, err := s.courseState(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	return policy.States(lectures, policy.CompletedSet(items)), nil
}

// OpenLecture проверяет, может ли пользователь открыть лекцию. Лекция доступна,
// когда завершены все предыдущие лекции курса.
func (s *Service) OpenLecture(ctx context.Context, userID, courseID, lectureID string) (*model.LectureState, error) {
	_, lectures, items, err := s.courseState(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	completed := policy.CompletedSet(items)
	idx, required := policy.CheckAccess(lectures, completed, lectureID)
	if idx < 0 {
		return nil, ErrLectureNotFound
	}
	if required != "" {
		return nil, &LockedError{LectureID: lectureID, RequiredLectureID: required}
	}

	return &model.LectureState{Lecture: lectures[idx], Completed: completed[lectureID]}, nil
}
