package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
	"github.com/mmeshcher/eduhive-ledger/internal/service"
)

type progressRequest struct {
	CourseID  string  `json:"courseId" validate:"required"`
	LectureID string  `json:"lectureId" validate:"required"`
	Position  float64 `json:"position" validate:"gte=0"`
	Duration  float64 `json:"duration" validate:"gte=0"`
}

// UpsertProgress сохраняет позицию просмотра лекции, присланную плеером.
func (h *Handler) UpsertProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req progressRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	progress, err := h.service.UpsertProgress(r.Context(), service.ProgressInput{
		UserID:    userID,
		CourseID:  req.CourseID,
		LectureID: req.LectureID,
		Position:  req.Position,
		Duration:  req.Duration,
	})
	if err != nil {
		h.handleServiceError(w, err, "upsert progress",
			zap.String("userID", userID),
			zap.String("courseID", req.CourseID),
			zap.String("lectureID", req.LectureID),
		)
		return
	}

	h.writeJSON(w, http.StatusOK, progress)
}

// GetCourseProgress возвращает сводку прогресса текущего пользователя по курсу.
func (h *Handler) GetCourseProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")

	progress, err := h.service.GetCourseProgress(r.Context(), userID, courseID)
	if err != nil {
		h.handleServiceError(w, err, "get course progress", zap.String("userID", userID), zap.String("courseID", courseID))
		return
	}

	if progress.Items == nil {
		progress.Items = []model.LectureProgress{}
	}
	h.writeJSON(w, http.StatusOK, progress)
}

type nextLectureResponse struct {
	CourseID  string `json:"courseId"`
	LectureID string `json:"lectureId"`
}

// GetNextLecture возвращает лекцию, с которой пользователю стоит продолжить курс.
func (h *Handler) GetNextLecture(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")

	lectureID, err := h.service.GetNextLecture(r.Context(), userID, courseID)
	if err != nil {
		h.handleServiceError(w, err, "get next lecture", zap.String("userID", userID), zap.String("courseID", courseID))
		return
	}

	h.writeJSON(w, http.StatusOK, nextLectureResponse{CourseID: courseID, LectureID: lectureID})
}

// GetLectures возвращает лекции курса с признаками завершения и блокировки.
func (h *Handler) GetLectures(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")

	lectures, err := h.service.ListLectures(r.Context(), userID, courseID)
	if err != nil {
		h.handleServiceError(w, err, "list lectures", zap.String("userID", userID), zap.String("courseID", courseID))
		return
	}

	h.writeJSON(w, http.StatusOK, lectures)
}

// OpenLecture проверяет, может ли пользователь открыть лекцию.
func (h *Handler) OpenLecture(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	courseID := chi.URLParam(r, "id")
	lectureID := chi.URLParam(r, "lectureId")

	lecture, err := h.service.OpenLecture(r.Context(), userID, courseID, lectureID)
	if err != nil {
		h.handleServiceError(w, err, "open lecture",
			zap.String("userID", userID),
			zap.String("courseID", courseID),
			zap.String("lectureID", lectureID),
		)
		return
	}

	h.writeJSON(w, http.StatusOK, lecture)
}
