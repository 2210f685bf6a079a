// Package policy содержит правила завершения лекций и последовательного открытия курса.
package policy

import (
	"sort"

	"github.com/mmeshcher/eduhive-ledger/internal/model"
)

// CompletionThreshold: доля просмотра, после которой лекция считается завершённой.
const CompletionThreshold = 0.90

// IsCompleted применяет правило завершения: порог 90% или сигнал окончания (position == duration).
func IsCompleted(position, duration float64) bool {
	if duration <= 0 {
		return false
	}
	if position >= duration {
		return true
	}
	return position/duration >= CompletionThreshold
}

// ClampPosition ограничивает позицию длительностью лекции, если она известна.
func ClampPosition(position, duration float64) float64 {
	if duration > 0 && position > duration {
		return duration
	}
	return position
}

// SortLectures возвращает копию списка лекций в порядке orderIndex.
func SortLectures(lectures []model.Lecture) []model.Lecture {
	sorted := make([]model.Lecture, len(lectures))
	copy(sorted, lectures)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OrderIndex != sorted[j].OrderIndex {
			return sorted[i].OrderIndex < sorted[j].OrderIndex
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// CompletedSet строит множество завершённых лекций по строкам прогресса.
func CompletedSet(items []model.LectureProgress) map[string]bool {
	done := make(map[string]bool, len(items))
	for _, p := range items {
		if p.Completed {
			done[p.LectureID] = true
		}
	}
	return done
}

// FirstIncomplete возвращает индекс первой незавершённой лекции или -1, если завершены все.
// Лекции должны быть упорядочены.
func FirstIncomplete(lectures []model.Lecture, completed map[string]bool) int {
	for i, l := range lectures {
		if !completed[l.ID] {
			return i
		}
	}
	return -1
}

// NextLecture возвращает лекцию для продолжения просмотра: первую незавершённую,
// а если завершены все, то последнюю. Для пустого курса ok == false.
func NextLecture(lectures []model.Lecture, completed map[string]bool) (string, bool) {
	if len(lectures) == 0 {
		return "", false
	}
	if i := FirstIncomplete(lectures, completed); i >= 0 {
		return lectures[i].ID, true
	}
	return lectures[len(lectures)-1].ID, true
}

// Unlocked сообщает, открыта ли лекция с индексом i: все предыдущие должны быть завершены.
func Unlocked(lectures []model.Lecture, completed map[string]bool, i int) bool {
	first := FirstIncomplete(lectures, completed)
	return first < 0 || i <= first
}

// CheckAccess проверяет, можно ли открыть лекцию. Возвращает индекс лекции (-1, если её нет в курсе)
// и идентификатор лекции, которую нужно завершить, если доступ закрыт.
func CheckAccess(lectures []model.Lecture, completed map[string]bool, lectureID string) (int, string) {
	idx := -1
	for i, l := range lectures {
		if l.ID == lectureID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1, ""
	}
	first := FirstIncomplete(lectures, completed)
	if first >= 0 && idx > first {
		return idx, lectures[first].ID
	}
	return idx, ""
}

// States раскладывает лекции курса на признаки завершения и блокировки.
func States(lectures []model.Lecture, completed map[string]bool) []model.LectureState {
	first := FirstIncomplete(lectures, completed)
	res := make([]model.LectureState, 0, len(lectures))
	for i, l := range lectures {
		res = append(res, model.LectureState{
			Lecture:   l,
			Completed: completed[l.ID],
			Locked:    first >= 0 && i > first,
		})
	}
	return res
}

// Summarize считает сводку по курсу. Строки прогресса лекций, которых нет в курсе, игнорируются.
// Лекция без строки прогресса добавляет к остатку свою длительность из каталога.
func Summarize(lectures []model.Lecture, items []model.LectureProgress) model.ProgressSummary {
	byLecture := make(map[string]model.LectureProgress, len(items))
	for _, p := range items {
		byLecture[p.LectureID] = p
	}

	summary := model.ProgressSummary{TotalLectures: len(lectures)}
	for _, l := range lectures {
		p, ok := byLecture[l.ID]
		switch {
		case ok && p.Completed:
			summary.CompletedLectures++
		case ok:
			if rest := p.Duration - p.Position; rest > 0 {
				summary.RemainingSeconds += rest
			}
		default:
			if l.Duration > 0 {
				summary.RemainingSeconds += l.Duration
			}
		}
	}

	if summary.TotalLectures > 0 {
		summary.Percent = float64(summary.CompletedLectures) / float64(summary.TotalLectures)
	}
	return summary
}
