package http

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/smart-exam/smartexam/internal/exam"
	"github.com/smart-exam/smartexam/internal/rbac"
	syncx "github.com/smart-exam/smartexam/internal/sync"
)

// POST /exams
func CreateExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title        string  `json:"title"`
			GradeID      string  `json:"grade_id"`
			DurationMin  int     `json:"duration_min"`
			Negative     float64 `json:"negative"`
			VersionCount int     `json:"version_count"`
		}
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Title == "" || req.GradeID == "" {
			http.Error(w, "title and grade_id required", http.StatusBadRequest)
			return
		}
		if req.Negative < 0 {
			http.Error(w, "negative must be >= 0", http.StatusBadRequest)
			return
		}
		if req.VersionCount < 1 {
			req.VersionCount = 1
		}
		e := exam.Exam{
			ID:           uuid.NewString(),
			Title:        req.Title,
			GradeID:      req.GradeID,
			DurationMin:  req.DurationMin,
			Negative:     req.Negative,
			VersionCount: req.VersionCount,
			CreatedBy:    rbac.SubjectFromContext(r.Context()),
		}
		if err := store.PutExam(r.Context(), e); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// DELETE /exams/{examID}
func DeleteExamHandler(store exam.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		if err := store.DeleteExam(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		if events != nil {
			_ = events.Append(r.Context(), syncx.Event{Type: "ExamDeleted", Key: id, DataJSON: "{}"})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /exams/{examID}/questions
// The body is the question document for its declared type; answer data for
// any other type is rejected.
func AddQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q exam.Question
		if err := decodeJSON(r, &q); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q.ID = uuid.NewString()
		q.ExamID = chi.URLParam(r, "examID")
		if err := store.PutQuestion(r.Context(), q); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// DELETE /questions/{questionID}
func DeleteQuestionHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /exams/{examID}/questions returns full documents, answer keys included.
func ListQuestionsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := store.QuestionsByExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

// POST /exams/{examID}/questions/import
// Accepts a multipart file= (CSV or JSON array) or a raw JSON array body of
// MCQ rows: question, option_a..option_d, correct, points.
func ImportQuestionsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		var rows []importRow
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			// sniff CSV vs JSON by first byte
			buf := make([]byte, 1)
			if _, err := f.Read(buf); err != nil {
				http.Error(w, "empty file", http.StatusBadRequest)
				return
			}
			if seeker, ok := f.(io.Seeker); ok {
				_, _ = seeker.Seek(0, io.SeekStart)
			}
			if buf[0] == '[' {
				if err := json.NewDecoder(f).Decode(&rows); err != nil {
					http.Error(w, "bad json", http.StatusBadRequest)
					return
				}
			} else {
				rs, err := parseImportCSV(f)
				if err != nil {
					http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
					return
				}
				rows = rs
			}
		} else {
			if err := decodeJSON(r, &rows); err != nil {
				http.Error(w, "expected JSON array or multipart file", http.StatusBadRequest)
				return
			}
		}

		imported := 0
		for _, row := range rows {
			q, err := row.question(examID)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			if err := store.PutQuestion(r.Context(), q); err != nil {
				writeError(w, err)
				return
			}
			imported++
		}
		writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
	}
}

type importRow struct {
	Question string `json:"question"`
	OptionA  string `json:"option_a"`
	OptionB  string `json:"option_b"`
	OptionC  string `json:"option_c"`
	OptionD  string `json:"option_d"`
	Correct  string `json:"correct"`
	Points   int    `json:"points"`
}

func (row importRow) question(examID string) (exam.Question, error) {
	points := row.Points
	if points <= 0 {
		points = 1
	}
	q := exam.Question{
		ID:     uuid.NewString(),
		ExamID: examID,
		Text:   row.Question,
		Type:   exam.TypeMCQ,
		Points: points,
		Options: []exam.Option{
			{Label: "A", Text: row.OptionA},
			{Label: "B", Text: row.OptionB},
			{Label: "C", Text: row.OptionC},
			{Label: "D", Text: row.OptionD},
		},
		CorrectAnswer: strings.TrimSpace(row.Correct),
	}
	return q, q.Validate()
}

func parseImportCSV(f io.Reader) ([]importRow, error) {
	rd := csv.NewReader(f)
	rd.TrimLeadingSpace = true
	recs, err := rd.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	idx := map[string]int{}
	for i, h := range recs[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	out := make([]importRow, 0, len(recs)-1)
	for _, rec := range recs[1:] {
		points, _ := strconv.Atoi(strings.TrimSpace(field(rec, "points")))
		out = append(out, importRow{
			Question: field(rec, "question"),
			OptionA:  field(rec, "option_a"),
			OptionB:  field(rec, "option_b"),
			OptionC:  field(rec, "option_c"),
			OptionD:  field(rec, "option_d"),
			Correct:  field(rec, "correct"),
			Points:   points,
		})
	}
	return out, nil
}

// GET /attempts?exam_id=...&student=...&grade=...&limit=...&offset=...
func ListAttemptsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListAttempts(r.Context(), exam.AttemptListOpts{
			ExamID:      strings.TrimSpace(r.URL.Query().Get("exam_id")),
			StudentName: strings.TrimSpace(r.URL.Query().Get("student")),
			Grade:       strings.TrimSpace(r.URL.Query().Get("grade")),
			Limit:       parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:      parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /analytics/summary?exam_id=...
func AnalyticsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := store.SummarizeAttempts(r.Context(), strings.TrimSpace(r.URL.Query().Get("exam_id")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// GET /analytics/events?limit=...
// Newest-first audit feed (submissions, exam deletions).
func EventsHandler(events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := events.Recent(r.Context(), parseIntDefault(r.URL.Query().Get("limit"), 100))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
