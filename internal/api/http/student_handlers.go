package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/smart-exam/smartexam/internal/auth/middleware"
	"github.com/smart-exam/smartexam/internal/exam"
	"github.com/smart-exam/smartexam/internal/rbac"
)

// GET /exams?grade=...&q=...&limit=50&offset=0
// Students only ever see exams for their own grade.
func ListExamsHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grade := strings.TrimSpace(r.URL.Query().Get("grade"))
		if rbac.RoleFromContext(r.Context()) == "student" {
			if st, ok := authmw.StudentFromContext(r.Context()); ok {
				grade = st.Grade
			}
		}
		list, err := store.ListExams(r.Context(), exam.ListOpts{
			GradeID: grade,
			Q:       strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:   parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:  parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /exams/{examID}/start
// Returns the shuffled, key-stripped exam view and marks it as the caller's
// current exam, replacing any exam already in progress.
func StartExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := rbac.SubjectFromContext(r.Context())
		if subject == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		out, err := svc.Assemble(r.Context(), chi.URLParam(r, "examID"), subject)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /attempts/submit  { "answers": {"<qid>": "...", "<qid>_1": "..."}, "violations": 0 }
// Scores the caller's current exam and records the attempt. The current-exam
// marker is cleared, so a second submit without a new start returns 409.
func SubmitExamHandler(svc *exam.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := rbac.SubjectFromContext(r.Context())
		if subject == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		st, ok := authmw.StudentFromContext(r.Context())
		if !ok {
			http.Error(w, "student identity required", http.StatusForbidden)
			return
		}
		var req struct {
			Answers    map[string]string `json:"answers"`
			Violations int               `json:"violations"`
		}
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		a, err := svc.Score(r.Context(), subject, exam.Student{Name: st.Name, Grade: st.Grade}, req.Answers, req.Violations)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempt_id": a.ID, "score": a.Score, "version": a.Version})
	}
}
