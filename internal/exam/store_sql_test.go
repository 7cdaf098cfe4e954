package exam

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/smart-exam/smartexam/internal/db"
	"github.com/smart-exam/smartexam/internal/session"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	return NewSQLStore(openTestDB(t))
}

func TestSQLStoreExamRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	e := Exam{ID: "e1", Title: "Biology Midterm", GradeID: "g7", DurationMin: 45,
		Negative: 0.5, VersionCount: 4, CreatedBy: "t-1"}
	if err := store.PutExam(ctx, e); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.GetExam(ctx, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != e.Title || got.Negative != 0.5 || got.VersionCount != 4 || got.DurationMin != 45 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.CreatedAt == 0 {
		t.Fatal("created_at not stamped")
	}

	// upsert updates settings in place
	e.Title = "Biology Final"
	e.VersionCount = 2
	if err := store.PutExam(ctx, e); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err = store.GetExam(ctx, "e1")
	if err != nil {
		t.Fatalf("get after upsert: %v", err)
	}
	if got.Title != "Biology Final" || got.VersionCount != 2 {
		t.Fatalf("upsert did not apply: %+v", got)
	}

	if _, err := store.GetExam(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing exam err = %v, want ErrNotFound", err)
	}
}

func TestSQLStorePutExamDefaultsVersionCount(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "e1", Title: "Quiz", GradeID: "g7", CreatedBy: "t-1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.GetExam(ctx, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.VersionCount != 1 {
		t.Fatalf("version_count = %d, want 1", got.VersionCount)
	}
}

func TestSQLStoreQuestionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "e1", Title: "Quiz", GradeID: "g7", CreatedBy: "t-1"}); err != nil {
		t.Fatal(err)
	}

	q := Question{
		ID: "q1", ExamID: "e1", Type: TypeMatching, Points: 4, Text: "Match organelle to role.",
		MatchPairs: []MatchPair{{Left: "Mitochondria", Right: "ATP"}, {Left: "Nucleus", Right: "DNA"}},
	}
	if err := store.PutQuestion(ctx, q); err != nil {
		t.Fatalf("put question: %v", err)
	}

	qs, err := store.QuestionsByExam(ctx, "e1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("questions = %d, want 1", len(qs))
	}
	got := qs[0]
	if got.Type != TypeMatching || len(got.MatchPairs) != 2 || got.MatchPairs[1].Right != "DNA" {
		t.Fatalf("question document mangled: %+v", got)
	}

	// invalid documents never reach storage
	bad := Question{ID: "q2", ExamID: "e1", Type: TypeMCQ, Points: 1}
	if err := store.PutQuestion(ctx, bad); !errors.Is(err, ErrMalformedQuestion) {
		t.Fatalf("invalid question err = %v, want ErrMalformedQuestion", err)
	}
	// nor do questions for exams that do not exist
	orphan := Question{ID: "q3", ExamID: "ghost", Type: TypeShortAnswer, Points: 1,
		Text: "?", CorrectAnswer: "x"}
	if err := store.PutQuestion(ctx, orphan); !errors.Is(err, ErrNotFound) {
		t.Fatalf("orphan question err = %v, want ErrNotFound", err)
	}
}

func TestSQLStoreDeleteExamCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "e1", Title: "Quiz", GradeID: "g7", CreatedBy: "t-1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.PutQuestion(ctx, Question{ID: "q1", ExamID: "e1", Type: TypeShortAnswer,
		Points: 2, Text: "?", CorrectAnswer: "x"}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.InsertAttempt(ctx, Attempt{ID: "a1", ExamID: "e1", StudentName: "Asha",
		Grade: "g7", Version: 1, Score: 2}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteExam(ctx, "e1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetExam(ctx, "e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("exam still present: %v", err)
	}
	qs, err := store.QuestionsByExam(ctx, "e1")
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("questions survived exam deletion: %d left", len(qs))
	}
	// attempts reference the exam by value and must survive
	as, err := store.ListAttempts(ctx, AttemptListOpts{ExamID: "e1"})
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(as) != 1 {
		t.Fatalf("attempts = %d, want 1 after exam deletion", len(as))
	}

	if err := store.DeleteExam(ctx, "e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete err = %v, want ErrNotFound", err)
	}
}

func TestSQLStoreListExams(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seed := []Exam{
		{ID: "e1", Title: "Biology Midterm", GradeID: "g7", CreatedBy: "t-1", CreatedAt: 100},
		{ID: "e2", Title: "Chemistry Quiz", GradeID: "g7", CreatedBy: "t-1", CreatedAt: 200},
		{ID: "e3", Title: "Biology Final", GradeID: "g8", CreatedBy: "t-1", CreatedAt: 300},
	}
	for _, e := range seed {
		if err := store.PutExam(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.ListExams(ctx, ListOpts{GradeID: "g7"})
	if err != nil {
		t.Fatalf("list by grade: %v", err)
	}
	if len(got) != 2 || got[0].ID != "e2" || got[1].ID != "e1" {
		t.Fatalf("grade filter/order wrong: %+v", got)
	}

	got, err = store.ListExams(ctx, ListOpts{Q: "Biology"})
	if err != nil {
		t.Fatalf("list by title: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("title filter = %d exams, want 2", len(got))
	}

	got, err = store.ListExams(ctx, ListOpts{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e2" {
		t.Fatalf("paging wrong: %+v", got)
	}
}

func TestSQLStoreAttemptSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "e1", Title: "Quiz", GradeID: "g7", CreatedBy: "t-1"}); err != nil {
		t.Fatal(err)
	}
	for _, a := range []Attempt{
		{ID: "a1", ExamID: "e1", StudentName: "Asha", Grade: "g7", Version: 1, Score: 10},
		{ID: "a2", ExamID: "e1", StudentName: "Ben", Grade: "g7", Version: 2, Score: 4},
		{ID: "a3", ExamID: "other", StudentName: "Asha", Grade: "g7", Version: 1, Score: 100},
	} {
		if _, err := store.InsertAttempt(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := store.SummarizeAttempts(ctx, "e1")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Total != 2 || sum.Average != 7 || sum.Highest != 10 || sum.Lowest != 4 {
		t.Fatalf("summary = %+v", sum)
	}

	empty, err := store.SummarizeAttempts(ctx, "nothing")
	if err != nil {
		t.Fatalf("empty summarize: %v", err)
	}
	if empty.Total != 0 || empty.Average != 0 {
		t.Fatalf("empty summary = %+v", empty)
	}
}

func TestSQLSessionStore(t *testing.T) {
	sessions := session.NewSQLStore(openTestDB(t))
	ctx := context.Background()

	if _, err := sessions.Get(ctx, "sess-1"); !errors.Is(err, session.ErrNoActive) {
		t.Fatalf("empty get err = %v, want ErrNoActive", err)
	}
	if err := sessions.Put(ctx, session.Active{Subject: "sess-1", ExamID: "e1", Version: 2}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// restart overwrites in place
	if err := sessions.Put(ctx, session.Active{Subject: "sess-1", ExamID: "e2", Version: 1}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	act, err := sessions.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if act.ExamID != "e2" || act.Version != 1 || act.StartedAt == 0 {
		t.Fatalf("active = %+v", act)
	}
	if err := sessions.Clear(ctx, "sess-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := sessions.Get(ctx, "sess-1"); !errors.Is(err, session.ErrNoActive) {
		t.Fatalf("cleared get err = %v, want ErrNoActive", err)
	}
}
