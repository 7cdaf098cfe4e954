package exam

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/smart-exam/smartexam/internal/grading"
	"github.com/smart-exam/smartexam/internal/session"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	exams     map[string]Exam
	questions map[string][]Question
	attempts  []Attempt
}

func newFakeStore() *fakeStore {
	return &fakeStore{exams: map[string]Exam{}, questions: map[string][]Question{}}
}

func (f *fakeStore) PutExam(_ context.Context, e Exam) error {
	f.exams[e.ID] = e
	return nil
}

func (f *fakeStore) GetExam(_ context.Context, id string) (Exam, error) {
	e, ok := f.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) DeleteExam(_ context.Context, id string) error {
	if _, ok := f.exams[id]; !ok {
		return ErrNotFound
	}
	delete(f.exams, id)
	delete(f.questions, id)
	return nil
}

func (f *fakeStore) ListExams(_ context.Context, _ ListOpts) ([]Exam, error) {
	out := make([]Exam, 0, len(f.exams))
	for _, e := range f.exams {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeStore) PutQuestion(_ context.Context, q Question) error {
	f.questions[q.ExamID] = append(f.questions[q.ExamID], q)
	return nil
}

func (f *fakeStore) DeleteQuestion(_ context.Context, _ string) error { return nil }

func (f *fakeStore) QuestionsByExam(_ context.Context, examID string) ([]Question, error) {
	return f.questions[examID], nil
}

func (f *fakeStore) InsertAttempt(_ context.Context, a Attempt) (string, error) {
	f.attempts = append(f.attempts, a)
	return a.ID, nil
}

func (f *fakeStore) ListAttempts(_ context.Context, _ AttemptListOpts) ([]Attempt, error) {
	return f.attempts, nil
}

func (f *fakeStore) SummarizeAttempts(_ context.Context, _ string) (AttemptSummary, error) {
	return AttemptSummary{Total: len(f.attempts)}, nil
}

func newTestService(t *testing.T) (*Service, *fakeStore, session.Store) {
	t.Helper()
	store := newFakeStore()
	sessions := session.NewMemStore()
	return NewService(store, sessions, grading.NewDefaultGrader(), nil), store, sessions
}

func seedBiologyExam(t *testing.T, store *fakeStore) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "bio-1", Title: "Biology Midterm", GradeID: "g7", Negative: 0.5, VersionCount: 4}); err != nil {
		t.Fatal(err)
	}
	qs := []Question{
		{ID: "q1", ExamID: "bio-1", Type: TypeMCQ, Points: 2, Text: "Powerhouse of the cell?",
			Options:       []Option{{Label: "A", Text: "Nucleus"}, {Label: "B", Text: "Mitochondria"}},
			CorrectAnswer: "B"},
		{ID: "q2", ExamID: "bio-1", Type: TypeShortAnswer, Points: 3, Text: "Water through a membrane?", CorrectAnswer: "Osmosis"},
		{ID: "q3", ExamID: "bio-1", Type: TypeFillBlank, Points: 2, Text: "Plants make food by ___.", FillAnswers: []string{"photosynthesis"}},
		{ID: "q4", ExamID: "bio-1", Type: TypeMatching, Points: 4, Text: "Match organelle to role.",
			MatchPairs: []MatchPair{{Left: "Mitochondria", Right: "ATP"}, {Left: "Nucleus", Right: "DNA"}}},
	}
	for _, q := range qs {
		if err := store.PutQuestion(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAssembleShufflesWithoutLoss(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedBiologyExam(t, store)
	ctx := context.Background()

	got, err := svc.Assemble(ctx, "bio-1", "sess-1")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(got.Questions) != 4 {
		t.Fatalf("question count = %d, want 4", len(got.Questions))
	}
	ids := make([]string, len(got.Questions))
	for i, q := range got.Questions {
		ids[i] = q.ID
	}
	sort.Strings(ids)
	want := []string{"q1", "q2", "q3", "q4"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("assembled ids = %v, want permutation of %v", ids, want)
		}
	}
	if got.Version < 1 || got.Version > 4 {
		t.Fatalf("version = %d, want 1..4", got.Version)
	}
}

func TestAssembleStripsAnswerKeys(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedBiologyExam(t, store)

	got, err := svc.Assemble(context.Background(), "bio-1", "sess-1")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	for _, q := range got.Questions {
		if q.CorrectAnswer != "" {
			t.Errorf("question %s leaks correct_answer", q.ID)
		}
		if len(q.FillAnswers) > 0 {
			t.Errorf("question %s leaks fill_answers", q.ID)
		}
		for _, p := range q.MatchPairs {
			if p.Right != "" {
				t.Errorf("question %s leaks pair right side", q.ID)
			}
		}
		if q.Type == TypeMatching {
			if len(q.MatchChoices) != 2 {
				t.Errorf("question %s: match_choices len = %d, want 2", q.ID, len(q.MatchChoices))
			}
			seen := map[string]bool{}
			for _, c := range q.MatchChoices {
				seen[c] = true
			}
			if !seen["ATP"] || !seen["DNA"] {
				t.Errorf("question %s: match_choices = %v, want ATP and DNA", q.ID, q.MatchChoices)
			}
		}
	}

	// the stored copy must keep its keys
	stored, _ := store.QuestionsByExam(context.Background(), "bio-1")
	for _, q := range stored {
		if q.Type == TypeMatching && q.MatchPairs[0].Right == "" {
			t.Fatal("sanitizing the delivery view mutated stored pairs")
		}
	}
}

func TestAssembleReplacesActiveExam(t *testing.T) {
	svc, store, sessions := newTestService(t)
	seedBiologyExam(t, store)
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "chem-1", Title: "Chemistry Quiz", GradeID: "g7", VersionCount: 1}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Assemble(ctx, "bio-1", "sess-1"); err != nil {
		t.Fatalf("first assemble: %v", err)
	}
	if _, err := svc.Assemble(ctx, "chem-1", "sess-1"); err != nil {
		t.Fatalf("second assemble: %v", err)
	}
	act, err := sessions.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if act.ExamID != "chem-1" {
		t.Fatalf("active exam = %s, want chem-1 (restart must overwrite)", act.ExamID)
	}
}

func TestAssembleUnknownExam(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Assemble(context.Background(), "nope", "sess-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestScoreMixedAnswers(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedBiologyExam(t, store)
	ctx := context.Background()
	if _, err := svc.Assemble(ctx, "bio-1", "sess-1"); err != nil {
		t.Fatal(err)
	}

	// q1 right (+2), q2 wrong (no penalty), q3 right case/space-insensitive
	// (+2), q4 one pair wrong (all-or-nothing, 0)
	answers := map[string]string{
		"q1":   "b",
		"q2":   "diffusion",
		"q3":   " PHOTOSYNTHESIS ",
		"q4_1": "ATP",
		"q4_2": "RNA",
	}
	a, err := svc.Score(ctx, "sess-1", Student{Name: "Asha", Grade: "g7"}, answers, 1)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if a.Score != 4 {
		t.Fatalf("score = %v, want 4", a.Score)
	}
	if a.Violations != 1 {
		t.Fatalf("violations = %v, want 1", a.Violations)
	}
	if a.ExamID != "bio-1" || a.StudentName != "Asha" || a.Grade != "g7" {
		t.Fatalf("attempt identity wrong: %+v", a)
	}
	if a.Version < 1 || a.Version > 4 {
		t.Fatalf("version = %d, want 1..4", a.Version)
	}
	if len(store.attempts) != 1 {
		t.Fatalf("attempts stored = %d, want 1", len(store.attempts))
	}
}

func TestScoreOmittedQuestionsSkipPenalty(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedBiologyExam(t, store)
	ctx := context.Background()
	if _, err := svc.Assemble(ctx, "bio-1", "sess-1"); err != nil {
		t.Fatal(err)
	}

	// only q2 answered, correctly; everything else omitted, including every
	// matching sub-answer
	a, err := svc.Score(ctx, "sess-1", Student{Name: "Asha", Grade: "g7"}, map[string]string{"q2": "osmosis"}, 0)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if a.Score != 3 {
		t.Fatalf("score = %v, want 3 (omissions must not deduct)", a.Score)
	}
}

func TestScoreClampsNegativeTotal(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "hard-1", Title: "All or nothing", GradeID: "g7", Negative: 5, VersionCount: 1}); err != nil {
		t.Fatal(err)
	}
	for _, q := range []Question{
		{ID: "h1", ExamID: "hard-1", Type: TypeMCQ, Points: 1,
			Options: []Option{{Label: "A", Text: "x"}, {Label: "B", Text: "y"}}, CorrectAnswer: "A"},
		{ID: "h2", ExamID: "hard-1", Type: TypeTrueFalse, Points: 1, CorrectAnswer: "True"},
	} {
		if err := store.PutQuestion(ctx, q); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.Assemble(ctx, "hard-1", "sess-1"); err != nil {
		t.Fatal(err)
	}

	a, err := svc.Score(ctx, "sess-1", Student{Name: "Asha", Grade: "g7"},
		map[string]string{"h1": "B", "h2": "False"}, 0)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if a.Score != 0 {
		t.Fatalf("score = %v, want 0 (clamped)", a.Score)
	}
}

func TestScoreWithoutActiveExam(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedBiologyExam(t, store)
	ctx := context.Background()

	if _, err := svc.Score(ctx, "sess-1", Student{Name: "Asha"}, nil, 0); !errors.Is(err, ErrNoActiveExam) {
		t.Fatalf("err = %v, want ErrNoActiveExam", err)
	}

	// a submission consumes the marker, so a second submit fails the same way
	if _, err := svc.Assemble(ctx, "bio-1", "sess-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Score(ctx, "sess-1", Student{Name: "Asha", Grade: "g7"}, map[string]string{"q1": "B"}, 0); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Score(ctx, "sess-1", Student{Name: "Asha", Grade: "g7"}, map[string]string{"q1": "B"}, 0); !errors.Is(err, ErrNoActiveExam) {
		t.Fatalf("second submit err = %v, want ErrNoActiveExam", err)
	}
}

func TestScoreMalformedQuestion(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	if err := store.PutExam(ctx, Exam{ID: "bad-1", Title: "Broken", GradeID: "g7", VersionCount: 1}); err != nil {
		t.Fatal(err)
	}
	// bypasses Validate on purpose: an mcq with no key in storage must fail
	// grading loudly, not crash or silently skip
	store.questions["bad-1"] = []Question{{ID: "b1", ExamID: "bad-1", Type: TypeMCQ, Points: 1}}
	if _, err := svc.Assemble(ctx, "bad-1", "sess-1"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Score(ctx, "sess-1", Student{Name: "Asha", Grade: "g7"}, map[string]string{"b1": "A"}, 0)
	if !errors.Is(err, ErrMalformedQuestion) {
		t.Fatalf("err = %v, want ErrMalformedQuestion", err)
	}
}

func TestScoreClampsNegativeViolations(t *testing.T) {
	svc, store, _ := newTestService(t)
	seedBiologyExam(t, store)
	ctx := context.Background()
	if _, err := svc.Assemble(ctx, "bio-1", "sess-1"); err != nil {
		t.Fatal(err)
	}
	a, err := svc.Score(ctx, "sess-1", Student{Name: "Asha", Grade: "g7"}, map[string]string{"q1": "B"}, -3)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if a.Violations != 0 {
		t.Fatalf("violations = %d, want 0", a.Violations)
	}
}
