package exam

import "context"

type ListOpts struct {
	GradeID string // filter by grade level; students are forced to their own
	Q       string // optional title substring
	Limit   int
	Offset  int
}

type AttemptListOpts struct {
	ExamID      string
	StudentName string
	Grade       string
	Limit       int
	Offset      int
}

// AttemptSummary backs the analytics dashboard.
type AttemptSummary struct {
	Total   int     `json:"total"`
	Average float64 `json:"average"`
	Highest float64 `json:"highest"`
	Lowest  float64 `json:"lowest"`
}

type Store interface {
	PutExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	DeleteExam(ctx context.Context, id string) error // cascades to questions, keeps attempts
	ListExams(ctx context.Context, opts ListOpts) ([]Exam, error)

	PutQuestion(ctx context.Context, q Question) error
	DeleteQuestion(ctx context.Context, id string) error
	QuestionsByExam(ctx context.Context, examID string) ([]Question, error)

	InsertAttempt(ctx context.Context, a Attempt) (string, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
	SummarizeAttempts(ctx context.Context, examID string) (AttemptSummary, error)
}
