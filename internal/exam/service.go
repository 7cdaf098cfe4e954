package exam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/smart-exam/smartexam/internal/grading"
	"github.com/smart-exam/smartexam/internal/session"
	syncx "github.com/smart-exam/smartexam/internal/sync"
)

// Student is the identity an attempt is recorded against, carried by value
// from the session token.
type Student struct {
	Name  string
	Grade string
}

type Service struct {
	store    Store
	sessions session.Store
	grader   grading.Grader
	events   *syncx.EventRepo // optional audit trail
}

func NewService(store Store, sessions session.Store, grader grading.Grader, events *syncx.EventRepo) *Service {
	return &Service{store: store, sessions: sessions, grader: grader, events: events}
}

// Score grades the subject's current exam against the submitted answers and
// records an immutable attempt. Answers are keyed by question id; matching
// sub-answers use "<questionID>_<1-based pair index>". The final score is
// clamped to zero once, after every question has been evaluated.
func (s *Service) Score(ctx context.Context, subject string, student Student, answers map[string]string, violations int) (Attempt, error) {
	act, err := s.sessions.Get(ctx, subject)
	if err != nil {
		if errors.Is(err, session.ErrNoActive) {
			return Attempt{}, ErrNoActiveExam
		}
		return Attempt{}, err
	}

	e, err := s.store.GetExam(ctx, act.ExamID)
	if err != nil {
		return Attempt{}, err
	}
	qs, err := s.store.QuestionsByExam(ctx, act.ExamID)
	if err != nil {
		return Attempt{}, err
	}

	total := 0.0
	for _, q := range qs {
		resp, answered := responseFor(q, answers)
		if !answered {
			continue
		}
		res, err := s.grader.Grade(ctx, gradingQ(e, q), resp)
		if err != nil {
			if errors.Is(err, grading.ErrMalformedKey) {
				return Attempt{}, fmt.Errorf("%w: question %s: %v", ErrMalformedQuestion, q.ID, err)
			}
			return Attempt{}, err
		}
		total += res.Delta
	}
	if total < 0 {
		total = 0
	}
	if violations < 0 {
		violations = 0
	}

	a := Attempt{
		ID:          uuid.NewString(),
		ExamID:      act.ExamID,
		StudentName: student.Name,
		Grade:       student.Grade,
		Version:     act.Version,
		Score:       total,
		Violations:  violations,
		SubmittedAt: time.Now().Unix(),
	}
	if _, err := s.store.InsertAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}

	if s.events != nil {
		if data, err := json.Marshal(a); err == nil {
			if err := s.events.Append(ctx, syncx.Event{Type: "AttemptSubmitted", Key: a.ID, DataJSON: string(data)}); err != nil {
				log.Printf("event log append failed for attempt %s: %v", a.ID, err)
			}
		}
	}

	if err := s.sessions.Clear(ctx, subject); err != nil {
		log.Printf("clear active exam for %s: %v", subject, err)
	}
	return a, nil
}

// gradingQ projects a stored question and its exam's penalty into the view
// the grading engine works on.
func gradingQ(e Exam, q Question) grading.Q {
	gq := grading.Q{
		Type:     q.Type,
		Points:   float64(q.Points),
		Negative: e.Negative,
	}
	switch q.Type {
	case TypeFillBlank:
		gq.AnswerKey = q.FillAnswers
	case TypeMatching:
		gq.Pairs = make([]grading.Pair, len(q.MatchPairs))
		for i, p := range q.MatchPairs {
			gq.Pairs[i] = grading.Pair{Left: p.Left, Right: p.Right}
		}
	default:
		if q.CorrectAnswer != "" {
			gq.AnswerKey = []string{q.CorrectAnswer}
		}
	}
	return gq
}

// responseFor collects the submitted value (and matching sub-answers) for one
// question. A question with no non-empty submission is treated as omitted.
func responseFor(q Question, answers map[string]string) (grading.Response, bool) {
	resp := grading.Response{Value: answers[q.ID]}
	answered := resp.Value != ""
	if q.Type == TypeMatching {
		resp.Parts = make(map[int]string, len(q.MatchPairs))
		for i := 1; i <= len(q.MatchPairs); i++ {
			v, ok := answers[q.ID+"_"+strconv.Itoa(i)]
			if ok && v != "" {
				answered = true
			}
			resp.Parts[i] = v
		}
	}
	return resp, answered
}
