package exam

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/smart-exam/smartexam/internal/session"
)

// Assembled is one randomized delivery of an exam: a fresh permutation of its
// questions with answer keys stripped, plus the version tag drawn for this
// attempt. Version is recorded on the attempt but does not select alternate
// answer keys.
type Assembled struct {
	Exam      Exam       `json:"exam"`
	Questions []Question `json:"questions"`
	Version   int        `json:"version"`
}

// Assemble loads an exam, shuffles its questions for presentation and marks
// it as the subject's current exam, replacing any exam already in progress.
func (s *Service) Assemble(ctx context.Context, examID, subject string) (Assembled, error) {
	e, err := s.store.GetExam(ctx, examID)
	if err != nil {
		return Assembled{}, err
	}
	qs, err := s.store.QuestionsByExam(ctx, examID)
	if err != nil {
		return Assembled{}, err
	}

	shuffled := make([]Question, len(qs))
	copy(shuffled, qs)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	versions := e.VersionCount
	if versions < 1 {
		versions = 1
	}
	version := 1 + rand.Intn(versions)

	if err := s.sessions.Put(ctx, session.Active{
		Subject: subject,
		ExamID:  examID,
		Version: version,
	}); err != nil {
		return Assembled{}, fmt.Errorf("record active exam: %w", err)
	}

	for i := range shuffled {
		shuffled[i] = sanitize(shuffled[i])
	}
	return Assembled{Exam: e, Questions: shuffled, Version: version}, nil
}

// sanitize strips answer keys from a question before it is served to a
// student. Matching questions keep their left-hand prompts and get the
// right-hand values back as a shuffled choice list.
func sanitize(q Question) Question {
	q.CorrectAnswer = ""
	q.FillAnswers = nil
	if len(q.MatchPairs) > 0 {
		choices := make([]string, len(q.MatchPairs))
		left := make([]MatchPair, len(q.MatchPairs))
		for i, p := range q.MatchPairs {
			choices[i] = p.Right
			left[i] = MatchPair{Left: p.Left}
		}
		rand.Shuffle(len(choices), func(i, j int) {
			choices[i], choices[j] = choices[j], choices[i]
		})
		q.MatchChoices = choices
		q.MatchPairs = left
	}
	return q
}
