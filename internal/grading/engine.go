package grading

import (
	"context"
	"errors"
	"fmt"
)

// ErrMalformedKey reports answer-key data that cannot drive the declared
// question type (e.g. a fill-in-blank with no acceptable answers).
var ErrMalformedKey = errors.New("malformed answer key")

// Q is the minimal view of a question needed for grading.
type Q struct {
	Type      string
	Points    float64
	Negative  float64  // exam-level deduction for wrong answers on penalized types
	AnswerKey []string // single entry for choice/short/image, list for fill_blank
	Pairs     []Pair   // matching
}

type Pair struct {
	Left  string
	Right string
}

// Response is one submitted answer. Parts holds matching sub-answers keyed
// by 1-based pair index; a missing index reads as the empty string.
type Response struct {
	Value string
	Parts map[int]string
}

// Result is the signed contribution of a single question.
type Result struct {
	Delta   float64
	Correct bool
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q Q, resp Response) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, resp Response) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, resp Response) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown type %q", ErrMalformedKey, q.Type)
	}
	return s.Grade(ctx, q, resp)
}

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader() Grader {
	return &defaultGrader{
		strategies: map[string]Strategy{
			"mcq":          choiceStrategy{},
			"true_false":   choiceStrategy{},
			"image":        choiceStrategy{},
			"short_answer": shortAnswerStrategy{},
			"fill_blank":   fillBlankStrategy{},
			"matching":     matchingStrategy{},
		},
	}
}

// choiceStrategy covers mcq, true_false and image questions: full points on a
// match, the exam's negative deduction otherwise.
type choiceStrategy struct{}

func (choiceStrategy) Grade(_ context.Context, q Q, resp Response) (Result, error) {
	key, err := singleKey(q)
	if err != nil {
		return Result{}, err
	}
	if equalAnswer(resp.Value, key) {
		return Result{Delta: q.Points, Correct: true}, nil
	}
	return Result{Delta: -q.Negative}, nil
}

type shortAnswerStrategy struct{}

func (shortAnswerStrategy) Grade(_ context.Context, q Q, resp Response) (Result, error) {
	key, err := singleKey(q)
	if err != nil {
		return Result{}, err
	}
	if equalAnswer(resp.Value, key) {
		return Result{Delta: q.Points, Correct: true}, nil
	}
	return Result{}, nil
}

type fillBlankStrategy struct{}

func (fillBlankStrategy) Grade(_ context.Context, q Q, resp Response) (Result, error) {
	if len(q.AnswerKey) == 0 {
		return Result{}, fmt.Errorf("%w: fill_blank without acceptable answers", ErrMalformedKey)
	}
	for _, k := range q.AnswerKey {
		if equalAnswer(resp.Value, k) {
			return Result{Delta: q.Points, Correct: true}, nil
		}
	}
	return Result{}, nil
}

// matchingStrategy is all-or-nothing: every pair's right-hand side must match
// the sub-answer at its 1-based index.
type matchingStrategy struct{}

func (matchingStrategy) Grade(_ context.Context, q Q, resp Response) (Result, error) {
	if len(q.Pairs) == 0 {
		return Result{}, fmt.Errorf("%w: matching without pairs", ErrMalformedKey)
	}
	for i, p := range q.Pairs {
		if !equalAnswer(resp.Parts[i+1], p.Right) {
			return Result{}, nil
		}
	}
	return Result{Delta: q.Points, Correct: true}, nil
}

func singleKey(q Q) (string, error) {
	if len(q.AnswerKey) == 0 || q.AnswerKey[0] == "" {
		return "", fmt.Errorf("%w: %s without correct answer", ErrMalformedKey, q.Type)
	}
	return q.AnswerKey[0], nil
}
