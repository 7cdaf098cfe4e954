package exam

import "fmt"

// Question types, closed set.
const (
	TypeMCQ         = "mcq"
	TypeTrueFalse   = "true_false"
	TypeShortAnswer = "short_answer"
	TypeFillBlank   = "fill_blank"
	TypeMatching    = "matching"
	TypeImage       = "image"
)

type Option struct {
	Label string `json:"label"` // "A".."D"
	Text  string `json:"text"`
}

type MatchPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question carries only the answer data its Type declares; every other
// answer field stays zero. Validate enforces that at write time.
type Question struct {
	ID     string `json:"id"`
	ExamID string `json:"exam_id"`
	Text   string `json:"text"`
	Type   string `json:"type"`
	Points int    `json:"points"`

	Options       []Option    `json:"options,omitempty"`        // mcq
	CorrectAnswer string      `json:"correct_answer,omitempty"` // mcq, true_false, short_answer, image
	FillAnswers   []string    `json:"fill_answers,omitempty"`   // fill_blank
	MatchPairs    []MatchPair `json:"match_pairs,omitempty"`    // matching
	ImageKey      string      `json:"image_key,omitempty"`      // image, blob-store key (not scored)

	// MatchChoices is set only on the student-facing delivery view: the
	// right-hand values of a matching question in shuffled order.
	MatchChoices []string `json:"match_choices,omitempty"`
}

func (q Question) Validate() error {
	if q.Points <= 0 {
		return fmt.Errorf("%w: points must be positive", ErrMalformedQuestion)
	}
	if len(q.MatchChoices) > 0 {
		return fmt.Errorf("%w: match_choices is delivery-only", ErrMalformedQuestion)
	}
	switch q.Type {
	case TypeMCQ:
		populated := 0
		for _, o := range q.Options {
			if o.Text != "" {
				populated++
			}
		}
		if populated < 2 {
			return fmt.Errorf("%w: mcq needs at least two options", ErrMalformedQuestion)
		}
		if q.CorrectAnswer == "" {
			return fmt.Errorf("%w: mcq missing correct option", ErrMalformedQuestion)
		}
		if len(q.FillAnswers) > 0 || len(q.MatchPairs) > 0 {
			return fmt.Errorf("%w: mcq carries foreign answer data", ErrMalformedQuestion)
		}
	case TypeTrueFalse, TypeShortAnswer:
		if q.CorrectAnswer == "" {
			return fmt.Errorf("%w: %s missing correct answer", ErrMalformedQuestion, q.Type)
		}
		if len(q.Options) > 0 || len(q.FillAnswers) > 0 || len(q.MatchPairs) > 0 {
			return fmt.Errorf("%w: %s carries foreign answer data", ErrMalformedQuestion, q.Type)
		}
	case TypeImage:
		if q.CorrectAnswer == "" {
			return fmt.Errorf("%w: image question missing correct answer", ErrMalformedQuestion)
		}
		if len(q.Options) > 0 || len(q.FillAnswers) > 0 || len(q.MatchPairs) > 0 {
			return fmt.Errorf("%w: image question carries foreign answer data", ErrMalformedQuestion)
		}
	case TypeFillBlank:
		if len(q.FillAnswers) == 0 {
			return fmt.Errorf("%w: fill_blank missing acceptable answers", ErrMalformedQuestion)
		}
		if q.CorrectAnswer != "" || len(q.Options) > 0 || len(q.MatchPairs) > 0 {
			return fmt.Errorf("%w: fill_blank carries foreign answer data", ErrMalformedQuestion)
		}
	case TypeMatching:
		if len(q.MatchPairs) == 0 {
			return fmt.Errorf("%w: matching missing pairs", ErrMalformedQuestion)
		}
		for _, p := range q.MatchPairs {
			if p.Left == "" || p.Right == "" {
				return fmt.Errorf("%w: matching pair with empty side", ErrMalformedQuestion)
			}
		}
		if q.CorrectAnswer != "" || len(q.Options) > 0 || len(q.FillAnswers) > 0 {
			return fmt.Errorf("%w: matching carries foreign answer data", ErrMalformedQuestion)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedQuestion, q.Type)
	}
	return nil
}

type Exam struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	GradeID      string  `json:"grade_id"`
	DurationMin  int     `json:"duration_min"`
	Negative     float64 `json:"negative"`      // deducted per wrong mcq/true_false/image answer
	VersionCount int     `json:"version_count"` // >= 1
	CreatedBy    string  `json:"created_by"`
	CreatedAt    int64   `json:"created_at,omitempty"`
}

// Attempt is the immutable record of one submission. It references the exam
// and student by value so history survives exam edits or deletion.
type Attempt struct {
	ID          string  `json:"id"`
	ExamID      string  `json:"exam_id"`
	StudentName string  `json:"student_name"`
	Grade       string  `json:"grade"`
	Version     int     `json:"version"`
	Score       float64 `json:"score"`
	Violations  int     `json:"violations"`
	SubmittedAt int64   `json:"submitted_at"`
}
