package exam

import "errors"

var (
	// ErrNotFound: unknown exam or question id.
	ErrNotFound = errors.New("not found")

	// ErrNoActiveExam: submit without a prior start for this session.
	ErrNoActiveExam = errors.New("no active exam")

	// ErrMalformedQuestion: stored answer-key data inconsistent with the
	// question's declared type.
	ErrMalformedQuestion = errors.New("malformed question")
)
