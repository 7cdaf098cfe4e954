package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore persists exams, questions and attempts. Question answer data is
// stored as a JSON document per row; the exams table keeps only the scalar
// exam settings.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
	if e.VersionCount < 1 {
		e.VersionCount = 1
	}
	if e.Negative < 0 {
		return fmt.Errorf("negative marking must be >= 0")
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exams (id,title,grade_id,duration_min,negative,version_count,created_by,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, grade_id=EXCLUDED.grade_id,
		   duration_min=EXCLUDED.duration_min, negative=EXCLUDED.negative, version_count=EXCLUDED.version_count`,
		e.ID, e.Title, e.GradeID, e.DurationMin, e.Negative, e.VersionCount, e.CreatedBy, e.CreatedAt)
	return err
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,grade_id,duration_min,negative,version_count,created_by,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	err := row.Scan(&e.ID, &e.Title, &e.GradeID, &e.DurationMin, &e.Negative, &e.VersionCount, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, ErrNotFound
		}
		return Exam{}, err
	}
	return e, nil
}

// DeleteExam removes the exam and, via FK cascade, its questions. Attempts
// reference the exam by value and are kept.
func (s *SQLStore) DeleteExam(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListExams(ctx context.Context, opts ListOpts) ([]Exam, error) {
	q := `SELECT id,title,grade_id,duration_min,negative,version_count,created_by,created_at FROM exams`
	var (
		where []string
		args  []any
	)
	if opts.GradeID != "" {
		args = append(args, opts.GradeID)
		where = append(where, fmt.Sprintf("grade_id=$%d", len(args)))
	}
	if opts.Q != "" {
		args = append(args, "%"+opts.Q+"%")
		where = append(where, fmt.Sprintf("title LIKE $%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			q += " WHERE " + w
		} else {
			q += " AND " + w
		}
	}
	q += " ORDER BY created_at DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exam
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.GradeID, &e.DurationMin, &e.Negative, &e.VersionCount, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLStore) PutQuestion(ctx context.Context, q Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	// reject orphan questions up front
	if _, err := s.GetExam(ctx, q.ExamID); err != nil {
		return err
	}
	doc, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (id,exam_id,question_json,created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET question_json=EXCLUDED.question_json`,
		q.ID, q.ExamID, string(doc), time.Now().Unix())
	return err
}

func (s *SQLStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) QuestionsByExam(ctx context.Context, examID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_json FROM questions WHERE exam_id=$1 ORDER BY created_at`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var q Question
		if err := json.Unmarshal([]byte(doc), &q); err != nil {
			return nil, fmt.Errorf("decode question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertAttempt(ctx context.Context, a Attempt) (string, error) {
	if a.SubmittedAt == 0 {
		a.SubmittedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (id,exam_id,student_name,grade,version,score,violations,submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.ExamID, a.StudentName, a.Grade, a.Version, a.Score, a.Violations, a.SubmittedAt)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	q := `SELECT id,exam_id,student_name,grade,version,score,violations,submitted_at FROM attempts`
	var (
		where []string
		args  []any
	)
	if opts.ExamID != "" {
		args = append(args, opts.ExamID)
		where = append(where, fmt.Sprintf("exam_id=$%d", len(args)))
	}
	if opts.StudentName != "" {
		args = append(args, opts.StudentName)
		where = append(where, fmt.Sprintf("student_name=$%d", len(args)))
	}
	if opts.Grade != "" {
		args = append(args, opts.Grade)
		where = append(where, fmt.Sprintf("grade=$%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			q += " WHERE " + w
		} else {
			q += " AND " + w
		}
	}
	q += " ORDER BY submitted_at DESC"
	limit := opts.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.ExamID, &a.StudentName, &a.Grade, &a.Version, &a.Score, &a.Violations, &a.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) SummarizeAttempts(ctx context.Context, examID string) (AttemptSummary, error) {
	q := `SELECT COUNT(*), COALESCE(AVG(score),0), COALESCE(MAX(score),0), COALESCE(MIN(score),0) FROM attempts`
	var args []any
	if examID != "" {
		q += " WHERE exam_id=$1"
		args = append(args, examID)
	}
	var sum AttemptSummary
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&sum.Total, &sum.Average, &sum.Highest, &sum.Lowest)
	if err != nil {
		return AttemptSummary{}, err
	}
	return sum, nil
}
