// Package session tracks the "current exam" marker per student session.
// Starting an exam overwrites any prior marker; submitting clears it. An
// abandoned exam is therefore never scored.
package session

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// ErrNoActive: the session has no exam in progress.
var ErrNoActive = errors.New("no active exam for session")

// Active is one in-progress exam for one session subject.
type Active struct {
	Subject   string `json:"subject"`
	ExamID    string `json:"exam_id"`
	Version   int    `json:"version"`
	StartedAt int64  `json:"started_at"`
}

type Store interface {
	Put(ctx context.Context, a Active) error            // overwrite, never stack
	Get(ctx context.Context, subject string) (Active, error)
	Clear(ctx context.Context, subject string) error
}

type SQLStore struct{ db *sql.DB }

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) Put(ctx context.Context, a Active) error {
	if a.StartedAt == 0 {
		a.StartedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_exams (subject, exam_id, version, started_at)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (subject) DO UPDATE SET exam_id=EXCLUDED.exam_id, version=EXCLUDED.version, started_at=EXCLUDED.started_at`,
		a.Subject, a.ExamID, a.Version, a.StartedAt)
	return err
}

func (s *SQLStore) Get(ctx context.Context, subject string) (Active, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT subject, exam_id, version, started_at FROM active_exams WHERE subject=$1`, subject)
	var a Active
	if err := row.Scan(&a.Subject, &a.ExamID, &a.Version, &a.StartedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Active{}, ErrNoActive
		}
		return Active{}, err
	}
	return a, nil
}

func (s *SQLStore) Clear(ctx context.Context, subject string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM active_exams WHERE subject=$1`, subject)
	return err
}

// MemStore keeps markers in memory, for tests and single-node dev.
type MemStore struct {
	mu     sync.RWMutex
	active map[string]Active
}

func NewMemStore() *MemStore {
	return &MemStore{active: map[string]Active{}}
}

func (m *MemStore) Put(_ context.Context, a Active) error {
	if a.StartedAt == 0 {
		a.StartedAt = time.Now().Unix()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[a.Subject] = a
	return nil
}

func (m *MemStore) Get(_ context.Context, subject string) (Active, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.active[subject]
	if !ok {
		return Active{}, ErrNoActive
	}
	return a, nil
}

func (m *MemStore) Clear(_ context.Context, subject string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, subject)
	return nil
}
