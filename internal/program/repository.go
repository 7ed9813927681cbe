// Package program serves the read-only conference program: sessions, their
// presentations and speakers.
package program

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"conference/internal/database"
)

// ErrSessionNotFound is returned when no conference session has the given id
var ErrSessionNotFound = errors.New("session not found")

// Repository handles all database reads for the program
type Repository struct {
	db database.Service
}

// NewRepository creates a new program repository
func NewRepository(db database.Service) *Repository {
	return &Repository{db: db}
}

// ListSessions returns every session ordered by start time, earliest first
func (r *Repository) ListSessions(ctx context.Context) ([]Session, error) {
	query := `
		SELECT id, title, description, start_time, end_time
		FROM sessions
		ORDER BY start_time, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.StartTime, &s.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return sessions, nil
}

// GetSession retrieves a single session by ID
func (r *Repository) GetSession(ctx context.Context, id int64) (*Session, error) {
	query := `
		SELECT id, title, description, start_time, end_time
		FROM sessions
		WHERE id = ?
	`

	s := &Session{}
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.Title, &s.Description, &s.StartTime, &s.EndTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s, nil
}

// ListPresentations returns the presentations of a session with speaker names
func (r *Repository) ListPresentations(ctx context.Context, sessionID int64) ([]Presentation, error) {
	query := `
		SELECT p.id, p.session_id, p.speaker_id, p.title, p.abstract,
		       p.co_authors, p.affiliation, sp.name
		FROM presentations p
		LEFT JOIN speakers sp ON p.speaker_id = sp.id
		WHERE p.session_id = ?
		ORDER BY p.id
	`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list presentations: %w", err)
	}
	defer rows.Close()

	presentations := make([]Presentation, 0)
	for rows.Next() {
		var p Presentation
		err := rows.Scan(&p.ID, &p.SessionID, &p.SpeakerID, &p.Title, &p.Abstract,
			&p.CoAuthors, &p.Affiliation, &p.SpeakerName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan presentation: %w", err)
		}
		presentations = append(presentations, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate presentations: %w", err)
	}

	return presentations, nil
}

// GetSessionDetail loads a session together with its presentations
func (r *Repository) GetSessionDetail(ctx context.Context, id int64) (*SessionDetail, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	presentations, err := r.ListPresentations(ctx, id)
	if err != nil {
		return nil, err
	}

	return &SessionDetail{Session: s, Presentations: presentations}, nil
}
