// Package repo is the query layer over the session log database.
package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skirmish-engine/netplay/internal/db"
	"github.com/skirmish-engine/netplay/internal/models"
)

var ErrNotFound = fmt.Errorf("not found: %w", sql.ErrNoRows)

type SessionsRepo struct {
	db *sql.DB
}

func New(sqldb *sql.DB) *SessionsRepo {
	return &SessionsRepo{db: sqldb}
}

// CreateSession records the start of a hosting or joining run.
func (r *SessionsRepo) CreateSession(ctx context.Context, name, role string, port int) (*models.Session, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (created_at, name, role, port) VALUES (?, ?, ?, ?)`,
		db.Time(now), name, role, port)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.Session{
		ID:        id,
		CreatedAt: now,
		Name:      name,
		Role:      role,
		Port:      port,
	}, nil
}

// EndSession stamps the session's end time.
func (r *SessionsRepo) EndSession(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`, db.Time(time.Now()), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddEvent appends one event row to a session.
func (r *SessionsRepo) AddEvent(ctx context.Context, sessionID int64, kind string, peerIndex, channel, size int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_events (session_id, created_at, kind, peer_index, channel, size)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, db.Time(time.Now()), kind, peerIndex, channel, size)
	return err
}

// GetSession fetches a session by id.
func (r *SessionsRepo) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, ended_at, name, role, port FROM sessions WHERE id = ?`, id)

	var (
		s       models.Session
		created db.Time
		ended   db.Time
	)
	if err := row.Scan(&s.ID, &created, &ended, &s.Name, &s.Role, &s.Port); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	s.CreatedAt = time.Time(created)
	if t := time.Time(ended); !t.IsZero() {
		s.EndedAt = &t
	}
	return &s, nil
}

// ListEvents returns a session's events in insertion order.
func (r *SessionsRepo) ListEvents(ctx context.Context, sessionID int64) ([]*models.SessionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, kind, peer_index, channel, size
		 FROM session_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.SessionEvent
	for rows.Next() {
		var (
			ev      models.SessionEvent
			created db.Time
		)
		if err := rows.Scan(&ev.ID, &created, &ev.Kind, &ev.PeerIndex, &ev.Channel, &ev.Size); err != nil {
			return nil, err
		}
		ev.CreatedAt = time.Time(created)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// CountEvents returns the number of events recorded for a session.
func (r *SessionsRepo) CountEvents(ctx context.Context, sessionID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_events WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
