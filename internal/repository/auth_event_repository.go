package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthEvent is the persisted record of an auth lifecycle event.
type AuthEvent struct {
	ID        string
	Type      string
	Subject   string
	SessionID string
	Reason    string
	CreatedAt time.Time
}

// AuthEventRepository defines persistence access for the auth audit trail.
type AuthEventRepository interface {
	Insert(ctx context.Context, event *AuthEvent) error
	ListBySubject(ctx context.Context, subject string, limit int) ([]AuthEvent, error)
}

type authEventRepository struct {
	pool *pgxpool.Pool
}

// NewAuthEventRepository returns a Postgres-backed implementation.
func NewAuthEventRepository(pool *pgxpool.Pool) AuthEventRepository {
	return &authEventRepository{pool: pool}
}

func (r *authEventRepository) Insert(ctx context.Context, event *AuthEvent) error {
	const query = `
        INSERT INTO auth_events (id, event_type, subject, session_id, reason)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		event.ID,
		event.Type,
		event.Subject,
		event.SessionID,
		event.Reason,
	).Scan(&event.CreatedAt)
}

func (r *authEventRepository) ListBySubject(ctx context.Context, subject string, limit int) ([]AuthEvent, error) {
	const query = `
        SELECT id, event_type, subject, session_id, reason, created_at
        FROM auth_events WHERE subject=$1
        ORDER BY created_at DESC
        LIMIT $2`

	rows, err := r.pool.Query(ctx, query, subject, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuthEvent
	for rows.Next() {
		var event AuthEvent
		if err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.Subject,
			&event.SessionID,
			&event.Reason,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
