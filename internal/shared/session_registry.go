package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRegistry records processed feed session ids so that re-uploading
// the same session does not ingest the payload twice.
type SessionRegistry struct {
	pool *pgxpool.Pool
}

// NewSessionRegistry constructs the registry.
func NewSessionRegistry(pool *pgxpool.Pool) *SessionRegistry {
	return &SessionRegistry{pool: pool}
}

// ErrSessionReplayed indicates the session id was already ingested.
var ErrSessionReplayed = errors.New("feed session already processed")

// Register claims a session id. Uniqueness is enforced by the primary key on
// ingested_sessions, so concurrent uploads of the same session cannot both
// succeed.
func (r *SessionRegistry) Register(ctx context.Context, sessionID string) error {
	if r == nil {
		return errors.New("session registry not initialised")
	}
	if sessionID == "" {
		return errors.New("session id required")
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO ingested_sessions (session_id, created_at) VALUES ($1, $2)`, sessionID, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSessionReplayed
		}
		return err
	}
	return nil
}

// Release removes a claim, typically used to roll back a failed import.
func (r *SessionRegistry) Release(ctx context.Context, sessionID string) error {
	if r == nil {
		return nil
	}
	if sessionID == "" {
		return errors.New("session id required")
	}
	_, err := r.pool.Exec(ctx, `DELETE FROM ingested_sessions WHERE session_id=$1`, sessionID)
	return err
}

// Cleanup removes claims older than retention.
func (r *SessionRegistry) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if r == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := r.pool.Exec(ctx, `DELETE FROM ingested_sessions WHERE created_at < $1`, cutoff)
	return err
}
