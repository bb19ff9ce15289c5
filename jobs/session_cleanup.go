package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feedgate/feedgate/internal/shared"
)

// SessionCleanupJob prunes ingested-session claims past retention.
type SessionCleanupJob struct {
	Registry *shared.SessionRegistry
	Logger   *slog.Logger
}

// NewSessionCleanupJob initialises the cleanup handler.
func NewSessionCleanupJob(registry *shared.SessionRegistry, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{Registry: registry, Logger: logger}
}

// Handle executes the cleanup.
func (j *SessionCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Registry == nil {
		return errors.New("session cleanup: handler not configured")
	}
	var payload SessionCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 90 * 24
	}

	retention := time.Duration(payload.RetentionHours) * time.Hour
	if err := j.Registry.Cleanup(ctx, retention); err != nil {
		j.logger().Error("session cleanup failed", slog.Any("error", err))
		return err
	}
	j.logger().Info("session cleanup done", slog.Duration("retention", retention))
	return nil
}

func (j *SessionCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
