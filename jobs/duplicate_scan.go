package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DuplicateItemScanJob looks for items sharing a (code, type) natural key.
// Such rows predate the unique index or were restored from legacy dumps; the
// job only reports them, it never merges.
type DuplicateItemScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewDuplicateItemScanJob initialises the scan handler.
func NewDuplicateItemScanJob(pool *pgxpool.Pool, logger *slog.Logger) *DuplicateItemScanJob {
	return &DuplicateItemScanJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type duplicateKey struct {
	Code  string
	Type  *string
	Count int
}

// Handle executes the duplicate scan.
func (j *DuplicateItemScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("duplicate scan: handler not configured")
	}
	var payload DuplicateItemScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = 500
	}

	start := j.now()
	logger := j.logger().With(slog.Int("limit", payload.Limit))
	logger.Info("starting duplicate item scan")

	duplicates, err := j.scan(ctx, payload.Limit)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, d := range duplicates {
		typ := "<null>"
		if d.Type != nil {
			typ = *d.Type
		}
		logger.Warn("duplicate item natural key",
			slog.String("code", d.Code),
			slog.String("type", typ),
			slog.Int("rows", d.Count),
		)
	}

	logger.Info("completed duplicate item scan",
		slog.Int("duplicates", len(duplicates)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *DuplicateItemScanJob) scan(ctx context.Context, limit int) ([]duplicateKey, error) {
	if j.Pool == nil {
		return nil, errors.New("duplicate scan: pool not configured")
	}
	rows, err := j.Pool.Query(ctx, `SELECT code, type, COUNT(*) FROM items GROUP BY code, type HAVING COUNT(*) > 1 ORDER BY COUNT(*) DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var duplicates []duplicateKey
	for rows.Next() {
		var d duplicateKey
		if err := rows.Scan(&d.Code, &d.Type, &d.Count); err != nil {
			return nil, err
		}
		duplicates = append(duplicates, d)
	}
	return duplicates, rows.Err()
}

func (j *DuplicateItemScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *DuplicateItemScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
