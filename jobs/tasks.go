package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDuplicateItemScan reports items sharing a natural key.
	TaskDuplicateItemScan = "feed:duplicate_item_scan"
	// TaskSessionCleanup prunes old ingested-session claims.
	TaskSessionCleanup = "feed:session_cleanup"
)

// DuplicateItemScanPayload configures the duplicate item scan.
type DuplicateItemScanPayload struct {
	// Limit caps how many duplicate keys are reported per run.
	Limit int `json:"limit"`
}

// NewDuplicateItemScanTask constructs an Asynq task.
func NewDuplicateItemScanTask(payload DuplicateItemScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDuplicateItemScan, data), nil
}

// SessionCleanupPayload configures the session claim cleanup.
type SessionCleanupPayload struct {
	// RetentionHours keeps claims younger than this many hours.
	RetentionHours int `json:"retention_hours"`
}

// NewSessionCleanupTask constructs an Asynq task.
func NewSessionCleanupTask(payload SessionCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionCleanup, data), nil
}
