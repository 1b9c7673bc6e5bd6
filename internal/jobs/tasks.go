// Package jobs holds the background tasks run by the worker.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every identity task runs on.
	QueueDefault = "default"
	// TaskGuestCleanup deletes guests older than the retention window.
	TaskGuestCleanup = "identity:guest_cleanup"
)

// GuestCleanupPayload carries the retention window in days.
type GuestCleanupPayload struct {
	Days int `json:"days"`
}

// NewGuestCleanupTask builds a cleanup task for the given retention.
func NewGuestCleanupTask(days int) (*asynq.Task, error) {
	data, err := json.Marshal(GuestCleanupPayload{Days: days})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGuestCleanup, data, asynq.Queue(QueueDefault)), nil
}
