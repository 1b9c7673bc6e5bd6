package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iliyamo/vastu-backend/internal/service"
)

var guestsSwept = promauto.NewCounter(prometheus.CounterOpts{
	Name: "vastu_guests_swept_total",
	Help: "Guest identities removed by the cleanup task.",
})

// GuestSweeper is implemented by *service.GuestService.
type GuestSweeper interface {
	CleanupExpiredGuests(ctx context.Context, maxAgeDays int) (int64, error)
}

// GuestCleanupJob removes stale guest identities on a schedule.
type GuestCleanupJob struct {
	Sweeper     GuestSweeper
	DefaultDays int
	Logger      *slog.Logger
}

// NewGuestCleanupJob initialises the cleanup handler. defaultDays is used
// when a task arrives without a retention.
func NewGuestCleanupJob(sweeper GuestSweeper, defaultDays int, logger *slog.Logger) *GuestCleanupJob {
	return &GuestCleanupJob{Sweeper: sweeper, DefaultDays: defaultDays, Logger: logger}
}

// Handle executes one sweep.
func (j *GuestCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("guest cleanup: handler not configured")
	}
	var payload GuestCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("guest cleanup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Days == 0 {
		payload.Days = j.DefaultDays
	}

	logger := j.logger().With(slog.Int("days", payload.Days))
	start := time.Now()
	n, err := j.Sweeper.CleanupExpiredGuests(ctx, payload.Days)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			logger.Error("invalid retention", slog.Any("error", err))
			return fmt.Errorf("guest cleanup: %v: %w", err, asynq.SkipRetry)
		}
		logger.Error("sweep failed", slog.Any("error", err))
		return err
	}
	guestsSwept.Add(float64(n))
	logger.Info("completed guest sweep",
		slog.Int64("deleted", n),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *GuestCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGuestCleanup))
	}
	return slog.Default().With(slog.String("job", TaskGuestCleanup))
}
