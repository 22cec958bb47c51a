package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditAnomalyScanJob watches the audit log for actors producing an unusual
// volume of assignment mutations. It only warns; operators decide what to
// do with a flagged actor.
type AuditAnomalyScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewAuditAnomalyScanJob initialises the scan handler.
func NewAuditAnomalyScanJob(pool *pgxpool.Pool, logger *slog.Logger) *AuditAnomalyScanJob {
	return &AuditAnomalyScanJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type actorBurst struct {
	ActorID   uuid.UUID
	Mutations int
}

// Handle executes the anomaly scan.
func (j *AuditAnomalyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("audit anomaly scan: handler not configured")
	}
	var payload AnomalyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowMinutes <= 0 {
		payload.WindowMinutes = 60
	}
	if payload.Threshold <= 0 {
		payload.Threshold = 50
	}

	logger := j.logger().With(
		slog.Int("window_minutes", payload.WindowMinutes),
		slog.Int("threshold", payload.Threshold),
	)
	logger.Info("starting audit anomaly scan")

	since := j.clock().Add(-time.Duration(payload.WindowMinutes) * time.Minute)
	bursts, err := j.scan(ctx, since, payload.Threshold)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, burst := range bursts {
		logger.Warn("assignment mutation burst detected",
			slog.String("actor_id", burst.ActorID.String()),
			slog.Int("mutations", burst.Mutations),
		)
	}
	logger.Info("audit anomaly scan complete", slog.Int("flagged_actors", len(bursts)))
	return nil
}

func (j *AuditAnomalyScanJob) scan(ctx context.Context, since time.Time, threshold int) ([]actorBurst, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT actor_id, COUNT(*) AS mutations
		FROM audit_logs
		WHERE occurred_at >= $1 AND actor_id IS NOT NULL
		GROUP BY actor_id
		HAVING COUNT(*) >= $2
		ORDER BY mutations DESC`, since, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bursts []actorBurst
	for rows.Next() {
		var burst actorBurst
		if err := rows.Scan(&burst.ActorID, &burst.Mutations); err != nil {
			return nil, err
		}
		bursts = append(bursts, burst)
	}
	return bursts, rows.Err()
}

func (j *AuditAnomalyScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
