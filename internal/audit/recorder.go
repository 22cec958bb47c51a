package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder appends assignment mutation records to audit_logs. There is no
// update or delete path: records are immutable once written.
type Recorder struct {
	pool *pgxpool.Pool
}

// NewRecorder returns a new Recorder.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{pool: pool}
}

// Record persists one entry. A zero At defaults to now.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil || r.pool == nil {
		return errors.New("audit: recorder not initialised")
	}
	if entry.Operation == "" {
		return errors.New("audit: operation required")
	}
	snapshot, err := json.Marshal(entry.Snapshot)
	if err != nil {
		return fmt.Errorf("audit: marshal snapshot: %w", err)
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (operation, actor_id, snapshot, occurred_at)
		VALUES ($1, $2, $3, $4)`,
		entry.Operation, entry.ActorID, snapshot, at)
	if err != nil {
		return fmt.Errorf("audit: record: %w", err)
	}
	return nil
}
