package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditAnomalyScan scans the audit log for mutation bursts.
	TaskAuditAnomalyScan = "audit:anomaly_scan"
)

// AnomalyScanPayload tunes the audit anomaly scan.
type AnomalyScanPayload struct {
	// WindowMinutes is the trailing window to inspect.
	WindowMinutes int `json:"window_minutes"`
	// Threshold is the mutation count per actor that triggers a warning.
	Threshold int `json:"threshold"`
}

// NewAuditAnomalyScanTask constructs an Asynq task.
func NewAuditAnomalyScanTask(payload AnomalyScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditAnomalyScan, data), nil
}
