// Package jobs runs background maintenance for the inventory service.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity reconciles product quantities against the
	// movement ledger.
	TaskLedgerIntegrity = "ledger:integrity"
)

// LedgerIntegrityPayload scopes an integrity run. A zero GrupoCodigo
// checks the whole catalogue.
type LedgerIntegrityPayload struct {
	GrupoCodigo int64 `json:"grupo_codigo,omitempty"`
}

// NewLedgerIntegrityTask constructs the reconciliation task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}
