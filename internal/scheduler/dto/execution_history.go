package dto

import (
	"encoding/json"
	"time"
)

// ExecutionHistoryResponse is the DTO for API responses containing one algorithm run.
type ExecutionHistoryResponse struct {
	ID               uint            `json:"id"`
	AlgorithmID      uint            `json:"algorithm_id"`
	Trigger          string          `json:"trigger"`
	DryRun           bool            `json:"dry_run"`
	Status           string          `json:"status"`
	StartedAt        time.Time       `json:"started_at"`
	Duration         int64           `json:"duration_ms"`
	SignalsGenerated int             `json:"signals_generated"`
	SignalsExecuted  int             `json:"signals_executed"`
	SignalsFailed    int             `json:"signals_failed"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Output           json.RawMessage `json:"output,omitempty" swaggertype:"object"`
}
