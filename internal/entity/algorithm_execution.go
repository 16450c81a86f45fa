package entity

import (
	"database/sql"
	"time"

	"gorm.io/datatypes"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusStopped   ExecutionStatus = "stopped"
)

type ExecutionTrigger string

const (
	TriggerScheduled ExecutionTrigger = "scheduled"
	TriggerDryRun    ExecutionTrigger = "dry_run"
)

// AlgorithmExecution records one run of an algorithm.
type AlgorithmExecution struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	AlgorithmID      uint             `gorm:"not null;index" json:"algorithm_id"`
	Trigger          ExecutionTrigger `gorm:"not null" json:"trigger"`
	DryRun           bool             `gorm:"not null;default:false" json:"dry_run"`
	Status           ExecutionStatus  `gorm:"not null" json:"status"`
	StartedAt        time.Time        `gorm:"not null" json:"started_at"`
	CompletedAt      sql.NullTime     `json:"completed_at"`
	SignalsGenerated int              `gorm:"not null;default:0" json:"signals_generated"`
	SignalsExecuted  int              `gorm:"not null;default:0" json:"signals_executed"`
	SignalsFailed    int              `gorm:"not null;default:0" json:"signals_failed"`
	ErrorMessage     sql.NullString   `json:"error_message"`
	Output           datatypes.JSON   `gorm:"type:jsonb" json:"output"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (AlgorithmExecution) TableName() string {
	return "algorithm_executions"
}
