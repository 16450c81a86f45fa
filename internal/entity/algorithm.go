package entity

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type AlgorithmStatus string

const (
	AlgorithmStatusActive   AlgorithmStatus = "active"
	AlgorithmStatusInactive AlgorithmStatus = "inactive"
)

type SchedulingType string

const (
	SchedulingInterval    SchedulingType = "interval"
	SchedulingTimeWindows SchedulingType = "time_windows"
	SchedulingSingleTime  SchedulingType = "single_time"
	SchedulingContinuous  SchedulingType = "continuous"
)

type RunDurationType string

const (
	RunForever   RunDurationType = "forever"
	RunUntilDate RunDurationType = "until_date"
	RunDays      RunDurationType = "days"
	RunMonths    RunDurationType = "months"
	RunYears     RunDurationType = "years"
)

type ExecutionMode string

const (
	ExecutionModeDirect  ExecutionMode = "direct"
	ExecutionModeBatched ExecutionMode = "batched"
)

// TimeWindow is a local time-of-day range, both ends "HH:MM".
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Algorithm is a user-owned strategy definition together with its scheduling and runtime state.
type Algorithm struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	UserID        uint          `gorm:"not null;index" json:"user_id"`
	Name          string        `gorm:"not null" json:"name"`
	Code          string        `gorm:"type:text;not null" json:"code"`
	Region        string        `gorm:"not null;default:india" json:"region"`
	TradingMode   string        `gorm:"not null;default:paper" json:"trading_mode"`
	ExecutionMode ExecutionMode `gorm:"not null;default:direct" json:"execution_mode"`

	SchedulingType       SchedulingType                   `gorm:"not null;default:interval" json:"scheduling_type"`
	ExecutionInterval    string                           `json:"execution_interval"`
	ExecutionTimeWindows datatypes.JSONType[[]TimeWindow] `gorm:"type:jsonb" json:"execution_time_windows"`
	ExecutionTimes       pq.StringArray                   `gorm:"type:text[]" json:"execution_times"`
	RunContinuously      bool                             `gorm:"not null;default:false" json:"run_continuously"`

	UniverseAll   bool            `gorm:"not null;default:false" json:"universe_all"`
	StockUniverse pq.StringArray  `gorm:"type:text[]" json:"stock_universe"`
	MaxPositions  int             `gorm:"not null;default:10" json:"max_positions"`
	RiskPerTrade  decimal.Decimal `gorm:"type:numeric(10,4);not null;default:0" json:"risk_per_trade"`

	RunDurationType       RunDurationType     `gorm:"not null;default:forever" json:"run_duration_type"`
	RunDurationValue      int                 `gorm:"not null;default:0" json:"run_duration_value"`
	RunStartDate          *time.Time          `json:"run_start_date"`
	RunEndDate            *time.Time          `json:"run_end_date"`
	AutoStopOnLoss        bool                `gorm:"not null;default:false" json:"auto_stop_on_loss"`
	AutoStopLossThreshold decimal.NullDecimal `gorm:"type:numeric(20,4)" json:"auto_stop_loss_threshold"`

	Status             AlgorithmStatus `gorm:"not null;default:inactive;index" json:"status"`
	AutoRun            bool            `gorm:"not null;default:false" json:"auto_run"`
	StopReason         string          `json:"stop_reason"`
	CurrentlyExecuting bool            `gorm:"not null;default:false" json:"currently_executing"`
	ExecutionClaimedAt *time.Time      `json:"execution_claimed_at"`
	LastRunAt          *time.Time      `json:"last_run_at"`
	NextScheduledRun   *time.Time      `json:"next_scheduled_run"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Algorithm) TableName() string {
	return "algorithms"
}

// IsBatched reports whether orders go through the trade queue instead of direct execution.
func (a *Algorithm) IsBatched() bool {
	return a.ExecutionMode == ExecutionModeBatched
}
