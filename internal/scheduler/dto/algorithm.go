package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeWindowDTO is a local time-of-day range, both ends "HH:MM".
type TimeWindowDTO struct {
	Start string `json:"start" example:"09:15"`
	End   string `json:"end" example:"15:30"`
}

// CreateAlgorithmRequest is the DTO for creating a new algorithm.
type CreateAlgorithmRequest struct {
	UserID        uint   `json:"user_id"`
	Name          string `json:"name"`
	Code          string `json:"code"`
	Region        string `json:"region" example:"india"`
	TradingMode   string `json:"trading_mode" example:"paper"`
	ExecutionMode string `json:"execution_mode" example:"direct"`

	SchedulingType       string          `json:"scheduling_type" example:"interval"`
	ExecutionInterval    string          `json:"execution_interval" example:"5min"`
	ExecutionTimeWindows []TimeWindowDTO `json:"execution_time_windows"`
	ExecutionTimes       []string        `json:"execution_times"`
	RunContinuously      bool            `json:"run_continuously"`

	UniverseAll   bool            `json:"universe_all"`
	StockUniverse []string        `json:"stock_universe"`
	MaxPositions  int             `json:"max_positions"`
	RiskPerTrade  decimal.Decimal `json:"risk_per_trade" swaggertype:"string"`

	RunDurationType       string              `json:"run_duration_type" example:"forever"`
	RunDurationValue      int                 `json:"run_duration_value"`
	RunStartDate          *time.Time          `json:"run_start_date"`
	RunEndDate            *time.Time          `json:"run_end_date"`
	AutoStopOnLoss        bool                `json:"auto_stop_on_loss"`
	AutoStopLossThreshold decimal.NullDecimal `json:"auto_stop_loss_threshold" swaggertype:"string"`

	Activate bool `json:"activate"`
}

// AlgorithmResponse is the DTO for API responses containing algorithm details.
type AlgorithmResponse struct {
	ID            uint   `json:"id"`
	UserID        uint   `json:"user_id"`
	Name          string `json:"name"`
	Region        string `json:"region"`
	TradingMode   string `json:"trading_mode"`
	ExecutionMode string `json:"execution_mode"`

	SchedulingType       string          `json:"scheduling_type"`
	ExecutionInterval    string          `json:"execution_interval,omitempty"`
	ExecutionTimeWindows []TimeWindowDTO `json:"execution_time_windows,omitempty"`
	ExecutionTimes       []string        `json:"execution_times,omitempty"`
	RunContinuously      bool            `json:"run_continuously"`

	UniverseAll   bool     `json:"universe_all"`
	StockUniverse []string `json:"stock_universe"`
	MaxPositions  int      `json:"max_positions"`
	RiskPerTrade  string   `json:"risk_per_trade"`

	RunDurationType       string     `json:"run_duration_type"`
	RunDurationValue      int        `json:"run_duration_value"`
	RunStartDate          *time.Time `json:"run_start_date"`
	RunEndDate            *time.Time `json:"run_end_date"`
	AutoStopOnLoss        bool       `json:"auto_stop_on_loss"`
	AutoStopLossThreshold *string    `json:"auto_stop_loss_threshold"`

	Status             string     `json:"status"`
	AutoRun            bool       `json:"auto_run"`
	StopReason         string     `json:"stop_reason,omitempty"`
	CurrentlyExecuting bool       `json:"currently_executing"`
	LastRunAt          *time.Time `json:"last_run_at"`
	NextScheduledRun   *time.Time `json:"next_scheduled_run"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
