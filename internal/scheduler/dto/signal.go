package dto

import "time"

// SignalResponse is the DTO for API responses containing a persisted signal.
type SignalResponse struct {
	ID              uint       `json:"id"`
	ExecutionID     uint       `json:"execution_id"`
	Symbol          string     `json:"symbol"`
	SignalType      string     `json:"signal_type"`
	Quantity        string     `json:"quantity"`
	Price           string     `json:"price"`
	Reason          string     `json:"reason,omitempty"`
	ExecutionStatus string     `json:"execution_status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ExecutedPrice   *string    `json:"executed_price"`
	ExecutedAt      *time.Time `json:"executed_at"`
	GeneratedAt     time.Time  `json:"generated_at"`
}

// PerformanceResponse is one day of an algorithm's trading snapshot.
type PerformanceResponse struct {
	Date        string `json:"date" example:"2024-01-15"`
	TradesCount int    `json:"trades_count"`
	BuyCount    int    `json:"buy_count"`
	SellCount   int    `json:"sell_count"`
	BuyValue    string `json:"buy_value"`
	SellValue   string `json:"sell_value"`
	PnL         string `json:"pnl"`
}

// PerformanceSummaryResponse wraps the daily history with its cumulative P&L.
type PerformanceSummaryResponse struct {
	AlgorithmID   uint                  `json:"algorithm_id"`
	CumulativePnL string                `json:"cumulative_pnl"`
	Days          []PerformanceResponse `json:"days"`
}
