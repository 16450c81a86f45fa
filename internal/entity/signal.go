package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
	SignalHold SignalType = "hold"
)

type SignalStatus string

const (
	SignalPending   SignalStatus = "pending"
	SignalSimulated SignalStatus = "simulated"
	SignalRejected  SignalStatus = "rejected"
	SignalFilled    SignalStatus = "filled"
	SignalFailed    SignalStatus = "failed"
)

// Signal is a buy/sell/hold intent emitted by a strategy run.
type Signal struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	AlgorithmID     uint                `gorm:"not null;index" json:"algorithm_id"`
	ExecutionID     uint                `gorm:"not null;index" json:"execution_id"`
	UserID          uint                `gorm:"not null" json:"user_id"`
	AssetID         uint                `gorm:"not null" json:"asset_id"`
	Symbol          string              `gorm:"not null" json:"symbol"`
	SignalType      SignalType          `gorm:"not null" json:"signal_type"`
	Quantity        decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"quantity"`
	Price           decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"price"`
	Reason          string              `json:"reason"`
	GeneratedAt     time.Time           `gorm:"not null" json:"generated_at"`
	ExecutionStatus SignalStatus        `gorm:"not null;index" json:"execution_status"`
	RejectionReason string              `json:"rejection_reason"`
	ErrorMessage    string              `json:"error_message"`
	TransactionID   *uint               `json:"transaction_id"`
	ExecutedPrice   decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"executed_price"`
	ExecutedAt      *time.Time          `json:"executed_at"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Signal) TableName() string {
	return "signals"
}

// IsSettled reports whether the signal reached filled or failed, after which only status reads are allowed.
func (s *Signal) IsSettled() bool {
	return s.ExecutionStatus == SignalFilled || s.ExecutionStatus == SignalFailed
}
