package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// ExecutionOrder is the broker-bound order a signal materializes into.
type ExecutionOrder struct {
	ID            uint                `gorm:"primaryKey" json:"id"`
	SignalID      uint                `gorm:"not null;index" json:"signal_id"`
	AlgorithmID   uint                `gorm:"not null;index" json:"algorithm_id"`
	ExecutionID   uint                `gorm:"not null" json:"execution_id"`
	UserID        uint                `gorm:"not null" json:"user_id"`
	PortfolioID   uint                `gorm:"not null" json:"portfolio_id"`
	AssetID       uint                `gorm:"not null" json:"asset_id"`
	Symbol        string              `gorm:"not null" json:"symbol"`
	Side          OrderSide           `gorm:"not null" json:"side"`
	Quantity      decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"quantity"`
	Price         decimal.Decimal     `gorm:"type:numeric(20,6);not null" json:"price"`
	OrderType     string              `gorm:"not null;default:market" json:"order_type"`
	Broker        string              `gorm:"not null" json:"broker"`
	TradingMode   string              `gorm:"not null" json:"trading_mode"`
	Status        OrderStatus         `gorm:"not null;index" json:"status"`
	BrokerOrderID string              `json:"broker_order_id"`
	TransactionID *uint               `json:"transaction_id"`
	ExecutedPrice decimal.NullDecimal `gorm:"type:numeric(20,6)" json:"executed_price"`
	ErrorMessage  string              `json:"error_message"`
	ExecutedAt    *time.Time          `json:"executed_at"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ExecutionOrder) TableName() string {
	return "execution_orders"
}

// Notional returns quantity x price.
func (o *ExecutionOrder) Notional() decimal.Decimal {
	return o.Quantity.Mul(o.Price)
}

type QueueStatus string

const (
	QueueQueued    QueueStatus = "queued"
	QueueBatched   QueueStatus = "batched"
	QueueExecuting QueueStatus = "executing"
	QueueExecuted  QueueStatus = "executed"
	QueueFailed    QueueStatus = "failed"
	QueueCancelled QueueStatus = "cancelled"
)

// QueuedOrder is an execution order waiting for its batch window.
type QueuedOrder struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ExecutionOrderID uint            `gorm:"not null;uniqueIndex" json:"execution_order_id"`
	UserID           uint            `gorm:"not null" json:"user_id"`
	Symbol           string          `gorm:"not null" json:"symbol"`
	Side             OrderSide       `gorm:"not null" json:"side"`
	Quantity         decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"quantity"`
	Priority         int             `gorm:"not null;default:0" json:"priority"`
	Broker           string          `gorm:"not null" json:"broker"`
	Status           QueueStatus     `gorm:"not null;index" json:"status"`
	ScheduledAt      time.Time       `gorm:"not null;index" json:"scheduled_at"`
	BatchID          string          `gorm:"index" json:"batch_id"`
	Result           datatypes.JSON  `gorm:"type:jsonb" json:"result"`
	ErrorMessage     string          `json:"error_message"`
	ExecutedAt       *time.Time      `json:"executed_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (QueuedOrder) TableName() string {
	return "queued_orders"
}

// IsTerminal reports whether the order can no longer change.
func (q *QueuedOrder) IsTerminal() bool {
	switch q.Status {
	case QueueExecuted, QueueFailed, QueueCancelled:
		return true
	}
	return false
}
