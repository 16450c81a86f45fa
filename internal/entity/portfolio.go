package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Portfolio struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Name        string          `gorm:"not null" json:"name"`
	TradingMode string          `gorm:"not null" json:"trading_mode"`
	Region      string          `gorm:"not null" json:"region"`
	Currency    string          `gorm:"not null" json:"currency"`
	CashBalance decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0" json:"cash_balance"`
	IsDefault   bool            `gorm:"not null;default:false" json:"is_default"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

type Holding struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	PortfolioID uint            `gorm:"not null;uniqueIndex:idx_holding_portfolio_asset" json:"portfolio_id"`
	AssetID     uint            `gorm:"not null;uniqueIndex:idx_holding_portfolio_asset" json:"asset_id"`
	Symbol      string          `gorm:"not null" json:"symbol"`
	Quantity    decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"quantity"`
	AverageCost decimal.Decimal `gorm:"type:numeric(20,6);not null;default:0" json:"average_cost"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Holding) TableName() string {
	return "holdings"
}

type Transaction struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	PortfolioID      uint            `gorm:"not null;index" json:"portfolio_id"`
	AssetID          uint            `gorm:"not null" json:"asset_id"`
	ExecutionOrderID uint            `gorm:"not null;index" json:"execution_order_id"`
	Side             OrderSide       `gorm:"not null" json:"side"`
	Quantity         decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"quantity"`
	Price            decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"price"`
	Amount           decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Broker           string          `gorm:"not null" json:"broker"`
	BrokerOrderID    string          `json:"broker_order_id"`
	ExecutedAt       time.Time       `gorm:"not null" json:"executed_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// BrokerConnection records that a user linked a broker account.
type BrokerConnection struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_broker_connection_user" json:"user_id"`
	Broker      string    `gorm:"not null;uniqueIndex:idx_broker_connection_user" json:"broker"`
	AccountID   string    `gorm:"not null" json:"account_id"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	ConnectedAt time.Time `gorm:"not null" json:"connected_at"`
}

func (BrokerConnection) TableName() string {
	return "broker_connections"
}
