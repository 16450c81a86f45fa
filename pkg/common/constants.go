package common

const (
	RedisStreamTradingEvents = "trading.events"

	RedisKeyLastPrice = "last_price:%s"

	TradingModePaper = "paper"
	TradingModeLive  = "live"

	BrokerPaper   = "paper"
	BrokerZerodha = "zerodha"
	BrokerAlpaca  = "alpaca"
)
