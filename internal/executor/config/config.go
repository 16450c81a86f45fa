package config

import (
	"time"

	"golang-algo-trader/pkg/config"

	"github.com/spf13/viper"
)

// Executor holds execution-service specific configuration.
type Executor struct {
	PriceStream        string        `mapstructure:"price_stream"`
	PriceStreamGroup   string        `mapstructure:"price_stream_group"`
	PriceStreamTimeout time.Duration `mapstructure:"price_stream_timeout"`
}

// Config holds the full configuration for the execution service.
type Config struct {
	App        config.App        `mapstructure:"app"`
	Logger     config.Logger     `mapstructure:"logger"`
	Database   config.Database   `mapstructure:"database"`
	Redis      config.Redis      `mapstructure:"redis"`
	Telegram   config.Telegram   `mapstructure:"telegram"`
	Broker     config.Broker     `mapstructure:"broker"`
	TradeQueue config.TradeQueue `mapstructure:"trade_queue"`
	Market     config.Market     `mapstructure:"market"`
	Cache      config.Cache      `mapstructure:"cache"`
	Executor   Executor          `mapstructure:"executor"`
}

// Load loads the executor configuration from the given path.
func Load(path string) (*Config, error) {
	config.SetMarketDefaults()
	viper.SetDefault("executor.price_stream", "market.prices")
	viper.SetDefault("executor.price_stream_group", "executor")
	viper.SetDefault("executor.price_stream_timeout", 5*time.Second)

	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
