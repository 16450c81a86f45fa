package config

import (
	"time"

	"golang-algo-trader/pkg/config"

	"github.com/spf13/viper"
)

// Scheduler holds scheduler-specific configuration.
type Scheduler struct {
	PollingInterval    time.Duration `mapstructure:"polling_interval"`
	SandboxTimeout     time.Duration `mapstructure:"sandbox_timeout"`
	DefaultTradingMode string        `mapstructure:"default_trading_mode"`
	BatchedExecution   bool          `mapstructure:"batched_execution"`
	StaleClaimAfter    time.Duration `mapstructure:"stale_claim_after"`
}

// Config holds the full configuration for the scheduler service.
type Config struct {
	App        config.App        `mapstructure:"app"`
	Logger     config.Logger     `mapstructure:"logger"`
	Database   config.Database   `mapstructure:"database"`
	Redis      config.Redis      `mapstructure:"redis"`
	API        config.API        `mapstructure:"api"`
	Telegram   config.Telegram   `mapstructure:"telegram"`
	Scheduler  Scheduler         `mapstructure:"scheduler"`
	Market     config.Market     `mapstructure:"market"`
	TradeQueue config.TradeQueue `mapstructure:"trade_queue"`
	Broker     config.Broker     `mapstructure:"broker"`
	Cache      config.Cache      `mapstructure:"cache"`
}

// Load loads the scheduler configuration from the given path.
func Load(path string) (*Config, error) {
	config.SetMarketDefaults()
	viper.SetDefault("scheduler.polling_interval", time.Minute)
	viper.SetDefault("scheduler.sandbox_timeout", 2*time.Second)
	viper.SetDefault("scheduler.default_trading_mode", "paper")
	viper.SetDefault("scheduler.stale_claim_after", 15*time.Minute)

	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
