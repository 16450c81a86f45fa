package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// App holds application configuration.
type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// Logger holds logger configuration.
type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Database holds database configuration.
type Database struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// Redis holds Redis configuration.
type Redis struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

// API holds API server configuration.
type API struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Region describes the trading hours of one market.
type Region struct {
	Timezone string   `mapstructure:"timezone"`
	Open     string   `mapstructure:"open"`
	Close    string   `mapstructure:"close"`
	Weekdays []int    `mapstructure:"weekdays"`
	Holidays []string `mapstructure:"holidays"`
	Broker   string   `mapstructure:"broker"`
	Currency string   `mapstructure:"currency"`
}

// Market holds the per-region calendars.
type Market struct {
	FallbackRegion string            `mapstructure:"fallback_region"`
	Regions        map[string]Region `mapstructure:"regions"`
}

// TradeQueue holds batch aggregation settings.
type TradeQueue struct {
	BatchWindow   time.Duration `mapstructure:"batch_window"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// StaleAfter is how long a batched or executing row may sit untouched before the
	// processor resolves it from its execution order.
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// Zerodha holds Kite Connect credentials.
type Zerodha struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	AccessToken         string `mapstructure:"access_token"`
	Exchange            string `mapstructure:"exchange"`
	Product             string `mapstructure:"product"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Alpaca holds Alpaca trading API credentials.
type Alpaca struct {
	BaseURL             string `mapstructure:"base_url"`
	DataURL             string `mapstructure:"data_url"`
	KeyID               string `mapstructure:"key_id"`
	SecretKey           string `mapstructure:"secret_key"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
}

// Broker holds configuration for every broker adapter.
type Broker struct {
	Zerodha Zerodha `mapstructure:"zerodha"`
	Alpaca  Alpaca  `mapstructure:"alpaca"`
}

// Cache holds price cache settings.
type Cache struct {
	PriceTTL time.Duration `mapstructure:"price_ttl"`
	LocalTTL time.Duration `mapstructure:"local_ttl"`
}

// SetMarketDefaults registers the default calendars for India and the US.
func SetMarketDefaults() {
	viper.SetDefault("market.fallback_region", "india")
	viper.SetDefault("market.regions.india.timezone", "Asia/Kolkata")
	viper.SetDefault("market.regions.india.open", "09:15")
	viper.SetDefault("market.regions.india.close", "15:30")
	viper.SetDefault("market.regions.india.weekdays", []int{1, 2, 3, 4, 5})
	viper.SetDefault("market.regions.india.broker", "zerodha")
	viper.SetDefault("market.regions.india.currency", "INR")
	viper.SetDefault("market.regions.us.timezone", "America/New_York")
	viper.SetDefault("market.regions.us.open", "09:30")
	viper.SetDefault("market.regions.us.close", "16:00")
	viper.SetDefault("market.regions.us.weekdays", []int{1, 2, 3, 4, 5})
	viper.SetDefault("market.regions.us.broker", "alpaca")
	viper.SetDefault("market.regions.us.currency", "USD")
	viper.SetDefault("trade_queue.batch_window", 5*time.Minute)
	viper.SetDefault("trade_queue.check_interval", time.Minute)
	viper.SetDefault("trade_queue.timeout", 2*time.Minute)
	viper.SetDefault("trade_queue.stale_after", 15*time.Minute)
	viper.SetDefault("cache.price_ttl", 15*time.Minute)
	viper.SetDefault("cache.local_ttl", 30*time.Second)
}

// Load loads configuration from a file into the given config struct.
func Load(path string, config interface{}) error {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Failed to read config file .env config try read from environment variables")
	}

	return viper.Unmarshal(config)
}
