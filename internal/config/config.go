package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	MarketData  MarketDataConfig `mapstructure:"market_data"`
	Engine      EngineConfig     `mapstructure:"engine"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Alerts      AlertsConfig     `mapstructure:"alerts"`
	Telegram    TelegramConfig   `mapstructure:"telegram"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
	Security    SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

// DSN returns the connection string for pgx, preferring an explicit
// database_url over the component fields.
func (c *DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address for the Redis client
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MarketDataConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	DefaultSymbol string `mapstructure:"default_symbol"`
}

// EngineConfig carries the spectral analysis tunables. Wavelengths are in
// trading bars.
type EngineConfig struct {
	WindowSize      int     `mapstructure:"window_size"`
	MinWavelength   int     `mapstructure:"min_wavelength"`
	MaxWavelength   int     `mapstructure:"max_wavelength"`
	CoarseGrid      bool    `mapstructure:"coarse_grid"`
	Workers         int     `mapstructure:"workers"`
	MinPeakHeight   float64 `mapstructure:"min_peak_height"`
	MinPeakDistance int     `mapstructure:"min_peak_distance"`
	BandwidthPct    float64 `mapstructure:"bandwidth_pct"`
	ExtendFuture    int     `mapstructure:"extend_future"`
}

type CacheConfig struct {
	Prefix string `mapstructure:"prefix"`
	TTL    string `mapstructure:"ttl"`
}

// TTLDuration parses the configured cache lifetime. The string form is
// validated at load time; an empty value falls back to 15 minutes.
func (c *CacheConfig) TTLDuration() time.Duration {
	if c.TTL == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

type AlertsConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	ScanInterval  string   `mapstructure:"scan_interval"`
	Symbols       []string `mapstructure:"symbols"`
	ChatIDs       []int64  `mapstructure:"chat_ids"`
	MinWavelength int      `mapstructure:"min_wavelength"`
}

// ScanIntervalDuration parses the configured interval. The string form is
// validated at load time; an empty value falls back to hourly scans.
func (c *AlertsConfig) ScanIntervalDuration() time.Duration {
	if c.ScanInterval == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(c.ScanInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	Endpoint     string  `mapstructure:"endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	ExportStdout bool    `mapstructure:"export_stdout"`
}

type SecurityConfig struct {
	AdminKeyHash string `mapstructure:"admin_key_hash" json:"-" yaml:"-"`
	JWTSecret    string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry    string `mapstructure:"jwt_expiry"`
	BcryptCost   int    `mapstructure:"bcrypt_cost"`
}

// JWTExpiryDuration parses the configured token lifetime. The string form
// is validated at load time; an empty value falls back to 24 hours.
func (c *SecurityConfig) JWTExpiryDuration() time.Duration {
	if c.JWTExpiry == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(c.JWTExpiry)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind specific environment variables
	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("security.admin_key_hash", "ADMIN_KEY_HASH"); err != nil {
		return nil, fmt.Errorf("failed to bind ADMIN_KEY_HASH environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	// Validate JWT secret in non-development environments
	if c.Environment != "development" && c.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	// Validate JWT expiry duration
	if c.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(c.Security.JWTExpiry); err != nil {
			return fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	// Validate bcrypt cost parameter
	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Security.BcryptCost)
	}

	if c.Engine.WindowSize < 600 {
		return fmt.Errorf("engine window size must be at least 600 bars, got %d", c.Engine.WindowSize)
	}
	if c.Engine.MinWavelength < 2 {
		return fmt.Errorf("engine min wavelength must be at least 2 bars, got %d", c.Engine.MinWavelength)
	}
	if c.Engine.MaxWavelength <= c.Engine.MinWavelength {
		return fmt.Errorf("engine max wavelength %d must exceed min wavelength %d",
			c.Engine.MaxWavelength, c.Engine.MinWavelength)
	}
	if c.Engine.BandwidthPct <= 0 || c.Engine.BandwidthPct > 0.5 {
		return fmt.Errorf("engine bandwidth must be in (0, 0.5], got %g", c.Engine.BandwidthPct)
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine workers must not be negative, got %d", c.Engine.Workers)
	}
	if c.Engine.ExtendFuture < 0 {
		return fmt.Errorf("engine extend_future must not be negative, got %d", c.Engine.ExtendFuture)
	}

	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return fmt.Errorf("invalid cache TTL duration: %w", err)
		}
	}
	if c.Alerts.ScanInterval != "" {
		if _, err := time.ParseDuration(c.Alerts.ScanInterval); err != nil {
			return fmt.Errorf("invalid alert scan interval: %w", err)
		}
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be in [0, 1], got %g", c.Telemetry.SampleRatio)
	}

	return nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Set database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "cyclescope")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Market data
	viper.SetDefault("market_data.data_dir", "./data")
	viper.SetDefault("market_data.default_symbol", "SPX")

	// Engine
	viper.SetDefault("engine.window_size", 4000)
	viper.SetDefault("engine.min_wavelength", 100)
	viper.SetDefault("engine.max_wavelength", 800)
	viper.SetDefault("engine.coarse_grid", false)
	viper.SetDefault("engine.workers", 0)
	viper.SetDefault("engine.min_peak_height", 0.25)
	viper.SetDefault("engine.min_peak_distance", 8)
	viper.SetDefault("engine.bandwidth_pct", 0.10)
	viper.SetDefault("engine.extend_future", 250)

	// Cache
	viper.SetDefault("cache.prefix", "cyclescope")
	viper.SetDefault("cache.ttl", "15m")

	// Alerts
	viper.SetDefault("alerts.enabled", false)
	viper.SetDefault("alerts.scan_interval", "1h")
	viper.SetDefault("alerts.symbols", []string{})
	viper.SetDefault("alerts.chat_ids", []int64{})
	viper.SetDefault("alerts.min_wavelength", 100)

	// Telegram
	viper.SetDefault("telegram.bot_token", "")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "cyclescope-api")
	viper.SetDefault("telemetry.endpoint", "localhost:4318")
	viper.SetDefault("telemetry.sample_ratio", 1.0)
	viper.SetDefault("telemetry.export_stdout", false)

	// Security
	viper.SetDefault("security.admin_key_hash", "")
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.bcrypt_cost", 12)
}
