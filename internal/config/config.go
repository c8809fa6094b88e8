package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Chatbot    ChatbotConfig    `mapstructure:"chatbot"`
	Assignment AssignmentConfig `mapstructure:"assignment"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   int    `mapstructure:"port"`
	User                   string `mapstructure:"user"`
	Password               string `mapstructure:"password"`
	Name                   string `mapstructure:"name"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// ChatbotConfig carries the AI-proxy budget knobs. The daily limits are token
// budgets; the rate limit is a short-window request cap independent of them.
type ChatbotConfig struct {
	GeminiAPIKey          string `mapstructure:"gemini_api_key"`
	GeminiBaseURL         string `mapstructure:"gemini_base_url"`
	Model                 string `mapstructure:"model"`
	UserDailyTokenLimit   int    `mapstructure:"user_daily_token_limit"`
	GlobalDailyTokenLimit int    `mapstructure:"global_daily_token_limit"`
	RateLimitPerMinute    int    `mapstructure:"rate_limit_per_minute"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
	MaxHistoryMessages    int    `mapstructure:"max_history_messages"`
	// TimezoneOffsetHours fixes the calendar used for daily quota reset.
	// Defaults to +7 (Asia/Jakarta); never derived from server-local time.
	TimezoneOffsetHours int `mapstructure:"timezone_offset_hours"`
}

func (c ChatbotConfig) Timezone() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC+%d", c.TimezoneOffsetHours), c.TimezoneOffsetHours*3600)
}

func (c ChatbotConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

type AssignmentConfig struct {
	SearchRadiusKM  float64 `mapstructure:"search_radius_km"`
	MaxCandidates   int     `mapstructure:"max_candidates"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds"`
}

func (c AssignmentConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime_minutes", 30)
	viper.SetDefault("chatbot.user_daily_token_limit", 10000)
	viper.SetDefault("chatbot.global_daily_token_limit", 500000)
	viper.SetDefault("chatbot.rate_limit_per_minute", 10)
	viper.SetDefault("chatbot.request_timeout_seconds", 30)
	viper.SetDefault("chatbot.max_history_messages", 20)
	viper.SetDefault("chatbot.timezone_offset_hours", 7)
	viper.SetDefault("assignment.search_radius_km", 20)
	viper.SetDefault("assignment.max_candidates", 5)
	viper.SetDefault("assignment.cache_ttl_seconds", 30)
}
