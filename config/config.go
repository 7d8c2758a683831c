package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log       Logger         `mapstructure:"logger"`
	DB        Database       `mapstructure:"database"`
	API       API            `mapstructure:"api"`
	Scheduler Scheduler      `mapstructure:"scheduler"`
	WhatsApp  WhatsAppConfig `mapstructure:"whatsapp"`
	Slack     SlackConfig    `mapstructure:"slack"`
}

type Logger struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

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

type Scheduler struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	DefaultTimezone string        `mapstructure:"default_timezone"`
	StatsCacheTTL   time.Duration `mapstructure:"stats_cache_ttl"`
}

type API struct {
	Port int `mapstructure:"port"`
}

type WhatsAppConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	PhoneNumberID    string        `mapstructure:"phone_number_id"`
	AccessToken      string        `mapstructure:"access_token"`
	TimeoutDuration  time.Duration `mapstructure:"timeout_duration"`
	MaxRequestPerMin int           `mapstructure:"max_request_per_min"`
}

type SlackConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	BotToken         string        `mapstructure:"bot_token"`
	AlertWebhookURL  string        `mapstructure:"alert_webhook_url"`
	TimeoutDuration  time.Duration `mapstructure:"timeout_duration"`
	MaxRequestPerMin int           `mapstructure:"max_request_per_min"`
}

func Load() (*Config, error) {
	// Populate the environment from a local .env first so AutomaticEnv sees it.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "json")
	viper.SetDefault("api.port", 8080)
	viper.SetDefault("scheduler.poll_interval", time.Minute)
	viper.SetDefault("scheduler.default_timezone", "UTC")
	viper.SetDefault("scheduler.stats_cache_ttl", 30*time.Second)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("whatsapp.base_url", "https://graph.facebook.com/v21.0")
	viper.SetDefault("whatsapp.timeout_duration", 30*time.Second)
	viper.SetDefault("whatsapp.max_request_per_min", 60)
	viper.SetDefault("slack.base_url", "https://slack.com/api")
	viper.SetDefault("slack.timeout_duration", 30*time.Second)
	viper.SetDefault("slack.max_request_per_min", 60)
}
