package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Classifier ClassifierConfig
	Cache      CacheConfig
	NATS       NATSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
	HealthInterval time.Duration
}

type ClassifierConfig struct {
	URL     string
	Timeout time.Duration
	Stub    bool
}

type CacheConfig struct {
	ImageEntries int
}

type NATSConfig struct {
	URL string
}

type LogConfig struct {
	Level string
	JSON  bool
}

// Load читает конфигурацию из переменных окружения с дефолтными значениями
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "medicine_detector")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.connect_timeout", "5s")
	v.SetDefault("database.retry_interval", "5s")
	v.SetDefault("database.health_interval", "5s")

	v.SetDefault("classifier.url", "http://localhost:8000")
	v.SetDefault("classifier.timeout", "30s")
	v.SetDefault("classifier.stub", false)

	v.SetDefault("cache.image_entries", 64)

	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Host:           v.GetString("database.host"),
			Port:           v.GetInt("database.port"),
			User:           v.GetString("database.user"),
			Password:       v.GetString("database.password"),
			DBName:         v.GetString("database.dbname"),
			SSLMode:        v.GetString("database.sslmode"),
			ConnectTimeout: v.GetDuration("database.connect_timeout"),
			RetryInterval:  v.GetDuration("database.retry_interval"),
			HealthInterval: v.GetDuration("database.health_interval"),
		},
		Classifier: ClassifierConfig{
			URL:     v.GetString("classifier.url"),
			Timeout: v.GetDuration("classifier.timeout"),
			Stub:    v.GetBool("classifier.stub"),
		},
		Cache: CacheConfig{
			ImageEntries: v.GetInt("cache.image_entries"),
		},
		NATS: NATSConfig{
			URL: v.GetString("nats.url"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database port: %d", cfg.Database.Port)
	}

	if cfg.Cache.ImageEntries <= 0 {
		return nil, fmt.Errorf("cache image entries must be positive, got %d", cfg.Cache.ImageEntries)
	}

	return cfg, nil
}

// DatabaseDSN собирает строку подключения к PostgreSQL
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}
