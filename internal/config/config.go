package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Telegram    TelegramConfig
	Chat        ChatConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// TelegramConfig drives the optional staff alert bot. An empty BotToken
// disables it.
type TelegramConfig struct {
	BotToken    string
	StaffChatID int64
}

type ChatConfig struct {
	// HistoryLimit bounds the message window returned with a conversation;
	// 0 means the full history.
	HistoryLimit int
	// SendBufferSize is the per-connection outbound event buffer.
	SendBufferSize int
}

func Load() (*Config, error) {
	// Load .env when present; real deployments use the environment.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_DSN", "host=localhost user=user password=password dbname=supportchat port=5432 sslmode=disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			TTL:    getEnvAsDuration("JWT_TTL", 72*time.Hour),
			Issuer: getEnv("JWT_ISSUER", "supportchat-service"),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			StaffChatID: getEnvAsInt64("TELEGRAM_STAFF_CHAT_ID", 0),
		},
		Chat: ChatConfig{
			HistoryLimit:   getEnvAsInt("CHAT_HISTORY_LIMIT", 200),
			SendBufferSize: getEnvAsInt("CHAT_SEND_BUFFER", 256),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DATABASE_DSN must be set")
	}
	if c.Telegram.BotToken != "" && c.Telegram.StaffChatID == 0 {
		return fmt.Errorf("TELEGRAM_STAFF_CHAT_ID must be set when the bot token is configured")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
