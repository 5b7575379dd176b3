package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendMemory     = "memory"
	BackendClickHouse = "clickhouse"
	BackendSQLite     = "sqlite"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	// Moderation
	ModeratorChatID  int64
	ModeratorUserIDs []int64

	// Site the bot publishes to
	SiteURL         string
	SiteAPIEndpoint string
	SiteAPIKey      string // If empty, approved articles are only logged
	SiteRegisterURL string
	SiteLoginURL    string

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	// Storage configuration
	StorageBackend string
	SQLitePath     string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// Runtime tuning
	SessionTTL        time.Duration // Zero keeps sessions until they finish
	PublishTimeout    time.Duration
	PublishMaxRetries int
	DispatchWorkers   int

	FAQFile string
	Debug   bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Moderator chat (required)
	chatIDStr := os.Getenv("MODERATOR_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("MODERATOR_CHAT_ID is required (chat that receives submissions)")
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(chatIDStr), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MODERATOR_CHAT_ID: %s", chatIDStr)
	}
	config.ModeratorChatID = chatID

	// Extra moderators (optional, comma-separated)
	if idsStr := os.Getenv("MODERATOR_USER_IDS"); idsStr != "" {
		for _, idStr := range strings.Split(idsStr, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in MODERATOR_USER_IDS: %s", idStr)
			}
			config.ModeratorUserIDs = append(config.ModeratorUserIDs, id)
		}
	}

	// Site configuration
	config.SiteURL = strings.TrimRight(getEnv("SITE_URL", "https://мояолекма.рф"), "/")
	config.SiteAPIEndpoint = getEnv("SITE_API_ENDPOINT", "/api/index.php/v1")
	config.SiteAPIKey = os.Getenv("SITE_API_KEY")
	config.SiteRegisterURL = getEnv("SITE_REGISTER_URL", config.SiteURL+"/registration")
	config.SiteLoginURL = getEnv("SITE_LOGIN_URL", config.SiteURL+"/login")

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}
	config.Port = getEnv("PORT", "8080")

	// Storage backend (default: memory)
	config.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory))
	switch config.StorageBackend {
	case BackendMemory:
	case BackendSQLite:
		config.SQLitePath = getEnv("SQLITE_PATH", "olekmabot.db")
	case BackendClickHouse:
		if err := loadClickHouse(config); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (memory, clickhouse or sqlite)", config.StorageBackend)
	}

	// Runtime tuning
	if config.SessionTTL, err = getDuration("SESSION_TTL", 0); err != nil {
		return nil, err
	}
	if config.PublishTimeout, err = getDuration("PUBLISH_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if config.PublishMaxRetries, err = getInt("PUBLISH_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if config.DispatchWorkers, err = getInt("DISPATCH_WORKERS", 8); err != nil {
		return nil, err
	}
	if config.DispatchWorkers < 1 {
		return nil, fmt.Errorf("DISPATCH_WORKERS must be at least 1")
	}

	config.FAQFile = os.Getenv("FAQ_FILE")
	config.Debug = os.Getenv("DEBUG") == "true"

	return config, nil
}

func loadClickHouse(config *Config) error {
	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost == "" {
		return fmt.Errorf("CLICKHOUSE_HOST is required when STORAGE_BACKEND is clickhouse")
	}

	port, err := getInt("CLICKHOUSE_PORT", 9000) // Default ClickHouse native port
	if err != nil {
		return err
	}
	config.ClickHousePort = port

	config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
	config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
