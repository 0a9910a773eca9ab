package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KathenZK/research-agent/internal/models"
)

const defaultBailianEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/aigc/text-generation/generation"

// Config holds all configuration for the application
type Config struct {
	// Runtime configuration
	Port    string
	Debug   bool
	DataDir string
	LogDir  string

	// Schedule configuration (cron expression with seconds field)
	ResearchSchedule string

	// LLM configuration
	BailianAPIKey        string
	BailianModel         string
	BailianEndpoint      string
	BailianTimeout       time.Duration
	Temperature          float64
	MaxTokens            int
	MaxRetryWait         time.Duration
	LLMRequestsPerMinute int

	// Analysis configuration
	Rubric        models.Rubric
	MinScore      int
	Concurrency   int
	AlertMinScore int

	// Sources
	EnabledSources []string
	SourceLimits   map[string]int
	EnrichContent  bool
	SourcesFile    string
	Sources        SourceSettings

	// API Keys and credentials
	PHAccessToken      string
	TwitterBearerToken string
	CrunchbaseAPIKey   string

	// Storage configuration
	StorageBackend   string // "local" or "azure"
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	FeishuAppID       string
	FeishuAppSecret   string
	FeishuUserID      string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	GitHubToken       string
	GitHubRepo        string // "owner/name"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		Debug:   getBoolEnv("DEBUG", false),
		DataDir: getEnv("DATA_DIR", "data"),
		LogDir:  getEnv("LOG_DIR", "logs"),

		ResearchSchedule: getEnv("RESEARCH_SCHEDULE", "0 0 9 * * *"),

		BailianAPIKey:        getEnv("BAILIAN_API_KEY", ""),
		BailianModel:         getEnv("BAILIAN_MODEL", "qwen-plus"),
		BailianEndpoint:      getEnv("BAILIAN_ENDPOINT", defaultBailianEndpoint),
		BailianTimeout:       getDurationEnv("BAILIAN_TIMEOUT", 60*time.Second),
		Temperature:          getFloatEnv("BAILIAN_TEMPERATURE", 0.7),
		MaxTokens:            getIntEnv("BAILIAN_MAX_TOKENS", 1000),
		MaxRetryWait:         getDurationEnv("BAILIAN_MAX_RETRY_WAIT", 30*time.Second),
		LLMRequestsPerMinute: getIntEnv("BAILIAN_RPM", 0),

		Rubric:        models.Rubric(strings.ToLower(getEnv("ANALYSIS_RUBRIC", string(models.RubricGeneral)))),
		MinScore:      getIntEnv("MIN_SCORE", 60),
		Concurrency:   getIntEnv("ANALYSIS_CONCURRENCY", 5),
		AlertMinScore: getIntEnv("ALERT_MIN_SCORE", 85),

		EnabledSources: getSliceEnv("SOURCES", []string{"hn", "ph"}),
		SourceLimits: map[string]int{
			"hn":              getIntEnv("HN_LIMIT", 30),
			"ph":              getIntEnv("PH_LIMIT", 20),
			"reddit":          getIntEnv("REDDIT_LIMIT", 20),
			"twitter":         getIntEnv("TWITTER_LIMIT", 20),
			"crunchbase":      getIntEnv("CRUNCHBASE_LIMIT", 20),
			"github_trending": getIntEnv("GITHUB_TRENDING_LIMIT", 20),
			"indiehackers":    getIntEnv("INDIEHACKERS_LIMIT", 20),
			"chinese_media":   getIntEnv("CHINESE_MEDIA_LIMIT", 50),
		},
		EnrichContent: getBoolEnv("ENRICH_CONTENT", false),
		SourcesFile:   getEnv("SOURCES_FILE", ""),
		Sources:       DefaultSourceSettings(),

		PHAccessToken:      getEnv("PH_ACCESS_TOKEN", ""),
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		CrunchbaseAPIKey:   getEnv("CRUNCHBASE_API_KEY", ""),

		StorageBackend:   getEnv("STORAGE_BACKEND", "local"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "opportunities"),

		FeishuAppID:       getEnv("FEISHU_APP_ID", ""),
		FeishuAppSecret:   getEnv("FEISHU_APP_SECRET", ""),
		FeishuUserID:      getEnv("FEISHU_USER_ID", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		GitHubToken:       getEnv("GITHUB_TOKEN", ""),
		GitHubRepo:        getEnv("GITHUB_REPO", ""),
	}

	if cfg.SourcesFile != "" {
		settings, err := LoadSourceSettings(cfg.SourcesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load sources file: %w", err)
		}
		cfg.Sources = settings
	}
	cfg.Sources.ChineseMediaHours = getIntEnv("CHINESE_MEDIA_HOURS", cfg.Sources.ChineseMediaHours)

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration once at startup. It is exported so that
// command-line overrides can be re-validated after they are applied.
func (c *Config) Validate() error {
	if c.BailianAPIKey == "" {
		return fmt.Errorf("BAILIAN_API_KEY is required")
	}

	if c.Rubric != models.RubricGeneral && c.Rubric != models.RubricSolo {
		return fmt.Errorf("ANALYSIS_RUBRIC must be 'general' or 'solo'")
	}

	if c.MinScore < 0 || c.MinScore > 100 {
		return fmt.Errorf("MIN_SCORE must be between 0 and 100")
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("ANALYSIS_CONCURRENCY must be at least 1")
	}

	if c.StorageBackend != "local" && c.StorageBackend != "azure" {
		return fmt.Errorf("STORAGE_BACKEND must be 'local' or 'azure'")
	}

	if c.StorageBackend == "azure" && c.StorageAccount == "" {
		return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_BACKEND is 'azure'")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.GitHubRepo != "" && len(strings.Split(c.GitHubRepo, "/")) != 2 {
		return fmt.Errorf("GITHUB_REPO must have the form 'owner/name'")
	}

	return nil
}

// SourceLimit returns the configured fetch limit for a source
func (c *Config) SourceLimit(name string) int {
	if limit, ok := c.SourceLimits[name]; ok && limit > 0 {
		return limit
	}
	return 20
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("45s") or a plain number of seconds
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var parts []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
		return parts
	}
	return defaultValue
}
