package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Qdrant    QdrantConfig
	Gemini    GeminiConfig
	Budget    BudgetConfig
	Retrieval RetrievalConfig
	Worker    WorkerConfig
	Browser   BrowserConfig
	Storage   StorageConfig
	Telegram  TelegramConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
}

type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

type BudgetConfig struct {
	// CeilingUSD caps estimated generation cost per user per period.
	CeilingUSD float64
	// Period is the budget window length (e.g. 24h for a daily cap).
	Period time.Duration
}

type RetrievalConfig struct {
	// MaxChunks is the maximum number of knowledge chunks injected into a
	// generation prompt.
	MaxChunks int
	// MaxContextChars bounds the cumulative size of injected chunks.
	MaxContextChars int
}

type WorkerConfig struct {
	Concurrency       int
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	// ScoreThreshold is the overall score under which an automatic
	// evaluation flags needs_improvement.
	ScoreThreshold float64
}

type BrowserConfig struct {
	Headless      bool
	SubmitTimeout time.Duration
	ScreenshotDir string
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using default values.")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "job_autopilot"),
		},
		Qdrant: QdrantConfig{
			URL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:     getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "knowledge_chunks"),
		},
		Gemini: GeminiConfig{
			APIKey:     getEnv("GEMINI_API_KEY", ""),
			Model:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			EmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		},
		Budget: BudgetConfig{
			CeilingUSD: getEnvAsFloat("BUDGET_CEILING_USD", 1.0),
			Period:     getEnvAsDuration("BUDGET_PERIOD", "24h"),
		},
		Retrieval: RetrievalConfig{
			MaxChunks:       getEnvAsInt("RETRIEVAL_MAX_CHUNKS", 8),
			MaxContextChars: getEnvAsInt("RETRIEVAL_MAX_CONTEXT_CHARS", 6000),
		},
		Worker: WorkerConfig{
			Concurrency:       getEnvAsInt("WORKER_CONCURRENCY", 3),
			RetryMaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			RetryInitialDelay: getEnvAsDuration("RETRY_INITIAL_DELAY", "2s"),
			ScoreThreshold:    getEnvAsFloat("EVAL_SCORE_THRESHOLD", 3.5),
		},
		Browser: BrowserConfig{
			Headless:      getEnvAsBool("BROWSER_HEADLESS", true),
			SubmitTimeout: getEnvAsDuration("SUBMIT_TIMEOUT", "3m"),
			ScreenshotDir: getEnv("SCREENSHOT_DIR", "./logs/screenshots"),
		},
		Storage: StorageConfig{
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		},
	}
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
