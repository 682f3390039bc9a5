package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backend selectors.
const (
	BackendCSV      = "csv"
	BackendSheet    = "sheet"
	BackendPostgres = "postgres"
)

// Classifier backend selectors.
const (
	ClassifierKeyword = "keyword"
	ClassifierLLM     = "llm"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Sheets       SheetsConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Classifier   ClassifierConfig
	LLM          LLMConfig
	Suggest      SuggestConfig
	Analytics    AnalyticsConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects and parameterizes the backing store.
type StoreConfig struct {
	Backend                  string
	DataDir                  string
	IDPrefix                 string
	IDSeparator              string
	IDWidth                  int
	IDMax                    int
	StrictReporterUniqueness bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SheetsConfig points at the remote spreadsheet backend.
type SheetsConfig struct {
	CredentialsFile string
	SpreadsheetID   string
	SheetName       string
	LockKey         string
	LockTTLSeconds  int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// ClassifierConfig selects the category classifier backend.
type ClassifierConfig struct {
	Backend         string
	CacheTTLMinutes int
}

// LLMConfig points at an OpenAI-compatible chat completions API.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// SuggestConfig tunes the suggestion index.
type SuggestConfig struct {
	SimilarityThreshold float64
}

// AnalyticsConfig tunes content-gap detection.
type AnalyticsConfig struct {
	ContentGapThreshold float64
	GapKeyword          string
}

// NotificationConfig holds email and chat-webhook delivery settings.
type NotificationConfig struct {
	EmailFrom       string
	EmailTo         string
	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPassword    string
	SlackWebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "smart-support"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend:                  getEnv("STORE_BACKEND", BackendCSV),
			DataDir:                  getEnv("STORE_DATA_DIR", "data"),
			IDPrefix:                 getEnv("TICKET_ID_PREFIX", "TICKET"),
			IDSeparator:              getEnv("TICKET_ID_SEPARATOR", "-"),
			IDWidth:                  getEnvAsInt("TICKET_ID_WIDTH", 0),
			IDMax:                    getEnvAsInt("TICKET_ID_MAX", 0),
			StrictReporterUniqueness: getEnvAsBool("STORE_STRICT_REPORTER_UNIQUENESS", false),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Sheets: SheetsConfig{
			CredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", "credentials.json"),
			SpreadsheetID:   os.Getenv("SHEETS_SPREADSHEET_ID"),
			SheetName:       getEnv("SHEETS_SHEET_NAME", "Sheet1"),
			LockKey:         getEnv("SHEETS_LOCK_KEY", "smart-support:sheet-lock"),
			LockTTLSeconds:  getEnvAsInt("SHEETS_LOCK_TTL_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Classifier: ClassifierConfig{
			Backend:         getEnv("CLASSIFIER_BACKEND", ClassifierKeyword),
			CacheTTLMinutes: getEnvAsInt("CLASSIFIER_CACHE_TTL_MINUTES", 60),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			APIKey:         os.Getenv("LLM_API_KEY"),
			Model:          getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 20),
		},
		Suggest: SuggestConfig{
			SimilarityThreshold: getEnvAsFloat("SUGGEST_SIMILARITY_THRESHOLD", 0.3),
		},
		Analytics: AnalyticsConfig{
			ContentGapThreshold: getEnvAsFloat("CONTENT_GAP_THRESHOLD", 0.30),
			GapKeyword:          getEnv("CONTENT_GAP_KEYWORD", "refund"),
		},
		Notification: NotificationConfig{
			EmailFrom:       getEnv("ALERT_EMAIL_USER", ""),
			EmailTo:         getEnv("ALERT_EMAIL_TO", ""),
			SMTPHost:        getEnv("ALERT_SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:        getEnvAsInt("ALERT_SMTP_PORT", 465),
			SMTPUser:        getEnv("ALERT_EMAIL_USER", ""),
			SMTPPassword:    os.Getenv("ALERT_EMAIL_PASS"),
			SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
