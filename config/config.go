// Package config resolves the service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

const (
	DefaultPort            = "3000"
	DefaultDataDir         = "data"
	DefaultCredentialsFile = "credentials.json"
	DefaultLedgerFile      = "downloaded_files.json"
	DefaultSyncInterval    = 5 * time.Minute
	DefaultConcurrency     = 4
	DefaultGeminiModel     = "gemini-1.5-flash"
	DefaultGeminiBaseURL   = "https://generativelanguage.googleapis.com"
	DefaultOllamaURL       = "http://localhost:11434/api/generate"
	DefaultOllamaModel     = "llama3"
)

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

type Config struct {
	Mode    string
	Port    string
	DataDir string

	LLM    LLMConfig
	Remote RemoteConfig
	Loader LoaderConfig

	DatabaseURL string
}

type LLMConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration

	OllamaURL   string
	OllamaModel string
}

type RemoteConfig struct {
	FolderID        string
	CredentialsJSON string
	CredentialsFile string
	LedgerFile      string
	ReplaceExisting bool
}

type LoaderConfig struct {
	SyncInterval time.Duration
	Concurrency  int
	CropTop      float64
	CropBottom   float64
}

// LoadEnv reads a .env file when one is present. The process environment
// always wins over values from the file.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
}

// FromEnv builds a Config from environment variables, applying defaults.
func FromEnv() Config {
	return Config{
		Mode:    mode(os.Getenv("APP_ENV")),
		Port:    getenv("PORT", DefaultPort),
		DataDir: getenv("DATA_DIR", DefaultDataDir),
		LLM: LLMConfig{
			Provider:    provider(os.Getenv("LLM_PROVIDER")),
			APIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:       getenv("GEMINI_MODEL", DefaultGeminiModel),
			BaseURL:     getenv("GEMINI_BASE_URL", DefaultGeminiBaseURL),
			Timeout:     duration("GEMINI_TIMEOUT", 120*time.Second),
			OllamaURL:   getenv("OLLAMA_URL", DefaultOllamaURL),
			OllamaModel: getenv("OLLAMA_MODEL", DefaultOllamaModel),
		},
		Remote: RemoteConfig{
			FolderID:        strings.TrimSpace(os.Getenv("DRIVE_FOLDER_ID")),
			CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS"),
			CredentialsFile: getenv("GOOGLE_APPLICATION_CREDENTIALS", DefaultCredentialsFile),
			LedgerFile:      getenv("LEDGER_FILE", DefaultLedgerFile),
			ReplaceExisting: boolean("DRIVE_REPLACE_EXISTING", true),
		},
		Loader: LoaderConfig{
			SyncInterval: duration("SYNC_INTERVAL", DefaultSyncInterval),
			Concurrency:  integer("PROCESS_CONCURRENCY", DefaultConcurrency),
			CropTop:      float("PDF_CROP_TOP", 0),
			CropBottom:   float("PDF_CROP_BOTTOM", 0),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}
}

func (c Config) IsDevelopment() bool {
	return c.Mode == ModeDevelopment
}

func (c Config) ListenAddr() string {
	return ":" + c.Port
}

func mode(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "dev", ModeDevelopment:
		return ModeDevelopment
	default:
		return ModeProduction
	}
}

func provider(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), ProviderOllama) {
		return ProviderOllama
	}
	return ProviderGemini
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	// bare numbers are seconds
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	slog.Warn("invalid duration, using default", "key", key, "value", v, "default", def)
	return def
}

func integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		slog.Warn("invalid number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
