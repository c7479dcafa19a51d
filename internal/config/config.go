package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Addr          string
	DatabaseURL   string
	CORSOrigin    string
	// PublicBaseURL prefixes share links, e.g. https://desk.example.com.
	PublicBaseURL string

	LogLevel string
	LogFile  string

	// Headless Chrome
	ChromePath    string
	MaxTabs       int
	RenderTimeout time.Duration

	DownloadDir string

	// Printing through the CUPS spooler
	PrintCommand      string
	PrintDestination  string
	PrintAttempts     int
	PrintDelay        time.Duration
	PrintReleaseDelay time.Duration

	// Sharing; empty endpoint disables it and share requests fall back to download
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	ShareTTL       time.Duration
	RedisURL       string
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Addr:              ":8787",
		CORSOrigin:        "*",
		PublicBaseURL:     "http://localhost:8787",
		LogLevel:          "info",
		MaxTabs:           4,
		RenderTimeout:     30 * time.Second,
		DownloadDir:       "./data/downloads",
		PrintCommand:      "lp",
		PrintAttempts:     8,
		PrintDelay:        500 * time.Millisecond,
		PrintReleaseDelay: 2 * time.Second,
		MinioBucket:       "ledgerdesk-exports",
		ShareTTL:          7 * 24 * time.Hour,
		RedisURL:          "redis://localhost:6379/0",
	}
}

// Load reads defaults, then the TOML file named by LEDGERDESK_CONFIG, then
// environment variables. Later sources win.
func Load() (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("LEDGERDESK_CONFIG")); path != "" {
		if err := LoadTOML(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadTOML overlays the keys present in path onto cfg.
func LoadTOML(cfg *Config, path string) error {
	var file fileConfig
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return file.apply(cfg)
}

func applyEnv(cfg *Config) {
	cfg.Addr = getenv("API_ADDR", cfg.Addr)
	// An empty DATABASE_URL switches a file-configured database off.
	if value, ok := os.LookupEnv("DATABASE_URL"); ok {
		cfg.DatabaseURL = strings.TrimSpace(value)
	}
	cfg.CORSOrigin = getenv("LEDGERDESK_CORS_ORIGIN", cfg.CORSOrigin)
	cfg.PublicBaseURL = getenv("LEDGERDESK_PUBLIC_URL", cfg.PublicBaseURL)
	cfg.LogLevel = getenv("LEDGERDESK_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getenv("LEDGERDESK_LOG_FILE", cfg.LogFile)
	cfg.ChromePath = getenv("LEDGERDESK_CHROME_PATH", cfg.ChromePath)
	cfg.MaxTabs = getenvInt("LEDGERDESK_MAX_TABS", cfg.MaxTabs)
	cfg.RenderTimeout = time.Duration(getenvInt("LEDGERDESK_RENDER_TIMEOUT_SECONDS", int(cfg.RenderTimeout/time.Second))) * time.Second
	cfg.DownloadDir = getenv("LEDGERDESK_DOWNLOAD_DIR", cfg.DownloadDir)
	cfg.PrintCommand = getenv("LEDGERDESK_PRINT_COMMAND", cfg.PrintCommand)
	cfg.PrintDestination = getenv("LEDGERDESK_PRINTER", cfg.PrintDestination)
	cfg.PrintAttempts = getenvInt("LEDGERDESK_PRINT_ATTEMPTS", cfg.PrintAttempts)
	cfg.PrintDelay = time.Duration(getenvInt("LEDGERDESK_PRINT_DELAY_MS", int(cfg.PrintDelay/time.Millisecond))) * time.Millisecond
	cfg.PrintReleaseDelay = time.Duration(getenvInt("LEDGERDESK_PRINT_RELEASE_MS", int(cfg.PrintReleaseDelay/time.Millisecond))) * time.Millisecond
	cfg.MinioEndpoint = getenv("MINIO_ENDPOINT", cfg.MinioEndpoint)
	cfg.MinioAccessKey = getenv("MINIO_ACCESS_KEY", cfg.MinioAccessKey)
	cfg.MinioSecretKey = getenv("MINIO_SECRET_KEY", cfg.MinioSecretKey)
	cfg.MinioBucket = getenv("MINIO_BUCKET", cfg.MinioBucket)
	cfg.MinioUseSSL = getenvBool("MINIO_USE_SSL", cfg.MinioUseSSL)
	cfg.ShareTTL = time.Duration(getenvInt("LEDGERDESK_SHARE_TTL_SECONDS", int(cfg.ShareTTL/time.Second))) * time.Second
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
}

func (c Config) Validate() error {
	switch {
	case c.MaxTabs < 1:
		return fmt.Errorf("max_tabs must be at least 1, got %d", c.MaxTabs)
	case c.PrintAttempts < 1:
		return fmt.Errorf("print_attempts must be at least 1, got %d", c.PrintAttempts)
	case c.RenderTimeout <= 0:
		return fmt.Errorf("render_timeout must be positive")
	case strings.TrimSpace(c.DownloadDir) == "":
		return fmt.Errorf("download_dir is required")
	}
	return nil
}

// SharingEnabled reports whether an object store is configured.
func (c Config) SharingEnabled() bool {
	return strings.TrimSpace(c.MinioEndpoint) != ""
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
