package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"jama-reports/internal/jama"
	"jama-reports/internal/stats"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jama                jama.Config
	Collapse            stats.Collapse
	DataPath            string
	LogDir              string
	CacheDir            string
	SnapshotPath        string
	ReportConfigPath    string
	HTTPAddr            string
	RefreshInterval     time.Duration
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Executable directory first; MCP clients start us from anywhere.
	exeDir := ""
	if exePath, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	cfg := fromEnv(exeDir)

	for _, dir := range []string{cfg.LogDir, cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create directory")
		}
	}
	return cfg, nil
}

// fromEnv builds the configuration from the process environment only.
func fromEnv(exeDir string) *AppConfig {
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs"))

	return &AppConfig{
		Jama: jama.Config{
			BaseURL:      getEnv("JAMA_URL", ""),
			Username:     getEnv("JAMA_USERNAME", ""),
			Password:     getEnv("JAMA_PASSWORD", ""),
			Token:        getEnv("JAMA_TOKEN", ""),
			RequestDelay: time.Duration(getEnvInt("JAMA_REQUEST_DELAY_MS", 0)) * time.Millisecond,
			RetryMax:     getEnvInt("JAMA_RETRY_MAX", 3),
			PageSize:     getEnvInt("JAMA_PAGE_SIZE", 50),
			Concurrency:  getEnvInt("JAMA_FETCH_CONCURRENCY", 4),
		},
		Collapse: stats.Collapse{
			BlockedIntoNotRun:    getEnvBool("COLLAPSE_BLOCKED", false),
			InProgressIntoNotRun: getEnvBool("COLLAPSE_INPROGRESS", false),
		},
		DataPath:            dataPath,
		LogDir:              logDir,
		CacheDir:            filepath.Join(dataPath, "cache"),
		SnapshotPath:        getEnv("SNAPSHOT_DB", filepath.Join(dataPath, "snapshot.db")),
		ReportConfigPath:    getEnv("REPORT_CONFIG", ""),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8050"),
		RefreshInterval:     time.Duration(getEnvInt("REFRESH_INTERVAL_SECONDS", 300)) * time.Second,
		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", true),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
