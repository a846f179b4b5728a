// Package config holds the client configuration
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultAPIBaseURL     = "http://localhost:8000"
	DefaultWSURL          = "ws://localhost:8000/ws"
	DefaultLang           = "en"
	DefaultDBPath         = "agentchat.db"
	DefaultLogDir         = "logs"
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaxTurns       = 16
)

// Config holds application configuration
type Config struct {
	APIBaseURL     string        // REST base URL of the orchestration backend
	WSURL          string        // streaming channel URL
	Lang           string        // sent with every one-shot question
	DBPath         string        // SQLite file for threads and messages
	LogDir         string        // log, trace and metric files
	RequestTimeout time.Duration // per HTTP request
	MaxTurns       int           // default team conversation length
	ThreadID       string        // resume this thread instead of starting a new one
	Debug          bool
}

// Load reads configuration from AGENTCHAT_* environment variables, falling
// back to defaults. Flags applied afterwards take precedence; call
// Validate once they are.
func Load() *Config {
	return &Config{
		APIBaseURL:     getEnv("AGENTCHAT_API_URL", DefaultAPIBaseURL),
		WSURL:          getEnv("AGENTCHAT_WS_URL", DefaultWSURL),
		Lang:           getEnv("AGENTCHAT_LANG", DefaultLang),
		DBPath:         getEnv("AGENTCHAT_DB_PATH", DefaultDBPath),
		LogDir:         getEnv("AGENTCHAT_LOG_DIR", DefaultLogDir),
		RequestTimeout: getEnvDuration("AGENTCHAT_REQUEST_TIMEOUT", DefaultRequestTimeout),
		MaxTurns:       getEnvInt("AGENTCHAT_MAX_TURNS", DefaultMaxTurns),
		ThreadID:       getEnv("AGENTCHAT_THREAD_ID", ""),
		Debug:          getEnvBool("AGENTCHAT_DEBUG", false),
	}
}

// Validate checks that all required configuration fields are set
func (c *Config) Validate() error {
	if err := checkURL(c.APIBaseURL, "AGENTCHAT_API_URL", "http", "https"); err != nil {
		return err
	}
	if err := checkURL(c.WSURL, "AGENTCHAT_WS_URL", "ws", "wss"); err != nil {
		return err
	}
	if c.Lang == "" {
		return fmt.Errorf("AGENTCHAT_LANG cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("AGENTCHAT_DB_PATH cannot be empty")
	}
	if c.LogDir == "" {
		return fmt.Errorf("AGENTCHAT_LOG_DIR cannot be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("AGENTCHAT_REQUEST_TIMEOUT must be > 0")
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("AGENTCHAT_MAX_TURNS must be > 0")
	}
	return nil
}

func checkURL(raw, name string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s is not a valid URL: %q", name, raw)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use %s", name, strings.Join(schemes, " or "))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
