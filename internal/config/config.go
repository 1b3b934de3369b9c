package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/subosito/gotenv"
)

const (
	TokenStoreFile   = "file"
	TokenStoreSQLite = "sqlite"

	StorageMemory = "memory"
	StorageMySQL  = "mysql"
)

type Client struct {
	// Backend
	APIURL      string
	HTTPTimeout time.Duration

	// Credential persistence
	TokenStore string
	TokenPath  string

	// Receipts
	MaxReceiptBytes  int64
	PreviewCacheSize int64

	// Logging
	LogLevel string
	LogDir   string
}

type Server struct {
	Port    string
	Storage string

	// MySQL, either FullDSN or the parts
	FullDSN string
	DBUser  string
	DBPass  string
	DBHost  string
	DBPort  string
	DBName  string

	MaxReceiptBytes int64

	LogLevel string
	LogDir   string
}

func LoadClient() *Client {
	loadDotEnv()
	home := defaultHome()
	store := getEnv("FINANCEZ_TOKEN_STORE", TokenStoreFile)
	defaultTokenPath := filepath.Join(home, "session.json")
	if store == TokenStoreSQLite {
		defaultTokenPath = filepath.Join(home, "session.db")
	}

	return &Client{
		APIURL:      getEnv("FINANCEZ_API_URL", "http://localhost:8060/api"),
		HTTPTimeout: getEnvDuration("FINANCEZ_HTTP_TIMEOUT", 15*time.Second),

		TokenStore: store,
		TokenPath:  getEnv("FINANCEZ_TOKEN_PATH", defaultTokenPath),

		MaxReceiptBytes:  getEnvInt64("FINANCEZ_MAX_RECEIPT_BYTES", 10<<20),
		PreviewCacheSize: getEnvInt64("FINANCEZ_PREVIEW_CACHE_BYTES", 32<<20),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", filepath.Join(home, "logs")),
	}
}

func LoadServer() *Server {
	loadDotEnv()
	return &Server{
		Port:    getEnv("APP_PORT", "8060"),
		Storage: getEnv("STORAGE", StorageMemory),

		FullDSN: getEnv("FULL_DSN", ""),
		DBUser:  getEnv("DB_USER", ""),
		DBPass:  getEnv("DB_PASS", ""),
		DBHost:  getEnv("DB_HOST", ""),
		DBPort:  getEnv("DB_PORT", "3306"),
		DBName:  getEnv("DB_NAME", "financez"),

		MaxReceiptBytes: getEnvInt64("MAX_RECEIPT_BYTES", 10<<20),

		LogLevel: getEnv("LOG_LEVEL", "debug"),
		LogDir:   getEnv("LOG_DIR", "./logging/logs"),
	}
}

// Validate reports every problem at once.
func (c *Client) Validate() error {
	var errors []string

	if parsed, err := url.Parse(c.APIURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': %v", c.APIURL, err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	} else if parsed.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': missing host", c.APIURL))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	} else if c.HTTPTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at most 5 minutes", c.HTTPTimeout))
	}

	if c.TokenStore != TokenStoreFile && c.TokenStore != TokenStoreSQLite {
		errors = append(errors, fmt.Sprintf("invalid token store '%s': must be one of [%s %s]", c.TokenStore, TokenStoreFile, TokenStoreSQLite))
	}
	if c.TokenPath == "" {
		errors = append(errors, "token path cannot be empty")
	}

	if c.MaxReceiptBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max receipt size %d: must be positive", c.MaxReceiptBytes))
	}
	if c.PreviewCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid preview cache size %d: must be positive", c.PreviewCacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (s *Server) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(s.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", s.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch s.Storage {
	case StorageMemory:
	case StorageMySQL:
		if s.FullDSN == "" && (s.DBUser == "" || s.DBPass == "" || s.DBHost == "" || s.DBPort == "") {
			errors = append(errors, "either FULL_DSN or DB_USER, DB_PASS, DB_HOST and DB_PORT must be provided for mysql storage")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid storage '%s': must be one of [%s %s]", s.Storage, StorageMemory, StorageMySQL))
	}

	if s.MaxReceiptBytes < 1 {
		errors = append(errors, fmt.Sprintf("invalid max receipt size %d: must be positive", s.MaxReceiptBytes))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// DSN builds the MySQL DSN for the configured database.
func (s *Server) DSN() string {
	if s.FullDSN != "" {
		return s.FullDSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", s.DBUser, s.DBPass, s.DBHost, s.DBPort, s.DBName)
}

// loadDotEnv reads .env from the working directory. Variables already set
// in the environment win.
func loadDotEnv() {
	_ = gotenv.Load()
}

func defaultHome() string {
	if dir := os.Getenv("FINANCEZ_HOME"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "financez")
	}
	return ".financez"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
