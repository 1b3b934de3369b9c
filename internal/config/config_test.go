package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validClient() Client {
	return Client{
		APIURL:           "http://localhost:8060/api",
		HTTPTimeout:      15 * time.Second,
		TokenStore:       TokenStoreFile,
		TokenPath:        "./session.json",
		MaxReceiptBytes:  1 << 20,
		PreviewCacheSize: 1 << 20,
	}
}

func TestClient_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Client)
		errorString string
	}{
		{name: "valid", mutate: func(c *Client) {}},
		{
			name:        "bad scheme",
			mutate:      func(c *Client) { c.APIURL = "ftp://example.com" },
			errorString: "invalid API URL scheme 'ftp': must be 'http' or 'https'",
		},
		{
			name:        "missing host",
			mutate:      func(c *Client) { c.APIURL = "http://" },
			errorString: "missing host",
		},
		{
			name:        "timeout too short",
			mutate:      func(c *Client) { c.HTTPTimeout = time.Millisecond },
			errorString: "must be at least 1 second",
		},
		{
			name:        "unknown token store",
			mutate:      func(c *Client) { c.TokenStore = "keychain" },
			errorString: "invalid token store 'keychain'",
		},
		{
			name:        "empty token path",
			mutate:      func(c *Client) { c.TokenPath = "" },
			errorString: "token path cannot be empty",
		},
		{
			name:        "zero receipt size",
			mutate:      func(c *Client) { c.MaxReceiptBytes = 0 },
			errorString: "invalid max receipt size 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validClient()
			tt.mutate(&c)
			err := c.Validate()
			if tt.errorString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestClient_ValidateCollectsAllErrors(t *testing.T) {
	c := Client{APIURL: "ftp://x", TokenStore: "nope"}
	err := c.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid API URL scheme")
	require.Contains(t, err.Error(), "invalid HTTP timeout")
	require.Contains(t, err.Error(), "invalid token store")
	require.Contains(t, err.Error(), "token path cannot be empty")
}

func TestServer_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Server
		errorString string
	}{
		{
			name:   "memory storage",
			config: Server{Port: "8060", Storage: StorageMemory, MaxReceiptBytes: 1},
		},
		{
			name:   "mysql with full dsn",
			config: Server{Port: "8060", Storage: StorageMySQL, FullDSN: "u:p@tcp(db:3306)/financez", MaxReceiptBytes: 1},
		},
		{
			name:        "mysql without credentials",
			config:      Server{Port: "8060", Storage: StorageMySQL, DBPort: "3306", MaxReceiptBytes: 1},
			errorString: "either FULL_DSN or DB_USER",
		},
		{
			name:        "invalid port",
			config:      Server{Port: "abc", Storage: StorageMemory, MaxReceiptBytes: 1},
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "port out of range",
			config:      Server{Port: "70000", Storage: StorageMemory, MaxReceiptBytes: 1},
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "unknown storage",
			config:      Server{Port: "8060", Storage: "postgres", MaxReceiptBytes: 1},
			errorString: "invalid storage 'postgres'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errorString == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errorString)
		})
	}
}

func TestServer_DSN(t *testing.T) {
	s := Server{DBUser: "root", DBPass: "secret", DBHost: "localhost", DBPort: "3306", DBName: "financez"}
	require.Equal(t, "root:secret@tcp(localhost:3306)/financez?parseTime=true", s.DSN())

	s.FullDSN = "other"
	require.Equal(t, "other", s.DSN())
}

func TestLoadClientFromEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("FINANCEZ_HOME", home)
	t.Setenv("FINANCEZ_API_URL", "https://api.example.com")
	t.Setenv("FINANCEZ_TOKEN_STORE", TokenStoreSQLite)
	t.Setenv("FINANCEZ_HTTP_TIMEOUT", "30s")
	t.Setenv("FINANCEZ_MAX_RECEIPT_BYTES", "2048")

	c := LoadClient()
	require.Equal(t, "https://api.example.com", c.APIURL)
	require.Equal(t, TokenStoreSQLite, c.TokenStore)
	require.Equal(t, filepath.Join(home, "session.db"), c.TokenPath)
	require.Equal(t, 30*time.Second, c.HTTPTimeout)
	require.Equal(t, int64(2048), c.MaxReceiptBytes)
	require.NoError(t, c.Validate())
}

func TestLoadServerDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("STORAGE", "")

	s := LoadServer()
	require.Equal(t, "8060", s.Port)
	require.Equal(t, StorageMemory, s.Storage)
	require.NoError(t, s.Validate())
}
