package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":              "www.example:8080",
		"grpc_addr":              "www.example:9000",
		"database_dsn":           "plants.db",
		"secret_key":             "my_secret_key",
		"session_token_ttl":      "12h",
		"verification_token_ttl": 120000000000,
		"trusted_proxies":        []string{"10.0.0.1"},
		"smtp_port":              25,
		"s3_bucket":              "bucket",
		"blob_threshold_bytes":   2048,
		"auth_rate_window":       "10s",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "www.example:8080", cfg.HTTPAddr)
		assert.Equal(t, "www.example:9000", cfg.GRPCAddr)
		assert.Equal(t, "plants.db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 12*time.Hour, cfg.SessionTokenTTL)
		assert.Equal(t, 2*time.Minute, cfg.VerificationTokenTTL)
		assert.Equal(t, []string{"10.0.0.1"}, cfg.TrustedProxies)
		assert.Equal(t, 25, cfg.SMTPPort)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, int64(2048), cfg.BlobThresholdBytes)
		assert.Equal(t, 10*time.Second, cfg.AuthRateWindow)
	})

	t.Run("absent keys keep current values", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, "admin", cfg.AdminUsername)
		assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			HTTPAddr:        "defaults:1234",
			DatabaseDSN:     "plants.db",
			SecretKey:       "key",
			SessionTokenTTL: 2 * time.Minute,
			S3Bucket:        "s3bucket",
		}
		require.NoError(t, parseJson(cfg))

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "plants.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.SessionTokenTTL)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		err := parseJson(&Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.json")
	})

	t.Run("missing file", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}

		require.Error(t, parseJson(&Config{}))
	})
}
