package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/plantgate/internal/flagx"
	"github.com/dmitrijs2005/plantgate/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept "10m" or
// integer nanoseconds.
type JsonConfig struct {
	HTTPAddr             string         `json:"http_addr"`
	GRPCAddr             string         `json:"grpc_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	SessionTokenTTL      timex.Duration `json:"session_token_ttl"`
	VerificationTokenTTL timex.Duration `json:"verification_token_ttl"`
	AdminUsername        string         `json:"admin_username"`
	AdminPassword        string         `json:"admin_password"`
	PrivateKeyPath       string         `json:"private_key_path"`
	TrustedProxies       []string       `json:"trusted_proxies"`
	PublicBaseURL        string         `json:"public_base_url"`
	SMTPHost             string         `json:"smtp_host"`
	SMTPPort             int            `json:"smtp_port"`
	SMTPUsername         string         `json:"smtp_username"`
	SMTPPassword         string         `json:"smtp_password"`
	SMTPFrom             string         `json:"smtp_from"`
	S3AccessKey          string         `json:"s3_access_key"`
	S3SecretKey          string         `json:"s3_secret_key"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	BlobThresholdBytes   int64          `json:"blob_threshold_bytes"`
	MaxUploadBytes       int64          `json:"max_upload_bytes"`
	AuthRateLimit        int            `json:"auth_rate_limit"`
	AuthRateWindow       timex.Duration `json:"auth_rate_window"`
	LogLevel             string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values. No flag means no file.
func parseJson(config *Config) error {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return nil
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", jsonConfigFile, err)
	}

	fromJson(c, config)
	return nil
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:             c.HTTPAddr,
		GRPCAddr:             c.GRPCAddr,
		DatabaseDSN:          c.DatabaseDSN,
		SecretKey:            c.SecretKey,
		SessionTokenTTL:      timex.Duration{Duration: c.SessionTokenTTL},
		VerificationTokenTTL: timex.Duration{Duration: c.VerificationTokenTTL},
		AdminUsername:        c.AdminUsername,
		AdminPassword:        c.AdminPassword,
		PrivateKeyPath:       c.PrivateKeyPath,
		TrustedProxies:       c.TrustedProxies,
		PublicBaseURL:        c.PublicBaseURL,
		SMTPHost:             c.SMTPHost,
		SMTPPort:             c.SMTPPort,
		SMTPUsername:         c.SMTPUsername,
		SMTPPassword:         c.SMTPPassword,
		SMTPFrom:             c.SMTPFrom,
		S3AccessKey:          c.S3AccessKey,
		S3SecretKey:          c.S3SecretKey,
		S3Bucket:             c.S3Bucket,
		S3Region:             c.S3Region,
		S3BaseEndpoint:       c.S3BaseEndpoint,
		BlobThresholdBytes:   c.BlobThresholdBytes,
		MaxUploadBytes:       c.MaxUploadBytes,
		AuthRateLimit:        c.AuthRateLimit,
		AuthRateWindow:       timex.Duration{Duration: c.AuthRateWindow},
		LogLevel:             c.LogLevel,
	}
}

func fromJson(j *JsonConfig, c *Config) {
	c.HTTPAddr = j.HTTPAddr
	c.GRPCAddr = j.GRPCAddr
	c.DatabaseDSN = j.DatabaseDSN
	c.SecretKey = j.SecretKey
	c.SessionTokenTTL = j.SessionTokenTTL.Duration
	c.VerificationTokenTTL = j.VerificationTokenTTL.Duration
	c.AdminUsername = j.AdminUsername
	c.AdminPassword = j.AdminPassword
	c.PrivateKeyPath = j.PrivateKeyPath
	c.TrustedProxies = j.TrustedProxies
	c.PublicBaseURL = j.PublicBaseURL
	c.SMTPHost = j.SMTPHost
	c.SMTPPort = j.SMTPPort
	c.SMTPUsername = j.SMTPUsername
	c.SMTPPassword = j.SMTPPassword
	c.SMTPFrom = j.SMTPFrom
	c.S3AccessKey = j.S3AccessKey
	c.S3SecretKey = j.S3SecretKey
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.BlobThresholdBytes = j.BlobThresholdBytes
	c.MaxUploadBytes = j.MaxUploadBytes
	c.AuthRateLimit = j.AuthRateLimit
	c.AuthRateWindow = j.AuthRateWindow.Duration
	c.LogLevel = j.LogLevel
}
