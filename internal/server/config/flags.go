package config

import (
	"flag"
	"os"
	"strings"

	"github.com/dmitrijs2005/plantgate/internal/flagx"
)

var serverFlags = []string{
	"-a", "-g", "-d", "-s", "-t", "-v", "-k", "-b", "-e",
	"-admin-user", "-admin-password", "-trusted-proxies", "-base-url",
	"-smtp-host", "-smtp-port", "-smtp-user", "-smtp-password", "-smtp-from",
	"-s3-access-key", "-s3-secret-key", "-s3-region",
	"-blob-threshold", "-max-upload", "-rate-limit", "-rate-window", "-log-level",
}

// parseFlags populates Config fields from command-line flags.
//
// Short forms:
//
//	-a string     HTTP bind address (e.g., ":8080")
//	-g string     gRPC health bind address (e.g., ":50051")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-t duration   session token validity (e.g., "24h")
//	-v duration   verification token validity (e.g., "10m")
//	-k string     RSA private key path
//	-b string     S3 bucket name
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The remaining settings use long single-dash names, see serverFlags.
// os.Args is filtered first so flags owned by other layers (-c) do not
// make the FlagSet fail.
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.SessionTokenTTL, "t", config.SessionTokenTTL, "session token validity")
	fs.DurationVar(&config.VerificationTokenTTL, "v", config.VerificationTokenTTL, "verification token validity")
	fs.StringVar(&config.PrivateKeyPath, "k", config.PrivateKeyPath, "RSA private key path")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.AdminUsername, "admin-user", config.AdminUsername, "admin username")
	fs.StringVar(&config.AdminPassword, "admin-password", config.AdminPassword, "admin password")
	proxies := fs.String("trusted-proxies", strings.Join(config.TrustedProxies, ","), "comma separated trusted proxy addresses")
	fs.StringVar(&config.PublicBaseURL, "base-url", config.PublicBaseURL, "public base URL for verification links")

	fs.StringVar(&config.SMTPHost, "smtp-host", config.SMTPHost, "SMTP host")
	fs.IntVar(&config.SMTPPort, "smtp-port", config.SMTPPort, "SMTP port")
	fs.StringVar(&config.SMTPUsername, "smtp-user", config.SMTPUsername, "SMTP username")
	fs.StringVar(&config.SMTPPassword, "smtp-password", config.SMTPPassword, "SMTP password")
	fs.StringVar(&config.SMTPFrom, "smtp-from", config.SMTPFrom, "sender address")

	fs.StringVar(&config.S3AccessKey, "s3-access-key", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "s3-secret-key", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")

	fs.Int64Var(&config.BlobThresholdBytes, "blob-threshold", config.BlobThresholdBytes, "payloads above this size go to S3")
	fs.Int64Var(&config.MaxUploadBytes, "max-upload", config.MaxUploadBytes, "request body limit in bytes")
	fs.IntVar(&config.AuthRateLimit, "rate-limit", config.AuthRateLimit, "auth requests per client per window, 0 disables")
	fs.DurationVar(&config.AuthRateWindow, "rate-window", config.AuthRateWindow, "auth rate limit window")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.TrustedProxies = flagx.SplitList(*proxies)
	return nil
}
