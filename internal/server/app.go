// Package server assembles the plantgate process: storage, crypto, tokens,
// services and the HTTP and gRPC health listeners.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/plantgate/internal/cryptox"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/dmitrijs2005/plantgate/internal/server/auth"
	"github.com/dmitrijs2005/plantgate/internal/server/blobs"
	"github.com/dmitrijs2005/plantgate/internal/server/config"
	"github.com/dmitrijs2005/plantgate/internal/server/httpapi"
	"github.com/dmitrijs2005/plantgate/internal/server/mailer"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/plantgate/internal/server/services"

	gs "github.com/dmitrijs2005/plantgate/internal/server/grpc"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	shutdownTimeout   = 10 * time.Second
	readinessInterval = 5 * time.Second
)

type App struct {
	logger  logging.Logger
	db      *sql.DB
	http    *http.Server
	grpc    *gs.GRPCServer
	limiter *httpapi.RateLimiter
	mail    *mailer.Async
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := build(ctx, c, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	crypto, err := cryptox.LoadOrGenerateManager(c.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("crypto init error: %w", err)
	}

	var store blobs.Store
	if c.S3Bucket != "" {
		s3, err := blobs.NewS3Store(ctx, blobs.S3Config{
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Bucket:    c.S3Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("blob store init error: %w", err)
		}
		store = s3
	}

	var inner mailer.Mailer = mailer.NewLogMailer(logger)
	if c.SMTPHost != "" {
		inner = mailer.NewSMTPMailer(c.SMTPHost, c.SMTPPort, c.SMTPUsername, c.SMTPPassword, c.SMTPFrom)
	}
	mail := mailer.NewAsync(inner, logger)

	tokens := auth.NewTokenService([]byte(c.SecretKey), c.SessionTokenTTL, c.VerificationTokenTTL)
	gate := access.NewGate(tokens)
	limiter := httpapi.NewRateLimiter(c.AuthRateLimit, c.AuthRateWindow)

	router, err := httpapi.NewRouter(httpapi.Deps{
		Auth:           services.NewAuthService(db, rm, tokens, c.AdminUsername, c.AdminPassword, logger),
		Plants:         services.NewPlantService(db, rm, tokens, mail, c.PublicBaseURL, logger),
		Verification:   services.NewVerificationService(db, rm, tokens, logger),
		Ingest:         services.NewIngestService(db, rm, gate, crypto, store, c.BlobThresholdBytes, logger),
		Keys:           crypto,
		Gate:           gate,
		Log:            logger,
		TrustedProxies: c.TrustedProxies,
		MaxUploadBytes: c.MaxUploadBytes,
		AuthLimiter:    limiter,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		logger: logger,
		db:     db,
		http: &http.Server{
			Addr:              c.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		grpc:    gs.NewGRPCServer(c.GRPCAddr, logger),
		limiter: limiter,
		mail:    mail,
	}, nil
}

// Run serves until ctx is cancelled or a listener fails, then drains both
// listeners and pending mail before closing the database.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.grpc.Run(ctx)
	})

	g.Go(func() error {
		app.grpc.MonitorReadiness(ctx, app.db.PingContext, readinessInterval)
		return nil
	})

	g.Go(func() error {
		app.limiter.Run(ctx.Done())
		return nil
	})

	g.Go(func() error {
		app.logger.Info(ctx, "Starting HTTP server", "address", app.http.Addr)
		if err := app.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return app.http.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	app.mail.Wait()
	if cerr := app.db.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
