// Package httpapi is the gin transport for plantgate.
package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/gin-gonic/gin"
)

type Deps struct {
	Auth         AuthService
	Plants       PlantService
	Verification VerificationService
	Ingest       IngestService
	Keys         KeyProvider
	Gate         *access.Gate
	Log          logging.Logger

	// TrustedProxies lists the proxy addresses or CIDRs allowed to set
	// X-Forwarded-For. Empty means the peer address is the origin.
	TrustedProxies []string
	MaxUploadBytes int64
	// AuthLimiter throttles the login and verification endpoints; nil
	// disables throttling.
	AuthLimiter *RateLimiter
}

func NewRouter(d Deps) (*gin.Engine, error) {
	log := d.Log.With("module", "http")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))

	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	h := &Handler{
		auth:           d.Auth,
		plants:         d.Plants,
		verification:   d.Verification,
		ingest:         d.Ingest,
		keys:           d.Keys,
		maxUploadBytes: d.MaxUploadBytes,
		log:            log,
	}

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if d.AuthLimiter != nil {
		limit = RateLimit(d.AuthLimiter)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.POST("/auth/login", limit, h.AdminLogin)
	r.POST("/auth/plant/login", limit, h.PlantLogin)
	r.GET("/auth/public-key", h.PublicKey)
	r.GET("/verify", limit, h.Verify)

	api := r.Group("/api")
	api.Use(RequirePlant(d.Gate, log))
	api.POST("/ingest", h.Ingest)
	api.POST("/ingest/raw", h.IngestRaw)

	admin := r.Group("/admin")
	admin.Use(RequireAdmin(d.Gate, log))
	admin.POST("/add-plant", h.AddPlant)
	admin.GET("/plants", h.ListPlants)
	admin.GET("/plants/:email/records", h.PlantRecords)
	admin.POST("/whitelist", h.Whitelist)
	admin.POST("/resend-verification", h.ResendVerification)

	return r, nil
}
