package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
	"github.com/dmitrijs2005/plantgate/internal/server/services"
	"github.com/gin-gonic/gin"
)

type AuthService interface {
	LoginAdmin(ctx context.Context, username, password string) (string, error)
	LoginPlant(ctx context.Context, email, password string) (string, error)
}

type PlantService interface {
	Register(ctx context.Context, name, email, password string) (*models.Plant, error)
	List(ctx context.Context) ([]*models.Plant, error)
	WhitelistIP(ctx context.Context, email, ip string) (services.Outcome, error)
	ResendVerification(ctx context.Context, email string) error
	Records(ctx context.Context, email string, limit int) ([]*models.IngestRecord, error)
}

type VerificationService interface {
	Consume(ctx context.Context, token, origin string) (services.Outcome, error)
}

type IngestService interface {
	Authorize(ctx context.Context, token, plantEmail, origin string) (*models.Plant, error)
	Ingest(ctx context.Context, req services.IngestRequest) (*models.IngestRecord, error)
}

type KeyProvider interface {
	PublicKeyPEM() string
}

// Header names for the raw upload endpoint.
const (
	HeaderPlantEmail   = "X-Plant-Email"
	HeaderDataType     = "X-Data-Type"
	HeaderEncryptedKey = "X-Encrypted-Key"
	HeaderIV           = "X-IV"
)

type Handler struct {
	auth           AuthService
	plants         PlantService
	verification   VerificationService
	ingest         IngestService
	keys           KeyProvider
	maxUploadBytes int64
	log            logging.Logger
}

type adminLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type plantLoginBody struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.auth.LoginAdmin(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: common.BearerScheme})
}

func (h *Handler) PlantLogin(c *gin.Context) {
	var body plantLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.auth.LoginPlant(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: common.BearerScheme})
}

func (h *Handler) PublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"public_key": h.keys.PublicKeyPEM()})
}

func (h *Handler) Verify(c *gin.Context) {
	token := c.Query("token")
	origin := c.ClientIP()

	outcome, err := h.verification.Consume(c.Request.Context(), token, origin)
	if err != nil {
		switch reason, _ := access.ReasonOf(err); reason {
		case access.TokenExpired:
			h.log.Info(c.Request.Context(), "verification denied", "reason", reason.String(), "ip", origin)
			c.JSON(http.StatusBadRequest, gin.H{"error": "verification link expired"})
		case access.TokenInvalid:
			h.log.Info(c.Request.Context(), "verification denied", "reason", reason.String(), "ip", origin)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification link"})
		default:
			writeError(c, h.log, err)
		}
		return
	}

	msg := "origin whitelisted, plant verified"
	if outcome == services.AlreadyWhitelisted {
		msg = "origin already whitelisted"
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome.String(), "ip": origin, "message": msg})
}

type ingestBody struct {
	PlantEmail   string `json:"plant_email" binding:"required"`
	DataType     string `json:"data_type" binding:"required"`
	EncryptedKey string `json:"encrypted_key" binding:"required"`
	IV           string `json:"iv" binding:"required"`
	Ciphertext   string `json:"ciphertext" binding:"required"`
}

func (h *Handler) Ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var body ingestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.runIngest(c, services.IngestRequest{
		Token:      bearerToken(c),
		PlantEmail: body.PlantEmail,
		Origin:     c.ClientIP(),
		DataType:   body.DataType,
		Envelope:   cryptox.Encoded{EncryptedKey: body.EncryptedKey, IV: body.IV, Ciphertext: body.Ciphertext},
	})
}

// IngestRaw accepts the ciphertext as the raw request body, for uploads too
// large to base64 inside JSON. Every access input travels in headers, so
// the full check runs before the body is read.
func (h *Handler) IngestRaw(c *gin.Context) {
	if _, err := h.ingest.Authorize(c.Request.Context(), bearerToken(c), c.GetHeader(HeaderPlantEmail), c.ClientIP()); err != nil {
		writeError(c, h.log, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes))
	if err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	h.runIngest(c, services.IngestRequest{
		Token:      bearerToken(c),
		PlantEmail: c.GetHeader(HeaderPlantEmail),
		Origin:     c.ClientIP(),
		DataType:   c.GetHeader(HeaderDataType),
		Envelope:   cryptox.Raw{EncryptedKey: c.GetHeader(HeaderEncryptedKey), IV: c.GetHeader(HeaderIV), Ciphertext: body},
	})
}

func (h *Handler) runIngest(c *gin.Context, req services.IngestRequest) {
	rec, err := h.ingest.Ingest(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "id": rec.ID, "size": rec.Size})
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

type plantView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	WhitelistedIPs []string  `json:"whitelisted_ips"`
	IsVerified     bool      `json:"is_verified"`
	CreatedAt      time.Time `json:"created_at"`
}

func viewPlant(p *models.Plant) plantView {
	ips := p.WhitelistedIPs
	if ips == nil {
		ips = []string{}
	}
	return plantView{
		ID:             p.ID,
		Name:           p.Name,
		Email:          p.Email,
		WhitelistedIPs: ips,
		IsVerified:     p.IsVerified,
		CreatedAt:      p.CreatedAt,
	}
}

type addPlantBody struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) AddPlant(c *gin.Context) {
	var body addPlantBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	p, err := h.plants.Register(c.Request.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info(c.Request.Context(), "plant added", "admin", subjectFrom(c), "plant", p.Email)
	c.JSON(http.StatusCreated, gin.H{"plant": viewPlant(p), "message": "verification email sent"})
}

func (h *Handler) ListPlants(c *gin.Context) {
	plants, err := h.plants.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := make([]plantView, 0, len(plants))
	for _, p := range plants {
		resp = append(resp, viewPlant(p))
	}
	c.JSON(http.StatusOK, gin.H{"plants": resp})
}

type whitelistBody struct {
	PlantEmail string `json:"plant_email" binding:"required"`
	IPAddress  string `json:"ip_address" binding:"required"`
}

func (h *Handler) Whitelist(c *gin.Context) {
	var body whitelistBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	outcome, err := h.plants.WhitelistIP(c.Request.Context(), body.PlantEmail, body.IPAddress)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome.String()})
}

type resendBody struct {
	PlantEmail string `json:"plant_email" binding:"required"`
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var body resendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.plants.ResendVerification(c.Request.Context(), body.PlantEmail); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

type recordView struct {
	ID        string          `json:"id"`
	DataType  string          `json:"data_type"`
	IPAddress string          `json:"ip_address"`
	Size      int64           `json:"size"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	BlobKey   string          `json:"blob_key,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type recordsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// PlantRecords lists a plant's newest records. Offloaded payloads are
// referenced by blob key only.
func (h *Handler) PlantRecords(c *gin.Context) {
	var q recordsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	recs, err := h.plants.Records(c.Request.Context(), c.Param("email"), q.Limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	resp := make([]recordView, 0, len(recs))
	for _, r := range recs {
		resp = append(resp, recordView{
			ID:        r.ID,
			DataType:  string(r.DataType),
			IPAddress: r.IPAddress,
			Size:      r.Size,
			Payload:   r.Payload,
			BlobKey:   r.BlobKey,
			CreatedAt: r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"records": resp})
}
