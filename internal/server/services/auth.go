package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/auth"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/repomanager"
)

// AuthService exchanges credentials for 24h session tokens. Bad
// credentials of any kind yield common.ErrorUnauthorized.
type AuthService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	tokens        *auth.TokenService
	adminUser     string
	adminPassword string
	log           logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService, adminUser, adminPassword string, log logging.Logger) *AuthService {
	return &AuthService{
		db:            db,
		repomanager:   m,
		tokens:        tokens,
		adminUser:     adminUser,
		adminPassword: adminPassword,
		log:           log.With("module", "auth"),
	}
}

// LoginAdmin checks the configured admin credentials. Admin login is
// disabled when no password is configured.
func (s *AuthService) LoginAdmin(ctx context.Context, username, password string) (string, error) {
	if s.adminPassword == "" {
		return "", common.ErrorUnauthorized
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUser))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.adminPassword))
	if userOK&passOK != 1 {
		s.log.Info(ctx, "admin login rejected")
		return "", common.ErrorUnauthorized
	}

	token, err := s.tokens.IssueSession(s.adminUser, auth.RoleAdmin)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// LoginPlant verifies a plant's password. Unknown emails still pay for a
// bcrypt comparison.
func (s *AuthService) LoginPlant(ctx context.Context, email, password string) (string, error) {
	email = models.NormalizeEmail(email)

	plant, err := s.repomanager.Plants(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.CheckPassword(s.dummy(), password)
			return "", common.ErrorUnauthorized
		}
		s.log.Error(ctx, "plant lookup failed", "error", err)
		return "", common.ErrorInternal
	}

	if !cryptox.CheckPassword(plant.PasswordHash, password) {
		s.log.Info(ctx, "plant login rejected", "plant", email)
		return "", common.ErrorUnauthorized
	}

	token, err := s.tokens.IssueSession(plant.Email, auth.RolePlant)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		secret, err := common.MakeRandHexString(16)
		if err != nil {
			return
		}
		if h, err := cryptox.HashPassword(secret); err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
