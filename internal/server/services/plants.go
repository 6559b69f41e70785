package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/dmitrijs2005/plantgate/internal/server/auth"
	"github.com/dmitrijs2005/plantgate/internal/server/mailer"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/repomanager"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// validate applies the same rules as the gin binding tags.
var validate = validator.New()

// PlantService backs the admin endpoints.
type PlantService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenService
	mailer      mailer.Mailer
	baseURL     string
	log         logging.Logger
}

func NewPlantService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService, ml mailer.Mailer, baseURL string, log logging.Logger) *PlantService {
	return &PlantService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		mailer:      ml,
		baseURL:     strings.TrimRight(baseURL, "/"),
		log:         log.With("module", "plants"),
	}
}

// Register creates an unverified plant and mails it a verification link.
// Mail failures are logged and do not fail the registration.
func (s *PlantService) Register(ctx context.Context, name, email, password string) (*models.Plant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	}

	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, err
	}

	plant := &models.Plant{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}

	created, err := s.repomanager.Plants(s.db).Create(ctx, plant)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating plant: %w", err)
	}

	s.log.Info(ctx, "plant registered", "plant", email)
	s.sendVerification(ctx, email)

	return created, nil
}

func (s *PlantService) List(ctx context.Context) ([]*models.Plant, error) {
	plants, err := s.repomanager.Plants(s.db).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing plants: %w", err)
	}
	return plants, nil
}

const (
	DefaultRecordLimit = 50
	MaxRecordLimit     = 500
)

// Records returns the newest ingest records of a plant. A limit of zero or
// less means DefaultRecordLimit; larger limits are capped at MaxRecordLimit.
func (s *PlantService) Records(ctx context.Context, email string, limit int) ([]*models.IngestRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecordLimit
	case limit > MaxRecordLimit:
		limit = MaxRecordLimit
	}

	email = models.NormalizeEmail(email)
	plant, err := s.repomanager.Plants(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	recs, err := s.repomanager.Records(s.db).ListByPlant(ctx, plant.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing records: %w", err)
	}
	for _, r := range recs {
		r.PlantEmail = plant.Email
	}
	return recs, nil
}

// WhitelistIP lets an admin trust an origin directly, which also verifies
// the plant.
func (s *PlantService) WhitelistIP(ctx context.Context, email, ip string) (Outcome, error) {
	origin, err := access.NormalizeOrigin(strings.TrimSpace(ip))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	email = models.NormalizeEmail(email)
	outcome, err := whitelistOrigin(ctx, s.db, s.repomanager, email, origin)
	if err != nil {
		return 0, err
	}

	s.log.Info(ctx, "origin whitelisted by admin", "plant", email, "ip", origin, "outcome", outcome.String())
	return outcome, nil
}

// ResendVerification mails a fresh verification link to an existing plant.
func (s *PlantService) ResendVerification(ctx context.Context, email string) error {
	email = models.NormalizeEmail(email)
	if _, err := s.repomanager.Plants(s.db).GetByEmail(ctx, email); err != nil {
		return err
	}
	s.sendVerification(ctx, email)
	return nil
}

func (s *PlantService) sendVerification(ctx context.Context, email string) {
	token, err := s.tokens.IssueVerification(email)
	if err != nil {
		s.log.Error(ctx, "issue verification token", "plant", email, "error", err)
		return
	}

	link := s.baseURL + "/verify?token=" + url.QueryEscape(token)
	if err := s.mailer.Deliver(ctx, email, link); err != nil {
		s.log.Error(ctx, "verification mail failed", "plant", email, "error", err)
	}
}

func validateEmail(email string) (string, error) {
	email = models.NormalizeEmail(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	return email, nil
}
