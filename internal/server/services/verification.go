package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/logging"
	"github.com/dmitrijs2005/plantgate/internal/server/access"
	"github.com/dmitrijs2005/plantgate/internal/server/auth"
	"github.com/dmitrijs2005/plantgate/internal/server/repositories/repomanager"
)

// VerificationService turns a mailed verification token into a trusted
// origin. Tokens are not tracked after use; a valid token may be redeemed
// again until it expires.
type VerificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	tokens      *auth.TokenService
	log         logging.Logger
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, tokens *auth.TokenService, log logging.Logger) *VerificationService {
	return &VerificationService{
		db:          db,
		repomanager: m,
		tokens:      tokens,
		log:         log.With("module", "verification"),
	}
}

// Consume validates token and whitelists origin for the token's plant.
// Token failures are *access.DeniedError with TokenExpired or TokenInvalid
// and change nothing.
func (s *VerificationService) Consume(ctx context.Context, token, origin string) (Outcome, error) {
	email, err := s.tokens.ValidateVerification(token)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return 0, &access.DeniedError{Reason: access.TokenExpired}
		}
		return 0, &access.DeniedError{Reason: access.TokenInvalid}
	}

	normalized, err := access.NormalizeOrigin(origin)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	outcome, err := whitelistOrigin(ctx, s.db, s.repomanager, email, normalized)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, &access.DeniedError{Reason: access.IdentityNotFound}
		}
		s.log.Error(ctx, "whitelist update failed", "plant", email, "error", err)
		return 0, fmt.Errorf("whitelist update: %w", err)
	}

	s.log.Info(ctx, "plant verified", "plant", email, "ip", normalized, "outcome", outcome.String())
	return outcome, nil
}
