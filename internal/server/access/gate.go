// Package access joins token validation with origin whitelisting. Every
// authorization path returns either a subject or a *DeniedError.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/server/auth"
	"github.com/dmitrijs2005/plantgate/internal/server/models"
)

type TokenValidator interface {
	Validate(token string, expected auth.Role) (string, error)
}

// IdentityLookup finds a plant by email. It returns common.ErrorNotFound
// when there is none. plants.Repository satisfies it.
type IdentityLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.Plant, error)
}

type Gate struct {
	tokens TokenValidator
}

func NewGate(tokens TokenValidator) *Gate {
	return &Gate{tokens: tokens}
}

func (g *Gate) AuthorizeAdmin(token string) (string, error) {
	return g.authorize(token, auth.RoleAdmin)
}

func (g *Gate) AuthorizePlantSession(token string) (string, error) {
	return g.authorize(token, auth.RolePlant)
}

// AuthorizeIngest checks, in order: the plant session token, that its
// subject equals declared, that the plant exists, and that origin is on
// its whitelist. The lookup is keyed by the token subject. Storage
// failures are returned as plain errors, not denials.
func (g *Gate) AuthorizeIngest(ctx context.Context, token, declared, origin string, lookup IdentityLookup) (*models.Plant, error) {
	subject, err := g.AuthorizePlantSession(token)
	if err != nil {
		return nil, err
	}

	if subject != declared {
		return nil, deny(SubjectMismatch)
	}

	plant, err := lookup.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, deny(IdentityNotFound)
		}
		return nil, fmt.Errorf("identity lookup: %w", err)
	}

	normalized, err := NormalizeOrigin(origin)
	if err != nil || !originAllowed(plant.WhitelistedIPs, normalized) {
		return nil, deny(OriginNotWhitelisted)
	}

	return plant, nil
}

func (g *Gate) authorize(token string, role auth.Role) (string, error) {
	subject, err := g.tokens.Validate(token, role)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return "", deny(TokenExpired)
		}
		return "", deny(TokenInvalid)
	}
	return subject, nil
}
