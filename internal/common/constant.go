package common

const (
	// AuthorizationHeaderName carries "Bearer <token>" on authenticated requests.
	AuthorizationHeaderName = "Authorization"

	// BearerScheme is the only accepted authorization scheme.
	BearerScheme = "Bearer"

	// MaxPasswordBytes is the longest password bcrypt will hash without truncation.
	MaxPasswordBytes = 72
)
