package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword bcrypt-hashes password. Passwords longer than bcrypt's 72
// byte limit are rejected instead of being silently truncated.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", fmt.Errorf("%w: empty password", common.ErrorValidation)
	}
	if len(password) > common.MaxPasswordBytes {
		return "", fmt.Errorf("%w: password is too long (max %d bytes)", common.ErrorValidation, common.MaxPasswordBytes)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
