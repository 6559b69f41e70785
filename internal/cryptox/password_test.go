package cryptox

import (
	"errors"
	"strings"
	"testing"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_CheckPassword(t *testing.T) {
	h, err := HashPassword("s3cret-plant")
	require.NoError(t, err)

	assert.True(t, CheckPassword(h, "s3cret-plant"))
	assert.False(t, CheckPassword(h, "wrong"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret-plant"))
}

func TestHashPassword_RejectsInvalid(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", common.MaxPasswordBytes+1))
	assert.True(t, errors.Is(err, common.ErrorValidation))

	_, err = HashPassword("")
	assert.True(t, errors.Is(err, common.ErrorValidation))

	_, err = HashPassword(strings.Repeat("a", common.MaxPasswordBytes))
	assert.NoError(t, err)
}
