package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckAdminLogin("admin", "correct horse", "admin", string(hash)))
	assert.False(t, CheckAdminLogin("admin", "wrong", "admin", string(hash)))
	assert.False(t, CheckAdminLogin("root", "correct horse", "admin", string(hash)))
	assert.False(t, CheckAdminLogin("admin", "correct horse", "admin", "not-a-hash"))
}
