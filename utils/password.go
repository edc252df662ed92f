package utils

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"
)

// CheckAdminLogin reports whether the credentials match the configured
// administrator. The bcrypt comparison always runs, whatever the username.
func CheckAdminLogin(username, password, adminUsername, adminPasswordHash string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(adminUsername)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(adminPasswordHash), []byte(password)) == nil
	return userOK && passOK
}
