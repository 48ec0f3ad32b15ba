package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account in the credential directory. Provisioning happens out of
// band; the server only ever reads these rows.
type User struct {
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	IsActive     bool
}

// CheckPassword verifies the provided password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// HashPassword hashes a password using bcrypt. Used by provisioning tooling
// and test fixtures.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}
