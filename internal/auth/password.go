package auth

import (
	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidInput is returned for registration input that fails validation.
var ErrInvalidInput = errors.New("invalid input")

// HashPassword returns a bcrypt hash of the password at the default cost.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.Wrap(ErrInvalidInput, "password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(hash), nil
}

// CheckPassword reports whether the password matches the stored bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
