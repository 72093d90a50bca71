package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ForbiddenError indicates the caller's role does not allow the action.
type ForbiddenError struct {
	Role   string
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("role %s cannot %s", e.Role, e.Action)
}

// RequireAdmin guards mutations on parts, templates, and repositories.
func RequireAdmin(role, action string) error {
	if role != "admin" {
		return ForbiddenError{Role: role, Action: action}
	}
	return nil
}

// HashPassword returns the bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeEmail lowercases and trims an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
