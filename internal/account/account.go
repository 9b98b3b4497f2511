// Package account handles password hashing and the reversible renaming of
// unique user fields on soft delete.
package account

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
)

const (
	deletedMarker     = "__deleted_"
	minPasswordLength = 8
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", errs.Validation("password must be at least %d characters", minPasswordLength)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Mangle returns value with a suffix that frees the original for reuse. The
// suffix embeds the user id and deletion time so two deletions of the same
// address never collide.
func Mangle(value string, userID uint, at time.Time) string {
	return fmt.Sprintf("%s%s%d_%d", value, deletedMarker, userID, at.Unix())
}

// Unmangle strips a suffix added by Mangle. It returns value unchanged and
// false if there is none.
func Unmangle(value string) (string, bool) {
	i := strings.LastIndex(value, deletedMarker)
	if i < 0 {
		return value, false
	}
	return value[:i], true
}

// SoftDelete returns the column changes that mark u deleted.
func SoftDelete(u model.User, now time.Time) (map[string]any, error) {
	if u.IsDeleted {
		return nil, errs.Validation("user %d is already deleted", u.ID)
	}
	return map[string]any{
		"email":      Mangle(u.Email, u.ID, now),
		"username":   Mangle(u.Username, u.ID, now),
		"is_deleted": true,
		"is_active":  false,
		"deleted_on": &now,
		"updated_at": now,
	}, nil
}

// Restore returns the column changes that bring u back, together with the
// original email and username so the caller can check nobody took them in
// the meantime.
func Restore(u model.User, now time.Time) (cols map[string]any, email, username string, err error) {
	if !u.IsDeleted {
		return nil, "", "", errs.Validation("user %d is not deleted", u.ID)
	}
	email, _ = Unmangle(u.Email)
	username, _ = Unmangle(u.Username)
	cols = map[string]any{
		"email":      email,
		"username":   username,
		"is_deleted": false,
		"is_active":  true,
		"deleted_on": nil,
		"updated_at": now,
	}
	return cols, email, username, nil
}

// NormalizeEmail lower-cases and trims an address and checks its shape.
func NormalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	at := strings.IndexByte(e, '@')
	if at <= 0 || at == len(e)-1 || strings.Count(e, "@") != 1 || strings.ContainsAny(e, " \t") {
		return "", errs.Validation("invalid email %q", raw)
	}
	if strings.Contains(e, deletedMarker) {
		return "", errs.Validation("invalid email %q", raw)
	}
	return e, nil
}

// ValidRole reports whether r may be assigned to an account.
func ValidRole(r model.Role) bool {
	switch r {
	case model.RoleEmployee, model.RoleManager, model.RoleAdmin, model.RoleSuperAdmin:
		return true
	}
	return false
}
