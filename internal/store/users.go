package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"assetdesk-backend/internal/account"
	"assetdesk-backend/internal/errs"
	"assetdesk-backend/internal/model"
	"assetdesk-backend/internal/parse"
)

// UserFilter narrows a user listing. Deleted accounts are hidden unless
// IncludeDeleted is set.
type UserFilter struct {
	IncludeDeleted bool
	Department     string
	Role           model.Role
	Search         string
}

// UserPatch carries the editable profile fields. Nil fields are left alone.
type UserPatch struct {
	FirstName  *string
	LastName   *string
	Email      *string
	Department *string
	Role       *model.Role
	IsActive   *bool
	IsVerified *bool
	Password   *string
}

// CreateUser inserts u. u.PasswordHash must already be set.
func (s *gormStore) CreateUser(ctx context.Context, u *model.User) error {
	email, err := account.NormalizeEmail(u.Email)
	if err != nil {
		return err
	}
	u.Email = email
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return errs.Validation("username is required")
	}
	if u.Role == "" {
		u.Role = model.RoleEmployee
	}
	if !account.ValidRole(u.Role) {
		return errs.Validation("unknown role %q", u.Role)
	}
	if u.PasswordHash == "" {
		return errs.Validation("password is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loginFree(tx, u.Email, u.Username, 0); err != nil {
			return err
		}
		if err := tx.Create(u).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("email or username: %w", errs.ErrDuplicate)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

// loginFree checks that no other user holds email or username. Mangled
// values of deleted users never match.
func loginFree(tx *gorm.DB, email, username string, except uint) error {
	var n int64
	q := tx.Model(&model.User{}).Where("email = ?", email)
	if except != 0 {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("email %s: %w", email, errs.ErrDuplicate)
	}
	q = tx.Model(&model.User{}).Where("username = ?", username)
	if except != 0 {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("username %s: %w", username, errs.ErrDuplicate)
	}
	return nil
}

func (s *gormStore) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

// FindUserByLogin looks up a live account by username or email.
func (s *gormStore) FindUserByLogin(ctx context.Context, login string) (*model.User, error) {
	login = strings.TrimSpace(login)
	var u model.User
	err := s.db.WithContext(ctx).
		Where("(username = ? OR email = ?) AND is_deleted = ?", login, strings.ToLower(login), false).
		First(&u).Error
	if err != nil {
		return nil, notFound(err, "user", login)
	}
	return &u, nil
}

func (s *gormStore) ListUsers(ctx context.Context, f UserFilter) ([]model.User, error) {
	q := s.db.WithContext(ctx).Model(&model.User{})
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.Department != "" {
		q = q.Where("department = ?", f.Department)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if term := parse.Search(f.Search); !term.Empty() {
		like := term.LikePattern()
		q = q.Where("("+parse.LikeAny("first_name", "last_name", "email", "username")+")",
			like, like, like, like)
	}
	var out []model.User
	if err := q.Order("last_name, first_name, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return out, nil
}

func (s *gormStore) UpdateUser(ctx context.Context, id uint, patch UserPatch, now time.Time) (*model.User, error) {
	cols := map[string]any{}
	if patch.FirstName != nil {
		cols["first_name"] = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		cols["last_name"] = strings.TrimSpace(*patch.LastName)
	}
	if patch.Department != nil {
		cols["department"] = strings.TrimSpace(*patch.Department)
	}
	if patch.Role != nil {
		if !account.ValidRole(*patch.Role) {
			return nil, errs.Validation("unknown role %q", *patch.Role)
		}
		cols["role"] = *patch.Role
	}
	if patch.IsActive != nil {
		cols["is_active"] = *patch.IsActive
	}
	if patch.IsVerified != nil {
		cols["is_verified"] = *patch.IsVerified
	}
	if patch.Email != nil {
		email, err := account.NormalizeEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		cols["email"] = email
	}
	if patch.Password != nil {
		hash, err := account.HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		cols["password_hash"] = hash
	}
	if len(cols) == 0 {
		return s.GetUser(ctx, id)
	}
	cols["updated_at"] = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.User
		if err := tx.First(&cur, id).Error; err != nil {
			return notFound(err, "user", id)
		}
		if cur.IsDeleted {
			return errs.Validation("user %d is deleted; restore it first", id)
		}
		if email, ok := cols["email"].(string); ok && email != cur.Email {
			if err := loginFree(tx, email, cur.Username, id); err != nil {
				return err
			}
		}
		return updateIfUnchanged(tx, &model.User{}, id, cur.UpdatedAt, cols)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser soft-deletes the user, freeing their email and username.
func (s *gormStore) DeleteUser(ctx context.Context, id uint, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.User
		if err := tx.First(&cur, id).Error; err != nil {
			return notFound(err, "user", id)
		}
		cols, err := account.SoftDelete(cur, now)
		if err != nil {
			return err
		}
		return updateIfUnchanged(tx, &model.User{}, id, cur.UpdatedAt, cols)
	})
}

// RestoreUser reverses DeleteUser. It fails if another live account took the
// original email or username in the meantime.
func (s *gormStore) RestoreUser(ctx context.Context, id uint, now time.Time) (*model.User, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.User
		if err := tx.First(&cur, id).Error; err != nil {
			return notFound(err, "user", id)
		}
		cols, email, username, err := account.Restore(cur, now)
		if err != nil {
			return err
		}
		if err := loginFree(tx, email, username, id); err != nil {
			return err
		}
		return updateIfUnchanged(tx, &model.User{}, id, cur.UpdatedAt, cols)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}
