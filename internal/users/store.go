package users

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/imrishuroy/go-foodorder/internal/apperr"
	"github.com/imrishuroy/go-foodorder/internal/database"
)

// Store encapsulates operations on the users table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts u. A duplicate username or email is reported as a conflict.
func (s *Store) Create(ctx context.Context, u *User) error {
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.Active = true
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.ErrConflict.WithMessage("username or email already registered")
		}
		return apperr.Storage("create user", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uint) (*User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.first(ctx, "username = ?", username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.first(ctx, "email = ?", email)
}

func (s *Store) first(ctx context.Context, query string, arg any) (*User, error) {
	var u User
	err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, apperr.Storage("get user", err)
	}
	return &u, nil
}

// List returns all users ordered by id.
func (s *Store) List(ctx context.Context) ([]User, error) {
	var out []User
	if err := s.db.WithContext(ctx).Order("id").Find(&out).Error; err != nil {
		return nil, apperr.Storage("list users", err)
	}
	return out, nil
}

// UpdateProfile overwrites the non-empty fields of p.
func (s *Store) UpdateProfile(ctx context.Context, id uint, p Profile) (*User, error) {
	updates := map[string]any{}
	if p.FullName != "" {
		updates["full_name"] = p.FullName
	}
	if p.Email != "" {
		updates["email"] = p.Email
	}
	if p.Phone != "" {
		updates["phone"] = p.Phone
	}
	if p.Address != "" {
		updates["address"] = p.Address
	}
	if len(updates) > 0 {
		if err := s.update(ctx, id, updates); err != nil {
			return nil, err
		}
	}
	return s.GetByID(ctx, id)
}

func (s *Store) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.update(ctx, id, map[string]any{"password_hash": hash})
}

// SetActive deactivates or reactivates an account.
func (s *Store) SetActive(ctx context.Context, id uint, active bool) error {
	return s.update(ctx, id, map[string]any{"active": active})
}

func (s *Store) update(ctx context.Context, id uint, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if database.IsUniqueViolation(res.Error) {
			return apperr.ErrConflict.WithMessage("email already registered")
		}
		return apperr.Storage("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrUserNotFound
	}
	return nil
}

// Contact returns the address order notifications go to.
func (s *Store) Contact(ctx context.Context, id uint) (string, string, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return "", "", err
	}
	return u.Email, u.FullName, nil
}
