package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type User struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Username string `gorm:"uniqueIndex;size:150;not null"`
	Email    string `gorm:"uniqueIndex;size:254;not null;default:''"`
	Password string `gorm:"not null" json:"-"`
	Pro      bool   `gorm:"not null;default:false"`
}

// SetPassword stores the bcrypt hash of the password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("storage: couldn't hash password: %w", err)
	}
	u.Password = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// CreateUser registers a new user with a hashed password.
func (s *Store) CreateUser(ctx context.Context, username, email, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("storage: username and password are required")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to check user %s: %w", username, err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}
	u := &User{
		ID:       ulid.Make().String(),
		Username: username,
		Email:    strings.TrimSpace(email),
	}
	if err := u.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to create user %s: %w", username, err)
	}
	return u, nil
}

// Authenticate returns the user if the password matches.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	var u User
	if err := s.db.WithContext(ctx).First(&u, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("storage: failed to get user %s: %w", username, err)
	}
	if !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var v User
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get user %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Preference{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&MoodEntry{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&User{ID: id}).Error
	})
	if err != nil {
		return fmt.Errorf("storage: failed to delete user %s: %w", id, err)
	}
	return nil
}
