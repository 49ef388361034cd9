package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Setting is a persisted key value pair, such as the token signing secret.
type Setting struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Value     string
}

func (s *Store) GetSetting(ctx context.Context, id string) (*Setting, error) {
	var v Setting
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get setting %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) SetSetting(ctx context.Context, v *Setting) error {
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set setting %s: %w", v.ID, err)
	}
	return nil
}

// LoadOrCreateSetting returns the stored value or saves the one returned by
// create.
func (s *Store) LoadOrCreateSetting(ctx context.Context, id string, create func() (string, error)) (string, error) {
	v, err := s.GetSetting(ctx, id)
	if err == nil {
		return v.Value, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	value, err := create()
	if err != nil {
		return "", fmt.Errorf("storage: couldn't create setting %s: %w", id, err)
	}
	if err := s.SetSetting(ctx, &Setting{ID: id, Value: value}); err != nil {
		return "", err
	}
	return value, nil
}
