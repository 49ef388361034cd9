package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Generation records a rendered soundscape.
type Generation struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	UserID string `gorm:"index;not null;default:''"`
	Mode   string `gorm:"index;not null"`
	Seed   int64  `gorm:"not null;default:0"`
	Tempo  int    `gorm:"not null;default:0"`
	Title  string `gorm:"not null;default:''"`
	Tracks int    `gorm:"not null;default:0"`

	Midi     string  `gorm:"not null;default:''"`
	Audio    string  `gorm:"not null;default:''"`
	URL      string  `gorm:"not null;default:''"`
	Duration float32 `gorm:"not null;default:0"`
}

// GetGeneration returns ErrNotFound when the id is unknown.
func (s *Store) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	var v Generation
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get generation %s: %w", id, err)
	}
	return &v, nil
}

// SetGeneration inserts or updates the generation.
func (s *Store) SetGeneration(ctx context.Context, v *Generation) error {
	if err := s.db.WithContext(ctx).Save(v).Error; err != nil {
		return fmt.Errorf("storage: failed to set generation %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) DeleteGeneration(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&Generation{ID: id}, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("storage: failed to delete generation %s: %w", id, err)
	}
	return nil
}

// ListGenerations returns a page of generations matching the filters.
func (s *Store) ListGenerations(ctx context.Context, page, size int, orderBy string, filter ...Filter) ([]*Generation, error) {
	vs := []*Generation{}
	q := paginate(s.db.WithContext(ctx), page, size)
	for _, f := range filter {
		q = q.Where(f.Query, f.Args...)
	}
	if orderBy != "" {
		q = q.Order(orderBy)
	}
	if err := q.Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list generations: %w", err)
	}
	return vs, nil
}
