package storage

import (
	"context"
	"fmt"
	"time"
)

// RevokedToken is the id of a logged out API token. Rows can be removed
// once the token has expired.
type RevokedToken struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

func (s *Store) RevokeToken(ctx context.Context, id string, expiresAt time.Time) error {
	if err := s.db.WithContext(ctx).Save(&RevokedToken{ID: id, ExpiresAt: expiresAt}).Error; err != nil {
		return fmt.Errorf("storage: failed to revoke token %s: %w", id, err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&RevokedToken{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("storage: failed to check token %s: %w", id, err)
	}
	return count > 0, nil
}

// PurgeTokens deletes revoked tokens that expired before t.
func (s *Store) PurgeTokens(ctx context.Context, t time.Time) error {
	if err := s.db.WithContext(ctx).Delete(&RevokedToken{}, "expires_at < ?", t).Error; err != nil {
		return fmt.Errorf("storage: failed to purge tokens: %w", err)
	}
	return nil
}
