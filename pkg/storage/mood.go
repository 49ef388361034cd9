package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// MoodNames are the generation modes a user can pick as favorite.
var MoodNames = []string{"focus", "relax", "sleep"}

var ListeningTimeNames = []string{"morning", "noon", "afternoon", "evening", "night", "late_night"}

// EntryMoods are the moods a user can log in the journal.
var EntryMoods = []string{"happy", "sad", "angry", "relaxed", "anxious", "neutral"}

var ErrInvalidChoice = errors.New("invalid choice")

type Mood struct {
	ID   string `gorm:"primarykey"`
	Name string `gorm:"uniqueIndex;size:10;not null"`
}

type ListeningTime struct {
	ID   string `gorm:"primarykey"`
	Name string `gorm:"uniqueIndex;size:20;not null"`
}

type Preference struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time

	UserID string `gorm:"index;not null"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	MoodID *string
	Mood   *Mood `gorm:"foreignKey:MoodID"`

	TimeID *string
	Time   *ListeningTime `gorm:"foreignKey:TimeID"`
}

type MoodEntry struct {
	ID        string `gorm:"primarykey"`
	CreatedAt time.Time

	UserID string `gorm:"index;not null"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	Mood string `gorm:"size:20;not null"`
	Note string `gorm:"not null;default:''"`
}

func valid(choices []string, v string) bool {
	for _, c := range choices {
		if c == v {
			return true
		}
	}
	return false
}

// AddPreference records a favorite mood and listening time. Empty values
// are stored as null.
func (s *Store) AddPreference(ctx context.Context, userID, mood, listeningTime string) (*Preference, error) {
	p := &Preference{
		ID:     ulid.Make().String(),
		UserID: userID,
	}
	if mood != "" {
		if !valid(MoodNames, mood) {
			return nil, fmt.Errorf("storage: %w: mood %q", ErrInvalidChoice, mood)
		}
		p.MoodID = &mood
	}
	if listeningTime != "" {
		if !valid(ListeningTimeNames, listeningTime) {
			return nil, fmt.Errorf("storage: %w: time %q", ErrInvalidChoice, listeningTime)
		}
		p.TimeID = &listeningTime
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to create preference: %w", err)
	}
	return p, nil
}

func (s *Store) ListPreferences(ctx context.Context, userID string) ([]*Preference, error) {
	vs := []*Preference{}
	q := s.db.WithContext(ctx).Preload("Mood").Preload("Time")
	if err := q.Where("user_id = ?", userID).Order("created_at asc, id asc").Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list preferences: %w", err)
	}
	return vs, nil
}

// LastPreference returns the most recent preference of the user.
func (s *Store) LastPreference(ctx context.Context, userID string) (*Preference, error) {
	var v Preference
	q := s.db.WithContext(ctx).Preload("Mood").Preload("Time")
	if err := q.Where("user_id = ?", userID).Order("created_at desc, id desc").First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get last preference: %w", err)
	}
	return &v, nil
}

func (s *Store) AddMoodEntry(ctx context.Context, userID, mood, note string) (*MoodEntry, error) {
	if !valid(EntryMoods, mood) {
		return nil, fmt.Errorf("storage: %w: mood %q", ErrInvalidChoice, mood)
	}
	e := &MoodEntry{
		ID:     ulid.Make().String(),
		UserID: userID,
		Mood:   mood,
		Note:   note,
	}
	if err := s.db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to create mood entry: %w", err)
	}
	return e, nil
}

// ListMoodEntries returns the entries of the user, newest first.
func (s *Store) ListMoodEntries(ctx context.Context, userID string, page, size int) ([]*MoodEntry, error) {
	vs := []*MoodEntry{}
	q := paginate(s.db.WithContext(ctx), page, size)
	if err := q.Where("user_id = ?", userID).Order("created_at desc, id desc").Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("storage: failed to list mood entries: %w", err)
	}
	return vs, nil
}
