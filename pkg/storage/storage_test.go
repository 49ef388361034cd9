package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New("sqlite", filepath.Join(t.TempDir(), "xenotune.db"), false)
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() err = %v; want nil", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() err = %v; want nil", err)
	}
	return s
}

func TestUnknownDB(t *testing.T) {
	if _, err := New("oracle", "", false); err == nil {
		t.Fatalf("New() err = nil; want error")
	}
}

func TestMigrateTwice(t *testing.T) {
	s := testStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() err = %v; want nil", err)
	}
	var count int64
	if err := s.db.Model(&Mood{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != int64(len(MoodNames)) {
		t.Fatalf("moods = %d; want %d", count, len(MoodNames))
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	u, err := s.CreateUser(ctx, "ada", "ada@example.com", "secret")
	if err != nil {
		t.Fatalf("CreateUser() err = %v; want nil", err)
	}
	if u.Password == "secret" {
		t.Fatalf("password stored in clear text")
	}
	if _, err := s.CreateUser(ctx, "ada", "other@example.com", "x"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("CreateUser() err = %v; want ErrUserExists", err)
	}
	if _, err := s.Authenticate(ctx, "ada", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Authenticate() err = %v; want ErrInvalidCredentials", err)
	}
	if _, err := s.Authenticate(ctx, "bob", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Authenticate() err = %v; want ErrInvalidCredentials", err)
	}
	got, err := s.Authenticate(ctx, "ada", "secret")
	if err != nil {
		t.Fatalf("Authenticate() err = %v; want nil", err)
	}
	if got.ID != u.ID {
		t.Fatalf("Authenticate() = %s; want %s", got.ID, u.ID)
	}
	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser() err = %v; want ErrNotFound", err)
	}
}

func TestPreferencesAndEntries(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	u, err := s.CreateUser(ctx, "ada", "ada@example.com", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.LastPreference(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LastPreference() err = %v; want ErrNotFound", err)
	}
	if _, err := s.AddPreference(ctx, u.ID, "party", ""); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("AddPreference() err = %v; want ErrInvalidChoice", err)
	}
	if _, err := s.AddPreference(ctx, u.ID, "focus", "morning"); err != nil {
		t.Fatalf("AddPreference() err = %v; want nil", err)
	}
	if _, err := s.AddPreference(ctx, u.ID, "sleep", ""); err != nil {
		t.Fatalf("AddPreference() err = %v; want nil", err)
	}
	prefs, err := s.ListPreferences(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListPreferences() err = %v; want nil", err)
	}
	if len(prefs) != 2 || prefs[0].Mood == nil || prefs[0].Mood.Name != "focus" || prefs[0].Time == nil || prefs[0].Time.Name != "morning" {
		t.Fatalf("ListPreferences() = %+v; want focus/morning first", prefs)
	}
	last, err := s.LastPreference(ctx, u.ID)
	if err != nil {
		t.Fatalf("LastPreference() err = %v; want nil", err)
	}
	if last.Mood == nil || last.Mood.Name != "sleep" || last.Time != nil {
		t.Fatalf("LastPreference() = %+v; want sleep without time", last)
	}

	if _, err := s.AddMoodEntry(ctx, u.ID, "bored", ""); !errors.Is(err, ErrInvalidChoice) {
		t.Fatalf("AddMoodEntry() err = %v; want ErrInvalidChoice", err)
	}
	for _, m := range []string{"happy", "relaxed"} {
		if _, err := s.AddMoodEntry(ctx, u.ID, m, "note"); err != nil {
			t.Fatalf("AddMoodEntry() err = %v; want nil", err)
		}
	}
	entries, err := s.ListMoodEntries(ctx, u.ID, 1, 10)
	if err != nil {
		t.Fatalf("ListMoodEntries() err = %v; want nil", err)
	}
	if len(entries) != 2 || entries[0].Mood != "relaxed" {
		t.Fatalf("ListMoodEntries() = %+v; want newest first", entries)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser() err = %v; want nil", err)
	}
	entries, _ = s.ListMoodEntries(ctx, u.ID, 1, 10)
	if len(entries) != 0 {
		t.Fatalf("entries after delete = %d; want 0", len(entries))
	}
}

func TestTokens(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	now := time.Now()
	if err := s.RevokeToken(ctx, "old", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.RevokeToken(ctx, "new", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.PurgeTokens(ctx, now); err != nil {
		t.Fatalf("PurgeTokens() err = %v; want nil", err)
	}
	tests := []struct {
		id   string
		want bool
	}{
		{"old", false},
		{"new", true},
		{"other", false},
	}
	for _, tt := range tests {
		got, err := s.IsRevoked(ctx, tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Fatalf("IsRevoked(%q) = %v; want %v", tt.id, got, tt.want)
		}
	}
}

func TestGenerationsAndSettings(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	for i, m := range []string{"focus", "relax", "focus"} {
		g := &Generation{ID: string(rune('a' + i)), Mode: m, Tempo: 80}
		if err := s.SetGeneration(ctx, g); err != nil {
			t.Fatalf("SetGeneration() err = %v; want nil", err)
		}
	}
	gs, err := s.ListGenerations(ctx, 1, 10, "id asc", Where("mode = ?", "focus"))
	if err != nil {
		t.Fatalf("ListGenerations() err = %v; want nil", err)
	}
	if len(gs) != 2 || gs[0].ID != "a" || gs[1].ID != "c" {
		t.Fatalf("ListGenerations() = %+v; want a, c", gs)
	}

	calls := 0
	create := func() (string, error) {
		calls++
		return "value", nil
	}
	for i := 0; i < 2; i++ {
		v, err := s.LoadOrCreateSetting(ctx, "secret", create)
		if err != nil || v != "value" {
			t.Fatalf("LoadOrCreateSetting() = %q, %v; want value", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("create calls = %d; want 1", calls)
	}
}
