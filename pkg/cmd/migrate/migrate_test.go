package migrate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/igolaizola/xenotune/pkg/storage"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "xenotune.db")
	cfg := &Config{DBType: "sqlite", DBConn: db}
	if err := Run(ctx, cfg); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}

	store, err := storage.New("sqlite", db, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = store.Stop() }()
	if err := store.RevokeToken(ctx, "old", time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.RevokeToken(ctx, "new", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	// Running again keeps the data and purges expired tokens
	if err := Run(ctx, cfg); err != nil {
		t.Fatalf("Run() err = %v; want nil", err)
	}
	tests := []struct {
		id   string
		want bool
	}{
		{"old", false},
		{"new", true},
	}
	for _, tt := range tests {
		got, err := store.IsRevoked(ctx, tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Fatalf("IsRevoked(%s) = %v; want %v", tt.id, got, tt.want)
		}
	}
	v, err := store.Version(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("Version() = %d; want 1", v)
	}
}
