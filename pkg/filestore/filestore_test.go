package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestKey(t *testing.T) {
	tests := []struct {
		user, file, want string
	}{
		{"u1", "/tmp/out/focus_20240101000000.mp3", "users/u1/focus_20240101000000.mp3"},
		{"", "relax.mp3", "users/anonymous/relax.mp3"},
	}
	for _, tt := range tests {
		got, err := Key(tt.user, tt.file)
		if err != nil {
			t.Fatalf("Key(%q, %q) err = %v; want nil", tt.user, tt.file, err)
		}
		if got != tt.want {
			t.Fatalf("Key(%q, %q) = %q; want %q", tt.user, tt.file, got, tt.want)
		}
	}

	for _, user := range []string{"..", ".", "../../escaped", "a/b", `a\b`, "/abs"} {
		if _, err := Key(user, "focus.mp3"); !errors.Is(err, ErrInvalidUser) {
			t.Fatalf("Key(%q) err = %v; want ErrInvalidUser", user, err)
		}
	}
}

func TestUploadStaysInRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "focus_1.mp3")
	if err := os.WriteFile(src, []byte("mp3"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := New("local", filepath.Join(dir, "files"), "", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upload(ctx, src, "../../escaped"); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("Upload() err = %v; want ErrInvalidUser", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escaped")); !os.IsNotExist(err) {
		t.Fatalf("Stat(escaped) err = %v; want not exist", err)
	}
}

func TestLocalUpload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "focus.mp3")
	if err := os.WriteFile(src, []byte("mp3"), 0644); err != nil {
		t.Fatal(err)
	}
	root := filepath.Join(dir, "store")

	tests := []struct {
		name   string
		conn   string
		prefix string
	}{
		{"file url", root, "file://"},
		{"base url", root + "@http://localhost:8080/files/", "http://localhost:8080/files/users/u1/focus.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New("local", tt.conn, "", false)
			if err != nil {
				t.Fatalf("New() err = %v; want nil", err)
			}
			u, err := s.Upload(ctx, src, "u1")
			if err != nil {
				t.Fatalf("Upload() err = %v; want nil", err)
			}
			if !strings.HasPrefix(u, tt.prefix) {
				t.Fatalf("Upload() url = %q; want prefix %q", u, tt.prefix)
			}
			b, err := os.ReadFile(filepath.Join(root, "users", "u1", "focus.mp3"))
			if err != nil || string(b) != "mp3" {
				t.Fatalf("uploaded file = %q, %v; want mp3", b, err)
			}
			dst := filepath.Join(dir, "copy.mp3")
			if err := s.Download(ctx, dst, "users/u1/focus.mp3"); err != nil {
				t.Fatalf("Download() err = %v; want nil", err)
			}
		})
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		typ, conn string
	}{
		{"ftp", "x"},
		{"s3", "no-at"},
		{"s3", "key@bucket.region"},
		{"s3", "key:secret@bucket"},
	}
	for _, tt := range tests {
		if _, err := New(tt.typ, tt.conn, "", false); err == nil {
			t.Fatalf("New(%q, %q) err = nil; want error", tt.typ, tt.conn)
		}
	}
}
