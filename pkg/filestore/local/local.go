package local

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Store keeps files in a local folder, optionally served under a base URL.
type Store struct {
	root string
	base string
}

func New(root, base string) *Store {
	return &Store{root: root, base: strings.TrimSuffix(base, "/")}
}

func (s *Store) Upload(ctx context.Context, path, name string) error {
	dst := filepath.Join(s.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("local: couldn't create folder for %q: %w", dst, err)
	}
	if err := copyFile(path, dst); err != nil {
		return fmt.Errorf("local: couldn't copy file %q to %q: %w", path, dst, err)
	}
	return nil
}

func (s *Store) Download(ctx context.Context, path, name string) error {
	src := filepath.Join(s.root, filepath.FromSlash(name))
	if err := copyFile(src, path); err != nil {
		return fmt.Errorf("local: couldn't copy file %q to %q: %w", src, path, err)
	}
	return nil
}

// URL returns the http URL of the file when a base is set, or a file URL.
func (s *Store) URL(ctx context.Context, name string) (string, error) {
	if s.base != "" {
		return s.base + "/" + strings.TrimPrefix(name, "/"), nil
	}
	abs, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("local: couldn't get absolute path of %q: %w", name, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcFileInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcFileInfo.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}
