package filestore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/igolaizola/xenotune/pkg/filestore/local"
	"github.com/igolaizola/xenotune/pkg/filestore/s3"
)

type fs interface {
	Upload(ctx context.Context, path, name string) error
	Download(ctx context.Context, path, name string) error
	URL(ctx context.Context, name string) (string, error)
}

// Store uploads rendered soundscapes and returns their retrieval URLs.
type Store struct {
	fs fs
}

var ErrInvalidUser = errors.New("filestore: invalid user id")

// ValidUser checks the user id is a single path element.
func ValidUser(userID string) error {
	if userID == "." || userID == ".." || strings.ContainsAny(userID, "/\\\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}

// Key returns the object name of a user file, always under users/<id>/.
func Key(userID, file string) (string, error) {
	if err := ValidUser(userID); err != nil {
		return "", err
	}
	if userID == "" {
		userID = "anonymous"
	}
	return path.Join("users", userID, filepath.Base(file)), nil
}

// Upload stores the file under the user folder and returns its URL.
func (s *Store) Upload(ctx context.Context, file, userID string) (string, error) {
	name, err := Key(userID, file)
	if err != nil {
		return "", err
	}
	if err := s.fs.Upload(ctx, file, name); err != nil {
		return "", err
	}
	u, err := s.fs.URL(ctx, name)
	if err != nil {
		return "", err
	}
	return u, nil
}

// Download copies the stored object name to the local file.
func (s *Store) Download(ctx context.Context, file, name string) error {
	return s.fs.Download(ctx, file, name)
}

// New creates a store. Connection strings:
//
//	local: <root> or <root>@<base url>
//	s3:    <key>:<secret>@<bucket>.<region>
func New(typ, conn, endpoint string, debug bool) (*Store, error) {
	var fs fs
	switch typ {
	case "s3":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 connection string %q", conn)
		}
		auth := strings.Split(split[0], ":")
		if len(auth) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 auth string %q", conn)
		}
		loc := strings.SplitN(split[1], ".", 2)
		if len(loc) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 location string %q", conn)
		}
		candidate, err := s3.New(&s3.Config{
			Key:      auth[0],
			Secret:   auth[1],
			Bucket:   loc[0],
			Region:   loc[1],
			Endpoint: endpoint,
			Debug:    debug,
		})
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "local", "":
		root, base, _ := strings.Cut(conn, "@")
		if root == "" {
			root = "files"
		}
		fs = local.New(root, base)
	default:
		return nil, fmt.Errorf("filestore: unknown file storage type %q", typ)
	}
	return &Store{fs: fs}, nil
}
