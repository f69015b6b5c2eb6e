// Package localfs keeps per-document binary artifacts (normalized
// rasters, extracted source text) on the local filesystem, outside the
// database. Interrupted documents resume from these instead of re-running
// preprocessing.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scanwell/digidoc/internal/core/domain"
)

type Store struct {
	basePath string
}

func New(basePath string) (*Store, error) {
	if basePath == "" {
		basePath = "./data/artifacts"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// SaveArtifact writes atomically via a temp file so a crash mid-write
// never leaves a truncated artifact for the resume path to trip on.
func (s *Store) SaveArtifact(_ context.Context, docID, kind string, data []byte) error {
	dir, err := s.docDir(docID, true)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, sanitize(kind))

	tmp, err := os.CreateTemp(dir, "."+sanitize(kind)+"-*")
	if err != nil {
		return fmt.Errorf("create artifact temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close artifact temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit artifact: %w", err)
	}
	return nil
}

func (s *Store) OpenArtifact(_ context.Context, docID, kind string) ([]byte, error) {
	dir, err := s.docDir(docID, false)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, sanitize(kind)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "open artifact",
				fmt.Errorf("document %s has no %s artifact", docID, kind))
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (s *Store) docDir(docID string, create bool) (string, error) {
	dir := filepath.Join(s.basePath, sanitize(docID))
	if create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create document dir: %w", err)
		}
	}
	return dir, nil
}

// sanitize keeps ids and kinds from escaping the artifact root.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" {
		return "_"
	}
	return name
}
