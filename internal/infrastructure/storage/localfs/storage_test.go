package localfs

import (
	"bytes"
	"context"
	"testing"

	"github.com/scanwell/digidoc/internal/core/domain"
)

func TestSaveAndOpenArtifact(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	payload := []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3}
	if err := store.SaveArtifact(context.Background(), "doc-1", "normalized.png", payload); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}

	got, err := store.OpenArtifact(context.Background(), "doc-1", "normalized.png")
	if err != nil {
		t.Fatalf("OpenArtifact() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("artifact changed on disk: %v != %v", got, payload)
	}
}

func TestSaveArtifactOverwrites(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := store.SaveArtifact(ctx, "doc-1", "normalized.png", []byte("old")); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}
	if err := store.SaveArtifact(ctx, "doc-1", "normalized.png", []byte("new")); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}

	got, err := store.OpenArtifact(ctx, "doc-1", "normalized.png")
	if err != nil {
		t.Fatalf("OpenArtifact() error = %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("expected overwrite, got %q", got)
	}
}

func TestOpenMissingArtifactIsNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = store.OpenArtifact(context.Background(), "doc-1", "normalized.png")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestArtifactPathsCannotEscapeRoot(t *testing.T) {
	base := t.TempDir()
	store, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.SaveArtifact(context.Background(), "../../evil", "../escape", []byte("x")); err != nil {
		t.Fatalf("SaveArtifact() error = %v", err)
	}
	if _, err := store.OpenArtifact(context.Background(), "../../evil", "../escape"); err != nil {
		t.Fatalf("sanitized artifact should round-trip, got %v", err)
	}
}
