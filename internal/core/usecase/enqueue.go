package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/core/ports"
)

type EnqueueDocumentUseCase struct {
	repo  ports.DocumentRepository
	queue ports.MessageQueue
}

func NewEnqueueDocumentUseCase(repo ports.DocumentRepository, queue ports.MessageQueue) *EnqueueDocumentUseCase {
	return &EnqueueDocumentUseCase{repo: repo, queue: queue}
}

// Enqueue registers a scanned file for processing and hands its id to the
// worker pool. The document is durable before the publish: a lost message
// only delays processing until the next startup requeue.
func (uc *EnqueueDocumentUseCase) Enqueue(ctx context.Context, req ports.EnqueueRequest) (*domain.Document, error) {
	if err := validateEnqueueRequest(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ingestedAt := req.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = now
	}

	doc := &domain.Document{
		ID:               uuid.NewString(),
		AppID:            req.AppID,
		SourcePath:       filepath.Clean(req.SourcePath),
		OriginalFilename: req.OriginalFilename,
		SourceChannel:    req.SourceChannel,
		IngestedAt:       ingestedAt,
		State:            domain.StatePending,
		StateTimes:       map[domain.DocumentState]time.Time{domain.StatePending: now},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if err := uc.queue.PublishDocumentQueued(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish document queued: %w", err)
	}

	return doc, nil
}

func validateEnqueueRequest(req ports.EnqueueRequest) error {
	if strings.TrimSpace(req.SourcePath) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "enqueue", errors.New("source_path is required"))
	}
	if !filepath.IsAbs(req.SourcePath) {
		return domain.WrapError(domain.ErrInvalidInput, "enqueue",
			fmt.Errorf("source_path %q must be absolute", req.SourcePath))
	}
	if strings.TrimSpace(req.AppID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "enqueue", errors.New("app_id is required"))
	}
	return nil
}
