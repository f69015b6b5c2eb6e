package ports

import (
	"context"
	"io"
	"time"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// EnqueueRequest is the upstream hand-off from the file watcher. SourcePath
// must be absolute; the pipeline is stateless with respect to working
// directory.
type EnqueueRequest struct {
	SourcePath       string    `json:"source_path"`
	AppID            string    `json:"app_id"`
	OriginalFilename string    `json:"original_filename,omitempty"`
	SourceChannel    string    `json:"source_channel,omitempty"`
	IngestedAt       time.Time `json:"ingested_at,omitempty"`
}

// DocumentEnqueuer is the inbound contract for accepting documents.
type DocumentEnqueuer interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// ReportExporter writes an operator-facing report of processed documents.
type ReportExporter interface {
	Export(ctx context.Context, w io.Writer, states ...domain.DocumentState) error
}
