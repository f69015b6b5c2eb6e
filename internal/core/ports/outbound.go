package ports

import (
	"context"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// DocumentRepository persists document state and per-stage artifacts of the
// audit trail. Every lifecycle transition is durably recorded before the
// next stage begins.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateState(ctx context.Context, id string, state domain.DocumentState, errStage, errDetail string) error
	SaveSignature(ctx context.Context, id string, sig domain.StructuralSignature) error
	GetSignature(ctx context.Context, id string) (*domain.StructuralSignature, error)
	SaveMatchResult(ctx context.Context, id string, match domain.MatchResult) error
	GetMatchResult(ctx context.Context, id string) (*domain.MatchResult, error)
	SaveFields(ctx context.Context, id string, fields []domain.ExtractedField) error
	GetFields(ctx context.Context, id string) ([]domain.ExtractedField, error)
	SaveValidation(ctx context.Context, id string, result domain.ValidationResult) error
	ListByStates(ctx context.Context, states ...domain.DocumentState) ([]domain.Document, error)
}

// ArtifactStore keeps derived binary artifacts (the normalized raster)
// outside the database so interrupted documents can resume without
// re-running preprocessing.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, docID, kind string, data []byte) error
	OpenArtifact(ctx context.Context, docID, kind string) ([]byte, error)
}

// MessageQueue carries document ids from the enqueue surface to workers.
type MessageQueue interface {
	PublishDocumentQueued(ctx context.Context, documentID string) error
	SubscribeDocumentQueued(ctx context.Context, handler func(context.Context, string) error) error
}

// ImageNormalizer turns a raw scan into the canonical raster. Deterministic;
// steps that cannot converge pass the image through unmodified.
type ImageNormalizer interface {
	Normalize(ctx context.Context, raw []byte) (*domain.NormalizedImage, error)
}

// RasterCodec serializes rasters for the ArtifactStore.
type RasterCodec interface {
	Encode(r domain.Raster) ([]byte, error)
	Decode(data []byte) (domain.Raster, error)
}

// SignatureExtractor builds the scale-invariant layout descriptor. Absolute
// pixel coordinates never leak past this boundary.
type SignatureExtractor interface {
	Extract(img *domain.NormalizedImage) (domain.StructuralSignature, error)
}

// TemplateLibrary is the read-through cache of authoritative templates.
type TemplateLibrary interface {
	Candidates(ctx context.Context, appID string) ([]domain.Template, error)
	Refresh(ctx context.Context, appID string) error
	ProposeVariant(ctx context.Context, proposal domain.VariantProposal) error
}

// TemplateMatcher scores a signature against every candidate and returns
// the full ranked list. Pure: identical inputs yield identical results.
type TemplateMatcher interface {
	Match(sig domain.StructuralSignature, candidates []domain.Template) domain.MatchResult
}

// FieldExtractor extracts field values under a matched template, using the
// template's zones (not the document's own) to decide where to look.
type FieldExtractor interface {
	Extract(ctx context.Context, img *domain.NormalizedImage, docSig domain.StructuralSignature, tpl domain.Template) ([]domain.ExtractedField, error)
}

// ConfidenceValidator turns extracted fields into a routing decision.
type ConfidenceValidator interface {
	Validate(fields []domain.ExtractedField, tpl domain.Template) domain.ValidationResult
}

// TextRecognizer is the pluggable OCR capability. Any engine returning text
// plus a confidence for an image region is substitutable.
type TextRecognizer interface {
	Recognize(ctx context.Context, region domain.Raster) (text string, confidence float64, err error)
}

// SourceTextExtractor pulls the embedded text layer out of sources that
// are not rasterizable (text-layer PDFs). Optional capability.
type SourceTextExtractor interface {
	ExtractText(path string) (string, error)
}

// Finalizer delivers auto-committed results to the downstream business
// system.
type Finalizer interface {
	Finalize(ctx context.Context, doc *domain.Document, fields []domain.ExtractedField, confidence float64, templateID string) error
}
