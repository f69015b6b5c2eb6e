package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/core/ports"
)

// artifact kinds persisted per document
const (
	artifactNormalized = "normalized.png"
	artifactSourceText = "source_text.txt"
)

// pipeline stages, recorded on failures and in metrics
const (
	StagePreprocess = "preprocessing"
	StageMatch      = "matching"
	StageExtract    = "extracting"
	StageFinalize   = "finalizing"
)

// StageTimeouts bound each pipeline stage individually. A stuck OCR run
// fails one document, not the worker.
type StageTimeouts struct {
	Preprocess time.Duration
	Match      time.Duration
	Extract    time.Duration
	Finalize   time.Duration
}

// StageObserver receives lifecycle telemetry. Optional.
type StageObserver interface {
	ObserveStage(stage string, d time.Duration)
	ObserveOutcome(state domain.DocumentState)
}

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	artifacts  ports.ArtifactStore
	codec      ports.RasterCodec
	normalizer ports.ImageNormalizer
	signatures ports.SignatureExtractor
	library    ports.TemplateLibrary
	matcher    ports.TemplateMatcher
	extractor  ports.FieldExtractor
	validator  ports.ConfidenceValidator
	finalizer  ports.Finalizer
	sourceText ports.SourceTextExtractor
	timeouts   StageTimeouts
	observer   StageObserver
	logger     *slog.Logger

	readSource func(path string) ([]byte, error)
}

type ProcessDeps struct {
	Repo       ports.DocumentRepository
	Artifacts  ports.ArtifactStore
	Codec      ports.RasterCodec
	Normalizer ports.ImageNormalizer
	Signatures ports.SignatureExtractor
	Library    ports.TemplateLibrary
	Matcher    ports.TemplateMatcher
	Extractor  ports.FieldExtractor
	Validator  ports.ConfidenceValidator
	Finalizer  ports.Finalizer
	SourceText ports.SourceTextExtractor
	Timeouts   StageTimeouts
	Observer   StageObserver
	Logger     *slog.Logger
}

func NewProcessDocumentUseCase(deps ProcessDeps) *ProcessDocumentUseCase {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:       deps.Repo,
		artifacts:  deps.Artifacts,
		codec:      deps.Codec,
		normalizer: deps.Normalizer,
		signatures: deps.Signatures,
		library:    deps.Library,
		matcher:    deps.Matcher,
		extractor:  deps.Extractor,
		validator:  deps.Validator,
		finalizer:  deps.Finalizer,
		sourceText: deps.SourceText,
		timeouts:   deps.Timeouts,
		observer:   deps.Observer,
		logger:     logger,
		readSource: os.ReadFile,
	}
}

// ProcessByID drives one document through the pipeline, starting from
// whatever state is persisted. Each state is durably recorded before its
// stage runs, so a crash resumes exactly where processing stopped and
// never repeats completed preprocessing.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if doc.State.Terminal() {
		uc.logger.Info("document already terminal, skipping",
			"document_id", doc.ID, "state", doc.State)
		return nil
	}

	switch doc.State {
	case domain.StatePending:
		err = uc.runFrom(ctx, doc, StagePreprocess)
	case domain.StatePreprocessing:
		// crash mid-preprocess: normalization is deterministic, re-run it
		err = uc.resumeFrom(ctx, doc, StagePreprocess)
	case domain.StateMatching:
		err = uc.resumeFrom(ctx, doc, StageMatch)
	case domain.StateExtracting:
		err = uc.resumeFrom(ctx, doc, StageExtract)
	default:
		err = domain.WrapError(domain.ErrIllegalState, "process",
			fmt.Errorf("document %s in unexpected state %s", doc.ID, doc.State))
	}
	return err
}

// runFrom advances a pending document into its first stage; resumeFrom
// re-enters a stage whose state was already persisted.
func (uc *ProcessDocumentUseCase) runFrom(ctx context.Context, doc *domain.Document, stage string) error {
	if err := uc.transition(ctx, doc, domain.StatePreprocessing, StagePreprocess); err != nil {
		return err
	}
	return uc.resumeFrom(ctx, doc, stage)
}

// resumeFrom chains the stages. Each stage carves its own deadline off the
// outer context here, never off the previous stage's, and signals where the
// document went by the state it left behind.
func (uc *ProcessDocumentUseCase) resumeFrom(ctx context.Context, doc *domain.Document, stage string) error {
	pipe := &pipelineRun{doc: doc}
	var err error
	if stage == StagePreprocess {
		err = uc.preprocess(ctx, pipe)
	}
	if err == nil && doc.State == domain.StateMatching {
		err = uc.match(ctx, pipe)
	}
	if err == nil && doc.State == domain.StateExtracting {
		err = uc.extract(ctx, pipe)
	}
	if err == nil && doc.State == domain.StateExtracting {
		err = uc.finalize(ctx, pipe)
	}
	if err != nil {
		return uc.fail(ctx, doc, err)
	}
	return nil
}

// pipelineRun carries in-memory artifacts between stages of one run.
// Resumed stages reload what they need from persistence instead.
type pipelineRun struct {
	doc        *domain.Document
	img        *domain.NormalizedImage
	sig        *domain.StructuralSignature
	match      *domain.MatchResult
	fields     []domain.ExtractedField
	validation domain.ValidationResult
}

func (uc *ProcessDocumentUseCase) preprocess(ctx context.Context, pipe *pipelineRun) error {
	ctx, cancel := uc.stageContext(ctx, uc.timeouts.Preprocess)
	defer cancel()
	start := time.Now()
	doc := pipe.doc

	raw, err := uc.readSource(doc.SourcePath)
	if err != nil {
		return stageError(StagePreprocess, fmt.Errorf("read source: %w", err))
	}

	img, err := uc.normalizer.Normalize(ctx, raw)
	if err != nil {
		if fallbackErr := uc.pdfFallback(ctx, pipe, err); fallbackErr != nil {
			return stageError(StagePreprocess, fallbackErr)
		}
	} else {
		encoded, err := uc.codec.Encode(img.Raster)
		if err != nil {
			return stageError(StagePreprocess, fmt.Errorf("encode normalized raster: %w", err))
		}
		if err := uc.artifacts.SaveArtifact(ctx, doc.ID, artifactNormalized, encoded); err != nil {
			return stageError(StagePreprocess, fmt.Errorf("save normalized artifact: %w", err))
		}

		sig, err := uc.signatures.Extract(img)
		if err != nil {
			return stageError(StagePreprocess, fmt.Errorf("extract signature: %w", err))
		}
		pipe.img = img
		pipe.sig = &sig
	}

	if err := uc.repo.SaveSignature(ctx, doc.ID, *pipe.sig); err != nil {
		return stageError(StagePreprocess, fmt.Errorf("save signature: %w", err))
	}

	uc.observeStage(StagePreprocess, time.Since(start))
	return uc.transition(ctx, doc, domain.StateMatching, StagePreprocess)
}

// pdfFallback serves text-layer PDFs: they cannot be rasterized here, but
// their embedded text is still worth an operator's review. The document
// gets an empty signature, which matching routes to review.
func (uc *ProcessDocumentUseCase) pdfFallback(ctx context.Context, pipe *pipelineRun, normalizeErr error) error {
	doc := pipe.doc
	if uc.sourceText == nil || !strings.EqualFold(filepath.Ext(doc.SourcePath), ".pdf") {
		return normalizeErr
	}
	text, err := uc.sourceText.ExtractText(doc.SourcePath)
	if err != nil || text == "" {
		return fmt.Errorf("normalize: %w (pdf text layer unavailable)", normalizeErr)
	}
	if err := uc.artifacts.SaveArtifact(ctx, doc.ID, artifactSourceText, []byte(text)); err != nil {
		return fmt.Errorf("save source text artifact: %w", err)
	}
	uc.logger.Info("pdf source served through embedded text layer", "document_id", doc.ID)
	pipe.sig = &domain.StructuralSignature{}
	return nil
}

func (uc *ProcessDocumentUseCase) match(ctx context.Context, pipe *pipelineRun) error {
	ctx, cancel := uc.stageContext(ctx, uc.timeouts.Match)
	defer cancel()
	start := time.Now()
	doc := pipe.doc

	if pipe.sig == nil {
		sig, err := uc.repo.GetSignature(ctx, doc.ID)
		if err != nil {
			return stageError(StageMatch, fmt.Errorf("load signature: %w", err))
		}
		pipe.sig = sig
	}

	candidates, err := uc.library.Candidates(ctx, doc.AppID)
	if err != nil {
		return stageError(StageMatch, fmt.Errorf("load template candidates: %w", err))
	}
	result := uc.matcher.Match(*pipe.sig, candidates)

	// an empty library warrants one refresh and one rematch before giving up
	if result.Outcome == domain.OutcomeNoTemplates {
		uc.logger.Warn("no templates for application, refreshing library",
			"document_id", doc.ID, "app_id", doc.AppID)
		if err := uc.library.Refresh(ctx, doc.AppID); err != nil {
			uc.logger.Warn("library refresh failed", "app_id", doc.AppID, "error", err)
		} else if candidates, err = uc.library.Candidates(ctx, doc.AppID); err != nil {
			uc.logger.Warn("template candidates unavailable after refresh",
				"document_id", doc.ID, "app_id", doc.AppID, "error", err)
		} else {
			result = uc.matcher.Match(*pipe.sig, candidates)
		}
	}

	if err := uc.repo.SaveMatchResult(ctx, doc.ID, result); err != nil {
		return stageError(StageMatch, fmt.Errorf("save match result: %w", err))
	}
	pipe.match = &result
	uc.observeStage(StageMatch, time.Since(start))

	switch result.Outcome {
	case domain.OutcomeNone, domain.OutcomeNoTemplates:
		return uc.transition(ctx, doc, domain.StateReview, StageMatch)
	case domain.OutcomeVariant:
		uc.proposeVariant(ctx, doc, result, *pipe.sig)
	}
	return uc.transition(ctx, doc, domain.StateExtracting, StageMatch)
}

func (uc *ProcessDocumentUseCase) proposeVariant(ctx context.Context, doc *domain.Document, result domain.MatchResult, sig domain.StructuralSignature) {
	proposal := domain.VariantProposal{
		AppID:          doc.AppID,
		BaseTemplateID: result.Best.TemplateID,
		DocumentID:     doc.ID,
		Observed:       sig,
		Similarity:     result.Score,
	}
	if err := uc.library.ProposeVariant(ctx, proposal); err != nil {
		uc.logger.Warn("variant proposal failed",
			"document_id", doc.ID, "base_template_id", result.Best.TemplateID, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) extract(ctx context.Context, pipe *pipelineRun) error {
	ctx, cancel := uc.stageContext(ctx, uc.timeouts.Extract)
	defer cancel()
	start := time.Now()
	doc := pipe.doc

	if pipe.sig == nil {
		sig, err := uc.repo.GetSignature(ctx, doc.ID)
		if err != nil {
			return stageError(StageExtract, fmt.Errorf("load signature: %w", err))
		}
		pipe.sig = sig
	}
	if pipe.match == nil {
		match, err := uc.repo.GetMatchResult(ctx, doc.ID)
		if err != nil {
			return stageError(StageExtract, fmt.Errorf("load match result: %w", err))
		}
		pipe.match = match
	}
	if pipe.match.Best == nil {
		return stageError(StageExtract, errors.New("extracting without a matched template"))
	}

	tpl, err := uc.lookupTemplate(ctx, doc.AppID, pipe.match.Best.TemplateID)
	if err != nil {
		return stageError(StageExtract, err)
	}

	if pipe.img == nil {
		img, err := uc.loadNormalized(ctx, doc.ID)
		if err != nil {
			return stageError(StageExtract, err)
		}
		pipe.img = img
	}

	fields, err := uc.extractor.Extract(ctx, pipe.img, *pipe.sig, tpl)
	if err != nil {
		return stageError(StageExtract, fmt.Errorf("extract fields: %w", err))
	}
	if err := uc.repo.SaveFields(ctx, doc.ID, fields); err != nil {
		return stageError(StageExtract, fmt.Errorf("save fields: %w", err))
	}

	validation := uc.validator.Validate(fields, tpl)
	// the variant band never auto-commits, a human confirms drifted layouts
	if validation.Decision == domain.RouteAutoCommit && pipe.match.Outcome != domain.OutcomeAuto {
		validation.Decision = domain.RouteReview
	}
	if err := uc.repo.SaveValidation(ctx, doc.ID, validation); err != nil {
		return stageError(StageExtract, fmt.Errorf("save validation: %w", err))
	}
	pipe.fields = fields
	pipe.validation = validation
	uc.observeStage(StageExtract, time.Since(start))

	if validation.Decision != domain.RouteAutoCommit {
		return uc.transition(ctx, doc, domain.StateReview, StageExtract)
	}
	// state stays extracting, resumeFrom continues into finalize
	return nil
}

func (uc *ProcessDocumentUseCase) finalize(ctx context.Context, pipe *pipelineRun) error {
	ctx, cancel := uc.stageContext(ctx, uc.timeouts.Finalize)
	defer cancel()
	start := time.Now()
	doc := pipe.doc

	templateID := ""
	if pipe.match != nil && pipe.match.Best != nil {
		templateID = pipe.match.Best.TemplateID
	}

	if err := uc.finalizer.Finalize(ctx, doc, pipe.fields, pipe.validation.OverallConfidence, templateID); err != nil {
		// the result is sound, only delivery failed: hold it for review
		// rather than discarding the work
		uc.logger.Warn("finalize delivery failed, routing to review",
			"document_id", doc.ID, "error", err)
		return uc.transition(ctx, doc, domain.StateReview, StageFinalize)
	}
	uc.observeStage(StageFinalize, time.Since(start))
	return uc.transition(ctx, doc, domain.StateCompleted, StageFinalize)
}

func (uc *ProcessDocumentUseCase) lookupTemplate(ctx context.Context, appID, templateID string) (domain.Template, error) {
	candidates, err := uc.library.Candidates(ctx, appID)
	if err != nil {
		return domain.Template{}, fmt.Errorf("load template %s: %w", templateID, err)
	}
	for _, tpl := range candidates {
		if tpl.ID == templateID {
			return tpl, nil
		}
	}
	return domain.Template{}, domain.WrapError(domain.ErrTemplateNotFound, "lookup template",
		fmt.Errorf("id %s", templateID))
}

func (uc *ProcessDocumentUseCase) loadNormalized(ctx context.Context, docID string) (*domain.NormalizedImage, error) {
	data, err := uc.artifacts.OpenArtifact(ctx, docID, artifactNormalized)
	if err != nil {
		return nil, fmt.Errorf("load normalized artifact: %w", err)
	}
	raster, err := uc.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode normalized artifact: %w", err)
	}
	return &domain.NormalizedImage{Raster: raster}, nil
}

// transition persists the state change before any work of the new state
// happens. Cancellation is checked here, at the stage boundary; stage names
// the stage whose deadline governed ctx, so a timeout caught here is still
// attributed to it in the audit trail.
func (uc *ProcessDocumentUseCase) transition(ctx context.Context, doc *domain.Document, to domain.DocumentState, stage string) error {
	if err := ctx.Err(); err != nil {
		cancelErr := stageError(stage, domain.WrapError(domain.ErrCancelled, "transition", err))
		if to != domain.StateFailed {
			return uc.fail(context.WithoutCancel(ctx), doc, cancelErr)
		}
		return cancelErr
	}
	if !domain.CanTransition(doc.State, to) {
		return domain.WrapError(domain.ErrIllegalState, "transition",
			fmt.Errorf("%s -> %s", doc.State, to))
	}
	if err := uc.repo.UpdateState(ctx, doc.ID, to, "", ""); err != nil {
		return fmt.Errorf("persist state %s: %w", to, err)
	}
	doc.State = to
	if doc.State.Terminal() {
		uc.observeOutcome(doc.State)
	}
	return nil
}

// fail records the failure with its stage and detail. No automatic retry:
// operators reprocess explicitly after fixing the cause.
func (uc *ProcessDocumentUseCase) fail(ctx context.Context, doc *domain.Document, cause error) error {
	stage, detail := splitStageError(cause)
	uc.logger.Error("document processing failed",
		"document_id", doc.ID, "stage", stage, "error", detail)

	if domain.CanTransition(doc.State, domain.StateFailed) {
		if err := uc.repo.UpdateState(context.WithoutCancel(ctx), doc.ID, domain.StateFailed, stage, detail); err != nil {
			return fmt.Errorf("%w; mark failed: %v", cause, err)
		}
		doc.State = domain.StateFailed
		uc.observeOutcome(domain.StateFailed)
	}
	return cause
}

func (uc *ProcessDocumentUseCase) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (uc *ProcessDocumentUseCase) observeStage(stage string, d time.Duration) {
	if uc.observer != nil {
		uc.observer.ObserveStage(stage, d)
	}
}

func (uc *ProcessDocumentUseCase) observeOutcome(state domain.DocumentState) {
	if uc.observer != nil {
		uc.observer.ObserveOutcome(state)
	}
}

// staged wraps an error with the stage it happened in, so failures carry
// both coordinates in the audit trail.
type staged struct {
	stage string
	err   error
}

func (s *staged) Error() string { return s.stage + ": " + s.err.Error() }
func (s *staged) Unwrap() error { return s.err }

func stageError(stage string, err error) error {
	return &staged{stage: stage, err: err}
}

func splitStageError(err error) (stage, detail string) {
	var s *staged
	if errors.As(err, &s) {
		return s.stage, s.err.Error()
	}
	return "", err.Error()
}
