package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scanwell/digidoc/internal/config"
	"github.com/scanwell/digidoc/internal/core/ports"
	"github.com/scanwell/digidoc/internal/core/usecase"
	"github.com/scanwell/digidoc/internal/infrastructure/downstream"
	"github.com/scanwell/digidoc/internal/infrastructure/export"
	"github.com/scanwell/digidoc/internal/infrastructure/extraction"
	"github.com/scanwell/digidoc/internal/infrastructure/imaging"
	"github.com/scanwell/digidoc/internal/infrastructure/matching"
	"github.com/scanwell/digidoc/internal/infrastructure/queue/nats"
	"github.com/scanwell/digidoc/internal/infrastructure/recognizer/pdftext"
	"github.com/scanwell/digidoc/internal/infrastructure/recognizer/tesseract"
	"github.com/scanwell/digidoc/internal/infrastructure/repository/postgres"
	"github.com/scanwell/digidoc/internal/infrastructure/resilience"
	"github.com/scanwell/digidoc/internal/infrastructure/signature"
	"github.com/scanwell/digidoc/internal/infrastructure/storage/localfs"
	"github.com/scanwell/digidoc/internal/infrastructure/templates"
	"github.com/scanwell/digidoc/internal/infrastructure/validation"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Library  ports.TemplateLibrary
	Exporter ports.ReportExporter

	EnqueueUC ports.DocumentEnqueuer
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

// Options carry the pieces that differ between the api and worker
// processes. Everything else is derived from config.
type Options struct {
	Logger   *slog.Logger
	Observer usecase.StageObserver
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	templateRepo := postgres.NewTemplateRepository(db)

	artifacts, err := localfs.New(cfg.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	// nil remote keeps the library fully offline, serving the local store
	var remote templates.Remote
	if cfg.TemplateSyncURL != "" {
		remote = templates.NewSyncClient(cfg.TemplateSyncURL, cfg.TemplateSyncAPIKey, executor)
	}
	library := templates.NewLibrary(templateRepo, remote, templates.LibraryOptions{
		TTL:      cfg.TemplateCacheTTL,
		LockWait: cfg.RefreshLockTimeout,
	}, logger)
	if cfg.TemplateSeedPath != "" {
		if err := library.Seed(ctx, cfg.TemplateSeedPath); err != nil {
			return nil, fmt.Errorf("seed templates: %w", err)
		}
	}

	normalizer := imaging.NewNormalizer(imaging.Options{
		TargetDPI:            cfg.TargetDPI,
		BinarizationMethod:   cfg.BinarizationMethod,
		DenoiseLevel:         cfg.DenoiseLevel,
		DeskewEnabled:        cfg.DeskewEnabled,
		BorderRemovalEnabled: cfg.BorderRemovalEnabled,
	}, logger)

	matcher := matching.NewMatcher(matching.Options{
		AutoMatchThreshold:    cfg.AutoMatchThreshold,
		PartialMatchThreshold: cfg.PartialMatchThreshold,
		TopN:                  cfg.MatchTopN,
	})

	recognizer := tesseract.New(tesseract.Config{
		Command:  cfg.TesseractCmd,
		Language: cfg.TesseractLang,
	})
	extractor := extraction.NewExtractor(recognizer, logger)

	validator := validation.NewValidator(validation.Options{
		HighStakesFields:   cfg.HighStakesFields,
		HighStakesFloor:    cfg.HighStakesFloor,
		ConfidenceFloor:    cfg.FieldConfidenceFloor,
		WarningReviewCount: cfg.WarningReviewCount,
	})

	finalizer := downstream.NewFinalizer(cfg.FinalizeURL, cfg.FinalizeAPIKey, executor)

	enqueueUC := usecase.NewEnqueueDocumentUseCase(repo, queue)
	processUC := usecase.NewProcessDocumentUseCase(usecase.ProcessDeps{
		Repo:       repo,
		Artifacts:  artifacts,
		Codec:      imaging.Codec{},
		Normalizer: normalizer,
		Signatures: signature.NewExtractor(),
		Library:    library,
		Matcher:    matcher,
		Extractor:  extractor,
		Validator:  validator,
		Finalizer:  finalizer,
		SourceText: pdftext.Extractor{},
		Timeouts: usecase.StageTimeouts{
			Preprocess: cfg.PreprocessTimeout,
			Match:      cfg.MatchTimeout,
			Extract:    cfg.ExtractTimeout,
			Finalize:   cfg.FinalizeTimeout,
		},
		Observer: opts.Observer,
		Logger:   logger,
	})

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		Library:  library,
		Exporter: export.NewXLSXExporter(repo, logger),

		EnqueueUC: enqueueUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
