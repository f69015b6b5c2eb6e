package templates

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// Store persists the locally mirrored template set. Postgres in
// production; test fakes elsewhere.
type Store interface {
	ReplaceForApp(ctx context.Context, appID string, tpls []domain.Template) error
	ListByApp(ctx context.Context, appID string) ([]domain.Template, error)
	SaveVariantProposal(ctx context.Context, proposal domain.VariantProposal) error
	RecordSync(ctx context.Context, appID, status, detail string) error
}

// Remote is the upstream template authority. Nil in fully offline
// deployments: the library then serves the seeded store only.
type Remote interface {
	Pull(ctx context.Context, appID string) ([]domain.Template, error)
	PushProposal(ctx context.Context, proposal domain.VariantProposal) error
}

type LibraryOptions struct {
	TTL      time.Duration // cache freshness window
	LockWait time.Duration // how long Candidates waits for an in-flight refresh
}

// Library is the read-through template cache. A stale or unreachable
// authority never blocks matching: contention and pull failures fall back
// to the last good set.
type Library struct {
	store  Store
	remote Remote
	opts   LibraryOptions
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*appEntry
}

type appEntry struct {
	refreshing chan struct{} // capacity-1 semaphore
	templates  []domain.Template
	fetchedAt  time.Time
}

func NewLibrary(store Store, remote Remote, opts LibraryOptions, logger *slog.Logger) *Library {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{
		store:   store,
		remote:  remote,
		opts:    opts,
		logger:  logger,
		entries: make(map[string]*appEntry),
	}
}

// Candidates returns the template set for one application. Fresh cache is
// served directly; an expired cache triggers a refresh, and if the refresh
// cannot run (lock contention, authority down) the stale set is served
// instead.
func (l *Library) Candidates(ctx context.Context, appID string) ([]domain.Template, error) {
	entry := l.entry(appID)

	l.mu.Lock()
	loaded := !entry.fetchedAt.IsZero()
	fresh := loaded && entry.fetchedAt.After(time.Now().Add(-l.opts.TTL))
	cached := cloneTemplates(entry.templates)
	l.mu.Unlock()

	if fresh {
		return cached, nil
	}

	if err := l.Refresh(ctx, appID); err != nil {
		l.logger.Warn("template refresh failed, serving stale cache",
			"app_id", appID, "error", err)
		if loaded {
			return cached, nil
		}
		// cold cache: fall back to whatever the store holds (seeded or
		// previously synced templates)
		return l.loadFromStore(ctx, appID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneTemplates(entry.templates), nil
}

// Refresh pulls from the authority and replaces the local mirror. Only one
// refresh per application runs at a time; a caller that cannot acquire the
// slot within the lock-wait window reports contention instead of piling up.
func (l *Library) Refresh(ctx context.Context, appID string) error {
	entry := l.entry(appID)

	release, ok := l.acquire(ctx, entry)
	if !ok {
		return domain.WrapError(domain.ErrTemporary, "template_refresh", context.DeadlineExceeded)
	}
	defer release()

	if l.remote == nil {
		// offline deployment: the store is authoritative
		return l.hydrate(ctx, appID, entry)
	}

	tpls, err := l.remote.Pull(ctx, appID)
	if err != nil {
		if recordErr := l.store.RecordSync(ctx, appID, "failed", err.Error()); recordErr != nil {
			l.logger.Warn("recording sync failure failed", "app_id", appID, "error", recordErr)
		}
		return err
	}
	if err := l.store.ReplaceForApp(ctx, appID, tpls); err != nil {
		return err
	}
	if err := l.store.RecordSync(ctx, appID, "ok", ""); err != nil {
		l.logger.Warn("recording sync success failed", "app_id", appID, "error", err)
	}

	l.mu.Lock()
	entry.templates = cloneTemplates(tpls)
	entry.fetchedAt = time.Now()
	l.mu.Unlock()
	return nil
}

// ProposeVariant persists the proposal locally and pushes it upstream. The
// push is best-effort: an unreachable authority keeps the proposal queued
// in the store, it never blocks the document.
func (l *Library) ProposeVariant(ctx context.Context, proposal domain.VariantProposal) error {
	if proposal.ID == "" {
		proposal.ID = uuid.NewString()
	}
	if proposal.CreatedAt.IsZero() {
		proposal.CreatedAt = time.Now().UTC()
	}
	if err := l.store.SaveVariantProposal(ctx, proposal); err != nil {
		return err
	}
	if l.remote == nil {
		return nil
	}
	if err := l.remote.PushProposal(ctx, proposal); err != nil {
		l.logger.Warn("variant proposal push failed, kept locally",
			"proposal_id", proposal.ID, "app_id", proposal.AppID, "error", err)
	}
	return nil
}

func (l *Library) entry(appID string) *appEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[appID]
	if !ok {
		e = &appEntry{refreshing: make(chan struct{}, 1)}
		l.entries[appID] = e
	}
	return e
}

func (l *Library) acquire(ctx context.Context, entry *appEntry) (func(), bool) {
	timer := time.NewTimer(l.opts.LockWait)
	defer timer.Stop()
	select {
	case entry.refreshing <- struct{}{}:
		return func() { <-entry.refreshing }, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

func (l *Library) hydrate(ctx context.Context, appID string, entry *appEntry) error {
	tpls, err := l.store.ListByApp(ctx, appID)
	if err != nil {
		return err
	}
	l.mu.Lock()
	entry.templates = cloneTemplates(tpls)
	entry.fetchedAt = time.Now()
	l.mu.Unlock()
	return nil
}

func (l *Library) loadFromStore(ctx context.Context, appID string) ([]domain.Template, error) {
	tpls, err := l.store.ListByApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	return tpls, nil
}

func cloneTemplates(tpls []domain.Template) []domain.Template {
	if tpls == nil {
		return nil
	}
	out := make([]domain.Template, len(tpls))
	copy(out, tpls)
	return out
}
