package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/scanwell/digidoc/internal/config"
	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/core/ports"
)

type Router struct {
	cfg      config.Config
	enqueuer ports.DocumentEnqueuer
	docs     ports.DocumentRepository
	library  ports.TemplateLibrary
	queue    ports.MessageQueue
	exporter ports.ReportExporter
}

func NewRouter(
	cfg config.Config,
	enqueuer ports.DocumentEnqueuer,
	docs ports.DocumentRepository,
	library ports.TemplateLibrary,
	queue ports.MessageQueue,
	exporter ports.ReportExporter,
) *Router {
	return &Router{
		cfg:      cfg,
		enqueuer: enqueuer,
		docs:     docs,
		library:  library,
		queue:    queue,
		exporter: exporter,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.enqueueDocument)
	mux.HandleFunc("/v1/documents/", rt.documentSubtree)
	mux.HandleFunc("/v1/review", rt.listReview)
	mux.HandleFunc("/v1/templates/refresh", rt.refreshTemplates)
	mux.HandleFunc("/v1/reports/documents.xlsx", rt.exportReport)

	var handler http.Handler = mux
	if rt.cfg.APIMaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIQueueWait)
	}
	if rt.cfg.APIRateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) enqueueDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req ports.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.enqueuer.Enqueue(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// documentSubtree dispatches /v1/documents/{id} and its audit-trail
// subresources.
func (rt *Router) documentSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		rt.getDocument(w, r, id)
	case sub == "match" && r.Method == http.MethodGet:
		rt.getMatch(w, r, id)
	case sub == "fields" && r.Method == http.MethodGet:
		rt.getFields(w, r, id)
	case sub == "reprocess" && r.Method == http.MethodPost:
		rt.reprocessDocument(w, r, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getMatch(w http.ResponseWriter, r *http.Request, id string) {
	match, err := rt.docs.GetMatchResult(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (rt *Router) getFields(w http.ResponseWriter, r *http.Request, id string) {
	fields, err := rt.docs.GetFields(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "fields": fields})
}

// reprocessDocument re-runs a stuck or misrouted document from scratch. The
// state machine decides who qualifies: review and failed documents reset to
// pending, completed results are immutable.
func (rt *Router) reprocessDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !domain.CanTransition(doc.State, domain.StatePending) {
		writeError(w, domain.WrapError(domain.ErrIllegalState, "reprocess",
			fmt.Errorf("document in state %s", doc.State)))
		return
	}

	if err := rt.docs.UpdateState(r.Context(), id, domain.StatePending, "", ""); err != nil {
		writeError(w, err)
		return
	}
	if err := rt.queue.PublishDocumentQueued(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "state": string(domain.StatePending)})
}

func (rt *Router) listReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	docs, err := rt.docs.ListByStates(r.Context(), domain.StateReview)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

// refreshTemplates is the webhook the template service calls after
// publishing new layouts, so caches converge before the TTL would expire.
func (rt *Router) refreshTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		AppID string `json:"app_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.AppID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "app_id is required"})
		return
	}

	if err := rt.library.Refresh(r.Context(), req.AppID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"app_id": req.AppID, "status": "refreshed"})
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	states, err := statesFromQuery(r.URL.Query().Get("states"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=documents-%s.xlsx", time.Now().UTC().Format("20060102-150405")))
	if err := rt.exporter.Export(r.Context(), w, states...); err != nil {
		// headers are already out, the truncated body is all we can signal
		slog.Error("report export failed",
			"request_id", requestIDFromContext(r.Context()), "error", err)
	}
}

var knownStates = map[string]domain.DocumentState{
	string(domain.StatePending):       domain.StatePending,
	string(domain.StatePreprocessing): domain.StatePreprocessing,
	string(domain.StateMatching):      domain.StateMatching,
	string(domain.StateExtracting):    domain.StateExtracting,
	string(domain.StateReview):        domain.StateReview,
	string(domain.StateCompleted):     domain.StateCompleted,
	string(domain.StateFailed):        domain.StateFailed,
}

func statesFromQuery(raw string) ([]domain.DocumentState, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []domain.DocumentState
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		state, ok := knownStates[part]
		if !ok {
			return nil, fmt.Errorf("unknown state %q", part)
		}
		out = append(out, state)
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
