// Package downstream delivers auto-committed extraction results to the
// business system that owns the templates.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/infrastructure/resilience"
)

type Finalizer struct {
	url        string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewFinalizer(url, apiKey string, executor *resilience.Executor) *Finalizer {
	return &Finalizer{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

type finalizePayload struct {
	DocumentID string                   `json:"document_id"`
	TemplateID string                   `json:"template_id"`
	AppID      string                   `json:"app_id"`
	Confidence float64                  `json:"confidence"`
	Fields     []domain.ExtractedField  `json:"fields"`
	Source     finalizeSourceDescriptor `json:"source"`
}

type finalizeSourceDescriptor struct {
	OriginalFilename string    `json:"original_filename,omitempty"`
	Channel          string    `json:"channel,omitempty"`
	IngestedAt       time.Time `json:"ingested_at"`
}

// Finalize posts the committed result. A rejected or unreachable receiver
// surfaces as an error; the caller decides whether the document stays
// completed or drops to review.
func (f *Finalizer) Finalize(ctx context.Context, doc *domain.Document, fields []domain.ExtractedField, confidence float64, templateID string) error {
	payload := finalizePayload{
		DocumentID: doc.ID,
		TemplateID: templateID,
		AppID:      doc.AppID,
		Confidence: confidence,
		Fields:     fields,
		Source: finalizeSourceDescriptor{
			OriginalFilename: doc.OriginalFilename,
			Channel:          doc.SourceChannel,
			IngestedAt:       doc.IngestedAt,
		},
	}

	call := func(ctx context.Context) error {
		return f.post(ctx, payload)
	}
	var err error
	if f.executor != nil {
		err = f.executor.Execute(ctx, "finalize", call, classifyFinalizeError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		class := classifyFinalizeError(err)
		if class.Retryable || resilience.IsCircuitOpen(err) {
			return domain.WrapError(domain.ErrTemporary, "finalize", err)
		}
		return err
	}
	return nil
}

func (f *Finalizer) post(ctx context.Context, payload finalizePayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal finalize payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create finalize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("finalize request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e == nil {
		return "finalize status error"
	}
	if e.Body == "" {
		return fmt.Sprintf("finalize status: %s", e.Status)
	}
	return fmt.Sprintf("finalize status: %s: %s", e.Status, e.Body)
}

func classifyFinalizeError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
