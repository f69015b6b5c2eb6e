// Package templates mirrors the authoritative template library into a
// local store and serves match candidates from a TTL cache. The remote
// authority owns the templates; this side only pulls, caches, and
// proposes variants.
package templates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/infrastructure/resilience"
)

// SyncClient talks to the remote template authority over HTTP. All calls
// go through the resilience executor so a flapping authority trips the
// breaker instead of stalling document processing.
type SyncClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewSyncClient(baseURL, apiKey string, executor *resilience.Executor) *SyncClient {
	return &SyncClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

// Pull fetches the current template set for one application.
func (c *SyncClient) Pull(ctx context.Context, appID string) ([]domain.Template, error) {
	var response struct {
		Templates []domain.Template `json:"templates"`
	}
	path := "/api/v1/templates?" + url.Values{"app_id": {appID}}.Encode()
	err := c.executor.Execute(ctx, "template_pull", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodGet, path, nil, &response, "pull")
	}, classifySyncError)
	if err != nil {
		return nil, wrapTemporarySync("template_pull", err)
	}
	return response.Templates, nil
}

// PushProposal submits a variant proposal upstream. The authority decides
// whether it becomes a template; nothing is promoted locally.
func (c *SyncClient) PushProposal(ctx context.Context, proposal domain.VariantProposal) error {
	err := c.executor.Execute(ctx, "template_push", func(ctx context.Context) error {
		return c.doJSON(ctx, http.MethodPost, "/api/v1/template-variants", proposal, nil, "push")
	}, classifySyncError)
	return wrapTemporarySync("template_push", err)
}

func (c *SyncClient) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("template sync %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &SyncStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
