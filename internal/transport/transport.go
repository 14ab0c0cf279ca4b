package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kode4food/quarry/internal/config"
	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

type (
	// Transport hands actions to the fleet. Acceptance only means the
	// action was queued for the agent; responses arrive separately
	Transport interface {
		Dispatch(context.Context, *api.ActionRequest) error
	}

	// HTTPTransport posts actions to a per-client agent endpoint
	HTTPTransport struct {
		httpClient *http.Client
		endpoint   string
	}
)

const (
	userAgent    = "Quarry-Engine/1.0"
	maxErrorBody = 1024
)

var (
	ErrTransport      = errors.New("transport failed")
	ErrMissingClient  = errors.New("action has no client ID")
	ErrAgentRejected  = errors.New("agent endpoint rejected action")
	ErrInvalidRequest = errors.New("invalid action request")
)

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport posting to endpoint, a URL template
// containing the client ID placeholder
func NewHTTPTransport(endpoint string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: endpoint,
	}
}

// Dispatch posts the action. Any failure is wrapped in ErrTransport
func (t *HTTPTransport) Dispatch(
	ctx context.Context, req *api.ActionRequest,
) error {
	if err := t.dispatch(ctx, req); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// EndpointFor returns the URL actions for the client are posted to
func (t *HTTPTransport) EndpointFor(id api.ClientID) string {
	return strings.ReplaceAll(
		t.endpoint, config.ClientIDPlaceholder, url.PathEscape(string(id)),
	)
}

func (t *HTTPTransport) dispatch(
	ctx context.Context, req *api.ActionRequest,
) error {
	if req.ClientID == "" {
		return ErrMissingClient
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, t.EndpointFor(req.ClientID),
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("Action dispatch failed",
			log.FlowID(req.FlowID),
			log.RequestID(req.RequestID),
			log.Action(req.Action),
			slog.Duration("duration", time.Since(start)),
			log.Error(err))
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Error("Agent endpoint error",
			log.FlowID(req.FlowID),
			log.RequestID(req.RequestID),
			slog.Int("status_code", resp.StatusCode),
			slog.String("response_body", string(msg)))
		return fmt.Errorf("%w: HTTP %d", ErrAgentRejected, resp.StatusCode)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	slog.Debug("Action dispatched",
		log.FlowID(req.FlowID),
		log.RequestID(req.RequestID),
		log.Action(req.Action),
		slog.Duration("duration", time.Since(start)))
	return nil
}
