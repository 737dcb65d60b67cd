// Package supabase provides a client for Supabase PostgREST.
// It is the managed data backend for recorded cases, their custody and
// remission history, and stored calculation snapshots.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	guard          *resilience.Guard
	logger         *zap.Logger
}

// NewClient creates a Supabase client. All calls go through guard.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, guard *resilience.Guard, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		guard:          guard,
		logger:         logger,
	}
}

// doRequest executes an authenticated GET to Supabase PostgREST.
// A 404 or 204 returns a nil body and no error.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, resilience.Permanent(err)
	}
	c.setHeaders(req, "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if err := c.checkStatus(method, path, resp.StatusCode, body); err != nil {
		return nil, err
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}

func (c *Client) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

// checkStatus turns a non-2xx response into an error. Client errors are
// permanent; only 5xx and 429 are retried.
func (c *Client) checkStatus(method, path string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	c.logger.Warn("supabase: non-2xx response",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.String("body", string(body)),
	)
	err := fmt.Errorf("supabase %s %s returned %d: %s", method, path, status, string(body))
	switch {
	case status == http.StatusConflict:
		return resilience.Permanent(&domain.ErrConflict{Message: "record already exists"})
	case status == http.StatusTooManyRequests || status >= 500:
		return err
	}
	return resilience.Permanent(err)
}

// wrap reports a store failure as *domain.ErrExternalService unless it is
// already a domain answer the handler maps on its own.
func wrap(service string, err error) error {
	var (
		nf       *domain.ErrNotFound
		conflict *domain.ErrConflict
		open     *domain.ErrCircuitOpen
		timeout  *domain.ErrTimeout
	)
	if errors.As(err, &nf) || errors.As(err, &conflict) || errors.As(err, &open) || errors.As(err, &timeout) {
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// Ping checks that PostgREST answers.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	err := c.guard.Do(ctx, "supabase.ping", func() error {
		_, err := c.doRequest(ctx, http.MethodGet, "processos?select=id&limit=1")
		return err
	})
	if err != nil {
		return wrap("supabase/ping", err)
	}
	return nil
}
