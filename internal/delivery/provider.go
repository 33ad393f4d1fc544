package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider fetches the latest one-time code for a number, addressed only by
// the number's opaque access token.
type Provider interface {
	FetchCode(ctx context.Context, accessToken string) (string, error)
}

// HTTPProvider talks to the external SMS gateway. The gateway exposes one
// GET endpoint per token and answers with the code as a plain-text body, or
// an empty body when no code has arrived yet.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider builds a provider for the given gateway base URL with a
// bounded request timeout.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchCode requests the current code for the token.
func (p *HTTPProvider) FetchCode(ctx context.Context, accessToken string) (string, error) {
	url := fmt.Sprintf("%s/gs=%s", p.baseURL, accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// StaticProvider returns a fixed code or error. Used by tests and by dev
// mode when no gateway is configured.
type StaticProvider struct {
	Code string
	Err  error
}

// FetchCode returns the configured code or error.
func (p StaticProvider) FetchCode(_ context.Context, _ string) (string, error) {
	return p.Code, p.Err
}
