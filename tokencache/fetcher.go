package tokencache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikolajkapica/gister/core"
)

// TokenResponseHeader is the response header the authentication
// collaborator uses to hand out a fresh bearer token after a session
// fetch.
const TokenResponseHeader = "set-auth-jwt"

const (
	defaultFetchTimeout        = 10 * time.Second
	maxSessionResponseBytes    = 1 << 20 // 1 MiB
	sessionEndpointPathDefault = "/api/auth/get-session"
)

// HTTPSessionFetcher triggers a cookie-authenticated session fetch and
// reads the rotated bearer token from the response headers.
type HTTPSessionFetcher struct {
	Client         core.HTTPDoer
	BaseURL        string
	SessionPath    string
	RequestTimeout time.Duration
}

func NewHTTPSessionFetcher(client core.HTTPDoer, baseURL string) *HTTPSessionFetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &HTTPSessionFetcher{
		Client:      client,
		BaseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		SessionPath: sessionEndpointPathDefault,
	}
}

func (f *HTTPSessionFetcher) FetchSessionToken(ctx context.Context) (string, error) {
	if f == nil || f.Client == nil {
		return "", fmt.Errorf("tokencache: session fetcher is not configured")
	}
	if strings.TrimSpace(f.BaseURL) == "" {
		return "", fmt.Errorf("tokencache: auth base url is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := f.RequestTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	requestCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := f.SessionPath
	if strings.TrimSpace(path) == "" {
		path = sessionEndpointPathDefault
	}
	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	res, err := f.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if _, err := io.Copy(io.Discard, io.LimitReader(res.Body, maxSessionResponseBytes)); err != nil {
		return "", fmt.Errorf("tokencache: drain session response: %w", err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("tokencache: session endpoint returned status %d", res.StatusCode)
	}
	return strings.TrimSpace(res.Header.Get(TokenResponseHeader)), nil
}
