package gists

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mikolajkapica/gister/core"
)

const (
	acceptHeader    = "application/vnd.github+json"
	userAgentHeader = "gister-app"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

// githubClient issues raw calls against the external gist API. It owns
// header discipline and body limits; shape validation lives in schema.go.
type githubClient struct {
	client       core.HTTPDoer
	baseURL      string
	listPageSize int
	timeout      time.Duration
	maxBodyBytes int64
}

func newGitHubClient(client core.HTTPDoer, cfg core.UpstreamConfig) *githubClient {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	maxBody := cfg.MaxResponseBodyBytes
	if maxBody <= 0 {
		maxBody = defaultResponseBodyLimit
	}
	pageSize := cfg.ListPageSize
	if pageSize < 1 {
		pageSize = 50
	}
	return &githubClient{
		client:       client,
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		listPageSize: pageSize,
		timeout:      timeout,
		maxBodyBytes: maxBody,
	}
}

func (c *githubClient) listGists(ctx context.Context, token string) (int, []byte, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(c.listPageSize))
	return c.do(ctx, http.MethodGet, "/gists", query, nil, token)
}

func (c *githubClient) getGist(ctx context.Context, token string, externalID string) (int, []byte, error) {
	return c.do(ctx, http.MethodGet, "/gists/"+url.PathEscape(externalID), nil, nil, token)
}

func (c *githubClient) createGist(ctx context.Context, token string, payload any) (int, []byte, error) {
	return c.do(ctx, http.MethodPost, "/gists", nil, payload, token)
}

func (c *githubClient) updateGist(ctx context.Context, token string, externalID string, payload any) (int, []byte, error) {
	return c.do(ctx, http.MethodPatch, "/gists/"+url.PathEscape(externalID), nil, payload, token)
}

func (c *githubClient) deleteGist(ctx context.Context, token string, externalID string) (int, []byte, error) {
	return c.do(ctx, http.MethodDelete, "/gists/"+url.PathEscape(externalID), nil, nil, token)
}

func (c *githubClient) do(ctx context.Context, method string, path string, query url.Values, payload any, token string) (int, []byte, error) {
	if c == nil || c.client == nil {
		return 0, nil, fmt.Errorf("gists: github client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target = target + "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("gists: encode request payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("gists: create http request: %w", err)
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("User-Agent", userAgentHeader)
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpRes, err := c.client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("gists: execute http request: %w", err)
	}
	defer httpRes.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(httpRes.Body, c.maxBodyBytes+1))
	if err != nil {
		return httpRes.StatusCode, nil, fmt.Errorf("gists: read response body: %w", err)
	}
	if int64(len(responseBody)) > c.maxBodyBytes {
		return httpRes.StatusCode, nil, fmt.Errorf("gists: response body exceeds limit of %d bytes", c.maxBodyBytes)
	}
	return httpRes.StatusCode, responseBody, nil
}
