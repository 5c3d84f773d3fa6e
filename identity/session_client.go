package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikolajkapica/gister/core"
)

const defaultSessionPath = "/api/auth/get-session"
const defaultSessionClientTimeout = 10 * time.Second
const maxSessionResponseBodyBytes int64 = 1 << 20 // 1 MiB

// HTTPSessionVerifier resolves trusted sessions against the authentication
// collaborator over HTTP. It forwards the caller's cookie so the
// collaborator can validate the session it issued.
type HTTPSessionVerifier struct {
	Client      core.HTTPDoer
	BaseURL     string
	SessionPath string
}

type sessionEnvelope struct {
	User *struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	Session *struct {
		ExpiresAt time.Time `json:"expiresAt"`
	} `json:"session"`
}

func (v *HTTPSessionVerifier) ResolveSession(ctx context.Context, header http.Header) (*core.Session, error) {
	if v == nil || strings.TrimSpace(v.BaseURL) == "" {
		return nil, fmt.Errorf("identity: session verifier base url is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	client := v.Client
	if client == nil {
		client = &http.Client{Timeout: defaultSessionClientTimeout}
	}
	path := strings.TrimSpace(v.SessionPath)
	if path == "" {
		path = defaultSessionPath
	}

	target := strings.TrimRight(strings.TrimSpace(v.BaseURL), "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: create session request: %w", err)
	}
	if header != nil {
		if cookie := strings.TrimSpace(header.Get("Cookie")); cookie != "" {
			httpReq.Header.Set("Cookie", cookie)
		}
		if authorization := strings.TrimSpace(header.Get("Authorization")); authorization != "" {
			httpReq.Header.Set("Authorization", authorization)
		}
	}
	httpReq.Header.Set("Accept", "application/json")

	httpRes, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("identity: execute session request: %w", err)
	}
	defer httpRes.Body.Close()

	if httpRes.StatusCode == http.StatusUnauthorized || httpRes.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if httpRes.StatusCode < http.StatusOK || httpRes.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("identity: session endpoint returned status %d", httpRes.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxSessionResponseBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("identity: read session response: %w", err)
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var envelope sessionEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("identity: decode session response: %w", err)
	}
	if envelope.User == nil || strings.TrimSpace(envelope.User.ID) == "" {
		return nil, nil
	}

	session := &core.Session{
		User:  core.LocalIdentity(strings.TrimSpace(envelope.User.ID)),
		Name:  strings.TrimSpace(envelope.User.Name),
		Email: strings.TrimSpace(envelope.User.Email),
	}
	if envelope.Session != nil {
		session.ExpiresAt = envelope.Session.ExpiresAt.UTC()
	}
	return session, nil
}

var _ core.SessionVerifier = (*HTTPSessionVerifier)(nil)
