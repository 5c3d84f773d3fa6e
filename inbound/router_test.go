package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mikolajkapica/gister/command"
	"github.com/mikolajkapica/gister/core"
	"github.com/mikolajkapica/gister/gists"
	"github.com/mikolajkapica/gister/identity"
	"github.com/mikolajkapica/gister/query"
)

type staticVerifier struct {
	session *core.Session
	err     error
}

func (v staticVerifier) ResolveSession(context.Context, http.Header) (*core.Session, error) {
	return v.session, v.err
}

type staticCredentialStore struct {
	token string
	err   error
}

func (s staticCredentialStore) FindLinkedCredential(_ context.Context, user core.LocalIdentity, provider core.Provider) (core.LinkedCredential, error) {
	if s.err != nil {
		return core.LinkedCredential{}, s.err
	}
	return core.LinkedCredential{UserID: user, Provider: provider, AccessToken: s.token}, nil
}

type testStack struct {
	handler http.Handler
}

func newTestStack(t *testing.T, verifier core.SessionVerifier, store core.CredentialStore, upstreamHandler http.HandlerFunc) testStack {
	t.Helper()

	upstream := httptest.NewServer(upstreamHandler)
	t.Cleanup(upstream.Close)

	registry := prometheus.NewRegistry()
	cfg := core.DefaultConfig()
	cfg.Upstream.BaseURL = upstream.URL

	svc, err := gists.NewService(cfg,
		gists.WithCredentialStore(store),
		gists.WithHTTPClient(upstream.Client()),
		gists.WithMetricsRecorder(NewPrometheusRecorder(registry)),
	)
	if err != nil {
		t.Fatalf("new gists service: %v", err)
	}

	resolver := identity.NewResolver(identity.Config{Verifier: verifier})
	handler := NewRouter(&RouterDeps{
		Resolver:        resolver,
		HealthCheck:     query.NewHealthCheckQuery(),
		ListGists:       query.NewListGistsQuery(svc),
		GetGist:         query.NewGetGistQuery(svc),
		CreateGist:      command.NewCreateGistCommand(svc),
		UpdateGist:      command.NewUpdateGistCommand(svc),
		DeleteGist:      command.NewDeleteGistCommand(svc),
		MetricsGatherer: registry,
	})

	return testStack{handler: handler}
}

func authenticatedVerifier() staticVerifier {
	return staticVerifier{session: &core.Session{User: "usr_1", Name: "Ada"}}
}

func decodeEnvelope(t *testing.T, body string) errorEnvelope {
	t.Helper()
	var envelope errorEnvelope
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		t.Fatalf("decode error envelope from %q: %v", body, err)
	}
	return envelope
}

func TestRouter_HealthCheck(t *testing.T) {
	stack := newTestStack(t, staticVerifier{}, staticCredentialStore{}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("health check must not reach upstream")
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc/healthCheck", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `"OK"` {
		t.Fatalf("expected \"OK\", got %q", rec.Body.String())
	}
}

func TestRouter_ListGists_UnauthenticatedEnvelope(t *testing.T) {
	stack := newTestStack(t, staticVerifier{}, staticCredentialStore{token: "gho"}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unauthenticated request must not reach upstream")
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc/listGists", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body.String())
	if envelope.Error.TextCode != core.GisterErrorNotAuthenticated {
		t.Fatalf("expected not-authenticated code, got %q", envelope.Error.TextCode)
	}
}

func TestRouter_ListGists_AccountNotLinkedEnvelope(t *testing.T) {
	stack := newTestStack(t,
		authenticatedVerifier(),
		staticCredentialStore{err: goerrors.New(
			fmt.Sprintf("sqlstore: github credential not found for user %q", "usr_1"),
			goerrors.CategoryNotFound,
		).WithTextCode(core.GisterErrorNotFound)},
		func(w http.ResponseWriter, r *http.Request) {
			t.Errorf("unlinked request must not reach upstream")
		},
	)

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc/listGists", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body.String())
	if envelope.Error.TextCode != core.GisterErrorAccountNotLinked {
		t.Fatalf("expected account-not-linked code, got %q", envelope.Error.TextCode)
	}
	if strings.Contains(rec.Body.String(), "gho_") {
		t.Fatalf("error envelope must not leak token material: %s", rec.Body.String())
	}
}

func TestRouter_ListGists_HappyPath(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho_token"}, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer gho_token" {
			t.Errorf("expected bearer header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"id": "id_1",
			"description": null,
			"public": true,
			"html_url": "https://gist.example/id_1",
			"updated_at": "2026-01-02T03:04:05Z",
			"files": {"a.txt": {"filename": "a.txt"}, "b.txt": {"filename": "b.txt"}}
		}]`))
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc/listGists", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected one summary, got %d", len(out))
	}
	if out[0]["id"] != "id_1" || out[0]["fileCount"] != float64(2) {
		t.Fatalf("unexpected summary: %v", out[0])
	}
	if out[0]["description"] != "" {
		t.Fatalf("expected null description to render as empty string, got %v", out[0]["description"])
	}
	if out[0]["isPublic"] != true {
		t.Fatalf("expected isPublic true, got %v", out[0]["isPublic"])
	}
}

func TestRouter_GetGist_RequiresID(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho"}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("invalid request must not reach upstream")
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc/getGist", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body.String())
	if envelope.Error.TextCode != core.GisterErrorBadInput {
		t.Fatalf("expected bad-input code, got %q", envelope.Error.TextCode)
	}
}

func TestRouter_CreateGist_RoundTrip(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho_token"}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/gists" {
			t.Errorf("unexpected upstream request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "id_new",
			"description": "made",
			"public": false,
			"html_url": "https://gist.example/id_new",
			"updated_at": "2026-01-02T03:04:05Z",
			"files": {"a.txt": {"filename": "a.txt", "content": "hello"}}
		}`))
	})

	body := strings.NewReader(`{"description": "made", "files": {"a.txt": {"content": "hello"}}}`)
	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc/createGist", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if out["id"] != "id_new" {
		t.Fatalf("unexpected detail: %v", out)
	}
	files, ok := out["files"].(map[string]any)
	if !ok || len(files) != 1 {
		t.Fatalf("expected files map in detail, got %v", out["files"])
	}
}

func TestRouter_CreateGist_ValidationEnvelope(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho"}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("invalid create must not reach upstream")
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc/createGist", strings.NewReader(`{"files": {}}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body.String())
	if envelope.Error.TextCode != core.GisterErrorBadInput {
		t.Fatalf("expected bad-input code, got %q", envelope.Error.TextCode)
	}
}

func TestRouter_UpdateGist_MalformedBody(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho"}, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("malformed body must not reach upstream")
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc/updateGist", strings.NewReader(`{"id": `)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body.String())
	if envelope.Error.TextCode != core.GisterErrorBadInput {
		t.Fatalf("expected bad-input code, got %q", envelope.Error.TextCode)
	}
}

func TestRouter_DeleteGist_SuccessAcknowledgment(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho_token"}, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected upstream method %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc/deleteGist", strings.NewReader(`{"id": "id_gone"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode acknowledgment: %v", err)
	}
	if out["success"] != true {
		t.Fatalf("expected success acknowledgment, got %v", out)
	}
}

func TestRouter_DeleteGist_UpstreamNotFoundEnvelope(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho_token"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc/deleteGist", strings.NewReader(`{"id": "id_gone"}`)))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body.String())
	if envelope.Error.TextCode != core.GisterErrorUpstream {
		t.Fatalf("expected upstream code, got %q", envelope.Error.TextCode)
	}
}

func TestRouter_MetricsEndpointExposesCounters(t *testing.T) {
	stack := newTestStack(t, authenticatedVerifier(), staticCredentialStore{token: "gho_token"}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	rec := httptest.NewRecorder()
	stack.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc/listGists", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list request failed: %d", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	stack.handler.ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("metrics scrape failed: %d", metricsRec.Code)
	}
	if !strings.Contains(metricsRec.Body.String(), "gister_gists_list_total") {
		t.Fatalf("expected list counter in scrape output:\n%s", metricsRec.Body.String())
	}
}

func TestIdentityFromContext_DefaultsToUnauthenticated(t *testing.T) {
	resolved := IdentityFromContext(context.Background())
	if resolved.Authenticated() {
		t.Fatalf("expected unauthenticated default")
	}
	if resolved.Path != core.ResolutionPathNone {
		t.Fatalf("expected none path, got %q", resolved.Path)
	}
}
