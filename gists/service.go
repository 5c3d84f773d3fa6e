package gists

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/mikolajkapica/gister/core"
)

// Service proxies validated gist operations to the external API on behalf
// of a resolved identity. Every call is bound to the caller's own linked
// credential; no operation can run with another user's token.
type Service struct {
	config          core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	credentials     core.CredentialStore
	github          *githubClient
}

type Option func(*serviceBuilder)

type serviceBuilder struct {
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	credentials     core.CredentialStore
	httpClient      core.HTTPDoer
}

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithCredentialStore(store core.CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.credentials = store
	}
}

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(b *serviceBuilder) {
		b.httpClient = client
	}
}

func NewService(cfg core.Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if builder.credentials == nil {
		return nil, fmt.Errorf("gists: credential store is required")
	}

	provider, logger := glog.Resolve("gists", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("gists"); named != nil {
			logger = glog.Ensure(named)
		}
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}

	return &Service{
		config:          cfg,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		credentials:     builder.credentials,
		github:          newGitHubClient(builder.httpClient, cfg.Upstream),
	}, nil
}

// ListSummaries fetches the caller's first page of gists and reshapes
// each raw item into a summary projection.
func (s *Service) ListSummaries(ctx context.Context, identity core.IdentityContext) (_ []core.GistSummary, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": string(identity.User), "path": string(identity.Path)}
	defer func() { s.observeOperation(ctx, startedAt, "gists.list", err, fields) }()

	token, err := s.resolveToken(ctx, identity)
	if err != nil {
		return nil, err
	}
	status, body, err := s.github.listGists(ctx, token)
	if err != nil {
		return nil, core.MapError(err)
	}
	if !isSuccessStatus(status) {
		return nil, core.NewUpstreamError(status)
	}
	summaries, err := decodeSummaries(body)
	if err != nil {
		return nil, err
	}
	fields["item_count"] = len(summaries)
	return summaries, nil
}

// GetDetail fetches a single gist by external id.
func (s *Service) GetDetail(ctx context.Context, identity core.IdentityContext, externalID string) (_ core.GistDetail, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": string(identity.User), "gist_id": strings.TrimSpace(externalID)}
	defer func() { s.observeOperation(ctx, startedAt, "gists.get", err, fields) }()

	externalID = strings.TrimSpace(externalID)
	if identityErr := requireIdentity(identity); identityErr != nil {
		return core.GistDetail{}, identityErr
	}
	if externalID == "" {
		return core.GistDetail{}, core.NewValidationError("id", "gist id is required")
	}
	token, err := s.lookupCredential(ctx, identity)
	if err != nil {
		return core.GistDetail{}, err
	}
	status, body, err := s.github.getGist(ctx, token, externalID)
	if err != nil {
		return core.GistDetail{}, core.MapError(err)
	}
	if !isSuccessStatus(status) {
		return core.GistDetail{}, core.NewUpstreamError(status)
	}
	return decodeDetail(body)
}

// Create builds a new gist from the caller payload. Description defaults
// to the empty string and public to false when omitted.
func (s *Service) Create(ctx context.Context, identity core.IdentityContext, in core.CreateGistInput) (_ core.GistDetail, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": string(identity.User), "file_count": len(in.Files)}
	defer func() { s.observeOperation(ctx, startedAt, "gists.create", err, fields) }()

	if identityErr := requireIdentity(identity); identityErr != nil {
		return core.GistDetail{}, identityErr
	}
	files := outboundFiles(in.Files)
	if len(files) == 0 {
		return core.GistDetail{}, core.NewValidationError("files", "at least one file is required")
	}
	payload := createGistPayload{
		Description: readOptionalString(in.Description),
		Public:      in.Public != nil && *in.Public,
		Files:       files,
	}
	token, err := s.lookupCredential(ctx, identity)
	if err != nil {
		return core.GistDetail{}, err
	}
	status, body, err := s.github.createGist(ctx, token, payload)
	if err != nil {
		return core.GistDetail{}, core.MapError(err)
	}
	if !isSuccessStatus(status) {
		return core.GistDetail{}, core.NewUpstreamError(status)
	}
	return decodeDetail(body)
}

// Update sends a partial patch: only supplied fields travel upstream,
// omitted fields are left untouched on the external record.
func (s *Service) Update(ctx context.Context, identity core.IdentityContext, externalID string, in core.UpdateGistInput) (_ core.GistDetail, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": string(identity.User), "gist_id": strings.TrimSpace(externalID)}
	defer func() { s.observeOperation(ctx, startedAt, "gists.update", err, fields) }()

	externalID = strings.TrimSpace(externalID)
	if identityErr := requireIdentity(identity); identityErr != nil {
		return core.GistDetail{}, identityErr
	}
	if externalID == "" {
		return core.GistDetail{}, core.NewValidationError("id", "gist id is required")
	}
	if in.Description == nil && len(in.Files) == 0 {
		return core.GistDetail{}, core.NewValidationError("update", "at least one field must be supplied")
	}
	payload := updateGistPayload{Description: in.Description}
	if len(in.Files) > 0 {
		payload.Files = outboundFiles(in.Files)
		if len(payload.Files) == 0 {
			return core.GistDetail{}, core.NewValidationError("files", "file names must not be blank")
		}
	}
	token, err := s.lookupCredential(ctx, identity)
	if err != nil {
		return core.GistDetail{}, err
	}
	status, body, err := s.github.updateGist(ctx, token, externalID, payload)
	if err != nil {
		return core.GistDetail{}, core.MapError(err)
	}
	if !isSuccessStatus(status) {
		return core.GistDetail{}, core.NewUpstreamError(status)
	}
	return decodeDetail(body)
}

// Delete removes the external gist. A repeat delete surfaces the external
// not-found status as a typed upstream error, never a crash.
func (s *Service) Delete(ctx context.Context, identity core.IdentityContext, externalID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"user_id": string(identity.User), "gist_id": strings.TrimSpace(externalID)}
	defer func() { s.observeOperation(ctx, startedAt, "gists.delete", err, fields) }()

	externalID = strings.TrimSpace(externalID)
	if identityErr := requireIdentity(identity); identityErr != nil {
		return identityErr
	}
	if externalID == "" {
		return core.NewValidationError("id", "gist id is required")
	}
	token, err := s.lookupCredential(ctx, identity)
	if err != nil {
		return err
	}
	status, _, err := s.github.deleteGist(ctx, token, externalID)
	if err != nil {
		return core.MapError(err)
	}
	if !isSuccessStatus(status) {
		return core.NewUpstreamError(status)
	}
	return nil
}

func (s *Service) resolveToken(ctx context.Context, identity core.IdentityContext) (string, error) {
	if err := requireIdentity(identity); err != nil {
		return "", err
	}
	return s.lookupCredential(ctx, identity)
}

func (s *Service) lookupCredential(ctx context.Context, identity core.IdentityContext) (string, error) {
	credential, err := s.credentials.FindLinkedCredential(ctx, identity.User, core.Provider(s.config.Provider))
	if err != nil {
		// Only an absent row means the account is not linked. Anything
		// else is a store failure and must not tell the caller to relink.
		if core.IsNotFound(err) {
			return "", core.NewAccountNotLinkedError(core.Provider(s.config.Provider))
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "gists: credential lookup failed").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.GisterErrorInternal)
	}
	if strings.TrimSpace(credential.AccessToken) == "" {
		return "", core.NewAccountNotLinkedError(core.Provider(s.config.Provider))
	}
	return credential.AccessToken, nil
}

func requireIdentity(identity core.IdentityContext) error {
	if !identity.Authenticated() {
		return core.NewNotAuthenticatedError()
	}
	return nil
}

func isSuccessStatus(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func (s *Service) observeOperation(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	if s == nil {
		return
	}
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["event_type"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = err.Error()
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	if value := strings.TrimSpace(fmt.Sprint(contextFields["path"])); value != "" && value != "<nil>" {
		tags["path"] = value
	}

	s.recordCounter(ctx, "gister."+operation+".total", 1, tags)
	s.recordHistogram(ctx, "gister."+operation+".duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		s.logError(ctx, operation+" failed", contextFields)
		return
	}
	s.logInfo(ctx, operation+" succeeded", contextFields)
}

func (s *Service) logInfo(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "info", message, fields)
}

func (s *Service) logError(ctx context.Context, message string, fields map[string]any) {
	s.logWithLevel(ctx, "error", message, fields)
}

func (s *Service) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (s *Service) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, tags)
}

func (s *Service) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if s == nil || s.metricsRecorder == nil {
		return
	}
	s.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, tags)
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
