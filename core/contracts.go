package core

import (
	"context"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// CredentialStore is the single Identity Store query the proxy layer
// depends on: a filtered, limit-one lookup keyed by (user, provider).
type CredentialStore interface {
	FindLinkedCredential(ctx context.Context, user LocalIdentity, provider Provider) (LinkedCredential, error)
}

// SessionVerifier is the authentication collaborator consumed on the
// primary resolution path. A nil session with a nil error means no trusted
// session was presented.
type SessionVerifier interface {
	ResolveSession(ctx context.Context, header http.Header) (*Session, error)
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}
