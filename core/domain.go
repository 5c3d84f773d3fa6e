package core

import (
	"strings"
	"time"
)

// LocalIdentity is this system's stable identifier for an authenticated user.
// It is assigned at registration and never changes afterwards.
type LocalIdentity string

func (id LocalIdentity) IsZero() bool {
	return strings.TrimSpace(string(id)) == ""
}

type Provider string

const ProviderGitHub Provider = "github"

// LinkedCredential ties a LocalIdentity to an external provider account.
// Rows are created by the OAuth linking flow and are read-only here;
// re-linking replaces the row, it never mutates it.
type LinkedCredential struct {
	ID          string
	UserID      LocalIdentity
	Provider    Provider
	AccessToken string
	LinkedAt    time.Time
}

type ResolutionPath string

const (
	ResolutionPathPrimary  ResolutionPath = "primary"
	ResolutionPathFallback ResolutionPath = "fallback"
	ResolutionPathNone     ResolutionPath = "none"
)

// IdentityContext is the request-scoped outcome of session resolution.
// It is constructed once per inbound request and never shared across
// requests.
type IdentityContext struct {
	User      LocalIdentity
	Path      ResolutionPath
	Name      string
	Email     string
	ExpiresAt *time.Time
}

func (c IdentityContext) Authenticated() bool {
	if c.User.IsZero() {
		return false
	}
	return c.Path == ResolutionPathPrimary || c.Path == ResolutionPathFallback
}

// Session is the trusted-session record returned by the authentication
// collaborator on the primary resolution path.
type Session struct {
	User      LocalIdentity
	Name      string
	Email     string
	ExpiresAt time.Time
}

// GistFile is a single file entry inside a gist detail projection.
type GistFile struct {
	Filename string
	Content  string
	Language string
	RawURL   string
	Size     int64
}

// GistSummary is the list-granularity projection of an external gist.
// Value object; never persisted locally.
type GistSummary struct {
	ID          string
	Description string
	FileCount   int
	Public      bool
	URL         string
	UpdatedAt   string
}

// GistDetail is the detail-granularity projection of an external gist.
// File iteration order is unspecified; callers must not depend on it.
type GistDetail struct {
	ID          string
	Description string
	Files       map[string]GistFile
	Public      bool
	URL         string
	UpdatedAt   string
}

// FileInput is a caller-supplied file body for create/update operations.
type FileInput struct {
	Content string
}

// CreateGistInput carries the caller payload for gist creation. Description
// defaults to the empty string and Public to false when nil.
type CreateGistInput struct {
	Description *string
	Files       map[string]FileInput
	Public      *bool
}

// UpdateGistInput is a partial update; only non-nil fields are sent
// upstream, omitted fields are left untouched.
type UpdateGistInput struct {
	Description *string
	Files       map[string]FileInput
}
