package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/mikolajkapica/gister/core"
)

const linkedCredentialCacheKeyPrefix = "gister::linked_credential::v1"

// CachedLinkedCredentialStore fronts the SQL store with a read-through
// cache so hot request paths do not hit the database for every call.
type CachedLinkedCredentialStore struct {
	base  *LinkedCredentialStore
	cache repositorycache.CacheService
}

func NewCachedLinkedCredentialStore(
	base *LinkedCredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedLinkedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base linked credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: linked credential cache service is required")
	}
	return &CachedLinkedCredentialStore{base: base, cache: cacheService}, nil
}

// LinkedCredentialCacheKey returns the deterministic cache key for a
// credential read: gister::linked_credential::v1::<user>::<provider>
// with each segment URL-path escaped after trimming.
func LinkedCredentialCacheKey(user core.LocalIdentity, provider core.Provider) (string, error) {
	trimmedUser := strings.TrimSpace(string(user))
	if trimmedUser == "" {
		return "", fmt.Errorf("sqlstore: user id is required")
	}
	trimmedProvider := strings.TrimSpace(string(provider))
	if trimmedProvider == "" {
		return "", fmt.Errorf("sqlstore: provider is required")
	}
	segments := []string{
		url.PathEscape(trimmedUser),
		url.PathEscape(trimmedProvider),
	}
	return strings.Join(append([]string{linkedCredentialCacheKeyPrefix}, segments...), "::"), nil
}

func (s *CachedLinkedCredentialStore) FindLinkedCredential(ctx context.Context, user core.LocalIdentity, provider core.Provider) (core.LinkedCredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: cached linked credential store is not configured")
	}
	cacheKey, err := LinkedCredentialCacheKey(user, provider)
	if err != nil {
		return core.LinkedCredential{}, err
	}

	credential, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.LinkedCredential, error) {
		return s.base.FindLinkedCredential(ctx, user, provider)
	})
	if err != nil {
		return core.LinkedCredential{}, err
	}
	return credential, nil
}

func (s *CachedLinkedCredentialStore) SaveLinked(ctx context.Context, in core.LinkedCredential) (core.LinkedCredential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: cached linked credential store is not configured")
	}
	saved, err := s.base.SaveLinked(ctx, in)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	if err := s.invalidate(ctx, saved.UserID, saved.Provider); err != nil {
		return core.LinkedCredential{}, err
	}
	return saved, nil
}

func (s *CachedLinkedCredentialStore) Unlink(ctx context.Context, user core.LocalIdentity, provider core.Provider) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached linked credential store is not configured")
	}
	if err := s.base.Unlink(ctx, user, provider); err != nil {
		return err
	}
	return s.invalidate(ctx, user, provider)
}

func (s *CachedLinkedCredentialStore) invalidate(ctx context.Context, user core.LocalIdentity, provider core.Provider) error {
	cacheKey, err := LinkedCredentialCacheKey(user, provider)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.CredentialStore = (*CachedLinkedCredentialStore)(nil)
