package tokencache

import "net/http"

// Transport attaches the cached bearer token to outbound requests. When no
// token is available the request is sent without an Authorization header;
// most endpoints degrade to cookie-only identity.
type Transport struct {
	Base  http.RoundTripper
	Cache *Cache
}

func NewTransport(base http.RoundTripper, cache *Cache) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base, Cache: cache}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Cache == nil || req.Header.Get("Authorization") != "" {
		return base.RoundTrip(req)
	}
	token := t.Cache.GetToken(req.Context())
	if token == "" {
		return base.RoundTrip(req)
	}
	// RoundTrippers must not mutate the caller's request.
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", "Bearer "+token)
	return base.RoundTrip(cloned)
}

var _ http.RoundTripper = (*Transport)(nil)
