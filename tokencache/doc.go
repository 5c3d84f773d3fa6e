// Package tokencache holds the client-side bearer token for calls against
// the RPC surface. It is consumed by clients of the service, not by the
// server itself.
//
// A client wires the pieces into its http.Client:
//
//	fetcher := tokencache.NewHTTPSessionFetcher(nil, "https://auth.example.com")
//	cache := tokencache.New(tokencache.Config{Fetcher: fetcher})
//	client := &http.Client{Transport: tokencache.NewTransport(nil, cache)}
//
// Every request through that client then carries the cached bearer token,
// refreshed lazily when the TTL lapses. Requests proceed without the
// header when no token is available.
package tokencache
