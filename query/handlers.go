package query

import (
	"context"

	"github.com/mikolajkapica/gister/core"
)

type ReadService interface {
	ListSummaries(ctx context.Context, identity core.IdentityContext) ([]core.GistSummary, error)
	GetDetail(ctx context.Context, identity core.IdentityContext, externalID string) (core.GistDetail, error)
}

type ListGistsQuery struct {
	reader ReadService
}

func NewListGistsQuery(reader ReadService) *ListGistsQuery {
	return &ListGistsQuery{reader: reader}
}

func (q *ListGistsQuery) Query(ctx context.Context, msg ListGistsMessage) ([]core.GistSummary, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: gist reader is required")
	}
	return q.reader.ListSummaries(ctx, msg.Identity)
}

type GetGistQuery struct {
	reader ReadService
}

func NewGetGistQuery(reader ReadService) *GetGistQuery {
	return &GetGistQuery{reader: reader}
}

func (q *GetGistQuery) Query(ctx context.Context, msg GetGistMessage) (core.GistDetail, error) {
	if q == nil || q.reader == nil {
		return core.GistDetail{}, queryDependencyError("query: gist reader is required")
	}
	return q.reader.GetDetail(ctx, msg.Identity, msg.ExternalID)
}

// HealthCheckQuery answers the liveness probe; it has no dependencies
// beyond the process itself.
type HealthCheckQuery struct{}

func NewHealthCheckQuery() *HealthCheckQuery {
	return &HealthCheckQuery{}
}

func (q *HealthCheckQuery) Query(_ context.Context, _ HealthCheckMessage) (string, error) {
	return "OK", nil
}
