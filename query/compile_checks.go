package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/mikolajkapica/gister/core"
)

var (
	_ gocmd.Querier[ListGistsMessage, []core.GistSummary] = (*ListGistsQuery)(nil)
	_ gocmd.Querier[GetGistMessage, core.GistDetail]      = (*GetGistQuery)(nil)
	_ gocmd.Querier[HealthCheckMessage, string]           = (*HealthCheckQuery)(nil)
)
