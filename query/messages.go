package query

import (
	"fmt"
	"strings"

	"github.com/mikolajkapica/gister/core"
)

const (
	TypeListGists   = "gister.query.gist.list"
	TypeGetGist     = "gister.query.gist.get"
	TypeHealthCheck = "gister.query.health.check"
)

type ListGistsMessage struct {
	Identity core.IdentityContext
}

func (ListGistsMessage) Type() string { return TypeListGists }

func (ListGistsMessage) Validate() error { return nil }

type GetGistMessage struct {
	Identity   core.IdentityContext
	ExternalID string
}

func (GetGistMessage) Type() string { return TypeGetGist }

func (m GetGistMessage) Validate() error {
	if strings.TrimSpace(m.ExternalID) == "" {
		return fmt.Errorf("query: gist id is required")
	}
	return nil
}

type HealthCheckMessage struct{}

func (HealthCheckMessage) Type() string { return TypeHealthCheck }

func (HealthCheckMessage) Validate() error { return nil }
