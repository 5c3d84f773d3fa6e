package command

import (
	"fmt"
	"strings"

	"github.com/mikolajkapica/gister/core"
)

const (
	TypeCreateGist = "gister.command.gist.create"
	TypeUpdateGist = "gister.command.gist.update"
	TypeDeleteGist = "gister.command.gist.delete"
)

type CreateGistMessage struct {
	Identity core.IdentityContext
	Input    core.CreateGistInput
}

func (CreateGistMessage) Type() string { return TypeCreateGist }

func (m CreateGistMessage) Validate() error {
	if len(m.Input.Files) == 0 {
		return fmt.Errorf("command: at least one file is required")
	}
	for name := range m.Input.Files {
		if strings.TrimSpace(name) != "" {
			return nil
		}
	}
	return fmt.Errorf("command: file names must not be blank")
}

type UpdateGistMessage struct {
	Identity   core.IdentityContext
	ExternalID string
	Input      core.UpdateGistInput
}

func (UpdateGistMessage) Type() string { return TypeUpdateGist }

func (m UpdateGistMessage) Validate() error {
	if strings.TrimSpace(m.ExternalID) == "" {
		return fmt.Errorf("command: gist id is required")
	}
	if m.Input.Description == nil && len(m.Input.Files) == 0 {
		return fmt.Errorf("command: at least one field must be supplied")
	}
	return nil
}

type DeleteGistMessage struct {
	Identity   core.IdentityContext
	ExternalID string
}

func (DeleteGistMessage) Type() string { return TypeDeleteGist }

func (m DeleteGistMessage) Validate() error {
	if strings.TrimSpace(m.ExternalID) == "" {
		return fmt.Errorf("command: gist id is required")
	}
	return nil
}
