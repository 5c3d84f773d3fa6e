package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/mikolajkapica/gister/core"
)

type MutatingService interface {
	Create(ctx context.Context, identity core.IdentityContext, in core.CreateGistInput) (core.GistDetail, error)
	Update(ctx context.Context, identity core.IdentityContext, externalID string, in core.UpdateGistInput) (core.GistDetail, error)
	Delete(ctx context.Context, identity core.IdentityContext, externalID string) error
}

// DeleteGistResult is the boundary acknowledgment for a delete; the
// external API returns no body on success.
type DeleteGistResult struct {
	Success bool `json:"success"`
}

type CreateGistCommand struct {
	service MutatingService
}

func NewCreateGistCommand(service MutatingService) *CreateGistCommand {
	return &CreateGistCommand{service: service}
}

func (c *CreateGistCommand) Execute(ctx context.Context, msg CreateGistMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gist service is required")
	}
	out, err := c.service.Create(ctx, msg.Identity, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateGistCommand struct {
	service MutatingService
}

func NewUpdateGistCommand(service MutatingService) *UpdateGistCommand {
	return &UpdateGistCommand{service: service}
}

func (c *UpdateGistCommand) Execute(ctx context.Context, msg UpdateGistMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gist service is required")
	}
	out, err := c.service.Update(ctx, msg.Identity, msg.ExternalID, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteGistCommand struct {
	service MutatingService
}

func NewDeleteGistCommand(service MutatingService) *DeleteGistCommand {
	return &DeleteGistCommand{service: service}
}

func (c *DeleteGistCommand) Execute(ctx context.Context, msg DeleteGistMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: gist service is required")
	}
	if err := c.service.Delete(ctx, msg.Identity, msg.ExternalID); err != nil {
		return err
	}
	storeResult(ctx, DeleteGistResult{Success: true})
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
