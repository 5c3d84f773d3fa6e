package command

import (
	"context"
	"fmt"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/mikolajkapica/gister/core"
)

type stubMutatingService struct {
	createFn func(ctx context.Context, identity core.IdentityContext, in core.CreateGistInput) (core.GistDetail, error)
	updateFn func(ctx context.Context, identity core.IdentityContext, externalID string, in core.UpdateGistInput) (core.GistDetail, error)
	deleteFn func(ctx context.Context, identity core.IdentityContext, externalID string) error
}

func (s stubMutatingService) Create(ctx context.Context, identity core.IdentityContext, in core.CreateGistInput) (core.GistDetail, error) {
	if s.createFn == nil {
		return core.GistDetail{}, fmt.Errorf("unexpected create call")
	}
	return s.createFn(ctx, identity, in)
}

func (s stubMutatingService) Update(ctx context.Context, identity core.IdentityContext, externalID string, in core.UpdateGistInput) (core.GistDetail, error) {
	if s.updateFn == nil {
		return core.GistDetail{}, fmt.Errorf("unexpected update call")
	}
	return s.updateFn(ctx, identity, externalID, in)
}

func (s stubMutatingService) Delete(ctx context.Context, identity core.IdentityContext, externalID string) error {
	if s.deleteFn == nil {
		return fmt.Errorf("unexpected delete call")
	}
	return s.deleteFn(ctx, identity, externalID)
}

func testIdentity() core.IdentityContext {
	return core.IdentityContext{User: "usr_1", Path: core.ResolutionPathPrimary}
}

func TestCreateGistCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.GistDetail{ID: "id_new", Files: map[string]core.GistFile{"a.txt": {Filename: "a.txt", Content: "x"}}}
	called := false

	svc := stubMutatingService{
		createFn: func(_ context.Context, identity core.IdentityContext, in core.CreateGistInput) (core.GistDetail, error) {
			called = true
			if identity.User != "usr_1" {
				t.Fatalf("expected usr_1, got %q", identity.User)
			}
			if len(in.Files) != 1 {
				t.Fatalf("expected one file, got %d", len(in.Files))
			}
			return expected, nil
		},
	}

	cmd := NewCreateGistCommand(svc)
	collector := gocmd.NewResult[core.GistDetail]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, CreateGistMessage{
		Identity: testIdentity(),
		Input: core.CreateGistInput{
			Files: map[string]core.FileInput{"a.txt": {Content: "x"}},
		},
	})
	if err != nil {
		t.Fatalf("execute create: %v", err)
	}
	if !called {
		t.Fatalf("expected create service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.ID != expected.ID {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestUpdateGistCommand_PropagatesServiceError(t *testing.T) {
	svc := stubMutatingService{
		updateFn: func(_ context.Context, _ core.IdentityContext, externalID string, _ core.UpdateGistInput) (core.GistDetail, error) {
			if externalID != "id_1" {
				t.Fatalf("expected id_1, got %q", externalID)
			}
			return core.GistDetail{}, core.NewUpstreamError(502)
		},
	}

	cmd := NewUpdateGistCommand(svc)
	err := cmd.Execute(context.Background(), UpdateGistMessage{
		Identity:   testIdentity(),
		ExternalID: "id_1",
		Input:      core.UpdateGistInput{Files: map[string]core.FileInput{"a.txt": {Content: "x"}}},
	})
	if err == nil {
		t.Fatalf("expected service error to propagate")
	}
}

func TestDeleteGistCommand_StoresSuccessAcknowledgment(t *testing.T) {
	called := false
	svc := stubMutatingService{
		deleteFn: func(_ context.Context, _ core.IdentityContext, externalID string) error {
			called = true
			if externalID != "id_gone" {
				t.Fatalf("expected id_gone, got %q", externalID)
			}
			return nil
		},
	}

	cmd := NewDeleteGistCommand(svc)
	collector := gocmd.NewResult[DeleteGistResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, DeleteGistMessage{Identity: testIdentity(), ExternalID: "id_gone"}); err != nil {
		t.Fatalf("execute delete: %v", err)
	}
	if !called {
		t.Fatalf("expected delete service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected acknowledgment to be stored")
	}
	if !result.Success {
		t.Fatalf("expected success acknowledgment")
	}
}

func TestCommands_RequireConfiguredService(t *testing.T) {
	if err := (&CreateGistCommand{}).Execute(context.Background(), CreateGistMessage{}); err == nil {
		t.Fatalf("expected dependency error for create")
	}
	if err := (&UpdateGistCommand{}).Execute(context.Background(), UpdateGistMessage{}); err == nil {
		t.Fatalf("expected dependency error for update")
	}
	if err := (&DeleteGistCommand{}).Execute(context.Background(), DeleteGistMessage{}); err == nil {
		t.Fatalf("expected dependency error for delete")
	}
}

func TestMessages_Validate(t *testing.T) {
	if err := (CreateGistMessage{}).Validate(); err == nil {
		t.Fatalf("expected create validation to require files")
	}
	if err := (CreateGistMessage{Input: core.CreateGistInput{
		Files: map[string]core.FileInput{"  ": {Content: "x"}},
	}}).Validate(); err == nil {
		t.Fatalf("expected create validation to reject blank file names")
	}
	if err := (CreateGistMessage{Input: core.CreateGistInput{
		Files: map[string]core.FileInput{"a.txt": {Content: "x"}},
	}}).Validate(); err != nil {
		t.Fatalf("unexpected create validation error: %v", err)
	}

	if err := (UpdateGistMessage{ExternalID: "id_1"}).Validate(); err == nil {
		t.Fatalf("expected update validation to require a field")
	}
	if err := (UpdateGistMessage{Input: core.UpdateGistInput{
		Files: map[string]core.FileInput{"a.txt": {Content: "x"}},
	}}).Validate(); err == nil {
		t.Fatalf("expected update validation to require an id")
	}

	if err := (DeleteGistMessage{}).Validate(); err == nil {
		t.Fatalf("expected delete validation to require an id")
	}
	if got := (DeleteGistMessage{ExternalID: "id_1"}).Type(); got != TypeDeleteGist {
		t.Fatalf("unexpected message type %q", got)
	}
}
