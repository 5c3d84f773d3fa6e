package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/mikolajkapica/gister/core"
)

// LinkedCredentialStore persists external provider tokens keyed by the
// local identity that linked them.
type LinkedCredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*linkedCredentialRecord]
}

func (s *LinkedCredentialStore) FindLinkedCredential(ctx context.Context, user core.LocalIdentity, provider core.Provider) (core.LinkedCredential, error) {
	if s == nil || s.repo == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: linked credential store is not configured")
	}
	trimmedUser := strings.TrimSpace(string(user))
	if trimmedUser == "" {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: user id is required")
	}
	trimmedProvider := strings.TrimSpace(string(provider))
	if trimmedProvider == "" {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: provider is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", trimmedUser),
		repository.SelectBy("provider", "=", trimmedProvider),
		repository.OrderBy("linked_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.LinkedCredential{}, err
	}
	if len(records) == 0 {
		return core.LinkedCredential{}, goerrors.New(
			fmt.Sprintf("sqlstore: %s credential not found for user %q", trimmedProvider, trimmedUser),
			goerrors.CategoryNotFound,
		).WithTextCode(core.GisterErrorNotFound)
	}
	return records[0].toDomain(), nil
}

// SaveLinked replaces any existing credential for the same user and
// provider pair so a re-link always yields exactly one row.
func (s *LinkedCredentialStore) SaveLinked(ctx context.Context, in core.LinkedCredential) (core.LinkedCredential, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: linked credential store is not configured")
	}
	trimmedUser := strings.TrimSpace(string(in.UserID))
	if trimmedUser == "" {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: user id is required")
	}
	trimmedProvider := strings.TrimSpace(string(in.Provider))
	if trimmedProvider == "" {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: provider is required")
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return core.LinkedCredential{}, fmt.Errorf("sqlstore: access token is required")
	}
	now := time.Now().UTC()

	var saved core.LinkedCredential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, deleteErr := tx.NewDelete().
			Model((*linkedCredentialRecord)(nil)).
			Where("user_id = ?", trimmedUser).
			Where("provider = ?", trimmedProvider).
			Exec(ctx)
		if deleteErr != nil {
			return deleteErr
		}

		record := newLinkedCredentialRecord(in, now)
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		saved = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.LinkedCredential{}, err
	}

	return saved, nil
}

// Unlink removes the stored credential for the user and provider. It is
// a no-op when nothing is linked.
func (s *LinkedCredentialStore) Unlink(ctx context.Context, user core.LocalIdentity, provider core.Provider) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: linked credential store is not configured")
	}
	trimmedUser := strings.TrimSpace(string(user))
	if trimmedUser == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}

	_, err := s.db.NewDelete().
		Model((*linkedCredentialRecord)(nil)).
		Where("user_id = ?", trimmedUser).
		Where("provider = ?", strings.TrimSpace(string(provider))).
		Exec(ctx)
	return err
}
