package sqlstore

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/mikolajkapica/gister/core"
)

type linkedCredentialRecord struct {
	bun.BaseModel `bun:"table:linked_credentials,alias:lc"`

	ID          string    `bun:"id,pk"`
	UserID      string    `bun:"user_id,notnull"`
	Provider    string    `bun:"provider,notnull"`
	AccessToken string    `bun:"access_token,notnull"`
	LinkedAt    time.Time `bun:"linked_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newLinkedCredentialRecord(in core.LinkedCredential, now time.Time) *linkedCredentialRecord {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	linkedAt := in.LinkedAt
	if linkedAt.IsZero() {
		linkedAt = now
	}
	return &linkedCredentialRecord{
		ID:          id,
		UserID:      strings.TrimSpace(string(in.UserID)),
		Provider:    strings.TrimSpace(string(in.Provider)),
		AccessToken: in.AccessToken,
		LinkedAt:    linkedAt.UTC(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *linkedCredentialRecord) toDomain() core.LinkedCredential {
	if r == nil {
		return core.LinkedCredential{}
	}
	return core.LinkedCredential{
		ID:          r.ID,
		UserID:      core.LocalIdentity(r.UserID),
		Provider:    core.Provider(r.Provider),
		AccessToken: r.AccessToken,
		LinkedAt:    r.LinkedAt,
	}
}
