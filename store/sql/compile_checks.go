package sqlstore

import "github.com/mikolajkapica/gister/core"

var (
	_ core.CredentialStore = (*LinkedCredentialStore)(nil)
	_ core.CredentialStore = (*CachedLinkedCredentialStore)(nil)
)
