package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateGistMessage] = (*CreateGistCommand)(nil)
	_ gocmd.Commander[UpdateGistMessage] = (*UpdateGistCommand)(nil)
	_ gocmd.Commander[DeleteGistMessage] = (*DeleteGistCommand)(nil)
)
