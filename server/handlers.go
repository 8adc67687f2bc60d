// Package server exposes the HTTP surface of the service: the Telegram
// update webhook, OAuth callbacks, subscription-end webhooks, health and
// metrics endpoints. It injects correlation IDs into request contexts for
// consistent logging.
package server

import (
	"database/sql"

	"github.com/communikein/keingate/bottext"
	"github.com/communikein/keingate/config"
	"github.com/communikein/keingate/gate"
	"github.com/communikein/keingate/patreonapi"
	"github.com/communikein/keingate/telegram"
	"github.com/communikein/keingate/twitchapi"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	verifier *gate.Verifier
	revoker  *gate.Revoker
	bot      *telegram.Bot
	group    *telegram.GroupClient
	text     *bottext.Text
	twitch   *twitchapi.Verifier
	patreon  *patreonapi.Verifier
}

// Deps bundles everything the HTTP layer needs.
type Deps struct {
	DB       *sql.DB
	Config   *config.Config
	Verifier *gate.Verifier
	Revoker  *gate.Revoker
	Bot      *telegram.Bot
	Group    *telegram.GroupClient
	Text     *bottext.Text
	Twitch   *twitchapi.Verifier
	Patreon  *patreonapi.Verifier
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(d Deps) *Handlers {
	return &Handlers{
		db:       d.DB,
		cfg:      d.Config,
		verifier: d.Verifier,
		revoker:  d.Revoker,
		bot:      d.Bot,
		group:    d.Group,
		text:     d.Text,
		twitch:   d.Twitch,
		patreon:  d.Patreon,
	}
}
