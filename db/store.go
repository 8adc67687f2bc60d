package db

import (
	"context"
	"database/sql"

	"github.com/communikein/keingate/gate"
)

// Store adapts the raw data helpers to the gate.SessionStore and
// gate.LinkStore interfaces, mirroring how the stores are consumed by the
// orchestrators.
type Store struct{ DB *sql.DB }

var (
	_ gate.SessionStore = (*Store)(nil)
	_ gate.LinkStore    = (*Store)(nil)
)

func (s *Store) CreateSession(ctx context.Context, requesterID, chatID int64, provider gate.Provider) (string, error) {
	return CreateSession(ctx, s.DB, requesterID, chatID, string(provider))
}

func (s *Store) ResolveSession(ctx context.Context, token string) (gate.Session, error) {
	requesterID, chatID, provider, err := ResolveSession(ctx, s.DB, token)
	if err != nil {
		return gate.Session{}, err
	}
	return gate.Session{
		Token:       token,
		RequesterID: requesterID,
		ChatID:      chatID,
		Provider:    gate.Provider(provider),
	}, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	return DeleteSession(ctx, s.DB, token)
}

func (s *Store) DeleteSessionsFor(ctx context.Context, requesterID int64) error {
	return DeleteSessionsFor(ctx, s.DB, requesterID)
}

func (s *Store) StoreLink(ctx context.Context, link gate.InviteLink) error {
	return StoreLink(ctx, s.DB, link.Link, link.GranteeID, link.TwitchUserID, link.PatreonUserID)
}

func (s *Store) LinksByGrantee(ctx context.Context, granteeID int64) ([]string, error) {
	return LinksByGrantee(ctx, s.DB, granteeID)
}

func (s *Store) LinksBySubscriber(ctx context.Context, provider gate.Provider, subscriberID string) ([]gate.InviteLink, error) {
	var rows []LinkRow
	var err error
	switch provider {
	case gate.ProviderTwitch:
		rows, err = LinksByTwitchID(ctx, s.DB, subscriberID)
	case gate.ProviderPatreon:
		rows, err = LinksByPatreonID(ctx, s.DB, subscriberID)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]gate.InviteLink, 0, len(rows))
	for _, r := range rows {
		out = append(out, gate.InviteLink{
			Link:          r.InviteLink,
			GranteeID:     r.GranteeID,
			TwitchUserID:  r.TwitchUserID,
			PatreonUserID: r.PatreonUserID,
		})
	}
	return out, nil
}

func (s *Store) GranteeOwnsLink(ctx context.Context, granteeID int64, link string) (bool, error) {
	return GranteeOwnsLink(ctx, s.DB, granteeID, link)
}

func (s *Store) RemoveLink(ctx context.Context, link string) error {
	return RemoveLink(ctx, s.DB, link)
}
