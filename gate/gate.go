// Package gate implements the subscription-verification and invite-link
// lifecycle: it hands out provider authorization URLs bound to one-time
// session tokens, turns successful OAuth callbacks into single-use group
// invites, screens join requests against the identity an invite was issued
// to, and revokes access when a provider reports a subscription ended.
package gate

import "context"

// Provider identifies an external subscription platform.
type Provider string

const (
	ProviderTwitch  Provider = "twitch"
	ProviderPatreon Provider = "patreon"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderTwitch || p == ProviderPatreon
}

// Session is the persisted context of an in-flight verification attempt,
// recovered from the state token round-tripped through the OAuth redirect.
type Session struct {
	Token       string
	RequesterID int64
	ChatID      int64
	Provider    Provider
}

// InviteLink records a single-use invite granted to a requester and the
// provider identity that earned it. Exactly one of TwitchUserID or
// PatreonUserID is set.
type InviteLink struct {
	Link          string
	GranteeID     int64
	TwitchUserID  string
	PatreonUserID string
}

// SubscriberID returns the provider-specific identity stored on the link.
func (l InviteLink) SubscriberID() string {
	if l.TwitchUserID != "" {
		return l.TwitchUserID
	}
	return l.PatreonUserID
}

// SessionStore persists verification sessions keyed by their state token.
// ResolveSession returns ErrSessionNotFound for unknown or already-consumed
// tokens. DeleteSession and DeleteSessionsFor are idempotent.
type SessionStore interface {
	CreateSession(ctx context.Context, requesterID, chatID int64, provider Provider) (string, error)
	ResolveSession(ctx context.Context, token string) (Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionsFor(ctx context.Context, requesterID int64) error
}

// LinkStore persists issued invite links. RemoveLink is idempotent.
type LinkStore interface {
	StoreLink(ctx context.Context, link InviteLink) error
	LinksByGrantee(ctx context.Context, granteeID int64) ([]string, error)
	LinksBySubscriber(ctx context.Context, provider Provider, subscriberID string) ([]InviteLink, error)
	GranteeOwnsLink(ctx context.Context, granteeID int64, link string) (bool, error)
	RemoveLink(ctx context.Context, link string) error
}

// Credential is the access token obtained from a provider after the OAuth
// code exchange.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// ProviderAdapter hides all platform-specific HTTP detail behind a uniform
// capability surface. The orchestration never branches on provider identity
// beyond selecting which adapter to call.
type ProviderAdapter interface {
	// BuildAuthorizationURL returns the provider authorize URL embedding the
	// anti-forgery state token, or "" when the adapter is unconfigured.
	BuildAuthorizationURL(state string) string
	// ExchangeCode performs the one-shot authorization-code exchange.
	ExchangeCode(ctx context.Context, code string) (Credential, error)
	// PaidSubscriber resolves the external identity bound to the credential
	// and whether it currently pays the configured creator.
	PaidSubscriber(ctx context.Context, cred Credential) (subscriberID string, paid bool, err error)
	// RegisterUnsubscribeWebhook ensures exactly one "subscription ended"
	// webhook exists for this service. It reports whether one already did.
	RegisterUnsubscribeWebhook(ctx context.Context) (alreadyRegistered bool, err error)
}

// ChatClient is the chat-platform collaborator. The destination group is
// bound inside the implementation; RemoveMember must guarantee the member
// is absent afterwards and still able to join again via a fresh invite.
type ChatClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendGroupMessage(ctx context.Context, text string) error
	CreateSingleUseInviteLink(ctx context.Context) (string, error)
	RevokeInviteLink(ctx context.Context, link string) (bool, error)
	RemoveMember(ctx context.Context, memberID int64) error
	ApproveJoinRequest(ctx context.Context, memberID int64) error
	DeclineJoinRequest(ctx context.Context, memberID int64) error
}
