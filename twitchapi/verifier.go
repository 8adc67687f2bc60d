package twitchapi

import (
	"context"
	"net/http"

	"github.com/communikein/keingate/gate"
)

// Verifier implements the provider adapter for Twitch: authorize URL
// construction, code exchange, subscription check against the configured
// broadcaster, and EventSub webhook registration.
type Verifier struct {
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	BroadcasterID string
	// CallbackURL receives the OAuth redirect; EventCallbackURL receives
	// channel.subscription.end notifications.
	CallbackURL      string
	EventCallbackURL string
	// ForceVerify makes Twitch re-prompt for consent on every authorize.
	ForceVerify bool

	AuthBaseURL string
	APIBaseURL  string
	HTTPClient  *http.Client

	tokens TokenSource
}

var _ gate.ProviderAdapter = (*Verifier)(nil)

// Configured reports whether the adapter has the credentials it needs.
func (v *Verifier) Configured() bool {
	return v.ClientID != "" && v.ClientSecret != "" && v.CallbackURL != ""
}

func (v *Verifier) appTokens() *TokenSource {
	v.tokens.ClientID = v.ClientID
	v.tokens.ClientSecret = v.ClientSecret
	v.tokens.AuthBaseURL = v.AuthBaseURL
	v.tokens.HTTPClient = v.HTTPClient
	return &v.tokens
}

// BuildAuthorizationURL returns the authorize URL with the given state, or
// "" when the adapter is unconfigured.
func (v *Verifier) BuildAuthorizationURL(state string) string {
	if !v.Configured() {
		return ""
	}
	u, err := BuildAuthorizeURL(v.AuthBaseURL, v.ClientID, v.CallbackURL, state, v.ForceVerify)
	if err != nil {
		return ""
	}
	return u
}

// ExchangeCode performs the one-shot authorization-code exchange.
func (v *Verifier) ExchangeCode(ctx context.Context, code string) (gate.Credential, error) {
	res, err := ExchangeAuthCode(ctx, v.HTTPClient, v.AuthBaseURL, v.ClientID, v.ClientSecret, code, v.CallbackURL)
	if err != nil {
		return gate.Credential{}, err
	}
	return gate.Credential{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}

// PaidSubscriber resolves the credential's user and checks whether they are
// subscribed to the configured broadcaster. Twitch subscriptions are always
// paid (Prime included), so "subscribed" is "paid".
func (v *Verifier) PaidSubscriber(ctx context.Context, cred gate.Credential) (string, bool, error) {
	userID, _, err := ValidateToken(ctx, v.HTTPClient, v.AuthBaseURL, cred.AccessToken)
	if err != nil {
		return "", false, err
	}
	subscribed, err := CheckUserSubscription(ctx, v.HTTPClient, v.APIBaseURL, v.ClientID, cred.AccessToken, v.BroadcasterID, userID)
	if err != nil {
		return "", false, err
	}
	return userID, subscribed, nil
}

// RegisterUnsubscribeWebhook ensures exactly one channel.subscription.end
// EventSub subscription points at EventCallbackURL. Idempotent across
// restarts: an existing registration with a matching type and callback is
// detected before creating a new one.
func (v *Verifier) RegisterUnsubscribeWebhook(ctx context.Context) (bool, error) {
	appToken, err := v.appTokens().Get(ctx)
	if err != nil {
		return false, err
	}
	subs, err := ListEventSubSubscriptions(ctx, v.HTTPClient, v.APIBaseURL, v.ClientID, appToken)
	if err != nil {
		return false, err
	}
	for _, s := range subs {
		if s.Type == EventTypeSubscriptionEnd && s.Transport.Callback == v.EventCallbackURL {
			return true, nil
		}
	}
	if err := CreateSubscriptionEndWebhook(ctx, v.HTTPClient, v.APIBaseURL, v.ClientID, appToken, v.BroadcasterID, v.EventCallbackURL, v.WebhookSecret); err != nil {
		return false, err
	}
	return false, nil
}
