// Package patreonapi talks to the Patreon v2 API: OAuth code exchange via
// golang.org/x/oauth2, paid-membership resolution from the identity
// endpoint, and webhook management with the creator's token.
package patreonapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/communikein/keingate/gate"
)

const defaultBaseURL = "https://www.patreon.com"

// authScopes is everything needed to read the user's memberships and the
// creator's campaign webhooks.
const authScopes = "identity identity.memberships campaigns campaigns.members campaigns.webhook"

// Verifier implements the provider adapter for Patreon.
type Verifier struct {
	ClientID     string
	ClientSecret string
	// CreatorID is the Patreon user id of the campaign owner; a membership
	// counts only when it belongs to this creator's campaign.
	CreatorID string
	// CreatorToken authenticates webhook management; webhooks are owned by
	// the creator, not by the app.
	CreatorToken string
	CampaignID   string
	// CallbackURL receives the OAuth redirect; WebhookURL receives
	// members:pledge:delete events.
	CallbackURL   string
	WebhookURL    string
	WebhookSecret string

	BaseURL    string
	HTTPClient *http.Client
}

var _ gate.ProviderAdapter = (*Verifier)(nil)

// Configured reports whether the adapter has the credentials it needs.
func (v *Verifier) Configured() bool {
	return v.ClientID != "" && v.ClientSecret != "" && v.CallbackURL != ""
}

func (v *Verifier) base() string {
	if v.BaseURL != "" {
		return v.BaseURL
	}
	return defaultBaseURL
}

func (v *Verifier) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     v.ClientID,
		ClientSecret: v.ClientSecret,
		RedirectURL:  v.CallbackURL,
		Scopes:       []string{authScopes},
		Endpoint: oauth2.Endpoint{
			AuthURL:   v.base() + "/oauth2/authorize",
			TokenURL:  v.base() + "/api/oauth2/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func (v *Verifier) httpContext(ctx context.Context) context.Context {
	if v.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, v.HTTPClient)
	}
	return ctx
}

// BuildAuthorizationURL returns the authorize URL with the given state, or
// "" when the adapter is unconfigured.
func (v *Verifier) BuildAuthorizationURL(state string) string {
	if !v.Configured() {
		return ""
	}
	return v.oauthConfig().AuthCodeURL(state)
}

// ExchangeCode performs the one-shot authorization-code exchange.
func (v *Verifier) ExchangeCode(ctx context.Context, code string) (gate.Credential, error) {
	tok, err := v.oauthConfig().Exchange(v.httpContext(ctx), code)
	if err != nil {
		return gate.Credential{}, fmt.Errorf("patreon code exchange: %w", err)
	}
	if tok.AccessToken == "" {
		return gate.Credential{}, fmt.Errorf("patreon code exchange response missing access_token")
	}
	return gate.Credential{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}

// PaidSubscriber fetches the credential holder's identity with memberships
// and reports whether the sum of their currently entitled tier values for
// the configured creator's campaign is greater than zero.
func (v *Verifier) PaidSubscriber(ctx context.Context, cred gate.Credential) (string, bool, error) {
	doc, err := v.fetchIdentity(ctx, cred.AccessToken)
	if err != nil {
		return "", false, err
	}
	patronID, cents := doc.entitledCentsFor(v.CreatorID)
	return patronID, cents > 0, nil
}

func (v *Verifier) httpClient() *http.Client {
	if v.HTTPClient != nil {
		return v.HTTPClient
	}
	return http.DefaultClient
}

func (v *Verifier) fetchIdentity(ctx context.Context, accessToken string) (*identityDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.base()+"/api/oauth2/v2/identity", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("include", "memberships.campaign.creator,memberships.currently_entitled_tiers")
	q.Set("fields[user]", "full_name,vanity")
	q.Set("fields[tier]", "amount_cents")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("patreon identity request failed: %s: %s", resp.Status, string(b))
	}
	var doc identityDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Data.ID == "" {
		return nil, fmt.Errorf("patreon identity response missing user id")
	}
	return &doc, nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", slog.Any("err", err))
	}
}
