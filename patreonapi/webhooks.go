package patreonapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // G501: Patreon signs webhook bodies with HMAC-MD5; protocol choice, not ours
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Webhook event headers and triggers.
const (
	HeaderEvent     = "X-Patreon-Event"
	HeaderSignature = "X-Patreon-Signature"

	TriggerPledgeDelete = "members:pledge:delete"
	TriggerMemberDelete = "members:delete"
)

// unsubscribeTriggers is what the registered webhook listens for.
var unsubscribeTriggers = []string{
	"members:pledge:delete",
	"members:pledge:update",
	"members:delete",
	"members:update",
}

// VerifySignature checks the HMAC-MD5 hex signature Patreon puts on webhook
// bodies against the webhook secret.
func VerifySignature(secret string, r *http.Request, body []byte) bool {
	sig := r.Header.Get(HeaderSignature)
	if secret == "" || sig == "" {
		return false
	}
	mac := hmac.New(md5.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}

// MemberEvent is the slice of a members:* webhook body this service reads:
// the patron user id behind the affected membership.
type MemberEvent struct {
	Data struct {
		ID            string `json:"id"`
		Relationships struct {
			User relationship `json:"user"`
		} `json:"relationships"`
	} `json:"data"`
}

// ParseMemberEvent extracts the patron user id from a members:* event body.
func ParseMemberEvent(body []byte) (patronID string, err error) {
	var ev MemberEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return "", fmt.Errorf("parse patreon member event: %w", err)
	}
	if ev.Data.Relationships.User.Data.ID == "" {
		return "", fmt.Errorf("patreon member event missing patron user id")
	}
	return ev.Data.Relationships.User.Data.ID, nil
}

type webhookResource struct {
	ID         string `json:"id"`
	Attributes struct {
		URI      string   `json:"uri"`
		Triggers []string `json:"triggers"`
		Paused   bool     `json:"paused"`
	} `json:"attributes"`
}

// ListWebhooks returns the webhooks owned by the creator token.
func (v *Verifier) ListWebhooks(ctx context.Context) ([]webhookResource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.base()+"/api/oauth2/v2/webhooks", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("fields[webhook]", "last_attempted_at,num_consecutive_times_failed,paused,secret,triggers,uri")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+v.CreatorToken)

	resp, err := v.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("patreon webhook list failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data []webhookResource `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// RegisterUnsubscribeWebhook ensures exactly one webhook for membership
// deletion events points at WebhookURL, comparing target URLs before
// creating. Idempotent across process restarts.
func (v *Verifier) RegisterUnsubscribeWebhook(ctx context.Context) (bool, error) {
	if v.CreatorToken == "" || v.CampaignID == "" {
		return false, fmt.Errorf("patreon webhook registration needs creator token and campaign id")
	}
	hooks, err := v.ListWebhooks(ctx)
	if err != nil {
		return false, err
	}
	for _, h := range hooks {
		if h.Attributes.URI == v.WebhookURL {
			return true, nil
		}
	}

	payload := map[string]any{
		"data": map[string]any{
			"type": "webhook",
			"attributes": map[string]any{
				"triggers": unsubscribeTriggers,
				"uri":      v.WebhookURL,
			},
			"relationships": map[string]any{
				"campaign": map[string]any{
					"data": map[string]string{"type": "campaign", "id": v.CampaignID},
				},
			},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.base()+"/api/oauth2/v2/webhooks", bytes.NewReader(raw))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+v.CreatorToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient().Do(req)
	if err != nil {
		return false, err
	}
	defer closeBody(resp)
	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		return false, nil
	}
	b, _ := io.ReadAll(resp.Body)
	return false, fmt.Errorf("patreon webhook create failed: %s: %s", resp.Status, string(b))
}
