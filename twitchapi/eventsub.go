package twitchapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// EventTypeSubscriptionEnd is the EventSub type fired when a channel
// subscription expires or is cancelled.
const EventTypeSubscriptionEnd = "channel.subscription.end"

// StatusVerificationPending marks a notification that is actually Twitch
// verifying the webhook endpoint; the challenge must be echoed verbatim.
const StatusVerificationPending = "webhook_callback_verification_pending"

// EventSub signature headers.
const (
	HeaderMessageID        = "Twitch-Eventsub-Message-Id"
	HeaderMessageTimestamp = "Twitch-Eventsub-Message-Timestamp"
	HeaderMessageSignature = "Twitch-Eventsub-Message-Signature"
)

// Notification is the body of an inbound EventSub webhook call.
type Notification struct {
	Challenge    string `json:"challenge"`
	Subscription struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Status string `json:"status"`
	} `json:"subscription"`
	Event struct {
		UserID            string `json:"user_id"`
		UserLogin         string `json:"user_login"`
		BroadcasterUserID string `json:"broadcaster_user_id"`
	} `json:"event"`
}

// VerifySignature checks the HMAC-SHA256 EventSub signature over
// message id + timestamp + raw body against the shared webhook secret.
func VerifySignature(secret string, r *http.Request, body []byte) bool {
	sig := r.Header.Get(HeaderMessageSignature)
	if secret == "" || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(r.Header.Get(HeaderMessageID)))
	mac.Write([]byte(r.Header.Get(HeaderMessageTimestamp)))
	mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(sig))
}

type eventSubSubscription struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Transport struct {
		Method   string `json:"method"`
		Callback string `json:"callback"`
	} `json:"transport"`
}

// ListEventSubSubscriptions returns the current EventSub subscriptions for
// this client id, using an app access token.
func ListEventSubSubscriptions(ctx context.Context, hc *http.Client, apiBase, clientID, appToken string) ([]eventSubSubscription, error) {
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/helix/eventsub/subscriptions", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Id", clientID)
	req.Header.Set("Authorization", "Bearer "+appToken)
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("twitch eventsub list failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data []eventSubSubscription `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// CreateSubscriptionEndWebhook registers a channel.subscription.end EventSub
// webhook for broadcasterID pointing at callback.
func CreateSubscriptionEndWebhook(ctx context.Context, hc *http.Client, apiBase, clientID, appToken, broadcasterID, callback, secret string) error {
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	payload := map[string]any{
		"type":      EventTypeSubscriptionEnd,
		"version":   "1",
		"condition": map[string]string{"broadcaster_user_id": broadcasterID},
		"transport": map[string]string{
			"method":   "webhook",
			"callback": callback,
			"secret":   secret,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/helix/eventsub/subscriptions", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", clientID)
	req.Header.Set("Authorization", "Bearer "+appToken)
	req.Header.Set("Content-Type", "application/json")
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp)
	// 202 on creation, 409 when a matching subscription already exists.
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusConflict {
		return nil
	}
	b, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("twitch eventsub create failed: %s: %s", resp.Status, string(b))
}
