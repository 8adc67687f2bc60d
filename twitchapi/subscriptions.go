package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ValidateToken resolves the user identity bound to a user access token via
// the id.twitch.tv validate endpoint.
func ValidateToken(ctx context.Context, hc *http.Client, authBase, accessToken string) (userID, login string, err error) {
	if authBase == "" {
		authBase = defaultAuthBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authBase+"/oauth2/validate", nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", "", err
	}
	defer closeBody(resp)
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("twitch token validation failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		UserID string `json:"user_id"`
		Login  string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", err
	}
	if body.UserID == "" {
		return "", "", fmt.Errorf("twitch token validation response missing user_id")
	}
	return body.UserID, body.Login, nil
}

// CheckUserSubscription reports whether userID is subscribed to
// broadcasterID, using the subscriber's own access token. Twitch answers
// 404 for "not subscribed"; that is a negative outcome, not an error.
func CheckUserSubscription(ctx context.Context, hc *http.Client, apiBase, clientID, accessToken, broadcasterID, userID string) (bool, error) {
	if apiBase == "" {
		apiBase = defaultAPIBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/helix/subscriptions/user", nil)
	if err != nil {
		return false, err
	}
	q := req.URL.Query()
	q.Set("broadcaster_id", broadcasterID)
	q.Set("user_id", userID)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", clientID)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return false, err
	}
	defer closeBody(resp)
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("twitch subscription check failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Data []struct {
			Tier string `json:"tier"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return len(body.Data) == 1, nil
}
