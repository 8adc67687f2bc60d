package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockServer is a path-keyed httptest server used to fake the Twitch,
// Patreon and Telegram APIs in tests.
type MockServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockServer creates a mock API server dispatched by URL path.
func NewMockServer(t *testing.T) *MockServer {
	t.Helper()
	m := &MockServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// JSON writes v as an application/json response body.
func JSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockOAuthTokenResponse adds a handler for the Twitch OAuth token endpoint.
func (m *MockServer) MockOAuthTokenResponse(accessToken, refreshToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"expires_in":    expiresIn,
			"token_type":    "bearer",
		})
	}
}

// MockValidateResponse adds a handler for the Twitch token validate endpoint.
func (m *MockServer) MockValidateResponse(userID, login string) {
	m.Handlers["/oauth2/validate"] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{
			"user_id":   userID,
			"login":     login,
			"client_id": "test-client",
		})
	}
}

// MockSubscriptionResponse adds a handler for the Helix user-subscription
// check. subscribed=false answers 404 the way Helix does.
func (m *MockServer) MockSubscriptionResponse(subscribed bool, tier string) {
	m.Handlers["/helix/subscriptions/user"] = func(w http.ResponseWriter, r *http.Request) {
		if !subscribed {
			w.WriteHeader(http.StatusNotFound)
			JSON(w, map[string]any{"error": "Not Found", "status": 404})
			return
		}
		JSON(w, map[string]any{
			"data": []map[string]any{
				{"broadcaster_id": r.URL.Query().Get("broadcaster_id"), "tier": tier},
			},
		})
	}
}

// MockTelegramResult registers a Bot API method returning ok with result.
func (m *MockServer) MockTelegramResult(token, method string, result any) {
	m.Handlers["/bot"+token+"/"+method] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{"ok": true, "result": result})
	}
}

// MockTelegramError registers a Bot API method answering a failure envelope.
func (m *MockServer) MockTelegramError(token, method string, code int, description string) {
	m.Handlers["/bot"+token+"/"+method] = func(w http.ResponseWriter, r *http.Request) {
		JSON(w, map[string]any{"ok": false, "error_code": code, "description": description})
	}
}
