package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/communikein/keingate/gate"
	"github.com/communikein/keingate/telemetry"
)

// completeTimeout bounds one OAuth callback: a code exchange, a
// subscription lookup and the invite link round trips.
const completeTimeout = 15 * time.Second

// HandleTwitchOAuthCallback finishes a Twitch verification. Twitch
// redirects the user's browser here with code and state query params.
func (h *Handlers) HandleTwitchOAuthCallback(w http.ResponseWriter, r *http.Request) {
	h.handleOAuthCallback(w, r, gate.ProviderTwitch)
}

// HandlePatreonOAuthCallback finishes a Patreon verification.
func (h *Handlers) HandlePatreonOAuthCallback(w http.ResponseWriter, r *http.Request) {
	h.handleOAuthCallback(w, r, gate.ProviderPatreon)
}

func (h *Handlers) handleOAuthCallback(w http.ResponseWriter, r *http.Request, provider gate.Provider) {
	log := telemetry.LoggerWithCorr(r.Context())

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		// User denied the consent screen; nothing to complete.
		log.Info("oauth consent denied", slog.String("provider", string(provider)), slog.String("error", errCode))
		writePlain(w, http.StatusOK, "Verification cancelled. You can close this tab.")
		return
	}
	code := q.Get("code")
	state := q.Get("state")
	if code == "" || state == "" {
		http.Error(w, "missing code or state", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), completeTimeout)
	defer cancel()

	var err error
	telemetry.TimeFunc(telemetry.CallbackDuration, func() {
		err = h.verifier.Complete(ctx, provider, code, state)
	})
	switch {
	case err == nil:
		writePlain(w, http.StatusOK, "Verification complete. Check your Telegram chat with the bot.")
	case errors.Is(err, gate.ErrInvalidSession):
		// Stale or reused state token: benign from the browser's side.
		log.Info("oauth callback with unknown state", slog.String("provider", string(provider)))
		writePlain(w, http.StatusOK, "This verification link has expired. Ask the bot for a new one.")
	default:
		log.Error("verification failed", slog.String("provider", string(provider)), slog.Any("err", err))
		writePlain(w, http.StatusOK, "Verification could not be completed. Check your Telegram chat with the bot.")
	}
}

func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
