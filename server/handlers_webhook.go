package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/communikein/keingate/gate"
	"github.com/communikein/keingate/patreonapi"
	"github.com/communikein/keingate/telemetry"
	"github.com/communikein/keingate/twitchapi"
)

// maxWebhookBody caps webhook payload reads. EventSub and Patreon member
// events are small JSON documents.
const maxWebhookBody = 1 << 20

// HandleTwitchUnsubscribed receives EventSub notifications for
// channel.subscription.end. Verification challenges are echoed back
// verbatim; end events revoke the subscriber's access.
func (h *Handlers) HandleTwitchUnsubscribed(w http.ResponseWriter, r *http.Request) {
	log := telemetry.LoggerWithCorr(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	if h.cfg.TwitchWebhookSecret != "" && !twitchapi.VerifySignature(h.cfg.TwitchWebhookSecret, r, body) {
		log.Warn("eventsub signature mismatch", slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	var note twitchapi.Notification
	if err := json.Unmarshal(body, &note); err != nil {
		http.Error(w, "malformed notification", http.StatusBadRequest)
		return
	}

	// Webhook registration handshake: echo the challenge as-is.
	if note.Subscription.Status == twitchapi.StatusVerificationPending && note.Challenge != "" {
		log.Info("eventsub verification challenge answered", slog.String("type", note.Subscription.Type))
		writePlain(w, http.StatusOK, note.Challenge)
		return
	}

	if note.Subscription.Type != twitchapi.EventTypeSubscriptionEnd || note.Event.UserID == "" {
		log.Debug("ignoring eventsub notification", slog.String("type", note.Subscription.Type))
		writePlain(w, http.StatusOK, "ignored")
		return
	}

	log.Info("twitch subscription ended", slog.String("twitch_user_id", note.Event.UserID), slog.String("login", note.Event.UserLogin))
	if err := h.revoker.HandleSubscriptionEnd(r.Context(), gate.ProviderTwitch, note.Event.UserID); err != nil {
		log.Error("revocation failed", slog.String("twitch_user_id", note.Event.UserID), slog.Any("err", err))
		http.Error(w, "revocation failed", http.StatusInternalServerError)
		return
	}
	writePlain(w, http.StatusOK, "ok")
}

// pledgeEndedTriggers are the Patreon event types that mean a patron no
// longer pays; anything else on the webhook is acknowledged and dropped.
var pledgeEndedTriggers = map[string]bool{
	patreonapi.TriggerPledgeDelete: true,
	patreonapi.TriggerMemberDelete: true,
}

// HandlePatreonUnsubscribed receives Patreon members:* webhook events
// and revokes access when a pledge is deleted.
func (h *Handlers) HandlePatreonUnsubscribed(w http.ResponseWriter, r *http.Request) {
	log := telemetry.LoggerWithCorr(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 {
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	if h.cfg.PatreonWebhookSecret != "" && !patreonapi.VerifySignature(h.cfg.PatreonWebhookSecret, r, body) {
		log.Warn("patreon signature mismatch", slog.String("remote_addr", r.RemoteAddr))
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	trigger := r.Header.Get(patreonapi.HeaderEvent)
	if !pledgeEndedTriggers[trigger] {
		log.Debug("ignoring patreon event", slog.String("trigger", trigger))
		writePlain(w, http.StatusOK, "ignored")
		return
	}

	patronID, err := patreonapi.ParseMemberEvent(body)
	if err != nil {
		log.Warn("unparseable patreon event", slog.String("trigger", trigger), slog.Any("err", err))
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	log.Info("patreon pledge ended", slog.String("patron_id", patronID), slog.String("trigger", trigger))
	if err := h.revoker.HandleSubscriptionEnd(r.Context(), gate.ProviderPatreon, patronID); err != nil {
		log.Error("revocation failed", slog.String("patron_id", patronID), slog.Any("err", err))
		http.Error(w, "revocation failed", http.StatusInternalServerError)
		return
	}
	writePlain(w, http.StatusOK, "ok")
}
