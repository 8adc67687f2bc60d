package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/communikein/keingate/bottext"
	"github.com/communikein/keingate/telemetry"
)

// Verifier drives a verification attempt end to end: open a session, hand
// out the provider authorize URL, consume the OAuth callback, and either
// grant a single-use invite or tell the requester why not.
type Verifier struct {
	Sessions  SessionStore
	Links     LinkStore
	Chat      ChatClient
	Providers map[Provider]ProviderAdapter
	Text      *bottext.Text

	locks requesterLocks
}

// NewVerifier wires a Verifier. Adapters missing from providers simply show
// up as "verification unavailable" to requesters.
func NewVerifier(sessions SessionStore, links LinkStore, chat ChatClient, providers map[Provider]ProviderAdapter, text *bottext.Text) *Verifier {
	if text == nil {
		text = bottext.Defaults()
	}
	return &Verifier{Sessions: sessions, Links: links, Chat: chat, Providers: providers, Text: text}
}

// Begin opens a verification session for requesterID and returns the
// provider authorization URL carrying the session token as anti-forgery
// state. Returns ErrProviderUnavailable when the adapter is unconfigured.
func (v *Verifier) Begin(ctx context.Context, requesterID, chatID int64, provider Provider) (string, error) {
	adapter, ok := v.Providers[provider]
	if !ok {
		return "", ErrProviderUnavailable
	}

	token, err := v.Sessions.CreateSession(ctx, requesterID, chatID, provider)
	if err != nil {
		return "", &StorageError{Op: "create session", Err: err}
	}

	authURL := adapter.BuildAuthorizationURL(token)
	if authURL == "" {
		return "", ErrProviderUnavailable
	}

	telemetry.Inc(telemetry.VerificationsStarted)
	slog.Info("verification started",
		slog.Int64("requester", requesterID),
		slog.String("provider", string(provider)),
		slog.String("component", "gate"))
	return authURL, nil
}

// Complete consumes an OAuth callback. The state token is the anti-CSRF
// check: unless it resolves to a session this service issued, the callback
// is rejected with ErrInvalidSession. A retried callback after the session
// was consumed gets the same answer, which callers treat as "already
// processed", not as an alarm.
func (v *Verifier) Complete(ctx context.Context, provider Provider, code, state string) error {
	adapter, ok := v.Providers[provider]
	if !ok {
		return ErrProviderUnavailable
	}

	sess, err := v.Sessions.ResolveSession(ctx, state)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return ErrInvalidSession
		}
		return &StorageError{Op: "resolve session", Err: err}
	}
	if sess.Provider != provider {
		// A token issued for one provider cannot complete another's flow.
		return ErrInvalidSession
	}
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.Int64("requester", sess.RequesterID),
		slog.String("provider", string(provider)),
		slog.String("component", "gate"))

	cred, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		telemetry.Inc(telemetry.VerificationsFailed)
		log.Warn("code exchange failed", slog.Any("err", err))
		v.notify(ctx, sess.ChatID, v.Text.VerificationFailed)
		return &AuthError{Provider: provider, Err: err}
	}

	subscriberID, paid, err := adapter.PaidSubscriber(ctx, cred)
	if err != nil {
		telemetry.Inc(telemetry.VerificationsFailed)
		log.Warn("paid-status check failed", slog.Any("err", err))
		v.notify(ctx, sess.ChatID, v.Text.VerificationFailed)
		return &AuthError{Provider: provider, Err: err}
	}

	if !paid {
		telemetry.Inc(telemetry.VerificationsDenied)
		log.Info("no active paid subscription", slog.String("subscriber", subscriberID))
		if err := v.Sessions.DeleteSession(ctx, state); err != nil {
			log.Error("session cleanup failed", slog.Any("err", err))
		}
		v.notify(ctx, sess.ChatID, v.Text.SubscriptionNotActive)
		return nil
	}

	if err := v.grant(ctx, sess, provider, subscriberID, log); err != nil {
		return err
	}

	telemetry.Inc(telemetry.VerificationsGranted)
	log.Info("verification granted", slog.String("subscriber", subscriberID))
	return nil
}

// grant revokes every prior live invite for the requester, mints a fresh
// single-use one, and records it. The whole revoke-then-recreate sequence
// holds the requester's lock so two concurrent successful verifications
// cannot leave two live grants.
func (v *Verifier) grant(ctx context.Context, sess Session, provider Provider, subscriberID string, log *slog.Logger) error {
	unlock := v.locks.lock(sess.RequesterID)
	defer unlock()

	if err := v.revokeExisting(ctx, sess.RequesterID, log); err != nil {
		return err
	}

	link, err := v.Chat.CreateSingleUseInviteLink(ctx)
	if err != nil {
		// Nothing was persisted for this attempt; the requester can retry.
		telemetry.Inc(telemetry.VerificationsFailed)
		log.Error("invite creation failed", slog.Any("err", err))
		v.notify(ctx, sess.ChatID, v.Text.VerificationFailed)
		return &ExternalServiceError{Op: "create invite", Err: err}
	}

	grant := InviteLink{Link: link, GranteeID: sess.RequesterID}
	switch provider {
	case ProviderTwitch:
		grant.TwitchUserID = subscriberID
	case ProviderPatreon:
		grant.PatreonUserID = subscriberID
	}
	if err := v.Links.StoreLink(ctx, grant); err != nil {
		// The minted invite is now an orphan; kill it best-effort so it
		// cannot be used without a matching record.
		if _, revokeErr := v.Chat.RevokeInviteLink(ctx, link); revokeErr != nil {
			log.Error("orphan invite revoke failed", slog.String("link", link), slog.Any("err", revokeErr))
		}
		v.notify(ctx, sess.ChatID, v.Text.VerificationFailed)
		return &StorageError{Op: "store link", Err: err}
	}
	telemetry.Inc(telemetry.InviteLinksIssued)

	if err := v.Sessions.DeleteSession(ctx, sess.Token); err != nil {
		log.Error("session cleanup failed", slog.Any("err", err))
	}

	v.notify(ctx, sess.ChatID, v.Text.FormatJoinGroup(link))
	return nil
}

// revokeExisting removes every live invite currently held by granteeID.
// The store delete is unconditional: a stale row referencing a dead link is
// a correctness bug, an un-revoked live link is only a logged failure
// because the join-request gate consults the store, not the platform.
func (v *Verifier) revokeExisting(ctx context.Context, granteeID int64, log *slog.Logger) error {
	links, err := v.Links.LinksByGrantee(ctx, granteeID)
	if err != nil {
		return &StorageError{Op: "list links", Err: err}
	}
	for _, link := range links {
		revoked, err := v.Chat.RevokeInviteLink(ctx, link)
		if err != nil || !revoked {
			log.Error("invite revoke failed", slog.String("link", link), slog.Any("err", err))
		} else {
			telemetry.Inc(telemetry.InviteLinksRevoked)
		}
		if err := v.Links.RemoveLink(ctx, link); err != nil {
			return &StorageError{Op: "remove link", Err: err}
		}
	}
	return nil
}

// notify sends a message to the requester; delivery failures are logged and
// never fail the flow.
func (v *Verifier) notify(ctx context.Context, chatID int64, text string) {
	if err := v.Chat.SendMessage(ctx, chatID, text); err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("requester notification failed",
			slog.Int64("chat", chatID), slog.Any("err", err), slog.String("component", "gate"))
	}
}
