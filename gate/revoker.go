package gate

import (
	"context"
	"log/slog"

	"github.com/communikein/keingate/telemetry"
)

// Revoker reacts to asynchronous "subscription ended" notifications by
// removing the subscriber's group membership and forgetting their grant.
type Revoker struct {
	Links LinkStore
	Chat  ChatClient
}

// NewRevoker wires a Revoker.
func NewRevoker(links LinkStore, chat ChatClient) *Revoker {
	return &Revoker{Links: links, Chat: chat}
}

// HandleSubscriptionEnd removes access earned through the given provider
// identity. Zero matching grants is a normal outcome: the subscriber never
// completed verification, or was already revoked. Grant rows are deleted
// unconditionally once removal has been attempted; a member we failed to
// remove must never be able to block a future re-grant with a stale row.
func (r *Revoker) HandleSubscriptionEnd(ctx context.Context, provider Provider, subscriberID string) error {
	telemetry.Inc(telemetry.RevocationEvents)
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("provider", string(provider)),
		slog.String("subscriber", subscriberID),
		slog.String("component", "gate"))

	grants, err := r.Links.LinksBySubscriber(ctx, provider, subscriberID)
	if err != nil {
		return &StorageError{Op: "list links by subscriber", Err: err}
	}
	if len(grants) == 0 {
		log.Info("subscription ended for identity with no live grant")
		return nil
	}

	for _, grant := range grants {
		if err := r.Chat.RemoveMember(ctx, grant.GranteeID); err != nil {
			log.Error("member removal failed", slog.Int64("member", grant.GranteeID), slog.Any("err", err))
		} else {
			telemetry.Inc(telemetry.MembersRemoved)
			log.Info("member removed", slog.Int64("member", grant.GranteeID))
		}
		if err := r.Links.RemoveLink(ctx, grant.Link); err != nil {
			return &StorageError{Op: "remove link", Err: err}
		}
	}
	return nil
}
