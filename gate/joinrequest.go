package gate

import (
	"context"
	"log/slog"

	"github.com/communikein/keingate/telemetry"
)

// HandleJoinRequest screens a pending group join request. The request is
// approved only when the joining identity is exactly the grantee the invite
// was issued to; a tampered or shared link is declined with no state change.
func (v *Verifier) HandleJoinRequest(ctx context.Context, memberID int64, username, inviteLink string) error {
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.Int64("member", memberID),
		slog.String("component", "gate"))

	owns := false
	if inviteLink != "" {
		var err error
		owns, err = v.Links.GranteeOwnsLink(ctx, memberID, inviteLink)
		if err != nil {
			return &StorageError{Op: "check link ownership", Err: err}
		}
	}

	if !owns {
		telemetry.Inc(telemetry.JoinRequestsDeclined)
		log.Info("join request declined", slog.String("link", inviteLink))
		if err := v.Chat.DeclineJoinRequest(ctx, memberID); err != nil {
			return &ExternalServiceError{Op: "decline join request", Err: err}
		}
		// The decliner may have never opened a chat with us; best effort.
		v.notify(ctx, memberID, v.Text.LinkNotYours)
		return nil
	}

	if err := v.Chat.ApproveJoinRequest(ctx, memberID); err != nil {
		return &ExternalServiceError{Op: "approve join request", Err: err}
	}
	telemetry.Inc(telemetry.JoinRequestsApproved)
	log.Info("join request approved")

	if err := v.Chat.SendGroupMessage(ctx, v.Text.FormatWelcomeToGroup(username)); err != nil {
		log.Warn("group welcome failed", slog.Any("err", err))
	}

	// The link is single-use: revoke it at the platform and forget it, plus
	// any session the requester abandoned along the way.
	revoked, err := v.Chat.RevokeInviteLink(ctx, inviteLink)
	if err != nil || !revoked {
		log.Error("consumed invite revoke failed", slog.String("link", inviteLink), slog.Any("err", err))
	} else {
		telemetry.Inc(telemetry.InviteLinksRevoked)
	}
	if err := v.Links.RemoveLink(ctx, inviteLink); err != nil {
		return &StorageError{Op: "remove link", Err: err}
	}
	if err := v.Sessions.DeleteSessionsFor(ctx, memberID); err != nil {
		log.Error("session cleanup failed", slog.Any("err", err))
	}
	return nil
}
