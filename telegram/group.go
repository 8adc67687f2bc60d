package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/communikein/keingate/gate"
)

// removeBanWindow is how long a removed member stays banned before the
// automatic unban. Long enough for Telegram to process the removal,
// short enough that the ban is a kick rather than a blacklist entry.
const removeBanWindow = 60 * time.Second

// notPresentMarkers are Bot API error descriptions meaning the user is
// not in the group, which a removal treats as already done.
var notPresentMarkers = []string{"PARTICIPANT_ID_INVALID", "USER_NOT_PARTICIPANT", "user not found"}

var _ gate.ChatClient = (*GroupClient)(nil)

// GroupClient binds a Bot to the single managed group chat.
type GroupClient struct {
	Bot         *Bot
	GroupChatID int64
}

func NewGroupClient(bot *Bot, groupChatID int64) *GroupClient {
	return &GroupClient{Bot: bot, GroupChatID: groupChatID}
}

func (g *GroupClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	return g.Bot.SendMessage(ctx, chatID, text)
}

func (g *GroupClient) SendGroupMessage(ctx context.Context, text string) error {
	return g.Bot.SendMessage(ctx, g.GroupChatID, text)
}

func (g *GroupClient) CreateSingleUseInviteLink(ctx context.Context) (string, error) {
	link, err := g.Bot.CreateChatInviteLink(ctx, g.GroupChatID)
	if err != nil {
		return "", fmt.Errorf("create invite link: %w", err)
	}
	return link.InviteLink, nil
}

// RevokeInviteLink revokes the link in the group. Returns false when the
// API reports the link as already gone.
func (g *GroupClient) RevokeInviteLink(ctx context.Context, link string) (bool, error) {
	_, err := g.Bot.RevokeChatInviteLink(ctx, g.GroupChatID, link)
	if err != nil {
		if IsAPIError(err, "INVITE_HASH_EXPIRED", "not found") {
			return false, nil
		}
		return false, fmt.Errorf("revoke invite link: %w", err)
	}
	return true, nil
}

// RemoveMember kicks a user out of the group with a short ban followed by
// an unban, so they can rejoin later with a fresh invite. A user who is
// not in the group counts as removed.
func (g *GroupClient) RemoveMember(ctx context.Context, memberID int64) error {
	err := g.Bot.BanChatMember(ctx, g.GroupChatID, memberID, time.Now().Add(removeBanWindow))
	if err != nil {
		if IsAPIError(err, notPresentMarkers...) {
			slog.Debug("member already absent from group", "member_id", memberID)
			return nil
		}
		return fmt.Errorf("remove member %d: %w", memberID, err)
	}
	if err := g.Bot.UnbanChatMember(ctx, g.GroupChatID, memberID); err != nil {
		// The timed ban expires on its own; the member just cannot
		// rejoin for the window.
		slog.Warn("unban after removal failed", "member_id", memberID, "error", err)
	}
	return nil
}

func (g *GroupClient) ApproveJoinRequest(ctx context.Context, memberID int64) error {
	return g.Bot.ApproveChatJoinRequest(ctx, g.GroupChatID, memberID)
}

func (g *GroupClient) DeclineJoinRequest(ctx context.Context, memberID int64) error {
	return g.Bot.DeclineChatJoinRequest(ctx, g.GroupChatID, memberID)
}

// IsMember reports whether the user currently belongs to the group.
func (g *GroupClient) IsMember(ctx context.Context, userID int64) (bool, error) {
	member, err := g.Bot.GetChatMember(ctx, g.GroupChatID, userID)
	if err != nil {
		if IsAPIError(err, notPresentMarkers...) {
			return false, nil
		}
		return false, err
	}
	switch member.Status {
	case "member", "administrator", "creator", "restricted":
		return true, nil
	}
	return false, nil
}
