package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/communikein/keingate/gate"
	"github.com/communikein/keingate/telegram"
	"github.com/communikein/keingate/telemetry"
)

// Callback data values wired into inline keyboards.
const (
	callbackAddMe   = "add_me"
	callbackFinish  = "finish"
	callbackTwitch  = "platform_twitch"
	callbackPatreon = "platform_patreon"
	callbackYouTube = "platform_youtube"
)

// HandleTelegramUpdate receives Bot API updates pushed to the webhook and
// dispatches messages, callback queries and join requests. Always answers
// 200 for well-formed updates so Telegram does not redeliver them.
func (h *Handlers) HandleTelegramUpdate(w http.ResponseWriter, r *http.Request) {
	log := telemetry.LoggerWithCorr(r.Context())

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch {
	case update.ChatJoinRequest != nil:
		h.handleJoinRequest(ctx, log, update.ChatJoinRequest)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, log, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, log, update.Message)
	default:
		log.Debug("ignoring update", slog.Int64("update_id", update.UpdateID))
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) handleJoinRequest(ctx context.Context, log *slog.Logger, req *telegram.ChatJoinRequest) {
	if req.Chat.ID != h.cfg.GroupChatID {
		log.Debug("join request for unmanaged chat", slog.Int64("chat_id", req.Chat.ID))
		return
	}
	link := ""
	if req.InviteLink != nil {
		link = req.InviteLink.InviteLink
	}
	username := displayName(req.From)
	if err := h.verifier.HandleJoinRequest(ctx, req.From.ID, username, link); err != nil {
		log.Error("join request handling failed", slog.Int64("user_id", req.From.ID), slog.Any("err", err))
	}
}

func (h *Handlers) handleCallback(ctx context.Context, log *slog.Logger, cb *telegram.CallbackQuery) {
	if err := h.bot.AnswerCallbackQuery(ctx, cb.ID); err != nil {
		log.Warn("answer callback failed", slog.Any("err", err))
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	switch cb.Data {
	case callbackAddMe:
		h.sendPlatformChoice(ctx, log, cb.From.ID, chatID)
	case callbackTwitch:
		h.beginVerification(ctx, log, cb.From.ID, chatID, gate.ProviderTwitch)
	case callbackPatreon:
		h.beginVerification(ctx, log, cb.From.ID, chatID, gate.ProviderPatreon)
	case callbackYouTube:
		// YouTube membership checks are not available yet.
		h.send(ctx, log, chatID, h.text.ReplyNotReady)
	case callbackFinish:
		if err := h.bot.DeleteMessage(ctx, chatID, cb.Message.MessageID); err != nil {
			log.Debug("delete keyboard message failed", slog.Any("err", err))
		}
	default:
		log.Debug("unknown callback data", slog.String("data", cb.Data))
	}
}

func (h *Handlers) handleMessage(ctx context.Context, log *slog.Logger, msg *telegram.Message) {
	// A member leaving the managed group gets a goodbye note in private.
	if msg.LeftChatMember != nil {
		if msg.Chat.ID == h.cfg.GroupChatID && !msg.LeftChatMember.IsBot {
			h.send(ctx, log, msg.LeftChatMember.ID, h.text.RemovedFromChat)
		}
		return
	}

	// Commands are only honored in private chats with the bot.
	if msg.Chat.Type != "private" || msg.From == nil {
		return
	}

	switch command(msg.Text) {
	case "/start":
		markup := telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "Add me", CallbackData: callbackAddMe}},
			{{Text: "Done", CallbackData: callbackFinish}},
		}}
		if err := h.bot.SendMessageWithMarkup(ctx, msg.Chat.ID, h.text.Welcome, markup); err != nil {
			log.Warn("send welcome failed", slog.Any("err", err))
		}
	case "/add_me":
		h.sendPlatformChoice(ctx, log, msg.From.ID, msg.Chat.ID)
	case "/add_me_twitch":
		h.beginVerification(ctx, log, msg.From.ID, msg.Chat.ID, gate.ProviderTwitch)
	case "/add_me_patreon":
		h.beginVerification(ctx, log, msg.From.ID, msg.Chat.ID, gate.ProviderPatreon)
	default:
		h.send(ctx, log, msg.Chat.ID, h.text.CommandList())
	}
}

// sendPlatformChoice checks current membership and, for non-members,
// offers the platform picker keyboard.
func (h *Handlers) sendPlatformChoice(ctx context.Context, log *slog.Logger, userID, chatID int64) {
	member, err := h.group.IsMember(ctx, userID)
	if err != nil {
		log.Warn("membership check failed", slog.Int64("user_id", userID), slog.Any("err", err))
	}
	if member {
		h.send(ctx, log, chatID, h.text.AlreadyJoined)
		return
	}
	markup := telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "Twitch", CallbackData: callbackTwitch}},
		{{Text: "Patreon", CallbackData: callbackPatreon}},
		{{Text: "YouTube", CallbackData: callbackYouTube}},
	}}
	if err := h.bot.SendMessageWithMarkup(ctx, chatID, h.text.PlatformCheck, markup); err != nil {
		log.Warn("send platform picker failed", slog.Any("err", err))
	}
}

// beginVerification opens a verification session and replies with the
// provider's authorization URL.
func (h *Handlers) beginVerification(ctx context.Context, log *slog.Logger, userID, chatID int64, provider gate.Provider) {
	authURL, err := h.verifier.Begin(ctx, userID, chatID, provider)
	if err != nil {
		if errors.Is(err, gate.ErrProviderUnavailable) {
			h.send(ctx, log, chatID, h.text.ReplyNotReady)
			return
		}
		log.Error("begin verification failed", slog.Int64("user_id", userID), slog.String("provider", string(provider)), slog.Any("err", err))
		h.send(ctx, log, chatID, h.text.VerificationFailed)
		return
	}
	h.send(ctx, log, chatID, h.text.FormatPlatformChoice(string(provider), authURL))
}

func (h *Handlers) send(ctx context.Context, log *slog.Logger, chatID int64, text string) {
	if err := h.bot.SendMessage(ctx, chatID, text); err != nil {
		log.Warn("send message failed", slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
}

// command extracts the leading slash command, tolerating the @botname
// suffix Telegram appends in some clients.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd
}

func displayName(u telegram.User) string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
