// Package telegram is a thin Bot API client covering the calls this
// service makes: messaging, invite link management, join request
// moderation and webhook setup.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// APIError is a non-ok response from the Bot API.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Bot calls the Telegram Bot API with a single bot token.
type Bot struct {
	Token      string
	BaseURL    string // override in tests
	HTTPClient *http.Client
}

func (b *Bot) base() string {
	if b.BaseURL != "" {
		return b.BaseURL
	}
	return defaultBaseURL
}

func (b *Bot) httpClient() *http.Client {
	if b.HTTPClient != nil {
		return b.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// call posts a JSON payload to a Bot API method and decodes the result
// envelope. A nil out skips result decoding.
func (b *Bot) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", b.base(), b.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		resp.Body.Close()              //nolint:errcheck
	}()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode telegram %s response: %w", method, err)
	}
	if !env.OK {
		return &APIError{Code: env.ErrorCode, Description: env.Description}
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("decode telegram %s result: %w", method, err)
		}
	}
	return nil
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

func (b *Bot) SendMessageWithMarkup(ctx context.Context, chatID int64, text string, markup InlineKeyboardMarkup) error {
	return b.call(ctx, "sendMessage", map[string]any{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": markup,
	}, nil)
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return b.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (b *Bot) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return b.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	}, nil)
}

// CreateChatInviteLink creates a link whose joins land as join requests
// the bot has to approve, so possession of the link alone does not admit.
func (b *Bot) CreateChatInviteLink(ctx context.Context, chatID int64) (ChatInviteLink, error) {
	var link ChatInviteLink
	err := b.call(ctx, "createChatInviteLink", map[string]any{
		"chat_id":              chatID,
		"creates_join_request": true,
	}, &link)
	return link, err
}

func (b *Bot) RevokeChatInviteLink(ctx context.Context, chatID int64, inviteLink string) (ChatInviteLink, error) {
	var link ChatInviteLink
	err := b.call(ctx, "revokeChatInviteLink", map[string]any{
		"chat_id":     chatID,
		"invite_link": inviteLink,
	}, &link)
	return link, err
}

func (b *Bot) BanChatMember(ctx context.Context, chatID, userID int64, untilDate time.Time) error {
	return b.call(ctx, "banChatMember", map[string]any{
		"chat_id":    chatID,
		"user_id":    userID,
		"until_date": untilDate.Unix(),
	}, nil)
}

func (b *Bot) UnbanChatMember(ctx context.Context, chatID, userID int64) error {
	return b.call(ctx, "unbanChatMember", map[string]any{
		"chat_id":        chatID,
		"user_id":        userID,
		"only_if_banned": true,
	}, nil)
}

func (b *Bot) ApproveChatJoinRequest(ctx context.Context, chatID, userID int64) error {
	return b.call(ctx, "approveChatJoinRequest", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (b *Bot) DeclineChatJoinRequest(ctx context.Context, chatID, userID int64) error {
	return b.call(ctx, "declineChatJoinRequest", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (b *Bot) GetChatMember(ctx context.Context, chatID, userID int64) (ChatMember, error) {
	var member ChatMember
	err := b.call(ctx, "getChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, &member)
	return member, err
}

func (b *Bot) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	var info WebhookInfo
	err := b.call(ctx, "getWebhookInfo", map[string]any{}, &info)
	return info, err
}

func (b *Bot) SetWebhook(ctx context.Context, url string) error {
	return b.call(ctx, "setWebhook", map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query", "chat_join_request"},
	}, nil)
}

func (b *Bot) DeleteWebhook(ctx context.Context) error {
	return b.call(ctx, "deleteWebhook", map[string]any{}, nil)
}

// IsAPIError reports whether err is an APIError whose description
// contains one of the given markers.
func IsAPIError(err error, markers ...string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	desc := strings.ToUpper(apiErr.Description)
	for _, m := range markers {
		if strings.Contains(desc, strings.ToUpper(m)) {
			return true
		}
	}
	return false
}
