package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/communikein/keingate/testutil"
)

func testBot(m *testutil.MockServer) *Bot {
	return &Bot{Token: "tok", BaseURL: m.URL, HTTPClient: m.Client()}
}

func TestSendMessage(t *testing.T) {
	m := testutil.NewMockServer(t)
	var payload map[string]any
	m.Handlers["/bottok/sendMessage"] = func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		testutil.JSON(w, map[string]any{"ok": true, "result": map[string]any{"message_id": 1}})
	}
	bot := testBot(m)

	if err := bot.SendMessage(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if payload["chat_id"].(float64) != 42 || payload["text"] != "hello" {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.MockTelegramError("tok", "sendMessage", 403, "Forbidden: bot was blocked by the user")
	bot := testBot(m)

	err := bot.SendMessage(context.Background(), 42, "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 403 {
		t.Errorf("code = %d, want 403", apiErr.Code)
	}
}

func TestCreateChatInviteLinkRequestsJoinApproval(t *testing.T) {
	m := testutil.NewMockServer(t)
	var payload map[string]any
	m.Handlers["/bottok/createChatInviteLink"] = func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		testutil.JSON(w, map[string]any{"ok": true, "result": map[string]any{
			"invite_link":          "https://t.me/+abc",
			"creates_join_request": true,
		}})
	}
	bot := testBot(m)

	link, err := bot.CreateChatInviteLink(context.Background(), -100123)
	if err != nil {
		t.Fatalf("CreateChatInviteLink: %v", err)
	}
	if link.InviteLink != "https://t.me/+abc" {
		t.Errorf("link = %q", link.InviteLink)
	}
	if payload["creates_join_request"] != true {
		t.Error("invite must be created with creates_join_request")
	}
}

func TestIsAPIError(t *testing.T) {
	err := &APIError{Code: 400, Description: "Bad Request: PARTICIPANT_ID_INVALID"}
	if !IsAPIError(err, "PARTICIPANT_ID_INVALID") {
		t.Error("marker should match")
	}
	if !IsAPIError(err, "participant_id_invalid") {
		t.Error("marker match should be case-insensitive")
	}
	if IsAPIError(err, "USER_NOT_PARTICIPANT") {
		t.Error("unrelated marker should not match")
	}
	if IsAPIError(errors.New("plain"), "PARTICIPANT_ID_INVALID") {
		t.Error("non-API error should not match")
	}
}
