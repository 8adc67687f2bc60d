package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/communikein/keingate/testutil"
)

func testGroup(m *testutil.MockServer) *GroupClient {
	return NewGroupClient(testBot(m), -100123)
}

func TestRemoveMemberBansThenUnbans(t *testing.T) {
	m := testutil.NewMockServer(t)
	var banned, unbanned bool
	m.Handlers["/bottok/banChatMember"] = func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["until_date"] == nil {
			t.Error("ban must carry until_date so it expires")
		}
		banned = true
		testutil.JSON(w, map[string]any{"ok": true, "result": true})
	}
	m.Handlers["/bottok/unbanChatMember"] = func(w http.ResponseWriter, r *http.Request) {
		unbanned = true
		testutil.JSON(w, map[string]any{"ok": true, "result": true})
	}
	g := testGroup(m)

	if err := g.RemoveMember(context.Background(), 42); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if !banned || !unbanned {
		t.Errorf("banned=%v unbanned=%v, want both", banned, unbanned)
	}
}

func TestRemoveMemberAbsentUserIsSuccess(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.MockTelegramError("tok", "banChatMember", 400, "Bad Request: USER_NOT_PARTICIPANT")
	g := testGroup(m)

	if err := g.RemoveMember(context.Background(), 42); err != nil {
		t.Fatalf("absent member should count as removed, got %v", err)
	}
}

func TestRemoveMemberOtherErrorPropagates(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.MockTelegramError("tok", "banChatMember", 400, "Bad Request: not enough rights")
	g := testGroup(m)

	if err := g.RemoveMember(context.Background(), 42); err == nil {
		t.Fatal("permission error must propagate")
	}
}

func TestIsMember(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"member", true},
		{"administrator", true},
		{"creator", true},
		{"restricted", true},
		{"left", false},
		{"kicked", false},
	}
	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			m := testutil.NewMockServer(t)
			m.MockTelegramResult("tok", "getChatMember", map[string]any{
				"status": tc.status,
				"user":   map[string]any{"id": 42},
			})
			g := testGroup(m)

			got, err := g.IsMember(context.Background(), 42)
			if err != nil {
				t.Fatalf("IsMember: %v", err)
			}
			if got != tc.want {
				t.Errorf("IsMember(%s) = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestEnsureWebhook(t *testing.T) {
	m := testutil.NewMockServer(t)
	var deleted, set bool
	m.MockTelegramResult("tok", "getWebhookInfo", map[string]any{"url": "https://old.example/telegram"})
	m.Handlers["/bottok/deleteWebhook"] = func(w http.ResponseWriter, r *http.Request) {
		deleted = true
		testutil.JSON(w, map[string]any{"ok": true, "result": true})
	}
	m.Handlers["/bottok/setWebhook"] = func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["url"] != "https://gate.example/telegram" {
			t.Errorf("url = %v", payload["url"])
		}
		set = true
		testutil.JSON(w, map[string]any{"ok": true, "result": true})
	}
	bot := testBot(m)

	if err := EnsureWebhook(context.Background(), bot, "https://gate.example/telegram"); err != nil {
		t.Fatalf("EnsureWebhook: %v", err)
	}
	if !deleted || !set {
		t.Errorf("deleted=%v set=%v, want both", deleted, set)
	}
}

func TestEnsureWebhookAlreadyCurrent(t *testing.T) {
	m := testutil.NewMockServer(t)
	m.MockTelegramResult("tok", "getWebhookInfo", map[string]any{"url": "https://gate.example/telegram"})
	bot := testBot(m)

	// No setWebhook handler registered: a rewrite attempt would 404.
	if err := EnsureWebhook(context.Background(), bot, "https://gate.example/telegram"); err != nil {
		t.Fatalf("EnsureWebhook: %v", err)
	}
}
