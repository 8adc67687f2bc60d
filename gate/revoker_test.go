package gate

import (
	"context"
	"errors"
	"testing"
)

func TestRevokerNoGrantIsNoop(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	r := NewRevoker(store, chat)

	if err := r.HandleSubscriptionEnd(context.Background(), ProviderTwitch, "tw-unknown"); err != nil {
		t.Fatalf("HandleSubscriptionEnd: %v", err)
	}
	if len(chat.removed) != 0 {
		t.Errorf("nobody should be removed, removed=%v", chat.removed)
	}
}

func TestRevokerRemovesMemberAndGrant(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	r := NewRevoker(store, chat)
	grantLink(t, store, 100, "https://t.me/+abc", "tw-1")

	if err := r.HandleSubscriptionEnd(context.Background(), ProviderTwitch, "tw-1"); err != nil {
		t.Fatalf("HandleSubscriptionEnd: %v", err)
	}
	if len(chat.removed) != 1 || chat.removed[0] != 100 {
		t.Errorf("grantee should be removed, removed=%v", chat.removed)
	}
	if len(store.links) != 0 {
		t.Errorf("grant row should be deleted, got %d", len(store.links))
	}
}

func TestRevokerDeletesGrantEvenWhenRemovalFails(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	chat.removeErr = errors.New("telegram down")
	r := NewRevoker(store, chat)
	grantLink(t, store, 100, "https://t.me/+abc", "tw-1")

	if err := r.HandleSubscriptionEnd(context.Background(), ProviderTwitch, "tw-1"); err != nil {
		t.Fatalf("HandleSubscriptionEnd: %v", err)
	}
	if len(store.links) != 0 {
		t.Errorf("grant row must be deleted even when the kick fails, got %d", len(store.links))
	}
}

func TestRevokerMatchesByProviderIdentity(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	r := NewRevoker(store, chat)
	grantLink(t, store, 100, "https://t.me/+abc", "tw-1")
	if err := store.StoreLink(context.Background(), InviteLink{Link: "https://t.me/+def", GranteeID: 200, PatreonUserID: "pat-1"}); err != nil {
		t.Fatalf("StoreLink: %v", err)
	}

	if err := r.HandleSubscriptionEnd(context.Background(), ProviderPatreon, "pat-1"); err != nil {
		t.Fatalf("HandleSubscriptionEnd: %v", err)
	}
	if len(chat.removed) != 1 || chat.removed[0] != 200 {
		t.Errorf("only the patreon grantee should be removed, removed=%v", chat.removed)
	}
	if _, ok := store.links["https://t.me/+abc"]; !ok {
		t.Errorf("unrelated twitch grant must survive")
	}
}
