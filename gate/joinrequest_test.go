package gate

import (
	"context"
	"testing"
)

func grantLink(t *testing.T, store *fakeStore, granteeID int64, link, twitchID string) {
	t.Helper()
	if err := store.StoreLink(context.Background(), InviteLink{Link: link, GranteeID: granteeID, TwitchUserID: twitchID}); err != nil {
		t.Fatalf("StoreLink: %v", err)
	}
}

func TestJoinRequestOwnerApproved(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{})
	grantLink(t, store, 100, "https://t.me/+abc", "tw-1")

	if err := v.HandleJoinRequest(context.Background(), 100, "alice", "https://t.me/+abc"); err != nil {
		t.Fatalf("HandleJoinRequest: %v", err)
	}

	if len(chat.approved) != 1 || chat.approved[0] != 100 {
		t.Errorf("owner should be approved, approved=%v", chat.approved)
	}
	if len(chat.declined) != 0 {
		t.Errorf("owner must not be declined")
	}
	if len(chat.groupMsgs) != 1 {
		t.Errorf("expected a group welcome message, got %v", chat.groupMsgs)
	}
	if len(store.links) != 0 {
		t.Errorf("consumed link should be forgotten, got %d", len(store.links))
	}
	if len(chat.revoked) != 1 {
		t.Errorf("consumed link should be revoked, revoked=%v", chat.revoked)
	}
}

func TestJoinRequestSecondUseDeclined(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{})
	grantLink(t, store, 100, "https://t.me/+abc", "tw-1")

	if err := v.HandleJoinRequest(context.Background(), 100, "alice", "https://t.me/+abc"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if err := v.HandleJoinRequest(context.Background(), 100, "alice", "https://t.me/+abc"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	if len(chat.declined) != 1 || chat.declined[0] != 100 {
		t.Errorf("second use of a consumed link must be declined, declined=%v", chat.declined)
	}
}

func TestJoinRequestStrangerDeclined(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{})
	grantLink(t, store, 100, "https://t.me/+abc", "tw-1")

	if err := v.HandleJoinRequest(context.Background(), 999, "mallory", "https://t.me/+abc"); err != nil {
		t.Fatalf("HandleJoinRequest: %v", err)
	}

	if len(chat.declined) != 1 || chat.declined[0] != 999 {
		t.Errorf("stranger should be declined, declined=%v", chat.declined)
	}
	if len(chat.approved) != 0 {
		t.Errorf("stranger must not be approved")
	}
	// The grant stays live for its real owner.
	if len(store.links) != 1 {
		t.Errorf("owner's grant must survive a stranger's attempt, got %d links", len(store.links))
	}
	if len(chat.revoked) != 0 {
		t.Errorf("link must not be revoked on a declined request")
	}
}

func TestJoinRequestWithoutLinkDeclined(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{})

	if err := v.HandleJoinRequest(context.Background(), 100, "alice", ""); err != nil {
		t.Fatalf("HandleJoinRequest: %v", err)
	}
	if len(chat.declined) != 1 {
		t.Errorf("request without an invite link must be declined, declined=%v", chat.declined)
	}
}
