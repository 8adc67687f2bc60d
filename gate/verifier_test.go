package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// In-memory fakes for the stores, the chat transport and a provider.
// Guarded by a mutex so tests can drive the verifier from several goroutines.

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	links    map[string]InviteLink
	nextTok  int

	createSessionErr error
	storeLinkErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[string]Session),
		links:    make(map[string]InviteLink),
	}
}

func (s *fakeStore) CreateSession(_ context.Context, requesterID, chatID int64, provider Provider) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createSessionErr != nil {
		return "", s.createSessionErr
	}
	s.nextTok++
	tok := fmt.Sprintf("state-%d", s.nextTok)
	s.sessions[tok] = Session{Token: tok, RequesterID: requesterID, ChatID: chatID, Provider: provider}
	return tok, nil
}

func (s *fakeStore) ResolveSession(_ context.Context, token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *fakeStore) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *fakeStore) DeleteSessionsFor(_ context.Context, requesterID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, sess := range s.sessions {
		if sess.RequesterID == requesterID {
			delete(s.sessions, tok)
		}
	}
	return nil
}

func (s *fakeStore) StoreLink(_ context.Context, link InviteLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeLinkErr != nil {
		return s.storeLinkErr
	}
	s.links[link.Link] = link
	return nil
}

func (s *fakeStore) LinksByGrantee(_ context.Context, granteeID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.links {
		if l.GranteeID == granteeID {
			out = append(out, l.Link)
		}
	}
	return out, nil
}

func (s *fakeStore) LinksBySubscriber(_ context.Context, provider Provider, subscriberID string) ([]InviteLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []InviteLink
	for _, l := range s.links {
		switch provider {
		case ProviderTwitch:
			if l.TwitchUserID == subscriberID {
				out = append(out, l)
			}
		case ProviderPatreon:
			if l.PatreonUserID == subscriberID {
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) GranteeOwnsLink(_ context.Context, granteeID int64, link string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[link]
	return ok && l.GranteeID == granteeID, nil
}

func (s *fakeStore) RemoveLink(_ context.Context, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.links, link)
	return nil
}

type fakeChat struct {
	mu        sync.Mutex
	sent      map[int64][]string
	groupMsgs []string
	nextLink  int
	revoked   []string
	removed   []int64
	approved  []int64
	declined  []int64

	createLinkErr error
	removeErr     error
}

func newFakeChat() *fakeChat {
	return &fakeChat{sent: make(map[int64][]string)}
}

func (c *fakeChat) SendMessage(_ context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[chatID] = append(c.sent[chatID], text)
	return nil
}

func (c *fakeChat) SendGroupMessage(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groupMsgs = append(c.groupMsgs, text)
	return nil
}

func (c *fakeChat) CreateSingleUseInviteLink(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createLinkErr != nil {
		return "", c.createLinkErr
	}
	c.nextLink++
	return fmt.Sprintf("https://t.me/+invite%d", c.nextLink), nil
}

func (c *fakeChat) RevokeInviteLink(_ context.Context, link string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked = append(c.revoked, link)
	return true, nil
}

func (c *fakeChat) RemoveMember(_ context.Context, memberID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removeErr != nil {
		return c.removeErr
	}
	c.removed = append(c.removed, memberID)
	return nil
}

func (c *fakeChat) ApproveJoinRequest(_ context.Context, memberID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approved = append(c.approved, memberID)
	return nil
}

func (c *fakeChat) DeclineJoinRequest(_ context.Context, memberID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declined = append(c.declined, memberID)
	return nil
}

type fakeProvider struct {
	subscriberID string
	paid         bool

	authURL     string
	exchangeErr error
	paidErr     error
}

func (p *fakeProvider) BuildAuthorizationURL(state string) string {
	if p.authURL == "" {
		return "https://provider.example/authorize?state=" + state
	}
	return p.authURL + "?state=" + state
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code string) (Credential, error) {
	if p.exchangeErr != nil {
		return Credential{}, p.exchangeErr
	}
	return Credential{AccessToken: "access-" + code}, nil
}

func (p *fakeProvider) PaidSubscriber(_ context.Context, _ Credential) (string, bool, error) {
	if p.paidErr != nil {
		return "", false, p.paidErr
	}
	return p.subscriberID, p.paid, nil
}

func (p *fakeProvider) RegisterUnsubscribeWebhook(_ context.Context) (bool, error) {
	return false, nil
}

func newTestVerifier(store *fakeStore, chat *fakeChat, provider *fakeProvider) *Verifier {
	return NewVerifier(store, store, chat, map[Provider]ProviderAdapter{ProviderTwitch: provider}, nil)
}

func TestBeginReturnsAuthorizationURL(t *testing.T) {
	store := newFakeStore()
	v := newTestVerifier(store, newFakeChat(), &fakeProvider{})

	url, err := v.Begin(context.Background(), 100, 200, ProviderTwitch)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !strings.Contains(url, "state=state-1") {
		t.Errorf("authorization URL missing state token: %s", url)
	}
	if len(store.sessions) != 1 {
		t.Errorf("expected 1 session, got %d", len(store.sessions))
	}
}

func TestBeginUnknownProvider(t *testing.T) {
	v := newTestVerifier(newFakeStore(), newFakeChat(), &fakeProvider{})
	if _, err := v.Begin(context.Background(), 100, 200, ProviderPatreon); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestCompletePaidSubscriberGetsInvite(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{subscriberID: "tw-1", paid: true})

	_, err := v.Begin(context.Background(), 100, 200, ProviderTwitch)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1"); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(store.links) != 1 {
		t.Fatalf("expected exactly 1 stored link, got %d", len(store.links))
	}
	for _, l := range store.links {
		if l.GranteeID != 100 || l.TwitchUserID != "tw-1" {
			t.Errorf("stored link wrong: %+v", l)
		}
	}
	if len(store.sessions) != 0 {
		t.Errorf("session should be consumed, got %d left", len(store.sessions))
	}
	msgs := chat.sent[200]
	if len(msgs) != 1 || !strings.Contains(msgs[0], "https://t.me/") {
		t.Errorf("expected invite message to chat 200, got %v", msgs)
	}
}

func TestCompleteNotPaidStoresNothing(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{subscriberID: "tw-1", paid: false})

	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	if err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1"); err != nil {
		t.Fatalf("Complete on unpaid subscriber should not error, got %v", err)
	}

	if len(store.links) != 0 {
		t.Errorf("no link should be stored for unpaid subscriber, got %d", len(store.links))
	}
	if len(store.sessions) != 0 {
		t.Errorf("session should be cleaned up after denial")
	}
	msgs := chat.sent[200]
	if len(msgs) != 1 || msgs[0] != v.Text.SubscriptionNotActive {
		t.Errorf("expected denial message, got %v", msgs)
	}
}

func TestCompleteUnknownStateRejected(t *testing.T) {
	v := newTestVerifier(newFakeStore(), newFakeChat(), &fakeProvider{paid: true})
	err := v.Complete(context.Background(), ProviderTwitch, "code", "no-such-state")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestCompleteReusedStateRejected(t *testing.T) {
	store := newFakeStore()
	v := newTestVerifier(store, newFakeChat(), &fakeProvider{subscriberID: "tw-1", paid: true})

	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	if err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1"); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("replayed callback should get ErrInvalidSession, got %v", err)
	}
	if len(store.links) != 1 {
		t.Errorf("replay must not mint a second link, got %d", len(store.links))
	}
}

func TestCompleteProviderMismatchRejected(t *testing.T) {
	store := newFakeStore()
	provider := &fakeProvider{paid: true}
	v := NewVerifier(store, store, newFakeChat(), map[Provider]ProviderAdapter{
		ProviderTwitch:  provider,
		ProviderPatreon: provider,
	}, nil)

	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	err := v.Complete(context.Background(), ProviderPatreon, "code", "state-1")
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("cross-provider state must be rejected, got %v", err)
	}
}

func TestCompleteExchangeFailureNotifies(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{exchangeErr: errors.New("bad code")})

	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	msgs := chat.sent[200]
	if len(msgs) != 1 || msgs[0] != v.Text.VerificationFailed {
		t.Errorf("expected failure message, got %v", msgs)
	}
	// Session survives a transient failure so the requester can retry the link.
	if len(store.sessions) != 1 {
		t.Errorf("session should survive exchange failure, got %d", len(store.sessions))
	}
}

func TestCompleteInviteCreationFailure(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	chat.createLinkErr = errors.New("telegram down")
	v := newTestVerifier(store, chat, &fakeProvider{subscriberID: "tw-1", paid: true})

	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1")
	var extErr *ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
	if len(store.links) != 0 {
		t.Errorf("failed grant must persist nothing, got %d links", len(store.links))
	}
}

func TestCompleteStoreFailureRevokesOrphanInvite(t *testing.T) {
	store := newFakeStore()
	store.storeLinkErr = errors.New("db down")
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{subscriberID: "tw-1", paid: true})

	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1")
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if len(chat.revoked) != 1 {
		t.Errorf("orphan invite should be revoked, revoked=%v", chat.revoked)
	}
}

func TestReVerifyReplacesExistingGrant(t *testing.T) {
	store := newFakeStore()
	chat := newFakeChat()
	v := newTestVerifier(store, chat, &fakeProvider{subscriberID: "tw-1", paid: true})

	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	if err := v.Complete(context.Background(), ProviderTwitch, "code", "state-1"); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
	if err := v.Complete(context.Background(), ProviderTwitch, "code", "state-2"); err != nil {
		t.Fatalf("second Complete: %v", err)
	}

	if len(store.links) != 1 {
		t.Fatalf("re-verification must leave exactly 1 live grant, got %d", len(store.links))
	}
	for _, l := range store.links {
		if l.Link != "https://t.me/+invite2" {
			t.Errorf("surviving grant should be the fresh one, got %s", l.Link)
		}
	}
	if len(chat.revoked) != 1 || chat.revoked[0] != "https://t.me/+invite1" {
		t.Errorf("old invite should be revoked, revoked=%v", chat.revoked)
	}
}

func TestConcurrentCompletesLeaveSingleGrant(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := newFakeStore()
		chat := newFakeChat()
		v := newTestVerifier(store, chat, &fakeProvider{subscriberID: "tw-1", paid: true})

		_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)
		_, _ = v.Begin(context.Background(), 100, 200, ProviderTwitch)

		var wg sync.WaitGroup
		for _, state := range []string{"state-1", "state-2"} {
			wg.Add(1)
			go func(state string) {
				defer wg.Done()
				if err := v.Complete(context.Background(), ProviderTwitch, "code", state); err != nil {
					t.Errorf("Complete(%s): %v", state, err)
				}
			}(state)
		}
		wg.Wait()

		// The revoke-old/create-new sequences must serialize per requester:
		// whichever Complete runs second revokes the first one's invite.
		if len(store.links) != 1 {
			t.Fatalf("iteration %d: expected exactly 1 live grant, got %d", i, len(store.links))
		}
		if len(chat.revoked) != 1 {
			t.Fatalf("iteration %d: replaced invite should be revoked once, revoked=%v", i, chat.revoked)
		}
	}
}
