package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"maimaibot/cache"
	"maimaibot/dispatch"
	"maimaibot/mcp"
	"maimaibot/storage"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*storage.UserCredential
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*storage.UserCredential)}
}

func (m *memStore) Get(userID string) (*storage.UserCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *cred
	return &copied, nil
}

func (m *memStore) Upsert(userID string, patch storage.CredentialPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.users[userID]
	if !ok {
		cred = &storage.UserCredential{UserID: userID}
		m.users[userID] = cred
	}
	if patch.Token != nil {
		cred.Token = *patch.Token
	}
	if patch.AutoClaim != nil {
		cred.AutoClaim = *patch.AutoClaim
	}
	if patch.LastClaimDate != nil {
		cred.LastClaimDate = *patch.LastClaimDate
	}
	if patch.LastClaimAt != nil {
		cred.LastClaimAt = *patch.LastClaimAt
	}
	if patch.LastClaimResult != nil {
		cred.LastClaimResult = *patch.LastClaimResult
	}
	return nil
}

func (m *memStore) Delete(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, userID)
	return nil
}

type recordingSender struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingSender) Send(_ context.Context, userID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	return nil
}

func (r *recordingSender) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		t.Fatal("expected a reply, got none")
	}
	return r.messages[len(r.messages)-1]
}

type stubCaller struct {
	result *mcp.Result
	err    error
}

func (s *stubCaller) CallTool(context.Context, string, map[string]any) (*mcp.Result, error) {
	return s.result, s.err
}

func newTestHandler(store *memStore, caller *stubCaller) (*Handler, *recordingSender) {
	sender := &recordingSender{}
	facade := dispatch.New(store, cache.New(time.Minute),
		func(string) dispatch.ToolCaller { return caller }, nil)
	return NewHandler(store, facade, sender), sender
}

func TestBindAndStatus(t *testing.T) {
	store := newMemStore()
	handler, sender := newTestHandler(store, &stubCaller{})
	ctx := context.Background()

	if err := handler.HandleCommand(ctx, "alice", "bind my-secret-token-1234"); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	cred, _ := store.Get("alice")
	if cred == nil || cred.Token != "my-secret-token-1234" {
		t.Fatalf("token not stored: %+v", cred)
	}

	if err := handler.HandleCommand(ctx, "alice", "status"); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	reply := sender.last(t)
	if strings.Contains(reply, "my-secret-token-1234") {
		t.Error("status must never echo the full token")
	}
	if !strings.Contains(reply, "my-s") {
		t.Errorf("status should show a masked token, got %q", reply)
	}
}

func TestAutoClaimRequiresToken(t *testing.T) {
	store := newMemStore()
	handler, sender := newTestHandler(store, &stubCaller{})
	ctx := context.Background()

	if err := handler.HandleCommand(ctx, "alice", "autoclaim on"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	if !strings.Contains(sender.last(t), "Bind a token first") {
		t.Errorf("expected bind prompt, got %q", sender.last(t))
	}

	handler.HandleCommand(ctx, "alice", "bind tok-123456789")
	handler.HandleCommand(ctx, "alice", "autoclaim on")

	cred, _ := store.Get("alice")
	if !cred.AutoClaim {
		t.Error("auto-claim not enabled")
	}

	handler.HandleCommand(ctx, "alice", "autoclaim off")
	cred, _ = store.Get("alice")
	if cred.AutoClaim {
		t.Error("auto-claim not disabled")
	}
}

func TestUnbindDeletesRecord(t *testing.T) {
	store := newMemStore()
	handler, _ := newTestHandler(store, &stubCaller{})
	ctx := context.Background()

	handler.HandleCommand(ctx, "alice", "bind tok-123456789")
	handler.HandleCommand(ctx, "alice", "unbind")

	cred, _ := store.Get("alice")
	if cred != nil {
		t.Errorf("expected record deleted, got %+v", cred)
	}
}

func TestToolCommand(t *testing.T) {
	store := newMemStore()
	caller := &stubCaller{result: &mcp.Result{Kind: mcp.KindText, Text: "schedule for 2024-05-01"}}
	handler, sender := newTestHandler(store, caller)
	ctx := context.Background()

	handler.HandleCommand(ctx, "alice", "bind tok-123456789")
	if err := handler.HandleCommand(ctx, "alice", `tool calendar {"date":"2024-05-01"}`); err != nil {
		t.Fatalf("tool command failed: %v", err)
	}
	if !strings.Contains(sender.last(t), "schedule for 2024-05-01") {
		t.Errorf("expected rendered result, got %q", sender.last(t))
	}

	// Malformed JSON arguments are a user error, not a crash
	if err := handler.HandleCommand(ctx, "alice", "tool calendar {not json"); err != nil {
		t.Fatalf("malformed args must not error the handler: %v", err)
	}
	if !strings.Contains(sender.last(t), "JSON object") {
		t.Errorf("expected JSON usage hint, got %q", sender.last(t))
	}
}

func TestInvokeErrorsBecomeReplies(t *testing.T) {
	tests := []struct {
		name      string
		caller    *stubCaller
		bindFirst bool
		want      string
	}{
		{
			name:   "missing credential",
			caller: &stubCaller{},
			want:   "haven't bound a token",
		},
		{
			name:      "auth failure",
			caller:    &stubCaller{err: &mcp.AuthError{Detail: "401"}},
			bindFirst: true,
			want:      "token was rejected",
		},
		{
			name:      "tool failure",
			caller:    &stubCaller{err: &mcp.ToolError{Tool: "calendar", Detail: "no such day"}},
			bindFirst: true,
			want:      "no such day",
		},
		{
			name:      "transport failure",
			caller:    &stubCaller{err: &mcp.TransportError{Op: "call", Err: errors.New("timeout")}},
			bindFirst: true,
			want:      "Could not reach",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			handler, sender := newTestHandler(store, tt.caller)
			ctx := context.Background()

			if tt.bindFirst {
				handler.HandleCommand(ctx, "alice", "bind tok-123456789")
			}
			if err := handler.HandleCommand(ctx, "alice", "tool calendar"); err != nil {
				t.Fatalf("handler must absorb invoke errors: %v", err)
			}
			if !strings.Contains(sender.last(t), tt.want) {
				t.Errorf("expected reply containing %q, got %q", tt.want, sender.last(t))
			}
		})
	}
}

func TestUnknownCommandShowsUsage(t *testing.T) {
	handler, sender := newTestHandler(newMemStore(), &stubCaller{})

	if err := handler.HandleCommand(context.Background(), "alice", "frobnicate"); err != nil {
		t.Fatalf("unknown command failed: %v", err)
	}
	if !strings.Contains(sender.last(t), "Commands:") {
		t.Errorf("expected usage text, got %q", sender.last(t))
	}
}
