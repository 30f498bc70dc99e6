package bridge

import "testing"

func TestSessionConversationIDIgnoresEmpty(t *testing.T) {
	s := NewSession("user_1")

	s.SetConversationID("c1")
	s.SetConversationID("")
	if s.ConversationID() != "c1" {
		t.Errorf("got %q, want c1", s.ConversationID())
	}

	s.SetConversationID("c2")
	if s.ConversationID() != "c2" {
		t.Errorf("got %q, want c2", s.ConversationID())
	}
}

func TestSessionPendingLifecycle(t *testing.T) {
	s := NewSession("user_1")

	s.AddPending("t1")
	s.AddPending("t2")
	s.AddPending("") // fire-and-forget calls carry no correlation
	if s.PendingCount() != 2 {
		t.Errorf("got %d pending, want 2", s.PendingCount())
	}

	s.ResolvePending("t1")
	s.ResolvePending("t1") // double resolve is harmless
	if s.PendingCount() != 1 {
		t.Errorf("got %d pending, want 1", s.PendingCount())
	}
}

func TestSessionReset(t *testing.T) {
	s := NewSession("user_1")
	s.SetState(StateConnected)
	s.SetConversationID("c1")
	s.AddPending("t1")

	s.Reset()

	if s.State() != StateDisconnected {
		t.Errorf("got state %q, want disconnected", s.State())
	}
	if s.ConversationID() != "" {
		t.Errorf("conversation id should clear, got %q", s.ConversationID())
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending should clear, got %d", s.PendingCount())
	}
	if s.UserID() != "user_1" {
		t.Errorf("user id should survive reset, got %q", s.UserID())
	}
}
