package draft

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPutGetDelete(t *testing.T) {
	s, err := NewStore(t.TempDir(), 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Put("chat-input", "why did the")

	text, ok := s.Get("chat-input")
	if !ok || text != "why did the" {
		t.Fatalf("Get = %q, %v", text, ok)
	}

	s.Delete("chat-input")
	if _, ok := s.Get("chat-input"); ok {
		t.Fatal("draft should be gone after delete")
	}
}

func TestDebouncedWritesCollapse(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, 30*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Put("d1", "a")
	s.Put("d1", "ab")
	s.Put("d1", "abc")

	// Before the debounce window closes, nothing is on disk yet.
	if _, err := os.Stat(filepath.Join(dir, "d1.json")); err == nil {
		t.Fatal("file written before debounce elapsed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(dir, "d1.json")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("debounced write never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Only the final text survives.
	s2, err := NewStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := s2.Get("d1")
	if !ok || text != "abc" {
		t.Fatalf("reloaded draft = %q, %v; want abc", text, ok)
	}
}

func TestCloseFlushesPendingDrafts(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir, time.Hour) // would never flush on its own
	if err != nil {
		t.Fatal(err)
	}

	s.Put("d1", "unsent message")
	s.Close()

	s2, err := NewStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := s2.Get("d1")
	if !ok || text != "unsent message" {
		t.Fatalf("draft lost on close: %q, %v", text, ok)
	}
}

func TestListReturnsAllDrafts(t *testing.T) {
	s, err := NewStore(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Put("a", "one")
	s.Put("b", "two")

	if got := len(s.List()); got != 2 {
		t.Fatalf("List returned %d drafts, want 2", got)
	}
}

func TestLoadIgnoresGarbageFiles(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "junk.json"), []byte("not json"), 0644)
	os.WriteFile(filepath.Join(dir, "noid.json"), []byte("{}"), 0644)
	os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("x"), 0644)

	s, err := NewStore(dir, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if got := len(s.List()); got != 0 {
		t.Fatalf("loaded %d drafts from garbage, want 0", got)
	}
}
