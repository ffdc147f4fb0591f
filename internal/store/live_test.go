package store

import (
	"testing"
	"time"

	"github.com/pulse/syncd/internal/model"
)

func TestLive_StreamLifecycle(t *testing.T) {
	s := NewLiveStore()
	s.AddLiveStream(model.LiveSession{StreamID: "s1", HostID: "U2", Title: "hi", StartedAt: time.Now()})

	s.ViewerJoined("s1", "U3")
	s.ViewerJoined("s1", "U4")
	s.ViewerJoined("s1", "U3") // idempotent
	if got := s.ViewerCount("s1"); got != 2 {
		t.Fatalf("viewers = %d, want 2", got)
	}

	s.ViewerLeft("s1", "U3")
	sess, exists := s.Session("s1")
	if !exists {
		t.Fatal("session missing")
	}
	if len(sess.Viewers) != 1 || sess.Viewers[0] != "U4" {
		t.Fatalf("viewers = %v, want [U4]", sess.Viewers)
	}

	s.RemoveLiveStream("s1")
	if _, exists := s.Session("s1"); exists {
		t.Fatal("session survived removal")
	}
}

func TestLive_ReannounceKeepsViewers(t *testing.T) {
	s := NewLiveStore()
	s.AddLiveStream(model.LiveSession{StreamID: "s1", HostID: "U2", Title: "old"})
	s.ViewerJoined("s1", "U3")

	s.AddLiveStream(model.LiveSession{StreamID: "s1", HostID: "U2", Title: "new", Viewers: []string{"U4"}})

	sess, _ := s.Session("s1")
	if sess.Title != "new" {
		t.Fatalf("title = %q, want new", sess.Title)
	}
	if len(sess.Viewers) != 2 {
		t.Fatalf("viewers = %v, want union of old and announced", sess.Viewers)
	}
}

func TestLive_JoinUnknownStream(t *testing.T) {
	s := NewLiveStore()
	s.ViewerJoined("nope", "U3")
	if got := s.ViewerCount("nope"); got != 0 {
		t.Fatalf("viewers = %d, want 0", got)
	}
}

func TestLive_SessionsNewestFirst(t *testing.T) {
	s := NewLiveStore()
	now := time.Now()
	s.AddLiveStream(model.LiveSession{StreamID: "s1", StartedAt: now})
	s.AddLiveStream(model.LiveSession{StreamID: "s2", StartedAt: now.Add(time.Minute)})

	sessions := s.Sessions()
	if len(sessions) != 2 || sessions[0].StreamID != "s2" {
		t.Fatalf("sessions = %+v, want s2 first", sessions)
	}

	s.Reset()
	if len(s.Sessions()) != 0 {
		t.Fatal("store not cleared")
	}
}
