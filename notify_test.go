package magstand

import (
	"errors"
	"testing"
	"time"
)

func TestNotificationInbox(t *testing.T) {
	s := setupTestStore(t)

	first, err := s.AddNotification("New issue", "The May issue is out")
	if err != nil {
		t.Fatalf("AddNotification failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("notification id should be assigned")
	}
	if first.Read {
		t.Error("new notifications start unread")
	}

	time.Sleep(1100 * time.Millisecond) // created_at has second precision
	second, err := s.AddNotification("", "body only")
	if err != nil {
		t.Fatalf("AddNotification failed: %v", err)
	}
	if second.Title != "Notification" {
		t.Errorf("Title = %q, want fallback label", second.Title)
	}

	list, err := s.Notifications()
	if err != nil {
		t.Fatalf("Notifications failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID {
		t.Error("inbox should be newest first")
	}

	unread, err := s.UnreadNotifications()
	if err != nil {
		t.Fatalf("UnreadNotifications failed: %v", err)
	}
	if unread != 2 {
		t.Errorf("unread = %d, want 2", unread)
	}

	if err := s.MarkNotificationRead(first.ID); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	unread, _ = s.UnreadNotifications()
	if unread != 1 {
		t.Errorf("unread = %d, want 1", unread)
	}
}

func TestMarkNotificationReadUnknownID(t *testing.T) {
	s := setupTestStore(t)
	if err := s.MarkNotificationRead("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
