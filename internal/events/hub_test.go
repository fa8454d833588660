package events

import "testing"

func TestPublishMatchesKey(t *testing.T) {
	hub := NewHub()

	var got []string
	sub := hub.Subscribe(ExtensionRegistered, "artByName", func(e Event) {
		got = append(got, e.Key)
	})
	defer sub.Close()

	hub.Publish(Event{Name: ExtensionRegistered, Key: "other"})
	hub.Publish(Event{Name: ExtensionRegistered, Key: "artByName"})

	if len(got) != 1 || got[0] != "artByName" {
		t.Errorf("Expected exactly one artByName event, got %v", got)
	}
}

func TestSubscriptionClose(t *testing.T) {
	hub := NewHub()

	calls := 0
	sub := hub.Subscribe(ExtensionRegistered, "view", func(Event) { calls++ })
	if hub.Len() != 1 {
		t.Fatalf("Expected 1 subscription, got %d", hub.Len())
	}

	sub.Close()
	sub.Close()

	hub.Publish(Event{Name: ExtensionRegistered, Key: "view"})
	if calls != 0 {
		t.Errorf("Expected no calls after close, got %d", calls)
	}
	if hub.Len() != 0 {
		t.Errorf("Expected 0 subscriptions, got %d", hub.Len())
	}
}
