package live

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/snarg/mockprep/internal/api"
)

// ── EventBus Publish/Subscribe ────────────────────────────────────────

func TestEventBusPublishSubscribe(t *testing.T) {
	t.Run("subscriber_receives_published_event", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{UserID: "u1"})
		defer cancel()

		eb.Publish(EventData{
			Type:    "interview",
			SubType: "insert",
			UserID:  "u1",
			Payload: map[string]string{"id": "iv-1"},
		})

		select {
		case evt := <-ch:
			if evt.Type != "interview" {
				t.Errorf("Type = %q, want interview", evt.Type)
			}
			if evt.SubType != "insert" {
				t.Errorf("SubType = %q, want insert", evt.SubType)
			}
			if evt.ID == "" {
				t.Error("expected non-empty event ID")
			}
			var payload map[string]string
			if err := json.Unmarshal(evt.Data, &payload); err != nil {
				t.Fatalf("Data is not valid JSON: %v", err)
			}
			if payload["id"] != "iv-1" {
				t.Errorf("payload id = %q, want iv-1", payload["id"])
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("other_users_events_not_delivered", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{UserID: "u1"})
		defer cancel()

		eb.Publish(EventData{Type: "interview", UserID: "u2", Payload: "x"})

		select {
		case evt := <-ch:
			t.Fatalf("should not receive event, got %+v", evt)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("cancel_stops_delivery", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{})
		cancel()
		cancel() // idempotent

		eb.Publish(EventData{Type: "interview", Payload: "x"})

		select {
		case _, ok := <-ch:
			if ok {
				t.Fatal("should not receive event after cancel")
			}
		case <-time.After(50 * time.Millisecond):
		}
		if n := eb.SubscriberCount(); n != 0 {
			t.Errorf("SubscriberCount() = %d, want 0", n)
		}
	})

	t.Run("slow_subscriber_drops", func(t *testing.T) {
		eb := NewEventBus(256)
		_, cancel := eb.Subscribe(api.EventFilter{})
		defer cancel()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 100; i++ {
				eb.Publish(EventData{Type: "interview", Payload: i})
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Publish blocked on a subscriber that never reads")
		}
	})
}

// ── EventBus ReplaySince ─────────────────────────────────────────────

func TestEventBusReplaySince(t *testing.T) {
	t.Run("replay_all_when_empty_lastID", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(EventData{Type: "interview", SubType: "insert", Payload: "a"})
		eb.Publish(EventData{Type: "interview", SubType: "delete", Payload: "b"})

		if n := len(eb.ReplaySince("", api.EventFilter{})); n != 2 {
			t.Fatalf("got %d events, want 2", n)
		}
	})

	t.Run("replay_after_specific_id", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(EventData{Type: "interview", SubType: "insert", Payload: "a"})
		firstID := eb.ReplaySince("", api.EventFilter{})[0].ID

		eb.Publish(EventData{Type: "interview", SubType: "update", Payload: "b"})

		events := eb.ReplaySince(firstID, api.EventFilter{})
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1 (after first)", len(events))
		}
		if events[0].SubType != "update" {
			t.Errorf("SubType = %q, want update", events[0].SubType)
		}
	})

	t.Run("replay_with_user_filter", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(EventData{Type: "interview", UserID: "u1", Payload: "a"})
		eb.Publish(EventData{Type: "interview", UserID: "u2", Payload: "b"})

		events := eb.ReplaySince("", api.EventFilter{UserID: "u2"})
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1 (filtered)", len(events))
		}
		if events[0].UserID != "u2" {
			t.Errorf("UserID = %q, want u2", events[0].UserID)
		}
	})

	t.Run("unknown_lastID_replays_all", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(EventData{Type: "interview", Payload: "a"})

		if n := len(eb.ReplaySince("nonexistent-id", api.EventFilter{})); n != 1 {
			t.Fatalf("got %d events, want 1 (fallback replay all)", n)
		}
	})

	t.Run("ring_wraps", func(t *testing.T) {
		eb := NewEventBus(4)
		for i := 0; i < 10; i++ {
			eb.Publish(EventData{Type: "interview", Payload: i})
		}
		events := eb.ReplaySince("", api.EventFilter{})
		if len(events) != 4 {
			t.Fatalf("got %d events, want 4", len(events))
		}
		if string(events[3].Data) != "9" {
			t.Errorf("newest event data = %s, want 9", events[3].Data)
		}
	})
}

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		name   string
		event  api.SSEEvent
		filter api.EventFilter
		want   bool
	}{
		{"empty_filter_matches_all", api.SSEEvent{Type: "interview", UserID: "u1"}, api.EventFilter{}, true},
		{"user_match", api.SSEEvent{Type: "interview", UserID: "u1"}, api.EventFilter{UserID: "u1"}, true},
		{"user_no_match", api.SSEEvent{Type: "interview", UserID: "u1"}, api.EventFilter{UserID: "u2"}, false},
		{"unowned_event_hidden_from_user", api.SSEEvent{Type: "interview"}, api.EventFilter{UserID: "u1"}, false},
		{"type_match", api.SSEEvent{Type: "interview"}, api.EventFilter{Types: []string{"interview"}}, true},
		{"type_no_match", api.SSEEvent{Type: "interview"}, api.EventFilter{Types: []string{"answer"}}, false},
		{"compound_type_exact_match", api.SSEEvent{Type: "interview", SubType: "delete"}, api.EventFilter{Types: []string{"interview:delete"}}, true},
		{"compound_type_wrong_subtype", api.SSEEvent{Type: "interview", SubType: "insert"}, api.EventFilter{Types: []string{"interview:delete"}}, false},
		{"plain_type_matches_any_subtype", api.SSEEvent{Type: "interview", SubType: "update"}, api.EventFilter{Types: []string{"interview"}}, true},
		{"type_with_spaces", api.SSEEvent{Type: "interview"}, api.EventFilter{Types: []string{" interview "}}, true},
		{"user_and_type_both_required", api.SSEEvent{Type: "interview", UserID: "u2"}, api.EventFilter{UserID: "u1", Types: []string{"interview"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchesFilter(tt.event, tt.filter)
			if got != tt.want {
				t.Errorf("matchesFilter(%+v, %+v) = %v, want %v", tt.event, tt.filter, got, tt.want)
			}
		})
	}
}
