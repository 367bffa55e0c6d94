package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeSkillCreated, Data: map[string]string{"name": "go-testing"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: skill.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"name":"go-testing"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestPublishSkillEvent_CatalogThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// First event should trigger catalog.updated.
	b.PublishSkillEvent("created", "a")
	// Second event immediately should NOT trigger another one.
	b.PublishSkillEvent("saved", "b")
	// Unknown kinds are ignored entirely.
	b.PublishSkillEvent("renamed", "c")

	time.Sleep(50 * time.Millisecond)
	catalogCount := 0
	skillCount := 0
	for _, s := range drain(ch) {
		if strings.Contains(s, TypeCatalogUpdated) {
			catalogCount++
		} else {
			skillCount++
		}
	}

	if skillCount != 2 {
		t.Errorf("skill events = %d, want 2", skillCount)
	}
	if catalogCount != 1 {
		t.Errorf("catalog events = %d, want 1 (throttled)", catalogCount)
	}
}

func TestSessionFiltering(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	mine := b.Subscribe("s1")
	other := b.Subscribe("s2")
	all := b.Subscribe("")

	b.Publish(Event{Type: TypeNotification, Session: "s1", Data: map[string]string{"message": "Saved"}})
	b.Publish(Event{Type: TypeSkillUpdated, Data: map[string]string{"name": "x"}})
	time.Sleep(50 * time.Millisecond)

	if got := drain(mine); len(got) != 2 {
		t.Errorf("s1 got %d events, want 2", len(got))
	}
	if got := drain(other); len(got) != 1 || !strings.Contains(got[0], TypeSkillUpdated) {
		t.Errorf("s2 got %q, want only the broadcast", got)
	}
	if got := drain(all); len(got) != 2 {
		t.Errorf("unfiltered client got %d events, want 2", len(got))
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?session=abc", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: TypeSkillUpdated, Data: map[string]string{"name": "x"}})
	b.Publish(Event{Type: TypeNotification, Session: "other", Data: map[string]string{"message": "hidden"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: skill.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, "hidden") {
		t.Errorf("handler leaked another session's event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Overfilling the client buffer must not block the broker.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	if b.ClientCount() != 1 {
		t.Error("broker loop stalled")
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: TypeSkillUpdated, Data: map[string]string{"name": "x"}})
	b.PublishSkillEvent("updated", "x")
}

func TestFormat(t *testing.T) {
	raw, err := Format(Event{Type: TypeSkillSaved, Data: map[string]string{"name": "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "event: skill.saved\ndata: {\"name\":\"a\"}\n\n" {
		t.Errorf("format = %q", raw)
	}
}
