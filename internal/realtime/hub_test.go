package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventAnalysisCompleted, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventAnalysisCompleted},
	}}

	completed := &Event{Type: EventAnalysisCompleted}
	started := &Event{Type: EventAnalysisStarted}

	if !h.shouldSend(client, completed) {
		t.Error("Should receive analysis_completed events")
	}
	if h.shouldSend(client, started) {
		t.Error("Should NOT receive analysis_started events")
	}
}

func TestShouldSend_PoolFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		PoolAddrs: []string{"0xpool1"},
	}}

	matching := &Event{
		Type: EventAnalysisCompleted,
		Data: map[string]any{"pool_address": "0xpool1", "risk_score": 42.0},
	}
	notMatching := &Event{
		Type: EventAnalysisCompleted,
		Data: map[string]any{"pool_address": "0xpool2", "risk_score": 42.0},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on pool address")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match unrelated pools")
	}
}

func TestShouldSend_MinRiskScoreFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		MinRiskScore: 60.0,
	}}

	high := &Event{
		Type: EventAnalysisCompleted,
		Data: map[string]any{"pool_address": "0xpool", "risk_score": 75.0},
	}
	low := &Event{
		Type: EventAnalysisCompleted,
		Data: map[string]any{"pool_address": "0xpool", "risk_score": 20.0},
	}
	started := &Event{
		Type: EventAnalysisStarted,
		Data: map[string]any{"pool_address": "0xpool"},
	}

	if !h.shouldSend(client, high) {
		t.Error("Should receive high-score analyses")
	}
	if h.shouldSend(client, low) {
		t.Error("Should NOT receive low-score analyses")
	}
	if !h.shouldSend(client, started) {
		t.Error("MinRiskScore filter should only apply to completed analyses")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventAnalysisCompleted, Data: map[string]any{}}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription should receive everything")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle tests
// ---------------------------------------------------------------------------

func TestHub_RegisterUnregister(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{hub: h, send: make(chan []byte, 1), sub: Subscription{AllEvents: true}}
	h.register <- client

	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 1
	})

	h.unregister <- client
	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 0
	})

	if _, open := <-client.send; open {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_BroadcastDelivery(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{hub: h, send: make(chan []byte, 4), sub: Subscription{AllEvents: true}}
	h.register <- client
	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 1
	})

	h.BroadcastAnalysisCompleted("0xpool", 68, "HIGH")

	select {
	case raw := <-client.send:
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != EventAnalysisCompleted {
			t.Errorf("type = %s, want %s", event.Type, EventAnalysisCompleted)
		}
		data := event.Data.(map[string]any)
		if data["pool_address"] != "0xpool" {
			t.Errorf("pool_address = %v", data["pool_address"])
		}
		if data["risk_level"] != "HIGH" {
			t.Errorf("risk_level = %v", data["risk_level"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Zero-capacity channel: the first broadcast cannot be queued.
	slow := &Client{hub: h, send: make(chan []byte), sub: Subscription{AllEvents: true}}
	h.register <- slow
	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 1
	})

	h.BroadcastAnalysisCompleted("0xpool", 10, "LOW")

	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 0
	})
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	client := &Client{hub: h, send: make(chan []byte, 1), sub: Subscription{AllEvents: true}}
	h.register <- client
	waitFor(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients) == 1
	})

	cancel()

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not shut down")
	}
	if _, open := <-client.send; open {
		t.Error("client send channel should be closed on shutdown")
	}
}

func TestHub_Stats(t *testing.T) {
	h := testHub()
	stats := h.Stats()
	if stats["connectedClients"].(int) != 0 {
		t.Errorf("connectedClients = %v, want 0", stats["connectedClients"])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
