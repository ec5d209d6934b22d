package session

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time {
	return c.current
}

func (c *fakeClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestManager(capacity int, idleTimeout time.Duration) (*Manager, *fakeClock) {
	clock := &fakeClock{current: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return NewManager(capacity, idleTimeout, clock.now), clock
}

func TestGetOrCreateAssignsIDWhenEmpty(t *testing.T) {
	manager, _ := newTestManager(10, time.Hour)

	created := manager.GetOrCreate("")
	if created.ID == "" {
		t.Fatal("expected generated session id")
	}

	again := manager.GetOrCreate(created.ID)
	if again.ID != created.ID {
		t.Fatalf("expected same session, got %q", again.ID)
	}
	if len(manager.List()) != 1 {
		t.Fatalf("expected 1 session, got %d", len(manager.List()))
	}
}

func TestGetOrCreatePurgesIdleSessions(t *testing.T) {
	manager, clock := newTestManager(10, 24*time.Hour)

	manager.GetOrCreate("stale")
	clock.advance(25 * time.Hour)
	manager.GetOrCreate("fresh")

	if _, ok := manager.Get("stale"); ok {
		t.Fatal("expected stale session to be purged")
	}
	if _, ok := manager.Get("fresh"); !ok {
		t.Fatal("expected fresh session to remain")
	}
}

func TestGetOrCreateEvictsLeastRecentlyActive(t *testing.T) {
	manager, clock := newTestManager(3, 24*time.Hour)

	for i := 1; i <= 4; i++ {
		manager.GetOrCreate(fmt.Sprintf("s%d", i))
		clock.advance(time.Minute)
		if got := len(manager.List()); got > 3 {
			t.Fatalf("store exceeded capacity: %d sessions", got)
		}
	}

	if _, ok := manager.Get("s1"); ok {
		t.Fatal("expected oldest session to be evicted")
	}
	for _, id := range []string{"s2", "s3", "s4"} {
		if _, ok := manager.Get(id); !ok {
			t.Fatalf("expected session %s to survive", id)
		}
	}
}

func TestGetOrCreateRefreshProtectsFromEviction(t *testing.T) {
	manager, clock := newTestManager(3, 24*time.Hour)

	for i := 1; i <= 3; i++ {
		manager.GetOrCreate(fmt.Sprintf("s%d", i))
		clock.advance(time.Minute)
	}

	// Touching s1 makes s2 the eviction candidate.
	first := manager.GetOrCreate("s1")
	clock.advance(time.Minute)
	manager.GetOrCreate("s4")

	refreshed, ok := manager.Get("s1")
	if !ok {
		t.Fatal("expected refreshed session to survive")
	}
	if !refreshed.CreatedAt.Equal(first.CreatedAt) {
		t.Fatal("expected refreshed session to keep its history")
	}
	if _, ok := manager.Get("s2"); ok {
		t.Fatal("expected least recently active session to be evicted")
	}
}

func TestSummaryRendersRecentTurns(t *testing.T) {
	manager, _ := newTestManager(10, time.Hour)

	created := manager.GetOrCreate("conv")
	manager.AppendMessage(created.ID, RoleUser, "How is Ethereum doing?", nil)
	manager.AppendMessage(created.ID, RoleAssistant, "Ethereum is trading at $3,400 with rising DEX volume.", nil)

	summary := manager.Summary(created.ID, 10)
	lines := strings.Split(summary, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 summary lines, got %d: %q", len(lines), summary)
	}
	if lines[0] != "User asked: How is Ethereum doing?..." {
		t.Fatalf("unexpected user line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "AI responded about: Ethereum is trading") {
		t.Fatalf("unexpected assistant line: %q", lines[1])
	}
}

func TestSummaryTruncatesLongContentAndHistory(t *testing.T) {
	manager, _ := newTestManager(10, time.Hour)

	created := manager.GetOrCreate("conv")
	long := strings.Repeat("a", 150)
	for i := 0; i < 12; i++ {
		manager.AppendMessage(created.ID, RoleUser, fmt.Sprintf("q%d %s", i, long), nil)
	}

	summary := manager.Summary(created.ID, 10)
	lines := strings.Split(summary, "\n")
	if len(lines) != 10 {
		t.Fatalf("expected last 10 turns, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "User asked: q2 ") {
		t.Fatalf("expected oldest kept turn to be q2, got %q", lines[0])
	}
	for _, line := range lines {
		content := strings.TrimSuffix(strings.TrimPrefix(line, "User asked: "), "...")
		if got := len([]rune(content)); got != 100 {
			t.Fatalf("expected 100-rune preview, got %d: %q", got, line)
		}
	}
}

func TestSummaryUnknownSessionIsEmpty(t *testing.T) {
	manager, _ := newTestManager(10, time.Hour)

	if got := manager.Summary("missing", 10); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestUpdateContextMergesKeys(t *testing.T) {
	manager, _ := newTestManager(10, time.Hour)

	created := manager.GetOrCreate("conv")
	manager.UpdateContext(created.ID, map[string]any{"last_query": "btc", "query_intent": "market_data"})
	manager.UpdateContext(created.ID, map[string]any{"query_intent": "analysis"})

	got, ok := manager.Get(created.ID)
	if !ok {
		t.Fatal("expected session")
	}
	if got.ResearchContext["last_query"] != "btc" {
		t.Fatalf("expected merged context to keep earlier keys, got %+v", got.ResearchContext)
	}
	if got.ResearchContext["query_intent"] != "analysis" {
		t.Fatalf("expected later update to win, got %+v", got.ResearchContext)
	}
}

func TestAppendMessageKeepsAssistantMetadata(t *testing.T) {
	manager, _ := newTestManager(10, time.Hour)

	created := manager.GetOrCreate("conv")
	manager.AppendMessage(created.ID, RoleUser, "how is eth doing", nil)
	manager.AppendMessage(created.ID, RoleAssistant, "Ethereum is up 3% today.", map[string]any{
		"sources_used":       []string{"coinmarketcap"},
		"completeness_score": 65.0,
	})

	got, ok := manager.Get(created.ID)
	if !ok {
		t.Fatal("expected session")
	}
	if got.Messages[0].Metadata != nil {
		t.Fatalf("expected no metadata on user turn, got %+v", got.Messages[0].Metadata)
	}
	meta := got.Messages[1].Metadata
	if meta == nil || meta["completeness_score"] != 65.0 {
		t.Fatalf("expected assistant metadata snapshot, got %+v", meta)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	manager, _ := newTestManager(10, time.Hour)

	created := manager.GetOrCreate("conv")
	manager.AppendMessage(created.ID, RoleUser, "hello", nil)

	snapshot, _ := manager.Get(created.ID)
	snapshot.Messages[0].Content = "mutated"
	snapshot.ResearchContext["injected"] = true

	fresh, _ := manager.Get(created.ID)
	if fresh.Messages[0].Content != "hello" {
		t.Fatal("expected snapshot mutation not to affect stored message")
	}
	if _, ok := fresh.ResearchContext["injected"]; ok {
		t.Fatal("expected snapshot mutation not to affect stored context")
	}
}

func TestListOrdersByRecentActivity(t *testing.T) {
	manager, clock := newTestManager(10, time.Hour)

	manager.GetOrCreate("a")
	clock.advance(time.Minute)
	manager.GetOrCreate("b")
	clock.advance(time.Minute)
	manager.AppendMessage("a", RoleUser, "back again", nil)

	infos := manager.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}
	if infos[0].ID != "a" || infos[1].ID != "b" {
		t.Fatalf("expected most recently active first, got %+v", infos)
	}
	if infos[0].MessageCount != 1 {
		t.Fatalf("unexpected message count: %d", infos[0].MessageCount)
	}
}
