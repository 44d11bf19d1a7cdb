package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cb-sidebar-logger/model"
)

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	store := NewEventStore(10)

	first := store.Append(model.Event{Type: model.TypeChat, Message: "a"})
	second := store.Append(model.Event{Type: model.TypeChat, Message: "b"})

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
}

func TestStoreEvictsOldestBeyondCap(t *testing.T) {
	store := NewEventStore(1000)

	for i := 0; i < 1500; i++ {
		store.Append(model.Event{Type: model.TypeChat, Message: fmt.Sprintf("msg %d", i)})
	}

	all := store.All()
	if len(all) != 1000 {
		t.Fatalf("expected exactly 1000 events, got %d", len(all))
	}
	if all[0].ID != 501 || all[len(all)-1].ID != 1500 {
		t.Fatalf("expected the 1000 most recent events (501..1500), got %d..%d", all[0].ID, all[len(all)-1].ID)
	}
}

func TestClearKeepsIDCounter(t *testing.T) {
	store := NewEventStore(10)
	store.Append(model.Event{Type: model.TypeChat})
	store.Append(model.Event{Type: model.TypeChat})

	store.Clear()
	if store.Len() != 0 {
		t.Fatalf("expected empty store after clear, got %d", store.Len())
	}

	next := store.Append(model.Event{Type: model.TypeChat})
	if next.ID != 3 {
		t.Fatalf("id counter must survive clear, got %d", next.ID)
	}
}

func TestAllReturnsSnapshot(t *testing.T) {
	store := NewEventStore(10)
	store.Append(model.Event{Type: model.TypeChat, Message: "original"})

	snapshot := store.All()
	snapshot[0].Message = "mutated"

	if store.All()[0].Message != "original" {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *recordingSink) Append(ev model.Event) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	return ev
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestIngestorStoresInArrivalOrder(t *testing.T) {
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ing := newIngestor(ctx, sink, IngestConfig{ChanBuffer: 10, StatsLogEvery: time.Hour}, nil)

	ing.Enqueue(model.Event{Type: model.TypeChat, Message: "first"})
	ing.Enqueue(model.Event{Type: model.TypeChat, Message: "second"})

	waitForStored(t, sink, 2)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.events[0].Message != "first" || sink.events[1].Message != "second" {
		t.Fatalf("arrival order lost: %+v", sink.events)
	}
}

func TestIngestorNotifiesStoredCallback(t *testing.T) {
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan model.Event, 1)
	ing := newIngestor(ctx, sink, IngestConfig{ChanBuffer: 10, StatsLogEvery: time.Hour}, func(ev model.Event) {
		got <- ev
	})

	ing.Enqueue(model.Event{Type: model.TypeTip, Message: "tip"})

	select {
	case ev := <-got:
		if ev.ID == 0 {
			t.Fatalf("stored callback must see assigned id")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stored callback was not invoked")
	}
}

func TestIngestorDropsOnOverflow(t *testing.T) {
	sink := &recordingSink{}
	// отменяем контекст сразу: писатель не разгребает очередь
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ing := newIngestor(ctx, sink, IngestConfig{ChanBuffer: 1, StatsLogEvery: time.Hour}, nil)
	time.Sleep(20 * time.Millisecond)

	ing.Enqueue(model.Event{Type: model.TypeChat})
	if ok := ing.Enqueue(model.Event{Type: model.TypeChat}); ok {
		t.Fatalf("expected overflow to be reported")
	}
	if ing.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", ing.Dropped())
	}
}

func waitForStored(t *testing.T, sink *recordingSink, expected int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sink.count() >= expected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least %d stored events, got %d", expected, sink.count())
}
