package events

import (
	"testing"

	"github.com/valentinpelus/alertdesk/pkg/types"
)

func TestBusPublish(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe("T1", 1)
	b := bus.Subscribe("T2", 1)

	if n := bus.Publish(types.Alert{ID: "1", Text: "hello"}); n != 2 {
		t.Fatalf("Publish() = %d, want 2", n)
	}

	for _, sub := range []*Subscription{a, b} {
		got := <-sub.Alerts()
		if got.Text != "hello" {
			t.Errorf("got %q, want hello", got.Text)
		}
	}
}

func TestBusResubscribeReplaces(t *testing.T) {
	bus := NewBus(nil)
	old := bus.Subscribe("T1", 1)
	cur := bus.Subscribe("T1", 1)

	if _, ok := <-old.Alerts(); ok {
		t.Error("old subscription should be closed")
	}
	if bus.Len() != 1 {
		t.Errorf("Len() = %d, want 1", bus.Len())
	}

	if n := bus.Publish(types.Alert{ID: "1"}); n != 1 {
		t.Errorf("Publish() = %d, want 1", n)
	}
	if _, ok := <-cur.Alerts(); !ok {
		t.Error("current subscription should receive")
	}

	// cancelling the stale subscription must not remove the new one
	old.Cancel()
	if bus.Len() != 1 {
		t.Errorf("Len() = %d after stale cancel, want 1", bus.Len())
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	var dropped []string
	bus := NewBus(func(key string) { dropped = append(dropped, key) })
	bus.Subscribe("T1", 1)

	bus.Publish(types.Alert{ID: "1"})
	if n := bus.Publish(types.Alert{ID: "2"}); n != 0 {
		t.Errorf("Publish() = %d, want 0", n)
	}
	if len(dropped) != 1 || dropped[0] != "T1" {
		t.Errorf("dropped = %v", dropped)
	}
}

func TestBusCancel(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("T1", 0)
	sub.Cancel()
	sub.Cancel()

	if bus.Len() != 0 {
		t.Errorf("Len() = %d, want 0", bus.Len())
	}
	if n := bus.Publish(types.Alert{}); n != 0 {
		t.Errorf("Publish() = %d, want 0", n)
	}
}
