package eventbus

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypeRelayCreated, Data: "42"})

	for i, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Type != TypeRelayCreated || e.Data != "42" {
				t.Fatalf("sub %d: unexpected event %+v", i, e)
			}
			if e.Time.IsZero() {
				t.Fatalf("sub %d: time not stamped", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("sub %d: no event", i)
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeRelayUpdated})
	b.Publish(Event{Type: TypeRelayUpdated})
	b.Publish(Event{Type: TypeRelayUpdated})

	if got := b.(Stats).Dropped(); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()

	if _, ok := <-ch; ok {
		t.Fatal("channel still open")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: TypeRelayFailed})
}

func TestNopBus(t *testing.T) {
	b := Nop()
	ch, unsub := b.Subscribe(4)
	b.Publish(Event{Type: TypeRelayCreated})
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("nop channel delivered an event")
	}
}
