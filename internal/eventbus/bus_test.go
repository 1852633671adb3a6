package eventbus

import "testing"

func TestPublishFanout(t *testing.T) {
	t.Parallel()
	b := New()
	a, unsubA := b.Subscribe(2)
	c, unsubC := b.Subscribe(2)
	defer unsubC()

	b.Publish(Event{Type: TypeOpeningDetected, Data: "Space 220"})

	for name, ch := range map[string]<-chan Event{"a": a, "c": c} {
		select {
		case e := <-ch:
			if e.Type != TypeOpeningDetected || e.Time.IsZero() {
				t.Fatalf("%s: unexpected event %+v", name, e)
			}
		default:
			t.Fatalf("%s: expected event", name)
		}
	}

	unsubA()
	unsubA()
	if _, ok := <-a; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	// Publishing after an unsubscribe must not panic.
	b.Publish(Event{Type: TypeSMSPaused})
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeNotifySent})
	b.Publish(Event{Type: TypeNotifyFailed})

	if e := <-ch; e.Type != TypeNotifySent {
		t.Fatalf("got %q, want first event kept", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("unexpected second event %+v", e)
	default:
	}
}
