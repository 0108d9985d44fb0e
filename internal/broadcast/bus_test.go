package broadcast

import (
	"slices"
	"sync"
	"testing"
)

func TestBus(t *testing.T) {
	t.Run("PublishFansOutPerTopic", func(t *testing.T) {
		bus := NewBus(4, nil)

		a, cancelA := bus.Subscribe("s1")
		defer cancelA()
		b, cancelB := bus.Subscribe("s1")
		defer cancelB()
		other, cancelOther := bus.Subscribe("s2")
		defer cancelOther()

		if n := bus.Publish("s1", KindSnapshot, "state"); n != 2 {
			t.Fatalf("expected 2 deliveries, got %d", n)
		}

		for _, sub := range []*Subscriber{a, b} {
			ev := <-sub.Events()
			if ev.Kind != KindSnapshot || ev.Topic != "s1" || ev.Payload != "state" {
				t.Errorf("unexpected event: %+v", ev)
			}
		}

		select {
		case ev := <-other.Events():
			t.Errorf("subscriber on another topic received %+v", ev)
		default:
		}
	})

	t.Run("PublishWithoutSubscribers", func(t *testing.T) {
		bus := NewBus(4, nil)
		if n := bus.Publish("nobody", KindProgress, nil); n != 0 {
			t.Errorf("expected 0 deliveries, got %d", n)
		}
	})

	t.Run("FullBufferDrops", func(t *testing.T) {
		bus := NewBus(1, nil)
		sub, cancel := bus.Subscribe("s1")
		defer cancel()

		bus.Publish("s1", KindProgress, 1)
		if n := bus.Publish("s1", KindProgress, 2); n != 0 {
			t.Errorf("expected second publish to be dropped, got %d deliveries", n)
		}
		if bus.Dropped() != 1 {
			t.Errorf("expected 1 dropped event, got %d", bus.Dropped())
		}

		ev := <-sub.Events()
		if ev.Payload != 1 {
			t.Errorf("expected first event to survive, got %v", ev.Payload)
		}
	})

	t.Run("CancelClosesAndUnregisters", func(t *testing.T) {
		bus := NewBus(4, nil)
		sub, cancel := bus.Subscribe("s1")

		if bus.Count("s1") != 1 {
			t.Fatalf("expected 1 subscriber, got %d", bus.Count("s1"))
		}

		cancel()
		cancel()

		if _, ok := <-sub.Events(); ok {
			t.Error("expected events channel to be closed")
		}
		if bus.Count("s1") != 0 || len(bus.Topics()) != 0 {
			t.Errorf("expected empty registry, got %v", bus.Topics())
		}
		if bus.Deliver(sub, Event{Kind: KindProgress}) {
			t.Error("expected Deliver to a cancelled subscriber to fail")
		}
	})

	t.Run("DeliverTargetsOneSubscriber", func(t *testing.T) {
		bus := NewBus(4, nil)
		a, cancelA := bus.Subscribe("s1")
		defer cancelA()
		b, cancelB := bus.Subscribe("s1")
		defer cancelB()

		if !bus.Deliver(a, Event{Kind: KindProgress, Topic: "s1", Payload: 10}) {
			t.Fatal("expected delivery")
		}
		if ev := <-a.Events(); ev.Payload != 10 {
			t.Errorf("unexpected payload %v", ev.Payload)
		}
		select {
		case ev := <-b.Events():
			t.Errorf("other subscriber received %+v", ev)
		default:
		}
	})

	t.Run("Topics", func(t *testing.T) {
		bus := NewBus(4, nil)
		_, c1 := bus.Subscribe("a")
		defer c1()
		_, c2 := bus.Subscribe("b")
		defer c2()

		topics := bus.Topics()
		slices.Sort(topics)
		if !slices.Equal(topics, []string{"a", "b"}) {
			t.Errorf("unexpected topics %v", topics)
		}
	})

	t.Run("ConcurrentPublishAndCancel", func(t *testing.T) {
		bus := NewBus(2, nil)
		var wg sync.WaitGroup

		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, cancel := bus.Subscribe("s1")
				for i := range 20 {
					bus.Publish("s1", KindProgress, i)
				}
				cancel()
			}()
		}
		wg.Wait()

		if bus.Count("s1") != 0 {
			t.Errorf("expected all subscribers removed, got %d", bus.Count("s1"))
		}
	})
}
