package engine

import (
	"fmt"
	"testing"
	"time"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch1, unsub1 := b.Subscribe("batch-1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("batch-1")
	defer unsub2()

	b.Publish(Event{BatchID: "batch-1", Index: 1, Success: true})

	for _, ch := range []<-chan Event{ch1, ch2} {
		if ev := receive(t, ch); ev.Index != 1 || !ev.Success {
			t.Errorf("event = %+v", ev)
		}
	}
}

func TestBrokerIsolatesBatches(t *testing.T) {
	b := NewBroker()
	ch, unsub := b.Subscribe("batch-1")
	defer unsub()

	b.Publish(Event{BatchID: "batch-2", Index: 9})
	b.Publish(Event{BatchID: "batch-1", Index: 1})

	if ev := receive(t, ch); ev.Index != 1 {
		t.Errorf("received event for another batch: %+v", ev)
	}
}

func TestBrokerCloseClosesSubscribers(t *testing.T) {
	b := NewBroker()
	ch, _ := b.Subscribe("batch-1")

	b.Close("batch-1")

	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}
	b.Publish(Event{BatchID: "batch-1"})
}

func TestBrokerLateSubscriber(t *testing.T) {
	b := NewBroker()
	b.Close("batch-1")

	ch, unsub := b.Subscribe("batch-1")
	defer unsub()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("late subscriber received an event")
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber channel not closed")
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	ch, unsub := b.Subscribe("batch-1")
	unsub()

	b.Publish(Event{BatchID: "batch-1", Index: 1})

	select {
	case ev := <-ch:
		t.Errorf("unsubscribed channel received %+v", ev)
	default:
	}
}

func TestBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ch, unsub := b.Subscribe("batch-1")
	defer unsub()

	for i := range subscriberBufferSize + 10 {
		b.Publish(Event{BatchID: "batch-1", Index: i})
	}
	if len(ch) != subscriberBufferSize {
		t.Errorf("buffered = %d, want %d", len(ch), subscriberBufferSize)
	}
}

func TestBrokerEvictsOldClosedTopics(t *testing.T) {
	b := NewBroker()
	for i := range maxClosedTopics + 50 {
		id := fmt.Sprintf("batch-%d", i)
		b.Close(id)
		b.Close(id)
	}

	b.mu.Lock()
	topics, closed := len(b.topics), len(b.closed)
	_, oldest := b.topics["batch-0"]
	b.mu.Unlock()

	if topics != maxClosedTopics || closed != maxClosedTopics {
		t.Errorf("retained %d topics, %d markers, want %d", topics, closed, maxClosedTopics)
	}
	if oldest {
		t.Error("oldest closed marker was not evicted")
	}

	ch, unsub := b.Subscribe(fmt.Sprintf("batch-%d", maxClosedTopics+49))
	defer unsub()
	if _, ok := <-ch; ok {
		t.Error("recent finished batch did not yield a closed channel")
	}
}
