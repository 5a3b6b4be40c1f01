package event

import (
	"testing"

	"github.com/xiaonanln/worldlink/engine/gwtime"
)

func drain(d *Dispatcher) {
	d.Process(gwtime.Instant{})
}

func TestSpecificListenerReceivesMatchingEvent(t *testing.T) {
	clock := gwtime.NewFake()
	d := NewDispatcher(clock)

	var got *Event
	d.Subscribe(IdPair{Primary: 1, Secondary: 7}, func(ev *Event) Response {
		got = ev
		return NOP
	}, NullSubscriptionId, MIDDLE)

	ev := &Event{Id: IdPair{Primary: 1, Secondary: 7}, Payload: "hi"}
	d.Fire(ev)
	drain(d)

	if got != ev {
		t.Fatalf("listener did not receive the fired event")
	}
}

func TestGenericListenerFiresForAnySecondary(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())

	var count int
	d.SubscribeAll(1, func(ev *Event) Response {
		count++
		return NOP
	}, NullSubscriptionId, MIDDLE)

	d.Fire(&Event{Id: IdPair{Primary: 1, Secondary: 7}})
	d.Fire(&Event{Id: IdPair{Primary: 1, Secondary: 99}})
	drain(d)

	if count != 2 {
		t.Fatalf("expected generic listener to fire twice, got %d", count)
	}
}

func TestDispatchOrderBandsThenSpecificBeforeGeneric(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())

	var order []string
	idp := IdPair{Primary: 1, Secondary: 7}

	d.Subscribe(idp, func(ev *Event) Response { order = append(order, "specific-late"); return NOP }, NullSubscriptionId, LATE)
	d.SubscribeAll(1, func(ev *Event) Response { order = append(order, "generic-early"); return NOP }, NullSubscriptionId, EARLY)
	d.Subscribe(idp, func(ev *Event) Response { order = append(order, "specific-early"); return NOP }, NullSubscriptionId, EARLY)
	d.SubscribeAll(1, func(ev *Event) Response { order = append(order, "generic-middle"); return NOP }, NullSubscriptionId, MIDDLE)

	d.Fire(&Event{Id: idp})
	drain(d)

	want := []string{"specific-early", "generic-early", "generic-middle", "specific-late"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestCancelEventStopsFurtherDelivery(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())
	idp := IdPair{Primary: 1, Secondary: 7}

	var secondCalled bool
	d.Subscribe(idp, func(ev *Event) Response { return CancelEvent }, NullSubscriptionId, EARLY)
	d.Subscribe(idp, func(ev *Event) Response { secondCalled = true; return NOP }, NullSubscriptionId, MIDDLE)

	d.Fire(&Event{Id: idp})
	drain(d)

	if secondCalled {
		t.Fatalf("listener after CancelEvent should not have been called")
	}
}

func TestDeleteListenerRemovesSubscription(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())
	idp := IdPair{Primary: 1, Secondary: 7}

	calls := 0
	d.Subscribe(idp, func(ev *Event) Response {
		calls++
		return DeleteListener
	}, NullSubscriptionId, MIDDLE)

	d.Fire(&Event{Id: idp})
	drain(d)
	d.Fire(&Event{Id: idp})
	drain(d)

	if calls != 1 {
		t.Fatalf("expected exactly 1 call before self-deletion, got %d", calls)
	}
}

func TestNamedSubscriptionReplacement(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())
	idp := IdPair{Primary: 1, Secondary: 7}
	const id SubscriptionId = "handler-x"

	var which string
	d.Subscribe(idp, func(ev *Event) Response { which = "first"; return NOP }, id, MIDDLE)
	d.Subscribe(idp, func(ev *Event) Response { which = "second"; return NOP }, id, MIDDLE)

	d.Fire(&Event{Id: idp})
	drain(d)

	if which != "second" {
		t.Fatalf("expected the replacement listener to fire, got %q", which)
	}
}

func TestListenerPanicTreatedAsNop(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())
	idp := IdPair{Primary: 1, Secondary: 7}

	var afterCalled bool
	d.Subscribe(idp, func(ev *Event) Response { panic("boom") }, NullSubscriptionId, EARLY)
	d.Subscribe(idp, func(ev *Event) Response { afterCalled = true; return NOP }, NullSubscriptionId, MIDDLE)

	d.Fire(&Event{Id: idp})
	drain(d)

	if !afterCalled {
		t.Fatalf("a panicking listener must not cancel the event for later listeners")
	}
}

// S3: L1(EARLY), L2(MIDDLE), L3(MIDDLE) subscribed at (P=1,S=7). L2's
// handler unsubscribes L3 and subscribes L4 at MIDDLE. Firing E(1,7): L1,
// L2, L3 all receive E (L3's removal is deferred); L4 does not. A
// subsequent E2(1,7) reaches L1, L2, L4 only.
func TestS3ReentrantUnsubscribe(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())
	idp := IdPair{Primary: 1, Secondary: 7}

	var calls []string
	const l3Id SubscriptionId = "L3"
	const l4Id SubscriptionId = "L4"

	l1 := func(ev *Event) Response { calls = append(calls, "L1"); return NOP }
	l3 := func(ev *Event) Response { calls = append(calls, "L3"); return NOP }
	l4 := func(ev *Event) Response { calls = append(calls, "L4"); return NOP }
	var l2 Listener
	l2 = func(ev *Event) Response {
		calls = append(calls, "L2")
		d.Unsubscribe(l3Id)
		d.Subscribe(idp, l4, l4Id, MIDDLE)
		return NOP
	}

	d.Subscribe(idp, l1, NullSubscriptionId, EARLY)
	d.Subscribe(idp, l2, NullSubscriptionId, MIDDLE)
	d.Subscribe(idp, l3, l3Id, MIDDLE)

	d.Fire(&Event{Id: idp})
	drain(d)

	want1 := []string{"L1", "L2", "L3"}
	if len(calls) != len(want1) {
		t.Fatalf("first event: calls = %v, want %v", calls, want1)
	}
	for i := range want1 {
		if calls[i] != want1[i] {
			t.Fatalf("first event: calls = %v, want %v", calls, want1)
		}
	}

	calls = nil
	d.Fire(&Event{Id: idp})
	drain(d)

	want2 := []string{"L1", "L2", "L4"}
	if len(calls) != len(want2) {
		t.Fatalf("second event: calls = %v, want %v", calls, want2)
	}
	for i := range want2 {
		if calls[i] != want2[i] {
			t.Fatalf("second event: calls = %v, want %v", calls, want2)
		}
	}
}

func TestProcessRespectsDeadline(t *testing.T) {
	clock := gwtime.NewFake()
	d := NewDispatcher(clock)
	idp := IdPair{Primary: 1, Secondary: 7}

	var count int
	d.Subscribe(idp, func(ev *Event) Response { count++; return NOP }, NullSubscriptionId, MIDDLE)

	d.Fire(&Event{Id: idp})
	d.Fire(&Event{Id: idp})

	past := clock.Now() // deadline already reached, nothing should drain
	d.Process(past)

	if count != 0 {
		t.Fatalf("expected 0 events processed before the deadline is advanced, got %d", count)
	}
	if !d.Pending() {
		t.Fatalf("queue should still have pending events")
	}
}

func TestNestedDispatchFiresAnotherEvent(t *testing.T) {
	d := NewDispatcher(gwtime.NewFake())
	idpA := IdPair{Primary: 1, Secondary: 1}
	idpB := IdPair{Primary: 2, Secondary: 1}

	var bFired bool
	d.Subscribe(idpB, func(ev *Event) Response { bFired = true; return NOP }, NullSubscriptionId, MIDDLE)
	d.Subscribe(idpA, func(ev *Event) Response {
		d.Fire(&Event{Id: idpB})
		return NOP
	}, NullSubscriptionId, MIDDLE)

	d.Fire(&Event{Id: idpA})
	drain(d)

	if !bFired {
		t.Fatalf("nested fire from within a listener should still be delivered")
	}
}
