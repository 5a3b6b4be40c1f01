// Package event implements the typed, ordered event dispatcher of
// spec.md 4.4. It is grounded on original_source's Iridium::Task::EventManager
// (EventManager.hpp): the same PrimaryListenerMap/SecondaryListenerMap split
// between specific and generic listeners, a nested-dispatch depth counter in
// place of the original's "processing" flag guarding re-entrant unsubscribe,
// and the same removeId-based named replacement, rebuilt with Go maps/slices
// in place of the original's HashMap/std::list, and a single Event struct
// with an opaque Payload in place of the EventBase template parameter.
package event

import (
	"sync"

	"github.com/google/uuid"
	"github.com/xiaonanln/worldlink/engine/gwlog"
	"github.com/xiaonanln/worldlink/engine/gwtime"
	"github.com/xiaonanln/worldlink/engine/gwutils"
)

// Primary identifies an event family; Secondary identifies the subject
// within that family (spec.md 3 "Event").
type Primary uint32
type Secondary uint64

// IdPair is the two-level key events and subscriptions are matched on.
type IdPair struct {
	Primary   Primary
	Secondary Secondary
}

// EventOrder is one of the three intra-event priority bands (spec.md 3
// "Listener chain").
type EventOrder int

const (
	EARLY EventOrder = iota
	MIDDLE
	LATE
	numEventOrder
)

// Response is the bitset a Listener returns (spec.md 4.4 "Return codes").
type Response int

const (
	NOP            Response = 0
	DeleteListener Response = 1 << 0
	CancelEvent    Response = 1 << 1
)

// SubscriptionId names a subscription for later unsubscribe (spec.md 3
// "SubscriptionId"). The zero value is the null id: subscriptions made with
// it can only be removed by returning DeleteListener from the listener
// itself.
type SubscriptionId string

// NullSubscriptionId is the implicit id used by anonymous subscriptions.
const NullSubscriptionId SubscriptionId = ""

// NewSubscriptionId generates a fresh, collision-free id for callers that
// want a named subscription without picking their own identifier.
func NewSubscriptionId() SubscriptionId {
	return SubscriptionId(uuid.NewString())
}

// Event is an immutable, shared-by-handle record (spec.md 3 "Event").
// Payload carries whatever domain data the Primary implies; the dispatcher
// never inspects it.
type Event struct {
	Id      IdPair
	Payload interface{}
}

// Listener observes events for a matching IdPair or Primary.
type Listener func(ev *Event) Response

type listenerEntry struct {
	id       SubscriptionId
	listener Listener
	removed  bool // tombstoned by a deferred or re-entrant unsubscribe
}

// orderedList holds one bucket's listeners, split into the three
// EventOrder bands, mirroring PartiallyOrderedListenerList.
type orderedList [numEventOrder][]*listenerEntry

func (ol *orderedList) insert(order EventOrder, e *listenerEntry) {
	ol[order] = append(ol[order], e)
}

// forEachInBand walks a single band, skipping tombstoned entries, and
// reports whether visit asked to keep going (false means stop).
func (ol *orderedList) forEachInBand(band EventOrder, visit func(e *listenerEntry) bool) bool {
	for _, e := range ol[band] {
		if e.removed {
			continue
		}
		if !visit(e) {
			return false
		}
	}
	return true
}

func (ol *orderedList) empty() bool {
	for band := EventOrder(0); band < numEventOrder; band++ {
		if len(ol[band]) > 0 {
			return false
		}
	}
	return true
}

// compact drops tombstoned entries from every band. Only safe to call when
// nothing is iterating this list.
func (ol *orderedList) compact() {
	for band := EventOrder(0); band < numEventOrder; band++ {
		kept := ol[band][:0]
		for _, e := range ol[band] {
			if !e.removed {
				kept = append(kept, e)
			}
		}
		ol[band] = kept
	}
}

type primaryBucket struct {
	specific map[Secondary]*orderedList
	generic  orderedList
}

func newPrimaryBucket() *primaryBucket {
	return &primaryBucket{specific: map[Secondary]*orderedList{}}
}

// deferredOp is a subscribe or unsubscribe requested while dispatch is in
// progress (spec.md 4.4 "Re-entrancy discipline").
type deferredOp struct {
	subscribe bool

	// subscribe fields
	key      interface{} // IdPair or Primary
	listener Listener
	id       SubscriptionId
	order    EventOrder

	// unsubscribe field
	removeId SubscriptionId
}

// Dispatcher is a typed, ordered, re-entrancy-safe event fan-out (spec.md
// 4.4). Grounded on original_source's EventManager<EventBase>; the deferred
// mUnsubscribeList/"mProcessing" pair is generalized into a single
// deferredOps queue that also carries deferred subscribes, and mUnprocessed
// becomes an explicit FIFO drained by Process the way engine/post.Queue
// drains its callbacks.
type Dispatcher struct {
	mu sync.Mutex

	buckets map[Primary]*primaryBucket
	byId    map[SubscriptionId]struct {
		primary   Primary
		secondary Secondary
		hasSecond bool
	}

	queue []*Event

	depth    int // nested-dispatch depth; deferred ops apply only at depth 0
	deferred []deferredOp

	clock gwtime.TimeSource
}

// NewDispatcher constructs an empty Dispatcher. clock is used by Process to
// decide when to stop draining the queue.
func NewDispatcher(clock gwtime.TimeSource) *Dispatcher {
	return &Dispatcher{
		buckets: map[Primary]*primaryBucket{},
		byId: map[SubscriptionId]struct {
			primary   Primary
			secondary Secondary
			hasSecond bool
		}{},
		clock: clock,
	}
}

func (d *Dispatcher) bucket(p Primary) *primaryBucket {
	b, ok := d.buckets[p]
	if !ok {
		b = newPrimaryBucket()
		d.buckets[p] = b
	}
	return b
}

// Subscribe registers listener for the specific (Primary, Secondary) pair.
// If id is non-null and already subscribed, the prior holder is unsubscribed
// atomically before the new listener is installed (spec.md 4.4 "Named
// subscription replacement").
func (d *Dispatcher) Subscribe(idp IdPair, listener Listener, id SubscriptionId, order EventOrder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribeLocked(idp, listener, id, order)
}

// SubscribeAll registers a generic listener that fires for every Secondary
// under primary.
func (d *Dispatcher) SubscribeAll(primary Primary, listener Listener, id SubscriptionId, order EventOrder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribeLocked(primary, listener, id, order)
}

func (d *Dispatcher) subscribeLocked(key interface{}, listener Listener, id SubscriptionId, order EventOrder) {
	if d.depth > 0 {
		d.deferred = append(d.deferred, deferredOp{subscribe: true, key: key, listener: listener, id: id, order: order})
		return
	}
	d.applySubscribe(key, listener, id, order)
}

func (d *Dispatcher) applySubscribe(key interface{}, listener Listener, id SubscriptionId, order EventOrder) {
	if id != NullSubscriptionId {
		d.applyUnsubscribe(id)
	}

	entry := &listenerEntry{id: id, listener: listener}

	switch k := key.(type) {
	case IdPair:
		b := d.bucket(k.Primary)
		ol, ok := b.specific[k.Secondary]
		if !ok {
			ol = &orderedList{}
			b.specific[k.Secondary] = ol
		}
		ol.insert(order, entry)
		if id != NullSubscriptionId {
			d.byId[id] = struct {
				primary   Primary
				secondary Secondary
				hasSecond bool
			}{k.Primary, k.Secondary, true}
		}
	case Primary:
		b := d.bucket(k)
		b.generic.insert(order, entry)
		if id != NullSubscriptionId {
			d.byId[id] = struct {
				primary   Primary
				secondary Secondary
				hasSecond bool
			}{k, 0, false}
		}
	default:
		gwlog.Panicf("event: subscribeLocked called with unknown key type %T", key)
	}
}

// Unsubscribe removes the subscription registered under id. A no-op if id is
// unknown or null. If called during dispatch, the removal is deferred per
// spec.md 4.4.
func (d *Dispatcher) Unsubscribe(id SubscriptionId) {
	if id == NullSubscriptionId {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.depth > 0 {
		d.deferred = append(d.deferred, deferredOp{subscribe: false, removeId: id})
		return
	}
	d.applyUnsubscribe(id)
}

func (d *Dispatcher) applyUnsubscribe(id SubscriptionId) {
	loc, ok := d.byId[id]
	if !ok {
		return
	}
	delete(d.byId, id)

	b, ok := d.buckets[loc.primary]
	if !ok {
		return
	}

	var ol *orderedList
	if loc.hasSecond {
		ol = b.specific[loc.secondary]
	} else {
		ol = &b.generic
	}
	if ol == nil {
		return
	}
	for band := EventOrder(0); band < numEventOrder; band++ {
		for _, e := range ol[band] {
			if e.id == id {
				e.removed = true
			}
		}
	}
	if loc.hasSecond && ol.empty() {
		delete(b.specific, loc.secondary)
	}
}

// Fire appends ev to the unprocessed queue (spec.md 4.4 "Queue and
// pacing"). It does not dispatch synchronously.
func (d *Dispatcher) Fire(ev *Event) {
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
}

// Pending reports whether Process has work left to do.
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) > 0
}

// Process drains the FIFO queue, dispatching one event at a time, until the
// queue empties or the clock reaches deadline (spec.md 4.4 "Queue and
// pacing"). Each event's listener order follows the rule of 4.4; ordering
// between events is strictly FIFO.
func (d *Dispatcher) Process(deadline gwtime.Instant) {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		if d.clock != nil && !deadline.IsZero() && !d.clock.Now().Before(deadline) {
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.dispatch(ev)
	}
}

// dispatch runs one event to completion: EARLY/MIDDLE/LATE bands, specific
// listeners before generic within each band (spec.md 4.4 "Dispatch order").
// Re-entrant Fire/Subscribe/Unsubscribe calls made from a listener are safe:
// nested dispatch recurses; subscribe/unsubscribe made while depth > 0 are
// deferred and applied only once depth returns to zero.
func (d *Dispatcher) dispatch(ev *Event) {
	d.mu.Lock()
	d.depth++
	b, hasBucket := d.buckets[ev.Id.Primary]
	var specific *orderedList
	if hasBucket {
		specific = b.specific[ev.Id.Secondary]
	}
	d.mu.Unlock()

	cancelled := false
	deleteIds := make([]SubscriptionId, 0, 4)

	runBand := func(ol *orderedList, band EventOrder) {
		if ol == nil || cancelled {
			return
		}
		ol.forEachInBand(band, func(e *listenerEntry) bool {
			resp := d.invoke(e.listener, ev)
			if resp&DeleteListener != 0 {
				e.removed = true
				if e.id != NullSubscriptionId {
					deleteIds = append(deleteIds, e.id)
				}
			}
			if resp&CancelEvent != 0 {
				cancelled = true
				return false
			}
			return true
		})
	}

	// spec.md 4.4 "Dispatch order": band-outer, listener-kind-inner -- for
	// each band in turn, its specific listeners run before its generic ones,
	// not all specific bands before any generic band.
	for band := EventOrder(0); band < numEventOrder; band++ {
		runBand(specific, band)
		if hasBucket {
			runBand(&b.generic, band)
		}
	}

	d.mu.Lock()
	for _, id := range deleteIds {
		delete(d.byId, id)
	}
	if specific != nil {
		specific.compact()
	}
	if hasBucket {
		b.generic.compact()
		for sec, ol := range b.specific {
			if ol.empty() {
				delete(b.specific, sec)
			}
		}
	}

	d.depth--
	if d.depth == 0 {
		d.drainDeferred()
	}
	d.mu.Unlock()
}

// invoke calls listener with panic containment (spec.md 4.4 "Failure": a
// panicking listener is logged and treated as NOP, never cancels the event).
func (d *Dispatcher) invoke(listener Listener, ev *Event) (resp Response) {
	gwutils.RunPaniclessNamed("event", func() {
		resp = listener(ev)
	})
	return
}

// drainDeferred applies every subscribe/unsubscribe queued while depth > 0.
// Must be called with mu held and depth == 0.
func (d *Dispatcher) drainDeferred() {
	ops := d.deferred
	d.deferred = nil
	for _, op := range ops {
		if op.subscribe {
			d.applySubscribe(op.key, op.listener, op.id, op.order)
		} else {
			d.applyUnsubscribe(op.removeId)
		}
	}
}
