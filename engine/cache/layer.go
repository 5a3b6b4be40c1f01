package cache

import (
	"sync"

	"github.com/xiaonanln/worldlink/engine/gwlog"
)

// Callback receives the SparseData that satisfies a get_data request. sd is
// nil when no tier in the chain holds bytes covering the requested range,
// including when a tier holds only part of it (spec.md 4.5 "If no next
// tier exists, the callback is invoked with NULL").
type Callback func(sd *SparseData)

// Store is the byte-holding half of a tier: where CacheLayer keeps the
// bytes a Policy has decided to keep. Grounded on original_source's
// DiskCache/MemCache split between the eviction policy and the actual
// blob storage; worldlink keeps both concerns in one Store so a tier
// implementation owns its full storage contract.
type Store interface {
	// Get returns the tier's own known bytes for fp, or ok=false if the
	// tier has nothing cached for it.
	Get(fp Fingerprint) (sd *SparseData, ok bool)
	// Put inserts dense into the tier's store for fp, merging with any
	// bytes already held.
	Put(fp Fingerprint, dense *SparseData)
	// Evict destroys whatever the tier holds for fp (spec.md 4.5
	// "destroy_cache_entry").
	Evict(fp Fingerprint)
	// SizeOf returns how many bytes fp currently occupies in this tier.
	SizeOf(fp Fingerprint) int64
}

type pendingRequest struct {
	waiters []Callback
	r       Range
}

// Layer is one tier in a CacheChain (spec.md 4.5 "A cache is a doubly
// linked list of tiers"). name is used only for logging.
type Layer struct {
	name   string
	store  Store
	policy Policy

	mu      sync.Mutex
	pending map[Fingerprint][]*pendingRequest

	prev *Layer // toward memory, smaller/faster
	next *Layer // toward network, larger/slower
}

// NewLayer constructs a chain tier backed by store and evicted by policy.
func NewLayer(name string, store Store, policy Policy) *Layer {
	return &Layer{name: name, store: store, policy: policy, pending: map[Fingerprint][]*pendingRequest{}}
}

// Link connects layers in latency order: mem, then disk, then net.
// Link(a, b, c) makes b.next==c, c.prev==b, a.next==b, b.prev==a.
func Link(layers ...*Layer) {
	for i := 0; i+1 < len(layers); i++ {
		layers[i].next = layers[i+1]
		layers[i+1].prev = layers[i]
	}
}

// GetData is the read path of spec.md 4.5. It returns willCallbackLater:
// false means cb has already run synchronously (a hit at this tier); true
// means cb will run later, from a population step.
func (l *Layer) GetData(fp Fingerprint, r Range, cb Callback) (willCallbackLater bool) {
	l.mu.Lock()

	if sd, ok := l.store.Get(fp); ok && sd.Covers(r, sd.Len()) {
		l.policy.OnUse(fp, l.store.SizeOf(fp))
		l.mu.Unlock()
		cb(sd)
		// Push the retrieved bytes toward smaller/faster tiers (spec.md
		// 4.5 "Population"). This is the sole propagation path: a pending
		// waiter above is answered by onDownstreamPopulated, which does
		// not itself re-populate, to avoid storing the same bytes twice.
		l.populateParentCaches(fp, sd)
		return false
	}

	if l.next == nil {
		l.mu.Unlock()
		cb(nil)
		return false
	}

	// Coalesce: share one downstream request per (fingerprint, overlapping
	// range) (spec.md 4.5 "Coalescing").
	reqs := l.pending[fp]
	for _, req := range reqs {
		if rangesOverlap(req.r, r) {
			req.waiters = append(req.waiters, cb)
			l.mu.Unlock()
			return true
		}
	}
	req := &pendingRequest{waiters: []Callback{cb}, r: r}
	l.pending[fp] = append(reqs, req)
	l.mu.Unlock()

	l.next.GetData(fp, r, func(sd *SparseData) {
		l.onDownstreamPopulated(fp, sd, req)
	})
	return true
}

func rangesOverlap(a, b Range) bool {
	aEnd, bEnd := a.End, b.End
	if a.Open() {
		aEnd = 1 << 62
	}
	if b.Open() {
		bEnd = 1 << 62
	}
	return a.Start < bEnd && b.Start < aEnd
}

// onDownstreamPopulated is invoked once the next tier's request for fp
// resolves (whether synchronously or from further downstream). It removes
// the pending request and answers every waiter coalesced onto it; it does
// not write to this tier's store.
func (l *Layer) onDownstreamPopulated(fp Fingerprint, sd *SparseData, req *pendingRequest) {
	l.mu.Lock()
	reqs := l.pending[fp]
	for i, r := range reqs {
		if r == req {
			l.pending[fp] = append(reqs[:i], reqs[i+1:]...)
			break
		}
	}
	if len(l.pending[fp]) == 0 {
		delete(l.pending, fp)
	}
	waiters := req.waiters
	l.mu.Unlock()

	// l's own store is populated separately, by the resolving tier's
	// populateParentCaches walk up the prev chain, which runs after this
	// callback returns; here only the waiters queued on this tier's pending
	// request need an answer.
	for _, w := range waiters {
		w(sd)
	}
}

// PopulateCache inserts dense into this tier (subject to policy) and
// recurses toward prev, the top tier (spec.md 4.5 "Population"). Re-entrant
// calls for the same fingerprint are safe: the tier's pinning (via the
// callback holding its own SparseData snapshot) means no store mutation can
// invalidate bytes a caller is still reading.
func (l *Layer) PopulateCache(fp Fingerprint, dense *SparseData) {
	l.mu.Lock()
	if budget := l.policy.Budget(); dense.Len() > budget {
		dense = dense.Truncate(budget)
	}
	l.store.Put(fp, dense)
	size := l.store.SizeOf(fp)
	evicted := l.policy.OnInsert(fp, size)
	l.mu.Unlock()

	for _, e := range evicted {
		l.evict(e)
	}

	l.populateParentCaches(fp, dense)
}

func (l *Layer) populateParentCaches(fp Fingerprint, dense *SparseData) {
	if l.prev == nil {
		return // top tier; recursion terminates (spec.md 4.5 "Population")
	}
	l.prev.PopulateCache(fp, dense)
}

func (l *Layer) evict(fp Fingerprint) {
	l.mu.Lock()
	l.store.Evict(fp)
	l.policy.OnRemove(fp)
	l.mu.Unlock()
	gwlog.Debugf("cache: %s evicted %s", l.name, fp)
}

// Chain is the ordered sequence of tiers a caller talks to; get_data always
// enters at the topmost (fastest, smallest) tier.
type Chain struct {
	top *Layer
}

// NewChain builds a Chain from tiers in latency order (fastest first).
func NewChain(layers ...*Layer) *Chain {
	Link(layers...)
	if len(layers) == 0 {
		return &Chain{}
	}
	return &Chain{top: layers[0]}
}

// GetData enters the chain at its top tier.
func (c *Chain) GetData(fp Fingerprint, r Range, cb Callback) (willCallbackLater bool) {
	if c.top == nil {
		cb(nil)
		return false
	}
	return c.top.GetData(fp, r, cb)
}
