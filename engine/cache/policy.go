package cache

import (
	"github.com/emirpasic/gods/trees/binaryheap"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Policy is a tier's eviction black box (spec.md 4.5 "Eviction
// (CachePolicy)").
type Policy interface {
	// OnUse marks fingerprint as most-recently-used.
	OnUse(fp Fingerprint, size int64)
	// OnInsert records a new entry and returns fingerprints the tier should
	// evict to stay within budget.
	OnInsert(fp Fingerprint, size int64) []Fingerprint
	// OnRemove drops any bookkeeping the policy holds for fp.
	OnRemove(fp Fingerprint)
	// Budget returns the tier's total byte budget.
	Budget() int64
}

// LRUPolicy evicts the least-recently-used entry first once a tier's byte
// budget is exceeded. Grounded on hashicorp/golang-lru's ordered eviction
// list, used here purely for its recency ordering (the byte-budget
// accounting stays outside the library, which only knows entry counts).
type LRUPolicy struct {
	budget int64
	used   int64
	sizes  map[Fingerprint]int64
	order  *lru.Cache[Fingerprint, struct{}]
}

// NewLRUPolicy creates a Policy that evicts by recency once the sum of
// inserted sizes would exceed budgetBytes.
func NewLRUPolicy(budgetBytes int64) *LRUPolicy {
	// A very large capacity: worldlink drives eviction off byte budget, not
	// entry count, so the library's own count-based eviction is disabled by
	// giving it more room than any tier will realistically hold.
	c, _ := lru.New[Fingerprint, struct{}](1 << 20)
	return &LRUPolicy{budget: budgetBytes, sizes: map[Fingerprint]int64{}, order: c}
}

func (p *LRUPolicy) OnUse(fp Fingerprint, size int64) {
	if _, ok := p.sizes[fp]; ok {
		p.order.Get(fp) // touch for recency
	}
}

func (p *LRUPolicy) OnInsert(fp Fingerprint, size int64) []Fingerprint {
	if old, ok := p.sizes[fp]; ok {
		p.used -= old
	}
	p.sizes[fp] = size
	p.used += size
	p.order.Add(fp, struct{}{})

	var evicted []Fingerprint
	for p.used > p.budget {
		oldest, _, ok := p.order.GetOldest()
		if !ok {
			break
		}
		if oldest == fp && len(p.sizes) == 1 {
			// The single entry alone exceeds budget; keep it rather than
			// evict what was just inserted.
			break
		}
		p.order.Remove(oldest)
		p.used -= p.sizes[oldest]
		delete(p.sizes, oldest)
		evicted = append(evicted, oldest)
	}
	return evicted
}

func (p *LRUPolicy) Budget() int64 { return p.budget }

func (p *LRUPolicy) OnRemove(fp Fingerprint) {
	if size, ok := p.sizes[fp]; ok {
		p.used -= size
		delete(p.sizes, fp)
		p.order.Remove(fp)
	}
}

// lfuEntry is one fingerprint's frequency-heap node. Entries are
// immutable once pushed: a frequency change replaces byFp's pointer with
// a freshly pushed entry rather than mutating freq in place, since
// binaryheap has no decrease/increase-key operation to re-sort an
// in-place mutation. seq is a monotonic tiebreaker so entries tied on
// freq compare by age (lower seq, i.e. least recently touched, sorts
// first for eviction) instead of leaving the heap's total order
// dependent on push sequence.
type lfuEntry struct {
	fp   Fingerprint
	freq int64
	size int64
	seq  int64
}

// LFUPolicy evicts the least-frequently-used entry first. Grounded on
// emirpasic/gods' binaryheap, used as a frequency min-heap the way a
// scheduler uses a priority queue for "next to run" — here it answers
// "next to evict". Stale nodes (superseded by a later push for the same
// fingerprint) are left in the heap and discarded lazily on pop, since
// the library has no arbitrary-element delete; byFp always holds the
// live entry for a fingerprint, so pointer identity against byFp is what
// tells a popped node apart from a stale one.
type LFUPolicy struct {
	budget int64
	used   int64
	seq    int64
	byFp   map[Fingerprint]*lfuEntry
	heap   *binaryheap.Heap
}

// NewLFUPolicy creates a Policy that evicts by ascending use frequency once
// the sum of inserted sizes would exceed budgetBytes.
func NewLFUPolicy(budgetBytes int64) *LFUPolicy {
	return &LFUPolicy{
		budget: budgetBytes,
		byFp:   map[Fingerprint]*lfuEntry{},
		heap: binaryheap.NewWith(func(a, b interface{}) int {
			ea, eb := a.(*lfuEntry), b.(*lfuEntry)
			switch {
			case ea.freq != eb.freq:
				if ea.freq < eb.freq {
					return -1
				}
				return 1
			case ea.seq < eb.seq:
				return -1
			case ea.seq > eb.seq:
				return 1
			default:
				return 0
			}
		}),
	}
}

// pushEntry allocates a fresh heap node for fp, replacing whatever byFp
// held before (which becomes a stale node the heap will discard on pop).
func (p *LFUPolicy) pushEntry(fp Fingerprint, freq, size int64) *lfuEntry {
	p.seq++
	e := &lfuEntry{fp: fp, freq: freq, size: size, seq: p.seq}
	p.byFp[fp] = e
	p.heap.Push(e)
	return e
}

func (p *LFUPolicy) OnUse(fp Fingerprint, size int64) {
	old, ok := p.byFp[fp]
	if !ok {
		return
	}
	p.pushEntry(fp, old.freq+1, old.size)
}

func (p *LFUPolicy) OnInsert(fp Fingerprint, size int64) []Fingerprint {
	if old, ok := p.byFp[fp]; ok {
		p.used -= old.size
		p.used += size
		p.pushEntry(fp, old.freq+1, size)
		return p.evictOverBudget(fp)
	}
	p.pushEntry(fp, 1, size)
	p.used += size
	return p.evictOverBudget(fp)
}

func (p *LFUPolicy) evictOverBudget(justInserted Fingerprint) []Fingerprint {
	var evicted []Fingerprint
	for p.used > p.budget && p.heap.Size() > 0 {
		top, _ := p.heap.Peek()
		e := top.(*lfuEntry)
		if live, ok := p.byFp[e.fp]; !ok || live != e {
			p.heap.Pop()
			continue
		}
		if e.fp == justInserted && len(p.byFp) == 1 {
			break
		}
		p.heap.Pop()
		delete(p.byFp, e.fp)
		p.used -= e.size
		evicted = append(evicted, e.fp)
	}
	return evicted
}

func (p *LFUPolicy) Budget() int64 { return p.budget }

func (p *LFUPolicy) OnRemove(fp Fingerprint) {
	if e, ok := p.byFp[fp]; ok {
		p.used -= e.size
		delete(p.byFp, fp)
		// The stale heap node is skipped lazily in evictOverBudget's
		// liveness check rather than removed here; binaryheap has no
		// arbitrary-element delete.
	}
}
