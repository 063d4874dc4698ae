// Package kademlia implements the split-on-insert binary trie of
// k-buckets that forms the routing-table core of the DHT peer.
package kademlia

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MildC/kad-core/nodeid"
)

// DefaultDepth is the default relaxed-split depth: a full, non-owner
// bucket is split anyway when the inserted contact shares more than
// this many leading bits with the owner.
const DefaultDepth = 5

// SplitEvent describes a leaf-to-branch transition, passed to an
// optional observer so callers can react to routing-table topology
// changes (metrics, logging) without the table depending on them.
type SplitEvent struct {
	Low, High *big.Int
	Level     int
}

// Option configures a RoutingTable at construction.
type Option func(*RoutingTable)

// WithK overrides the per-bucket capacity (default DefaultK).
func WithK(k int) Option {
	return func(rt *RoutingTable) { rt.k = k }
}

// WithDepth overrides the relaxed-split depth (default DefaultDepth).
func WithDepth(depth int) Option {
	return func(rt *RoutingTable) { rt.depth = depth }
}

// WithLogger attaches a zap logger used to report splits and dropped
// contacts. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(rt *RoutingTable) { rt.logger = logger }
}

// WithSplitObserver registers a callback invoked synchronously every
// time a leaf is split, under the table's lock.
func WithSplitObserver(fn func(SplitEvent)) Option {
	return func(rt *RoutingTable) { rt.onSplit = fn }
}

// RoutingTable owns the root of the binary trie and the table owner's
// NodeId. It is safe for concurrent use: all mutating and read
// operations serialize through a single mutex, so a concurrent
// dispatcher can share one table across worker goroutines.
//
// Uses a plain Mutex rather than a RWMutex: Find and Closest only read
// the trie, but they take the same exclusive lock as Insert, so reads
// are serialized with each other as well as with writes.
type RoutingTable struct {
	mu sync.Mutex

	owner nodeid.NodeId
	root  *treeNode
	k     int
	depth int

	logger  *zap.Logger
	onSplit func(SplitEvent)
}

// New constructs a RoutingTable for owner, installing a root leaf that
// covers the full id space and contains the owner's self-contact.
func New(owner nodeid.NodeId, opts ...Option) *RoutingTable {
	rt := &RoutingTable{
		owner:  owner,
		k:      DefaultK,
		depth:  DefaultDepth,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(rt)
	}

	rt.root = newLeaf(big.NewInt(0), fullRangeHigh(), rt.k)
	rt.root.bucket.Append(newSelfContact(owner))
	return rt
}

// Owner returns the table owner's NodeId.
func (rt *RoutingTable) Owner() nodeid.NodeId {
	return rt.owner
}

// Insert touches an existing contact, splits near self unconditionally,
// appends into a non-full bucket, or splits-or-drops a full bucket per
// the relaxed-split-depth decision (see DESIGN.md).
func (rt *RoutingTable) Insert(address string, port int, id nodeid.NodeId) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	idBig := id.BigInt()
	n := rt.root
	level := 0

	for {
		if n.isBranch() {
			n = n.childFor(idBig)
			level++
			continue
		}

		if existing := n.bucket.Find(id); existing != nil {
			existing.Touch(time.Now())
			n.bucket.Sort()
			return
		}

		if n.bucket.Has(rt.owner) {
			rt.splitLeaf(n, level)
			continue
		}

		if !n.bucket.Full() {
			c := NewContact(address, port, id)
			n.bucket.Append(c)
			n.bucket.Sort()
			return
		}

		if rt.sharedPrefixDepth(id) > rt.depth {
			rt.splitLeaf(n, level)
			continue
		}

		rt.logger.Debug("routing table: dropping contact, bucket full past relaxed-split depth",
			zap.Stringer("node_id", id), zap.Int("level", level))
		return
	}
}

// splitLeaf splits n and reports the event to the configured observer.
// Must be called with rt.mu held.
func (rt *RoutingTable) splitLeaf(n *treeNode, level int) {
	low, high := n.low, n.high
	if err := n.split(rt.k); err != nil {
		// Violates an internal invariant: the caller never passes an
		// already-split node.
		panic(err)
	}
	rt.logger.Debug("routing table: split", zap.Int("level", level))
	if rt.onSplit != nil {
		rt.onSplit(SplitEvent{Low: low, High: high, Level: level})
	}
}

// sharedPrefixDepth counts the number of leading bits the table owner
// and id have in common.
func (rt *RoutingTable) sharedPrefixDepth(id nodeid.NodeId) int {
	depth := 0
	for i := 0; i < nodeid.BitLen; i++ {
		a, _ := rt.owner.NthBit(i)
		b, _ := id.NthBit(i)
		if a != b {
			break
		}
		depth++
	}
	return depth
}

// Find performs an exact-match lookup, descending the trie to the leaf
// whose range covers id and returning the contact whose id matches
// exactly, or nil.
func (rt *RoutingTable) Find(id nodeid.NodeId) *Contact {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	n := rt.root
	idBig := id.BigInt()
	for n.isBranch() {
		n = n.childFor(idBig)
	}
	return n.bucket.Find(id)
}

// Closest collects up to k contacts in ascending XOR-distance order
// from id. It descends to id's leaf, then widens outward by visiting
// sibling subtrees from the deepest (closest) to the shallowest — the
// primitive an iterative network lookup would call, though that lookup
// itself is out of scope here.
func (rt *RoutingTable) Closest(id nodeid.NodeId, k int) []*Contact {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	idBig := id.BigInt()

	var siblings []*treeNode
	n := rt.root
	for n.isBranch() {
		mid := n.mid()
		if idBig.Cmp(mid) < 0 {
			siblings = append(siblings, n.right)
			n = n.left
		} else {
			siblings = append(siblings, n.left)
			n = n.right
		}
	}

	var candidates []*Contact
	candidates = append(candidates, n.bucket.Contacts()...)

	for i := len(siblings) - 1; i >= 0 && len(candidates) < k; i-- {
		candidates = append(candidates, collectSubtree(siblings[i])...)
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := candidates[i].NodeID.XOR(id)
		dj := candidates[j].NodeID.XOR(id)
		return di.Cmp(dj) < 0
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// collectSubtree returns every contact held anywhere beneath n.
func collectSubtree(n *treeNode) []*Contact {
	if n.isLeaf() {
		return n.bucket.Contacts()
	}
	return append(collectSubtree(n.left), collectSubtree(n.right)...)
}
