package kademlia

import (
	"sort"

	"github.com/MildC/kad-core/nodeid"
)

// DefaultK is the default maximum number of contacts a bucket holds.
const DefaultK = 20

// kBucket is an ordered sequence of contacts held at a trie leaf.
// Invariants: at most K entries, no two entries share a node id, and
// after Sort() entries are ordered by LastSeen ascending (oldest
// first). There is no separate replacement-candidate queue: a full
// bucket that can't split simply drops the new contact rather than
// queuing it for later eviction.
type kBucket struct {
	k        int
	contacts []*Contact
}

func newKBucket(k int) *kBucket {
	return &kBucket{k: k, contacts: make([]*Contact, 0, k)}
}

// Len returns the number of contacts currently held.
func (b *kBucket) Len() int {
	return len(b.contacts)
}

// Full reports whether the bucket is at capacity.
func (b *kBucket) Full() bool {
	return len(b.contacts) >= b.k
}

// Has reports whether id is present in the bucket.
func (b *kBucket) Has(id nodeid.NodeId) bool {
	return b.Find(id) != nil
}

// Find returns the contact with the given id, or nil.
func (b *kBucket) Find(id nodeid.NodeId) *Contact {
	for _, c := range b.contacts {
		if c.NodeID.Equal(id) {
			return c
		}
	}
	return nil
}

// Append adds c to the bucket without checking capacity or duplicates;
// callers (RoutingTable.Insert, split) are responsible for those
// checks.
func (b *kBucket) Append(c *Contact) {
	b.contacts = append(b.contacts, c)
}

// Sort orders the bucket by LastSeen ascending.
func (b *kBucket) Sort() {
	sort.SliceStable(b.contacts, func(i, j int) bool {
		return b.contacts[i].LastSeen.Before(b.contacts[j].LastSeen)
	})
}

// Contacts returns a snapshot slice of the bucket's contacts.
func (b *kBucket) Contacts() []*Contact {
	out := make([]*Contact, len(b.contacts))
	copy(out, b.contacts)
	return out
}
