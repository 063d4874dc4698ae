package kademlia

import (
	"math/big"

	"github.com/MildC/kad-core/internal/kaderr"
	"github.com/MildC/kad-core/nodeid"
)

// treeNode is a node of the binary trie covering the half-open id range
// [low, high). It is exactly one of two shapes: a leaf (bucket != nil)
// or a branch (left and right both non-nil). The transition from leaf
// to branch is one-way, performed by split.
//
// Modeled as a tagged sum type rather than an interface: the parent
// holds owning pointers to its children, there are no back-pointers,
// and a node never holds both a bucket and children at once.
//
// A leaf's bucket field is cleared and a children pair populated in
// place on split, bounding each range with big.Int instead of a
// bit-string prefix so mid-point arithmetic is exact regardless of
// where in the 160-bit space the leaf sits.
type treeNode struct {
	low, high *big.Int

	bucket *kBucket

	left, right *treeNode
}

func newLeaf(low, high *big.Int, k int) *treeNode {
	return &treeNode{low: low, high: high, bucket: newKBucket(k)}
}

func (n *treeNode) isLeaf() bool {
	return n.bucket != nil
}

func (n *treeNode) isBranch() bool {
	return !n.isLeaf()
}

func (n *treeNode) mid() *big.Int {
	sum := new(big.Int).Add(n.low, n.high)
	return sum.Rsh(sum, 1)
}

// contains reports whether idBig falls within [low, high).
func (n *treeNode) contains(idBig *big.Int) bool {
	return idBig.Cmp(n.low) >= 0 && idBig.Cmp(n.high) < 0
}

// childFor returns the branch's left or right child for idBig,
// which must fall within n's range.
func (n *treeNode) childFor(idBig *big.Int) *treeNode {
	if idBig.Cmp(n.mid()) < 0 {
		return n.left
	}
	return n.right
}

// split transitions a leaf into a branch, partitioning its contacts
// between the two new leaves by the midpoint of its range. Splitting an
// already-split node is a programmer error.
func (n *treeNode) split(k int) error {
	if n.isBranch() {
		return kaderr.ErrBinaryTree
	}

	mid := n.mid()
	left := newLeaf(n.low, mid, k)
	right := newLeaf(mid, n.high, k)

	for _, c := range n.bucket.Contacts() {
		if c.NodeID.BigInt().Cmp(mid) < 0 {
			left.bucket.Append(c)
		} else {
			right.bucket.Append(c)
		}
	}

	n.bucket = nil
	n.left = left
	n.right = right
	return nil
}

// fullRangeHigh is 2^160, the exclusive upper bound of the whole id
// space.
func fullRangeHigh() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), nodeid.BitLen)
}
