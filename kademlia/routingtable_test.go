package kademlia

import (
	"testing"

	"github.com/MildC/kad-core/nodeid"
)

func TestRoutingTableFirstSplit(t *testing.T) {
	owner := nodeid.MustParse("0x3")
	rt := New(owner)

	rt.Insert("10.0.0.1", 9001, nodeid.MustParse("0x2"))
	rt.Insert("10.0.0.2", 9002, nodeid.MustParse("0x4"))

	c2 := rt.Find(nodeid.MustParse("0x2"))
	if c2 == nil || c2.Port != 9001 {
		t.Fatalf("find(0x2) = %+v, want port 9001", c2)
	}

	c4 := rt.Find(nodeid.MustParse("0x4"))
	if c4 == nil || c4.Port != 9002 {
		t.Fatalf("find(0x4) = %+v, want port 9002", c4)
	}

	if rt.Find(owner) == nil {
		t.Fatal("find(owner) = nil, want the self contact")
	}
}

func TestRoutingTableTouchOnReinsert(t *testing.T) {
	owner := nodeid.MustParse("0x1")
	rt := New(owner)

	id := nodeid.MustParse("0x10")
	rt.Insert("1.2.3.4", 1000, id)
	first := rt.Find(id)
	if first == nil {
		t.Fatal("expected contact after first insert")
	}
	firstSeen := first.LastSeen

	rt.Insert("1.2.3.4", 1000, id)
	second := rt.Find(id)
	if second == nil {
		t.Fatal("expected contact after second insert")
	}
	if second.LastSeen.Before(firstSeen) {
		t.Fatal("expected last_seen to be refreshed, not moved backward")
	}
}

func TestRoutingTableBucketCapacity(t *testing.T) {
	owner := nodeid.MustParse("0x1")
	rt := New(owner, WithK(4), WithDepth(0))

	// Owner id 0x1 lives in the low half of the id space; fill a distant,
	// non-owner bucket with ids whose top bit is 1 so the owner (top bit
	// 0) never lands there, and whose shared-prefix depth with owner is
	// 0, so with WithDepth(0) rule 5's ">" check never triggers and extra
	// insertions are dropped once the bucket is full.
	base := "0x800000000000000000000000000000000000000" // top bit 1
	ids := []string{
		base + "1", base + "2", base + "3", base + "4", base + "5",
	}
	for i, s := range ids {
		rt.Insert("10.0.0.1", 9000+i, nodeid.MustParse(s))
	}

	found := 0
	for _, s := range ids {
		if rt.Find(nodeid.MustParse(s)) != nil {
			found++
		}
	}
	if found > 4 {
		t.Fatalf("expected at most K=4 of the distant contacts to survive, found %d", found)
	}
}

func TestRoutingTableClosest(t *testing.T) {
	owner := nodeid.MustParse("0x1")
	rt := New(owner)

	ids := []string{"0x2", "0x3", "0x4", "0x5", "0x6"}
	for i, s := range ids {
		rt.Insert("10.0.0.1", 9000+i, nodeid.MustParse(s))
	}

	target := nodeid.MustParse("0x4")
	closest := rt.Closest(target, 2)
	if len(closest) != 2 {
		t.Fatalf("closest returned %d contacts, want 2", len(closest))
	}

	d0 := closest[0].NodeID.XOR(target)
	d1 := closest[1].NodeID.XOR(target)
	if d0.Cmp(d1) > 0 {
		t.Fatalf("closest not in ascending xor-distance order: %s then %s", closest[0].NodeID, closest[1].NodeID)
	}
}
