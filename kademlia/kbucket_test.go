package kademlia

import (
	"testing"
	"time"

	"github.com/MildC/kad-core/nodeid"
)

func TestKBucketSort(t *testing.T) {
	mustTime := func(s string) time.Time {
		tm, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("parse time %q: %v", s, err)
		}
		return tm
	}

	b := newKBucket(DefaultK)
	order := []struct {
		id string
		at string
	}{
		{"0x1", "2019-09-03"},
		{"0x2", "2019-10-01"},
		{"0x3", "2019-09-02"},
	}
	for _, o := range order {
		c := NewContact("127.0.0.1", 9000, nodeid.MustParse(o.id))
		c.LastSeen = mustTime(o.at)
		b.Append(c)
	}

	b.Sort()

	last := b.contacts[b.Len()-1]
	if !last.LastSeen.Equal(mustTime("2019-10-01")) {
		t.Fatalf("last contact last_seen = %v, want 2019-10-01", last.LastSeen)
	}

	for i := 1; i < b.Len(); i++ {
		if b.contacts[i-1].LastSeen.After(b.contacts[i].LastSeen) {
			t.Fatalf("bucket not sorted ascending at index %d", i)
		}
	}
}

func TestKBucketCapacityAndFind(t *testing.T) {
	b := newKBucket(2)
	id := nodeid.MustParse("0x1")
	c := NewContact("a", 1, id)
	b.Append(c)

	if b.Full() {
		t.Fatal("bucket with 1/2 entries should not be full")
	}
	if !b.Has(id) {
		t.Fatal("expected bucket to contain inserted id")
	}
	if got := b.Find(id); got != c {
		t.Fatal("Find did not return the inserted contact")
	}

	b.Append(NewContact("b", 2, nodeid.MustParse("0x2")))
	if !b.Full() {
		t.Fatal("bucket with 2/2 entries should be full")
	}
}
