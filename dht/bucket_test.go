package dht

import "testing"

func TestBucketEvictsLeastRecentlySeen(t *testing.T) {
	// BITS=4, K=2, owner 0000: 1000, 1001 and 1010 all land in bucket 0
	rt := NewRoutingTable(contact(0, 0), 4, 2)

	rt.AddContact(contact(0b1000, 0))
	rt.AddContact(contact(0b1001, 0))
	rt.AddContact(contact(0b1010, 0))

	b := rt.Bucket(0)
	if b.Len() != 2 {
		t.Fatalf("bucket holds %d contacts, want 2", b.Len())
	}
	if !equalIDs(b.GetContacts(), 0b1001, 0b1010) {
		t.Errorf("bucket = %b, want [1001 1010]", ids(b.GetContacts()))
	}
}

func TestBucketRefreshProtectsFromEviction(t *testing.T) {
	b := NewBucket(contact(0, 0).ID, 2)

	b.Update(contact(8, 0))
	b.Update(contact(9, 0))
	b.Update(contact(8, 0)) // 8 is now the most recently seen

	evicted, ok := b.Update(contact(10, 0))
	if !ok || evicted.ID.Uint64() != 9 {
		t.Fatalf("evicted %v (ok=%v), want 9", evicted, ok)
	}
	if !equalIDs(b.GetContacts(), 8, 10) {
		t.Errorf("bucket = %v, want [8 10]", ids(b.GetContacts()))
	}
}

func TestBucketNeverStoresOwner(t *testing.T) {
	owner := contact(5, 0)
	b := NewBucket(owner.ID, 3)

	b.Update(owner)
	if b.Len() != 0 || b.Contains(owner.ID) {
		t.Errorf("owner was stored in its own bucket")
	}
}

func TestBucketRemove(t *testing.T) {
	b := NewBucket(contact(0, 0).ID, 3)
	b.Update(contact(1, 0))
	b.Update(contact(2, 0))

	if b.Remove(contact(7, 0).ID) {
		t.Errorf("removing an unknown contact reported success")
	}
	if !b.Remove(contact(1, 0).ID) {
		t.Errorf("removing a known contact failed")
	}
	if !equalIDs(b.GetContacts(), 2) {
		t.Errorf("bucket = %v, want [2]", ids(b.GetContacts()))
	}
}
