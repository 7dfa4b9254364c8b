package dht

// RoutingTable holds BITS+1 buckets for one node.
// Bucket i holds contacts sharing exactly i leading bits with the owner:
// - Bucket 0:    the far half of the identifier space
// - Bucket BITS: only the owner itself, so it always stays empty
type RoutingTable struct {
	Self    Contact
	bits    int
	k       int
	buckets []*Bucket
}

func NewRoutingTable(self Contact, bits, k int) *RoutingTable {
	rt := &RoutingTable{
		Self:    self,
		bits:    bits,
		k:       k,
		buckets: make([]*Bucket, bits+1),
	}
	for i := range rt.buckets {
		rt.buckets[i] = NewBucket(self.ID, k)
	}
	return rt
}

func (rt *RoutingTable) GetBucketIndex(id NodeID) int {
	return rt.Self.ID.PrefixLen(id, rt.bits)
}

// AddContact inserts or refreshes c in its bucket.
func (rt *RoutingTable) AddContact(c Contact) {
	if c.ID == rt.Self.ID {
		return
	}
	rt.Bucket(rt.GetBucketIndex(c.ID)).Update(c)
}

func (rt *RoutingTable) RemoveContact(id NodeID) {
	rt.Bucket(rt.GetBucketIndex(id)).Remove(id)
}

func (rt *RoutingTable) Contains(id NodeID) bool {
	return rt.Bucket(rt.GetBucketIndex(id)).Contains(id)
}

// FindClosest returns up to K contacts closest to key, never including
// excluding. When the bucket key falls into already holds K other contacts
// those are returned without looking at the rest of the table.
func (rt *RoutingTable) FindClosest(key NodeID, excluding NodeID) []Contact {
	// 1. Fast path: the bucket the key would live in
	candidates := without(rt.Bucket(rt.GetBucketIndex(key)).GetContacts(), excluding)
	if len(candidates) >= rt.k {
		sortByDistance(candidates, key)
		return candidates[:rt.k]
	}

	// 2. Otherwise collect the whole table
	candidates = candidates[:0]
	for _, b := range rt.buckets {
		candidates = append(candidates, b.contacts...)
	}
	candidates = without(candidates, excluding)

	// 3. Sort by XOR distance and keep the top K
	sortByDistance(candidates, key)
	if len(candidates) > rt.k {
		return candidates[:rt.k]
	}
	return candidates
}

// Size is the number of contacts across all buckets.
func (rt *RoutingTable) Size() int {
	total := 0
	for _, b := range rt.buckets {
		total += b.Len()
	}
	return total
}

// BucketSizes reports the fill level of every bucket, indexed by prefix length.
func (rt *RoutingTable) BucketSizes() []int {
	sizes := make([]int, len(rt.buckets))
	for i, b := range rt.buckets {
		sizes[i] = b.Len()
	}
	return sizes
}

// Bucket returns the bucket of contacts sharing prefixLen leading bits with
// the owner.
func (rt *RoutingTable) Bucket(prefixLen int) *Bucket {
	return rt.buckets[prefixLen]
}

func without(contacts []Contact, id NodeID) []Contact {
	if i := indexOf(contacts, id); i != -1 {
		return append(contacts[:i], contacts[i+1:]...)
	}
	return contacts
}
