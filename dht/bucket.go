package dht

// Bucket keeps at most capacity contacts ordered from least to most recently
// seen. The owning node is never stored.
type Bucket struct {
	owner    NodeID
	capacity int
	contacts []Contact
}

func NewBucket(owner NodeID, capacity int) *Bucket {
	return &Bucket{
		owner:    owner,
		capacity: capacity,
		contacts: make([]Contact, 0, capacity),
	}
}

// Update records that contact was just seen. A known contact moves to the
// most-recently-seen end; a new contact is appended, evicting the
// least-recently-seen one when the bucket is full. The evicted contact is
// returned with ok set.
func (b *Bucket) Update(contact Contact) (evicted Contact, ok bool) {
	if contact.ID == b.owner {
		return Contact{}, false
	}

	if i := indexOf(b.contacts, contact.ID); i != -1 {
		b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
		b.contacts = append(b.contacts, contact)
		return Contact{}, false
	}

	if len(b.contacts) >= b.capacity {
		evicted, ok = b.contacts[0], true
		b.contacts = append(b.contacts[:0], b.contacts[1:]...)
	}
	b.contacts = append(b.contacts, contact)
	return evicted, ok
}

// Remove drops the contact with the given id. Unknown ids are ignored.
func (b *Bucket) Remove(id NodeID) bool {
	i := indexOf(b.contacts, id)
	if i == -1 {
		return false
	}
	b.contacts = append(b.contacts[:i], b.contacts[i+1:]...)
	return true
}

func (b *Bucket) Contains(id NodeID) bool {
	return indexOf(b.contacts, id) != -1
}

func (b *Bucket) GetContacts() []Contact {
	snapshot := make([]Contact, len(b.contacts))
	copy(snapshot, b.contacts)

	return snapshot
}

func (b *Bucket) Len() int {
	return len(b.contacts)
}
