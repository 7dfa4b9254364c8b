package dht

import (
	"fmt"
	"sort"

	"github.com/kutluhann/bridged-kademlia-sim/id_tools"
)

type NodeID = id_tools.PeerID

// Contact is how one node refers to another: its identifier and the domain
// whose ring it belongs to.
type Contact struct {
	ID     NodeID `json:"id"`
	Domain int    `json:"domain"`
}

func (c Contact) String() string {
	return fmt.Sprintf("%s@%d", c.ID.Short(), c.Domain)
}

// CompareDistance orders a and b by XOR distance to target, breaking ties by
// identifier value.
func CompareDistance(a, b, target NodeID) int {
	if c := a.Xor(target).Cmp(b.Xor(target)); c != 0 {
		return c
	}
	return a.Cmp(b)
}

// ContactSorter sorts a list of contacts by distance to target
type ContactSorter struct {
	contacts []Contact
	target   NodeID
}

func (s *ContactSorter) Len() int      { return len(s.contacts) }
func (s *ContactSorter) Swap(i, j int) { s.contacts[i], s.contacts[j] = s.contacts[j], s.contacts[i] }
func (s *ContactSorter) Less(i, j int) bool {
	return CompareDistance(s.contacts[i].ID, s.contacts[j].ID, s.target) < 0
}

func sortByDistance(contacts []Contact, target NodeID) {
	sort.Sort(&ContactSorter{contacts: contacts, target: target})
}

func indexOf(contacts []Contact, id NodeID) int {
	for i, c := range contacts {
		if c.ID == id {
			return i
		}
	}
	return -1
}
