package id_tools

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/kutluhann/bridged-kademlia-sim/constants"
	"golang.org/x/crypto/sha3"
)

// FromName derives a stable bitLen-wide identifier from a name. Hashing
// spreads identifiers uniformly over the space.
func FromName(name string, bitLen int) PeerID {
	sum := sha3.Sum256([]byte(name + constants.Salt))
	return PeerID(sum).Mask(bitLen)
}

func FromUint64(v uint64) PeerID {
	var id PeerID
	binary.BigEndian.PutUint64(id[len(id)-8:], v)
	return id
}

// Parse decodes the hex form produced by PeerID.String. Shorter inputs are
// treated as the low-order bytes.
func Parse(s string) (PeerID, error) {
	var id PeerID
	if len(s)%2 == 1 {
		s = "0" + s
	}
	if len(s) > 2*len(id) {
		return PeerID{}, fmt.Errorf("id_tools: identifier %q longer than %d bytes", s, len(id))
	}
	raw := make([]byte, len(s)/2)
	if _, err := hex.Decode(raw, []byte(s)); err != nil {
		return PeerID{}, fmt.Errorf("id_tools: parse identifier %q: %w", s, err)
	}
	copy(id[len(id)-len(raw):], raw)
	return id, nil
}
