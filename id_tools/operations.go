package id_tools

import (
	"encoding/binary"
	"encoding/hex"
	"math/bits"

	"github.com/kutluhann/bridged-kademlia-sim/constants"
)

// PeerID is an identifier in a space of at most 256 bits, stored big-endian.
// Identifiers of a narrower space keep every bit above that width at zero.
type PeerID [constants.KeySizeBytes]byte

func (id PeerID) Xor(other PeerID) PeerID {
	var result PeerID
	for i := 0; i < len(id); i++ {
		result[i] = id[i] ^ other[i]
	}
	return result
}

// PrefixLen returns the number of leading bits id and other share inside a
// space of width bitLen. Equal identifiers share all bitLen bits.
func (id PeerID) PrefixLen(other PeerID, bitLen int) int {
	skip := len(id)*8 - bitLen
	common := len(id) * 8
	for i := 0; i < len(id); i++ {
		x := id[i] ^ other[i]

		if x != 0 {
			common = i*8 + bits.LeadingZeros8(x)
			break
		}
	}
	if common < skip {
		return 0
	}
	return common - skip
}

// Cmp compares two identifiers as unsigned integers.
func (id PeerID) Cmp(other PeerID) int {
	for i := 0; i < len(id); i++ {
		if id[i] != other[i] {
			if id[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (id PeerID) String() string {
	return hex.EncodeToString(id[:])
}

// Short is the trailing eight hex digits, enough to tell nodes apart in logs.
func (id PeerID) Short() string {
	s := id.String()
	return s[len(s)-8:]
}

// Uint64 returns the low 64 bits of the identifier.
func (id PeerID) Uint64() uint64 {
	return binary.BigEndian.Uint64(id[len(id)-8:])
}

// Mask clears every bit above bitLen.
func (id PeerID) Mask(bitLen int) PeerID {
	full := bitLen / 8
	start := len(id) - full
	if rem := bitLen % 8; rem != 0 {
		start--
		id[start] &= byte(1<<rem) - 1
	}
	for i := 0; i < start; i++ {
		id[i] = 0
	}
	return id
}
