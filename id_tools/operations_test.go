package id_tools

import "testing"

func TestXorProperties(t *testing.T) {
	a := FromName("alice", 160)
	b := FromName("bob", 160)
	c := FromName("carol", 160)

	if a.Xor(a) != (PeerID{}) {
		t.Errorf("distance of an identifier to itself must be zero")
	}
	if a.Xor(b) != b.Xor(a) {
		t.Errorf("distance must be symmetric")
	}
	if a.Xor(b).Xor(b.Xor(c)) != a.Xor(c) {
		t.Errorf("d(a,b) xor d(b,c) must equal d(a,c)")
	}
}

func TestPrefixLen(t *testing.T) {
	tests := []struct {
		a, b   uint64
		bitLen int
		want   int
	}{
		{0b0000, 0b1000, 4, 0},
		{0b0000, 0b0100, 4, 1},
		{0b0000, 0b0001, 4, 3},
		{0b0101, 0b0101, 4, 4},
		{0, 1, 64, 63},
		{0, 1 << 63, 64, 0},
		{7, 7, 160, 160},
	}

	for _, tt := range tests {
		got := FromUint64(tt.a).PrefixLen(FromUint64(tt.b), tt.bitLen)
		if got != tt.want {
			t.Errorf("PrefixLen(%b, %b, %d) = %d, want %d", tt.a, tt.b, tt.bitLen, got, tt.want)
		}
	}
}

func TestPrefixLenMatchesDistanceOrder(t *testing.T) {
	target := FromUint64(0b1010)
	near := FromUint64(0b1011)
	far := FromUint64(0b0010)

	if target.Xor(near).Cmp(target.Xor(far)) >= 0 {
		t.Fatalf("expected %v to be closer than %v", near, far)
	}
	if target.PrefixLen(near, 4) <= target.PrefixLen(far, 4) {
		t.Errorf("closer identifier must share a longer prefix")
	}
}

func TestMask(t *testing.T) {
	id := PeerID{}
	for i := range id {
		id[i] = 0xff
	}

	masked := id.Mask(12)
	if masked.Uint64() != 0x0fff {
		t.Errorf("Mask(12) = %x, want 0fff", masked.Uint64())
	}
	if id.Mask(256) != id {
		t.Errorf("Mask(256) must keep every bit")
	}
}

func TestFromName(t *testing.T) {
	a := FromName("11-0", 20)
	if a != FromName("11-0", 20) {
		t.Errorf("the same name produced different identifiers")
	}
	if a == FromName("11-1", 20) || a == FromName("12-0", 20) {
		t.Errorf("different names collided")
	}
	if a.Uint64() >= 1<<20 {
		t.Errorf("identifier %x exceeds 20 bits", a.Uint64())
	}
	if FromName("11-0", 160).Mask(20) != a {
		t.Errorf("a narrower space must keep the low bits of the full hash")
	}
}

func TestParse(t *testing.T) {
	id := FromName("node-7", 160)

	parsed, err := Parse(id.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != id {
		t.Errorf("Parse(String()) = %v, want %v", parsed, id)
	}

	short, err := Parse("abc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if short.Uint64() != 0xabc {
		t.Errorf("Parse(abc) = %x", short.Uint64())
	}

	if _, err := Parse("zz"); err == nil {
		t.Errorf("expected an error for non-hex input")
	}
}
