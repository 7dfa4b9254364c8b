package dht

import (
	"errors"
	"testing"
)

func TestMessageCopy(t *testing.T) {
	var gen IDGenerator
	m := gen.NewMessage(RESPONSE, []Contact{contact(1, 0), contact(2, 0)})
	m.AckID = 41
	m.OperationID = 3
	m.Source = contact(5, 0)
	m.Target = contact(6, 1)
	m.Sender = contact(7, 0)
	m.Receiver = contact(8, 0)
	m.NewLookup = true
	m.Timestamp = 99

	dup := m.Copy(&gen)
	if dup.ID <= m.ID {
		t.Errorf("copy id %d must be fresh and larger than %d", dup.ID, m.ID)
	}

	orig := *m
	cp := *dup
	orig.ID, cp.ID = 0, 0
	orig.Body, cp.Body = nil, nil
	if orig != cp {
		t.Errorf("copy differs:\n got %+v\nwant %+v", cp, orig)
	}
	if !equalIDs(dup.Body.([]Contact), 1, 2) {
		t.Errorf("body not copied: %v", dup.Body)
	}

	m.Body.([]Contact)[0] = contact(9, 0)
	if dup.Body.([]Contact)[0].ID.Uint64() != 1 {
		t.Errorf("copy shares its body with the original")
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in   string
		want Variant
	}{
		{"naive-intra", Variant{Naive, Intra}},
		{"naive-inter", Variant{Naive, Inter}},
		{"Improved:Intra", Variant{Improved, Intra}},
		{" improved_inter ", Variant{Improved, Inter}},
	}
	for _, tt := range tests {
		got, err := ParseVariant(tt.in)
		if err != nil {
			t.Errorf("ParseVariant(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVariant(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if again, _ := ParseVariant(got.String()); again != got {
			t.Errorf("%v does not parse back from its name", got)
		}
	}

	for _, bad := range []string{"", "naive", "fast-intra", "naive-global", "naive-intra-x"} {
		if _, err := ParseVariant(bad); !errors.Is(err, ErrUnknownStrategy) {
			t.Errorf("ParseVariant(%q) err = %v, want ErrUnknownStrategy", bad, err)
		}
	}
}
