// Package trace records every message a simulation delivers as a stream of
// msgpack records inside a zstd frame, for offline inspection of a run.
package trace

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/klauspost/compress/zstd"
	"github.com/kutluhann/bridged-kademlia-sim/dht"
	"github.com/vmihailenco/msgpack/v5"
)

// Event is one delivered message.
type Event struct {
	At          int64  `msgpack:"at"`
	ID          uint64 `msgpack:"id"`
	AckID       uint64 `msgpack:"ack,omitempty"`
	OperationID uint64 `msgpack:"op,omitempty"`
	Type        string `msgpack:"type"`
	Source      string `msgpack:"src"`
	Target      string `msgpack:"dst"`
	Sender      string `msgpack:"from"`
	Receiver    string `msgpack:"to"`
	NewLookup   bool   `msgpack:"new,omitempty"`
	Peers       int    `msgpack:"peers,omitempty"`
}

func eventOf(at mclock.AbsTime, m *dht.Message) Event {
	ev := Event{
		At:          int64(at),
		ID:          m.ID,
		AckID:       m.AckID,
		OperationID: m.OperationID,
		Type:        m.Type.String(),
		Source:      m.Source.String(),
		Target:      m.Target.String(),
		Sender:      m.Sender.String(),
		Receiver:    m.Receiver.String(),
		NewLookup:   m.NewLookup,
	}
	if peers, ok := m.Body.([]dht.Contact); ok {
		ev.Peers = len(peers)
	}
	return ev
}

// Recorder appends events to a compressed stream. It is not safe for
// concurrent use.
type Recorder struct {
	zw  *zstd.Encoder
	enc *msgpack.Encoder
	n   int
}

func NewRecorder(w io.Writer) (*Recorder, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("trace: open zstd stream: %w", err)
	}
	return &Recorder{zw: zw, enc: msgpack.NewEncoder(zw)}, nil
}

func (r *Recorder) Record(at mclock.AbsTime, m *dht.Message) error {
	if err := r.enc.Encode(eventOf(at, m)); err != nil {
		return fmt.Errorf("trace: encode message %d: %w", m.ID, err)
	}
	r.n++
	return nil
}

// Len is the number of events recorded so far.
func (r *Recorder) Len() int {
	return r.n
}

// Close flushes the stream. The underlying writer stays open.
func (r *Recorder) Close() error {
	return r.zw.Close()
}

// ReadAll decodes every event of a stream written by a Recorder.
func ReadAll(rd io.Reader) ([]Event, error) {
	zr, err := zstd.NewReader(rd)
	if err != nil {
		return nil, fmt.Errorf("trace: open zstd stream: %w", err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	var events []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, fmt.Errorf("trace: decode event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
}
