package dht

import (
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
)

// SessionStore keeps a node's active lookups keyed by operation id, in the
// order they were started.
type SessionStore struct {
	ops *orderedmap.OrderedMap[uint64, *FindOperation]
}

func NewSessionStore() *SessionStore {
	return &SessionStore{ops: orderedmap.NewOrderedMap[uint64, *FindOperation]()}
}

func (s *SessionStore) Put(op *FindOperation) error {
	if _, exists := s.ops.Get(op.OperationID); exists {
		return fmt.Errorf("%w: %d", ErrDuplicateOperation, op.OperationID)
	}
	s.ops.Set(op.OperationID, op)
	return nil
}

func (s *SessionStore) Get(id uint64) (*FindOperation, bool) {
	return s.ops.Get(id)
}

func (s *SessionStore) Delete(id uint64) bool {
	return s.ops.Delete(id)
}

func (s *SessionStore) Len() int {
	return s.ops.Len()
}

// Oldest returns the longest running session.
func (s *SessionStore) Oldest() (*FindOperation, bool) {
	el := s.ops.Front()
	if el == nil {
		return nil, false
	}
	return el.Value, true
}
