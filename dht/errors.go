package dht

import "errors"

var (
	ErrMissingSession     = errors.New("dht: no lookup session for operation")
	ErrNoBridgeNode       = errors.New("dht: no bridge node available")
	ErrDuplicateOperation = errors.New("dht: operation id already in use")
	ErrUnknownMessage     = errors.New("dht: unknown message type")
	ErrUnknownStrategy    = errors.New("dht: unknown lookup strategy")
)
