package models

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDSource hands out process-unique identifiers for scans and hosts.
// Identifiers are opaque and never derived from scan content, because
// addresses may repeat across merges.
type IDSource interface {
	NewID() string
}

// UUIDSource is the default IDSource, backed by random UUIDs.
type UUIDSource struct{}

// NewID returns a random UUID string.
func (UUIDSource) NewID() string {
	return uuid.NewString()
}

// SequenceSource is a deterministic IDSource for tests.
type SequenceSource struct {
	Prefix string
	n      uint64
}

// NewID returns "<prefix>-1", "<prefix>-2", ...
func (s *SequenceSource) NewID() string {
	return fmt.Sprintf("%s-%d", s.Prefix, atomic.AddUint64(&s.n, 1))
}
