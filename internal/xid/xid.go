package xid

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

type Generator interface {
	New() string
}

// UUID issues random version 4 identifiers.
type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}

// Sequence issues strictly increasing identifiers, optionally prefixed.
type Sequence struct {
	prefix string
	next   atomic.Int64
}

func NewSequence(prefix string, start int64) *Sequence {
	s := &Sequence{prefix: prefix}
	s.next.Store(start)
	return s
}

func (s *Sequence) New() string {
	n := s.next.Add(1)
	if s.prefix == "" {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s-%d", s.prefix, n)
}

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
