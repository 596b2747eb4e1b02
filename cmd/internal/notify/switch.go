package notify

import (
	"context"
	"sync/atomic"
)

type notifierBox struct{ n Notifier }

// Switch forwards to a Notifier that can be replaced while messages are in flight.
// A Switch with nothing stored drops messages.
type Switch struct {
	cur atomic.Pointer[notifierBox]
}

// NewSwitch returns a Switch forwarding to n.
func NewSwitch(n Notifier) *Switch {
	s := &Switch{}
	s.Store(n)
	return s
}

// Store replaces the target. A nil n drops subsequent messages.
func (s *Switch) Store(n Notifier) {
	s.cur.Store(&notifierBox{n: n})
}

// Notify forwards msg to the current target.
func (s *Switch) Notify(ctx context.Context, msg Message) error {
	b := s.cur.Load()
	if b == nil || b.n == nil {
		return nil
	}
	return b.n.Notify(ctx, msg)
}
