package task

import "sync"

// Surface is the per-feature state a UI surface owns: whether a submission
// is in flight, and the single poll session allowed to render into it.
type Surface struct {
	mu     sync.Mutex
	busy   bool
	active *Session
}

func (s *Surface) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Surface) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Busy reports whether a submission is in flight.
func (s *Surface) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Attach makes sess the active session, cancelling the previous one.
func (s *Surface) Attach(sess *Session) {
	s.mu.Lock()
	prev := s.active
	s.active = sess
	s.mu.Unlock()

	if prev != nil && prev != sess {
		prev.Cancel()
	}
}

// Active returns the active session, if any.
func (s *Surface) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CancelActive cancels and forgets the active session.
func (s *Surface) CancelActive() {
	s.mu.Lock()
	prev := s.active
	s.active = nil
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
	}
}
