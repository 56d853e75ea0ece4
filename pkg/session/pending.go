package session

// PendingDelete is either NoPending or Pending. At most one item can be
// waiting for confirmation.
type PendingDelete interface {
	isPendingDelete()
}

type NoPending struct{}

// Pending names the item a confirm would remove.
type Pending struct {
	ID string
}

func (NoPending) isPendingDelete() {}
func (Pending) isPendingDelete()   {}

// PendingID returns the pending target, if any.
func PendingID(p PendingDelete) (string, bool) {
	if x, ok := p.(Pending); ok {
		return x.ID, true
	}
	return "", false
}

// RequestRemove marks an item for removal. A later request replaces the
// earlier target.
func (s *Session) RequestRemove(id string) error {
	s.mu.Lock()
	if s.state != Ready {
		s.mu.Unlock()
		return ErrLocked
	}
	s.pending = Pending{ID: id}
	s.mu.Unlock()
	s.notify()
	return nil
}

// CancelRemove clears the pending target without touching the items.
func (s *Session) CancelRemove() {
	s.mu.Lock()
	_, had := s.pending.(Pending)
	s.pending = NoPending{}
	s.mu.Unlock()
	if had {
		s.notify()
	}
}

// ConfirmRemove removes the pending target and reports whether anything was
// pending.
func (s *Session) ConfirmRemove() (bool, error) {
	var had, removed bool
	err := s.mutate(func() bool {
		p, ok := s.pending.(Pending)
		if !ok {
			return false
		}
		had = true
		s.pending = NoPending{}
		kept := s.items[:0]
		for _, it := range s.items {
			if it.ID == p.ID {
				removed = true
				continue
			}
			kept = append(kept, it)
		}
		s.items = kept
		return removed
	})
	if had && !removed && err == nil {
		// the marker cleared even though the item was already gone
		s.notify()
	}
	return had, err
}
