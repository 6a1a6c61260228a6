package storage

// ChangeKind names what happened to the store.
type ChangeKind string

const (
	ChangeStored  ChangeKind = "stored"
	ChangeDeleted ChangeKind = "deleted"
	ChangeRebuilt ChangeKind = "rebuilt"
)

// Change is emitted after a mutation has been committed to disk.
type Change struct {
	Kind ChangeKind
	IDs  []string
}

// Subscribe registers fn to be called after every committed change. fn runs
// on the mutating goroutine and must not block. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
