package buildstate

import "sync"

// Watcher delivers state snapshots for one project as they change. Obtain a
// Watcher via Store.Watch and always release it with Close, typically with
// defer, so repeated open/close cycles of a UI surface never accumulate
// stale observers.
type Watcher struct {
	id    uint64
	ch    chan State
	entry *entry
	once  sync.Once
}

// States returns the channel on which snapshots are delivered. The channel
// is closed when the Watcher is closed or the project entry is reset.
func (w *Watcher) States() <-chan State {
	return w.ch
}

// Close releases the watcher. It is safe to call more than once and after
// the project entry has been reset.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.entry.mu.Lock()
		defer w.entry.mu.Unlock()
		if _, ok := w.entry.watchers[w.id]; ok {
			delete(w.entry.watchers, w.id)
			close(w.ch)
		}
	})
}

// Watch registers an observer for the project's build state. The current
// state is delivered immediately, then every subsequent change. Watchers use
// a small buffer and never block mutators; intermediate snapshots may be
// skipped under load.
func (s *Store) Watch(projectID string) *Watcher {
	e := s.ensure(projectID)

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.mu.Unlock()

	w := &Watcher{
		id:    id,
		ch:    make(chan State, 8),
		entry: e,
	}

	e.mu.Lock()
	e.watchers[id] = w.ch
	w.ch <- e.snapshotLocked()
	e.mu.Unlock()

	return w
}
