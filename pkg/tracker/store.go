package tracker

import (
	"sort"
	"sync"
	"time"
)

type entry struct {
	record  ProgressRecord
	synced  bool
	syncErr error
	rev     uint64
}

// pending is an unsynced record with the revision it was read at.
type pending struct {
	record ProgressRecord
	rev    uint64
}

// Store is the in-memory progress list of the signed-in user. It keeps one
// record per Key and is the only place the list is mutated.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	subs    map[int]chan struct{}
	nextSub int
	rev     uint64
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[Key]*entry),
		subs:    make(map[int]chan struct{}),
		now:     func() time.Time { return Stamp(time.Now()) },
	}
}

// Get returns a snapshot ordered by timestamp, oldest first.
func (s *Store) Get() []ProgressRecord {
	s.mu.RLock()
	out := make([]ProgressRecord, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.record.Clone())
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out
}

// Lookup returns the record stored under k.
func (s *Store) Lookup(k Key) (ProgressRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[k]
	if !ok {
		return ProgressRecord{}, false
	}
	return e.record.Clone(), true
}

// Set replaces the whole list, typically with the server copy. Duplicate keys
// in records collapse to the newest one.
func (s *Store) Set(records []ProgressRecord) {
	fresh := make(map[Key]*entry, len(records))
	for _, r := range records {
		k := r.Key()
		if cur, ok := fresh[k]; ok && cur.record.Timestamp.After(r.Timestamp) {
			continue
		}
		fresh[k] = &entry{record: r.Clone(), synced: true}
	}

	s.mu.Lock()
	for _, e := range fresh {
		s.rev++
		e.rev = s.rev
	}
	s.entries = fresh
	s.mu.Unlock()
	s.notify()
}

// AppendOrMerge inserts r or merges it into the record with the same key and
// returns the stored result. The merged record is marked as not yet synced.
func (s *Store) AppendOrMerge(r ProgressRecord) ProgressRecord {
	merged, _ := s.appendOrMerge(r)
	return merged
}

// appendOrMerge is AppendOrMerge that also returns the entry revision the
// merge produced.
func (s *Store) appendOrMerge(r ProgressRecord) (ProgressRecord, uint64) {
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	k := r.Key()

	s.mu.Lock()
	e, ok := s.entries[k]
	if ok {
		e.record = e.record.Merge(r)
	} else {
		e = &entry{record: r.Clone()}
		s.entries[k] = e
	}
	s.rev++
	e.rev = s.rev
	e.synced = false
	e.syncErr = nil
	merged := e.record.Clone()
	rev := e.rev
	s.mu.Unlock()

	s.notify()
	return merged, rev
}

// Reconcile stores a server-confirmed record. A confirmation older than the
// local record belongs to a superseded request and is dropped; the return
// value reports whether r was applied.
func (s *Store) Reconcile(r ProgressRecord) bool {
	k := r.Key()

	s.mu.Lock()
	e, ok := s.entries[k]
	if ok && e.record.Timestamp.After(r.Timestamp) {
		s.mu.Unlock()
		return false
	}
	if !ok {
		e = &entry{}
		s.entries[k] = e
	}
	s.rev++
	e.rev = s.rev
	e.record = r.Clone()
	e.synced = true
	e.syncErr = nil
	s.mu.Unlock()

	s.notify()
	return true
}

// confirm applies a server confirmation for the request that carried
// revision rev. Any local change made after that request, even one with the
// same timestamp, wins and the confirmation is dropped.
func (s *Store) confirm(r ProgressRecord, rev uint64) bool {
	k := r.Key()

	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok || e.rev != rev {
		s.mu.Unlock()
		return false
	}
	e.record = r.Clone()
	e.synced = true
	e.syncErr = nil
	s.mu.Unlock()

	s.notify()
	return true
}

// MarkUnsynced flags the record under k as failed to persist.
func (s *Store) MarkUnsynced(k Key, err error) {
	s.mu.Lock()
	if e, ok := s.entries[k]; ok {
		e.synced = false
		e.syncErr = err
	}
	s.mu.Unlock()
	s.notify()
}

// SyncState reports whether the record under k is confirmed by the server and
// the last persistence error, if any.
func (s *Store) SyncState(k Key) (synced bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[k]
	if !ok {
		return false, nil
	}
	return e.synced, e.syncErr
}

// Unsynced lists records whose last persistence attempt failed.
func (s *Store) Unsynced() []ProgressRecord {
	s.mu.RLock()
	var out []ProgressRecord
	for _, e := range s.entries {
		if !e.synced && e.syncErr != nil {
			out = append(out, e.record.Clone())
		}
	}
	s.mu.RUnlock()

	sortRecords(out)
	return out
}

func (s *Store) unsyncedRevisions() []pending {
	s.mu.RLock()
	var out []pending
	for _, e := range s.entries {
		if !e.synced && e.syncErr != nil {
			out = append(out, pending{record: e.record.Clone(), rev: e.rev})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].record, out[j].record
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Key().String() < b.Key().String()
	})
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Reset drops every record. Subscribers stay registered.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = make(map[Key]*entry)
	s.mu.Unlock()
	s.notify()
}

// Subscribe returns a channel that receives a signal after every change and
// a function that unregisters it. Signals coalesce: a slow reader sees one
// pending signal, never a backlog.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func sortRecords(rs []ProgressRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].Timestamp.Equal(rs[j].Timestamp) {
			return rs[i].Timestamp.Before(rs[j].Timestamp)
		}
		return rs[i].Key().String() < rs[j].Key().String()
	})
}
