package tracker

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	"ChainAcademy/pkg/logger"
)

// Update is the single structured input for recording progress. Only the
// identifying fields are required.
type Update struct {
	CourseID     int
	ModuleID     ModuleID
	SectionID    string
	SubsectionID string
	Completed    bool
	Score        *float64
	Progress     *float64

	// Path is the route of the page reporting progress; it becomes the
	// record's lastCompletedPath once the section is completed.
	Path     string
	NextPath string
	PrevPath string
	QuizPath string
	Subject  string

	Metadata  map[string]any
	Timestamp time.Time
}

func (u Update) Validate() error {
	return u.record(time.Time{}).Validate()
}

func (u Update) record(now time.Time) ProgressRecord {
	r := ProgressRecord{
		CourseID:     u.CourseID,
		ModuleID:     NormalizeModuleID(string(u.ModuleID)),
		SectionID:    u.SectionID,
		Completed:    u.Completed,
		Score:        u.Score,
		Progress:     u.Progress,
		LastQuizPath: u.QuizPath,
		ContinuePath: u.NextPath,
		Timestamp:    now,
	}
	if !u.Timestamp.IsZero() {
		r.Timestamp = Stamp(u.Timestamp)
	}
	if u.Completed {
		r.LastCompletedPath = u.Path
	}

	meta := maps.Clone(u.Metadata)
	set := func(k, v string) {
		if v == "" {
			return
		}
		if meta == nil {
			meta = make(map[string]any)
		}
		meta[k] = v
	}
	set("subsectionId", u.SubsectionID)
	set("prevPath", u.PrevPath)
	set("subject", u.Subject)
	r.Metadata = meta
	return r.Clone()
}

type progressSaver interface {
	SaveProgress(ctx context.Context, r ProgressRecord) (ProgressRecord, error)
}

type job struct {
	record ProgressRecord
	rev    uint64
	done   chan error
}

type keyQueue struct {
	jobs []job
}

// Syncer applies updates optimistically to a Store and persists them. Updates
// for the same key are sent one at a time in the order they were submitted;
// different keys are persisted concurrently.
type Syncer struct {
	api   progressSaver
	store *Store
	log   logger.Log
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queues map[Key]*keyQueue
	closed bool
	wg     sync.WaitGroup
}

func NewSyncer(api progressSaver, store *Store, log logger.Log) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Syncer{
		api:    api,
		store:  store,
		log:    log,
		now:    func() time.Time { return Stamp(time.Now()) },
		ctx:    ctx,
		cancel: cancel,
		queues: make(map[Key]*keyQueue),
	}
}

// Submit merges u into the store right away and schedules its persistence.
// The returned channel yields the persistence result exactly once; callers
// that do not care may ignore it.
func (s *Syncer) Submit(u Update) <-chan error {
	rec := u.record(s.now())
	if err := rec.Validate(); err != nil {
		return resolved(err)
	}
	return s.schedule(func() (ProgressRecord, uint64) {
		return s.store.appendOrMerge(rec)
	})
}

// UpdateProgress submits u and waits for the server to confirm it. When ctx
// ends first the request keeps running in the background.
func (s *Syncer) UpdateProgress(ctx context.Context, u Update) error {
	select {
	case err := <-s.Submit(u):
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry resubmits every record whose last persistence attempt failed.
func (s *Syncer) Retry(ctx context.Context) error {
	pending := s.store.unsyncedRevisions()
	results := make([]<-chan error, 0, len(pending))
	for _, p := range pending {
		results = append(results, s.schedule(func() (ProgressRecord, uint64) {
			return p.record, p.rev
		}))
	}

	var errs []error
	for _, ch := range results {
		select {
		case err := <-ch:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting updates and waits for queued ones until ctx ends,
// after which in-flight requests are cancelled.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(idle)
	}()

	defer s.cancel()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// schedule queues the record produced by next. next runs under s.mu, so a
// closed syncer never touches the store.
func (s *Syncer) schedule(next func() (ProgressRecord, uint64)) <-chan error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return resolved(ErrSessionClosed)
	}
	r, rev := next()
	j := job{record: r, rev: rev, done: make(chan error, 1)}
	k := r.Key()
	q, running := s.queues[k]
	if !running {
		q = &keyQueue{}
		s.queues[k] = q
		s.wg.Add(1)
	}
	q.jobs = append(q.jobs, j)
	s.mu.Unlock()

	if !running {
		go s.drain(k, q)
	}
	return j.done
}

func (s *Syncer) drain(k Key, q *keyQueue) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(q.jobs) == 0 {
			delete(s.queues, k)
			s.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		s.mu.Unlock()

		j.done <- s.persist(j)
	}
}

func (s *Syncer) persist(j job) error {
	r := j.record
	k := r.Key()
	confirmed, err := s.api.SaveProgress(s.ctx, r)
	if err != nil {
		s.store.MarkUnsynced(k, err)
		s.log.ErrorErr("failed to persist progress", err, "key", k.String())
		return err
	}
	if confirmed.Key() != k {
		s.log.Warn("progress confirmation for a different key", "sent", k.String(), "received", confirmed.Key().String())
		return nil
	}
	if !s.store.confirm(confirmed, j.rev) {
		s.log.Debug("discarded stale progress confirmation", "key", k.String(), "revision", j.rev)
	}
	return nil
}

func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
