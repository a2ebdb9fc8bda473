package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainAcademy/pkg/logger"
)

func echo(_ int, r ProgressRecord) (ProgressRecord, error) {
	return r, nil
}

func newTestSyncer(api progressSaver) (*Syncer, *Store) {
	store := NewStore()
	s := NewSyncer(api, store, logger.Discard())
	return s, store
}

func TestSubmitRejectsInvalidUpdateWithoutTouchingStore(t *testing.T) {
	saver := &scriptedSaver{reply: echo}
	s, store := newTestSyncer(saver)

	err := <-s.Submit(Update{CourseID: 0, SectionID: "intro"})
	assert.ErrorIs(t, err, ErrValidation)

	err = <-s.Submit(Update{CourseID: 1, SectionID: "intro", Score: Float(120)})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Zero(t, store.Len())
	assert.Empty(t, saver.sent())
}

func TestSubmitAppliesOptimisticallyBeforeConfirmation(t *testing.T) {
	release := make(chan struct{})
	saver := &scriptedSaver{reply: func(_ int, r ProgressRecord) (ProgressRecord, error) {
		<-release
		return r, nil
	}}
	s, store := newTestSyncer(saver)

	done := s.Submit(Update{CourseID: 2, ModuleID: "1", SectionID: "llm-basics", Completed: true})

	got, ok := store.Lookup(Key{CourseID: 2, ModuleID: "1", SectionID: "llm-basics"})
	require.True(t, ok)
	assert.True(t, got.Completed)
	synced, _ := store.SyncState(got.Key())
	assert.False(t, synced)

	close(release)
	require.NoError(t, <-done)
	synced, _ = store.SyncState(got.Key())
	assert.True(t, synced)
}

func TestUpdatesForOneKeyPersistInSubmissionOrder(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	saver := &scriptedSaver{reply: func(call int, r ProgressRecord) (ProgressRecord, error) {
		if call == 1 {
			close(firstStarted)
			<-release
		}
		return r, nil
	}}
	s, store := newTestSyncer(saver)

	var tick time.Duration
	s.now = func() time.Time {
		tick += time.Second
		return t0.Add(tick)
	}

	first := s.Submit(Update{CourseID: 3, ModuleID: "1", SectionID: "intro", Completed: true, Score: Float(80)})
	<-firstStarted
	second := s.Submit(Update{CourseID: 3, ModuleID: "1", SectionID: "intro", Completed: false})
	third := s.Submit(Update{CourseID: 3, ModuleID: "1", SectionID: "intro", Completed: true, Score: Float(95)})

	assert.Len(t, saver.sent(), 1, "later updates wait for the in-flight one")
	close(release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	require.NoError(t, <-third)

	sent := saver.sent()
	require.Len(t, sent, 3)
	assert.True(t, sent[0].Completed)
	assert.False(t, sent[1].Completed)
	assert.True(t, sent[2].Completed)
	assert.True(t, sent[0].Timestamp.Before(sent[1].Timestamp))
	assert.True(t, sent[1].Timestamp.Before(sent[2].Timestamp))

	final, ok := store.Lookup(Key{CourseID: 3, ModuleID: "1", SectionID: "intro"})
	require.True(t, ok)
	assert.True(t, final.Completed)
	require.NotNil(t, final.Score)
	assert.Equal(t, 95.0, *final.Score)
	assert.Equal(t, 1, store.Len())
}

func TestStaleConfirmationDoesNotOverwriteNewerLocalState(t *testing.T) {
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	saver := &scriptedSaver{reply: func(call int, r ProgressRecord) (ProgressRecord, error) {
		if call == 1 {
			close(firstStarted)
			<-release
		}
		return r, nil
	}}
	s, store := newTestSyncer(saver)
	var tick time.Duration
	s.now = func() time.Time {
		tick += time.Second
		return t0.Add(tick)
	}

	first := s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: "intro", Completed: true})
	<-firstStarted
	second := s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: "intro", Completed: false})

	// The first confirmation arrives while the store already holds the second
	// update; it must be ignored.
	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	got, _ := store.Lookup(Key{CourseID: 1, ModuleID: "1", SectionID: "intro"})
	assert.False(t, got.Completed)
}

func TestConfirmationWithinSameMicrosecondDoesNotUndoLaterUpdate(t *testing.T) {
	boom := errors.New("gateway timeout")
	firstStarted := make(chan struct{})
	release := make(chan struct{})
	saver := &scriptedSaver{reply: func(call int, r ProgressRecord) (ProgressRecord, error) {
		switch call {
		case 1:
			close(firstStarted)
			<-release
			return r, nil
		case 2:
			return ProgressRecord{}, boom
		}
		return r, nil
	}}
	s, store := newTestSyncer(saver)
	s.now = func() time.Time { return t0 }
	k := Key{CourseID: 3, ModuleID: "1", SectionID: "intro"}

	first := s.Submit(Update{CourseID: 3, ModuleID: "1", SectionID: "intro", Completed: false})
	<-firstStarted
	second := s.Submit(Update{CourseID: 3, ModuleID: "1", SectionID: "intro", Completed: true, Score: Float(95)})

	close(release)
	require.NoError(t, <-first)
	require.ErrorIs(t, <-second, boom)

	got, ok := store.Lookup(k)
	require.True(t, ok)
	assert.True(t, got.Completed, "first confirmation shares the timestamp but must not win")
	require.NotNil(t, got.Score)
	assert.Equal(t, 95.0, *got.Score)

	unsynced := store.Unsynced()
	require.Len(t, unsynced, 1)
	assert.True(t, unsynced[0].Completed)

	require.NoError(t, s.Retry(context.Background()))
	sent := saver.sent()
	require.Len(t, sent, 3)
	assert.True(t, sent[2].Completed)
	require.NotNil(t, sent[2].Score)
	assert.Equal(t, 95.0, *sent[2].Score)
	synced, syncErr := store.SyncState(k)
	assert.True(t, synced)
	assert.NoError(t, syncErr)
}

func TestDifferentKeysPersistConcurrently(t *testing.T) {
	var inFlight sync.WaitGroup
	inFlight.Add(2)
	saver := &scriptedSaver{reply: func(_ int, r ProgressRecord) (ProgressRecord, error) {
		inFlight.Done()
		inFlight.Wait()
		return r, nil
	}}
	s, _ := newTestSyncer(saver)

	a := s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: "a", Completed: true})
	b := s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: "b", Completed: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, ch := range []<-chan error{a, b} {
		select {
		case err := <-ch:
			require.NoError(t, err)
		case <-ctx.Done():
			t.Fatal("updates for different keys blocked each other")
		}
	}
}

func TestFailedPersistKeepsRecordAndRetryResubmits(t *testing.T) {
	boom := errors.New("connection refused")
	var failing sync.Mutex
	fail := true
	saver := &scriptedSaver{reply: func(_ int, r ProgressRecord) (ProgressRecord, error) {
		failing.Lock()
		defer failing.Unlock()
		if fail {
			return ProgressRecord{}, boom
		}
		return r, nil
	}}
	s, store := newTestSyncer(saver)
	k := Key{CourseID: 3, ModuleID: "1", SectionID: "intro"}

	err := s.UpdateProgress(context.Background(), Update{CourseID: 3, ModuleID: "1", SectionID: "intro", Completed: true, Score: Float(95)})
	require.ErrorIs(t, err, boom)

	got, ok := store.Lookup(k)
	require.True(t, ok, "optimistic record stays after a failure")
	assert.True(t, got.Completed)
	require.Len(t, store.Unsynced(), 1)

	failing.Lock()
	fail = false
	failing.Unlock()

	require.NoError(t, s.Retry(context.Background()))
	assert.Empty(t, store.Unsynced())
	synced, syncErr := store.SyncState(k)
	assert.True(t, synced)
	assert.NoError(t, syncErr)
	assert.Len(t, saver.sent(), 2)
}

func TestRetryWithNothingPending(t *testing.T) {
	saver := &scriptedSaver{reply: echo}
	s, _ := newTestSyncer(saver)
	assert.NoError(t, s.Retry(context.Background()))
	assert.Empty(t, saver.sent())
}

func TestConfirmationForAnotherKeyIsIgnored(t *testing.T) {
	saver := &scriptedSaver{reply: func(_ int, r ProgressRecord) (ProgressRecord, error) {
		r.SectionID = "something-else"
		return r, nil
	}}
	s, store := newTestSyncer(saver)

	require.NoError(t, s.UpdateProgress(context.Background(), Update{CourseID: 1, ModuleID: "1", SectionID: "intro", Completed: true}))
	assert.Equal(t, 1, store.Len())
	_, ok := store.Lookup(Key{CourseID: 1, ModuleID: "1", SectionID: "something-else"})
	assert.False(t, ok)
}

func TestCloseWaitsForQueuedUpdates(t *testing.T) {
	release := make(chan struct{})
	saver := &scriptedSaver{reply: func(_ int, r ProgressRecord) (ProgressRecord, error) {
		<-release
		return r, nil
	}}
	s, _ := newTestSyncer(saver)
	pending := s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: "intro", Completed: true})

	closed := make(chan error, 1)
	go func() { closed <- s.Close(context.Background()) }()

	select {
	case <-closed:
		t.Fatal("Close returned before the queued update finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-pending)
	require.NoError(t, <-closed)

	assert.ErrorIs(t, <-s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: "b"}), ErrSessionClosed)
}

func TestCloseCancelsInFlightRequestsWhenContextEnds(t *testing.T) {
	saver := &scriptedSaver{}
	s, _ := newTestSyncer(saver)
	saver.reply = func(_ int, r ProgressRecord) (ProgressRecord, error) {
		<-s.ctx.Done()
		return ProgressRecord{}, s.ctx.Err()
	}
	pending := s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: "intro", Completed: true})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Close(ctx), context.DeadlineExceeded)
	assert.ErrorIs(t, <-pending, context.Canceled)
}

func TestSubmitRacingCloseNeverLeavesHiddenRecords(t *testing.T) {
	saver := &scriptedSaver{reply: echo}
	s, store := newTestSyncer(saver)

	const n = 50
	results := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = <-s.Submit(Update{CourseID: 1, ModuleID: "1", SectionID: fmt.Sprintf("s%d", i), Completed: true})
		}()
	}
	require.NoError(t, s.Close(context.Background()))
	wg.Wait()

	for i, err := range results {
		_, ok := store.Lookup(Key{CourseID: 1, ModuleID: "1", SectionID: fmt.Sprintf("s%d", i)})
		if errors.Is(err, ErrSessionClosed) {
			assert.False(t, ok, "rejected update %d reached the store", i)
			continue
		}
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Empty(t, store.Unsynced())
}
