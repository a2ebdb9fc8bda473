package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"ChainAcademy/pkg/logger"
)

// API is the part of the progress API a Session needs.
type API interface {
	ListProgress(ctx context.Context) ([]ProgressRecord, error)
	SaveProgress(ctx context.Context, r ProgressRecord) (ProgressRecord, error)
}

// Session is the progress handle of one signed-in user. Create it when the
// user session starts, pass it to every lesson page, Close it on logout.
type Session struct {
	api   API
	log   logger.Log
	store *Store

	mu      sync.RWMutex
	userID  uuid.UUID
	syncer  *Syncer
	started bool
}

func NewSession(api API, log logger.Log) *Session {
	if log == nil {
		log = logger.Discard()
	}
	return &Session{
		api:   api,
		log:   log,
		store: NewStore(),
	}
}

// Start loads the user's progress from the API into the store.
func (s *Session) Start(ctx context.Context, userID uuid.UUID) error {
	records, err := s.api.ListProgress(ctx)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("progress session for %s already started", s.userID)
	}
	s.store.Set(records)
	s.userID = userID
	s.syncer = NewSyncer(s.api, s.store, s.log)
	s.started = true
	s.log.Info("progress session started", "user_id", userID.String(), "records", len(records))
	return nil
}

// Refresh reloads the server copy. Records that failed to sync are lost, so
// callers should Retry first.
func (s *Session) Refresh(ctx context.Context) error {
	if _, err := s.active(); err != nil {
		return err
	}
	records, err := s.api.ListProgress(ctx)
	if err != nil {
		return fmt.Errorf("reload progress: %w", err)
	}
	s.store.Set(records)
	return nil
}

// Close waits for pending updates until ctx ends, then clears the store.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	syncer := s.syncer
	started := s.started
	userID := s.userID
	s.started = false
	s.syncer = nil
	s.mu.Unlock()

	if !started {
		return nil
	}
	err := syncer.Close(ctx)
	s.store.Reset()
	s.log.Info("progress session closed", "user_id", userID.String())
	return err
}

func (s *Session) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Progress returns the current records.
func (s *Session) Progress() []ProgressRecord {
	return s.store.Get()
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) Subscribe() (<-chan struct{}, func()) {
	return s.store.Subscribe()
}

// Submit records u without waiting for the server.
func (s *Session) Submit(u Update) <-chan error {
	syncer, err := s.active()
	if err != nil {
		return resolved(err)
	}
	return syncer.Submit(u)
}

// UpdateProgress records u and waits for the server to confirm it.
func (s *Session) UpdateProgress(ctx context.Context, u Update) error {
	syncer, err := s.active()
	if err != nil {
		return err
	}
	return syncer.UpdateProgress(ctx, u)
}

// Retry resubmits records that failed to sync.
func (s *Session) Retry(ctx context.Context) error {
	syncer, err := s.active()
	if err != nil {
		return err
	}
	return syncer.Retry(ctx)
}

func (s *Session) CompletionPercent(courseID, totalSections int) float64 {
	return CompletionPercent(s.store.Get(), courseID, totalSections)
}

func (s *Session) ContinuationPath(courseID int, moduleID ModuleID, defaultPath string) string {
	return ResolveContinuationPath(s.store.Get(), courseID, moduleID, defaultPath)
}

func (s *Session) IsModuleComplete(courseID int, moduleID ModuleID, requiredSectionIDs []string) bool {
	return IsModuleComplete(s.store.Get(), courseID, moduleID, requiredSectionIDs)
}

func (s *Session) NextSection(courseID int, moduleID ModuleID, ordered []string) (string, bool) {
	return NextSection(s.store.Get(), courseID, moduleID, ordered)
}

func (s *Session) active() (*Syncer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.syncer, nil
}
