package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeProgressAPI is an in-memory stand-in for the progress endpoints.
type fakeProgressAPI struct {
	mu      sync.Mutex
	userID  uuid.UUID
	records map[Key]ProgressRecord
	posts   []ProgressRecord
	failing bool
}

func newFakeProgressAPI(seed ...ProgressRecord) *fakeProgressAPI {
	f := &fakeProgressAPI{userID: uuid.New(), records: make(map[Key]ProgressRecord)}
	for _, r := range seed {
		f.records[r.Key()] = r
	}
	return f
}

func (f *fakeProgressAPI) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *fakeProgressAPI) stored(k Key) (ProgressRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[k]
	return r, ok
}

func (f *fakeProgressAPI) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *fakeProgressAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path != "/api/progress" {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(ErrorBody{Message: "not found"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		out := make([]ProgressRecord, 0, len(f.records))
		for _, rec := range f.records {
			out = append(out, rec)
		}
		_ = json.NewEncoder(w).Encode(out)
	case http.MethodPost:
		if f.failing {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(ErrorBody{Message: "progress storage unavailable"})
			return
		}
		var in ProgressRecord
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorBody{Message: err.Error()})
			return
		}
		in.UserID = f.userID
		f.posts = append(f.posts, in)
		cur, ok := f.records[in.Key()]
		switch {
		case !ok:
			cur = in
		case !cur.Timestamp.After(in.Timestamp):
			cur = cur.Merge(in)
		}
		f.records[in.Key()] = cur
		_ = json.NewEncoder(w).Encode(cur)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func startFakeAPI(t *testing.T, f *fakeProgressAPI) *APIClient {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client, err := NewAPIClient(srv.URL)
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}
	return client
}

// scriptedSaver lets a test control each SaveProgress call.
type scriptedSaver struct {
	mu    sync.Mutex
	calls []ProgressRecord
	reply func(call int, r ProgressRecord) (ProgressRecord, error)
}

func (s *scriptedSaver) SaveProgress(_ context.Context, r ProgressRecord) (ProgressRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, r)
	n := len(s.calls)
	s.mu.Unlock()
	return s.reply(n, r)
}

func (s *scriptedSaver) sent() []ProgressRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ProgressRecord(nil), s.calls...)
}
