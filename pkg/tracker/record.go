package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ModuleID identifies a module inside a course. Callers send it either as a
// JSON number or a string; both decode to the same decimal text.
type ModuleID string

func (m *ModuleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = NormalizeModuleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("moduleId must be a string or a number: %w", err)
	}
	*m = NormalizeModuleID(n.String())
	return nil
}

// NormalizeModuleID trims s and rewrites integral numbers ("3", "3.0") to
// their canonical form so that 3 and "3" address the same module.
func NormalizeModuleID(s string) ModuleID {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return ModuleID(strconv.FormatInt(int64(f), 10))
	}
	return ModuleID(s)
}

// ModuleIDFromInt is a shorthand for numeric module identifiers.
func ModuleIDFromInt(n int) ModuleID {
	return ModuleID(strconv.Itoa(n))
}

// Key addresses one logical progress record of a user.
type Key struct {
	CourseID  int
	ModuleID  ModuleID
	SectionID string
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s", k.CourseID, k.ModuleID, k.SectionID)
}

// ProgressRecord is one unit of completion for one user. It is the canonical
// payload of POST /api/progress and the element of GET /api/progress.
type ProgressRecord struct {
	UserID            uuid.UUID      `json:"userId"`
	CourseID          int            `json:"courseId"`
	ModuleID          ModuleID       `json:"moduleId"`
	SectionID         string         `json:"sectionId"`
	Completed         bool           `json:"completed"`
	Score             *float64       `json:"score,omitempty"`
	Progress          *float64       `json:"progress,omitempty"`
	LastCompletedPath string         `json:"lastCompletedPath,omitempty"`
	LastQuizPath      string         `json:"lastQuizPath,omitempty"`
	ContinuePath      string         `json:"continuePath,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

func (r ProgressRecord) Key() Key {
	return Key{CourseID: r.CourseID, ModuleID: r.ModuleID, SectionID: r.SectionID}
}

// Clone returns a copy that shares no pointers or maps with r.
func (r ProgressRecord) Clone() ProgressRecord {
	out := r
	if r.Score != nil {
		v := *r.Score
		out.Score = &v
	}
	if r.Progress != nil {
		v := *r.Progress
		out.Progress = &v
	}
	if r.Metadata != nil {
		out.Metadata = maps.Clone(r.Metadata)
	}
	return out
}

// Validate checks the identifying fields and the percentage ranges.
func (r ProgressRecord) Validate() error {
	if r.CourseID <= 0 {
		return fmt.Errorf("%w: courseId must be positive", ErrValidation)
	}
	if strings.TrimSpace(r.SectionID) == "" {
		return fmt.Errorf("%w: sectionId is required", ErrValidation)
	}
	if err := validatePercent("score", r.Score); err != nil {
		return err
	}
	return validatePercent("progress", r.Progress)
}

// Merge applies incoming on top of r: completed and the timestamp always
// follow incoming, optional fields only when set, metadata is merged key by key.
func (r ProgressRecord) Merge(incoming ProgressRecord) ProgressRecord {
	out := r.Clone()
	in := incoming.Clone()

	out.Completed = in.Completed
	if in.UserID != uuid.Nil {
		out.UserID = in.UserID
	}
	if in.Score != nil {
		out.Score = in.Score
	}
	if in.Progress != nil {
		out.Progress = in.Progress
	}
	if in.LastCompletedPath != "" {
		out.LastCompletedPath = in.LastCompletedPath
	}
	if in.LastQuizPath != "" {
		out.LastQuizPath = in.LastQuizPath
	}
	if in.ContinuePath != "" {
		out.ContinuePath = in.ContinuePath
	}
	if !in.Timestamp.IsZero() {
		out.Timestamp = in.Timestamp
	}
	if len(in.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]any, len(in.Metadata))
		}
		maps.Copy(out.Metadata, in.Metadata)
	}
	return out
}

func validatePercent(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 100 {
		return fmt.Errorf("%w: %s must be within [0, 100], got %v", ErrValidation, field, *v)
	}
	return nil
}

// Stamp truncates t to the precision the API persists, so an echoed
// timestamp compares equal to the one that was sent.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Float is a convenience for filling optional percentages.
func Float(v float64) *float64 {
	return &v
}
