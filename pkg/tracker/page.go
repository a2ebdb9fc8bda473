package tracker

import (
	"context"
	"sync"
)

// Page binds a lesson page to the session: it reads this page's state on
// mount and reports completion for its own identifiers.
type Page struct {
	session   *Session
	courseID  int
	moduleID  ModuleID
	sectionID string
	path      string

	mu       sync.Mutex
	reported bool
}

type PageState struct {
	Record       ProgressRecord
	Found        bool
	Completed    bool
	ContinuePath string
}

type CompleteOptions struct {
	Score    *float64
	NextPath string
	PrevPath string
	QuizPath string
	Subject  string
	Metadata map[string]any
}

func (s *Session) Page(courseID int, moduleID ModuleID, sectionID, path string) *Page {
	return &Page{
		session:   s,
		courseID:  courseID,
		moduleID:  NormalizeModuleID(string(moduleID)),
		sectionID: sectionID,
		path:      path,
	}
}

func (p *Page) Key() Key {
	return Key{CourseID: p.courseID, ModuleID: p.moduleID, SectionID: p.sectionID}
}

// Mount returns what the page needs to render its completion state.
func (p *Page) Mount() PageState {
	rec, ok := p.session.store.Lookup(p.Key())
	return PageState{
		Record:       rec,
		Found:        ok,
		Completed:    ok && rec.Completed,
		ContinuePath: p.session.ContinuationPath(p.courseID, p.moduleID, p.path),
	}
}

// Complete marks the section done (quiz finished, "mark complete" pressed).
func (p *Page) Complete(ctx context.Context, opts CompleteOptions) error {
	p.mu.Lock()
	p.reported = true
	p.mu.Unlock()

	return p.session.UpdateProgress(ctx, Update{
		CourseID:  p.courseID,
		ModuleID:  p.moduleID,
		SectionID: p.sectionID,
		Completed: true,
		Score:     opts.Score,
		Progress:  Float(100),
		Path:      p.path,
		NextPath:  opts.NextPath,
		PrevPath:  opts.PrevPath,
		QuizPath:  opts.QuizPath,
		Subject:   opts.Subject,
		Metadata:  opts.Metadata,
	})
}

// ReportScroll records the reading depth as a high-water mark: a report that
// does not go deeper than the stored progress is ignored. Once pct reaches
// threshold the section is completed; later reports for the same page are
// ignored.
func (p *Page) ReportScroll(ctx context.Context, pct, threshold float64) error {
	p.mu.Lock()
	rec, found := p.session.store.Lookup(p.Key())
	if !p.reported && found && rec.Completed {
		p.reported = true
	}
	if p.reported {
		p.mu.Unlock()
		return nil
	}
	crossed := pct >= threshold
	if pct > 100 {
		pct = 100
	}
	if found && rec.Progress != nil && *rec.Progress >= pct {
		if !crossed {
			p.mu.Unlock()
			return nil
		}
		pct = *rec.Progress
	}
	if crossed {
		p.reported = true
	}
	p.mu.Unlock()

	return p.session.UpdateProgress(ctx, Update{
		CourseID:  p.courseID,
		ModuleID:  p.moduleID,
		SectionID: p.sectionID,
		Completed: crossed,
		Progress:  Float(pct),
		Path:      p.path,
	})
}
