package tracker

import (
	"math"
	"sort"
)

// CompletionPercent is the share of totalSections that have a completed
// record in courseID, scaled to [0, 100]. A course without sections is 0%.
func CompletionPercent(records []ProgressRecord, courseID int, totalSections int) float64 {
	if totalSections <= 0 {
		return 0
	}
	done := make(map[Key]struct{})
	for _, r := range latestByKey(records) {
		if r.CourseID == courseID && r.Completed {
			done[r.Key()] = struct{}{}
		}
	}
	pct := float64(len(done)) / float64(totalSections) * 100
	return math.Min(pct, 100)
}

// RoundPercent rounds a percentage for display.
func RoundPercent(p float64) int {
	return int(math.Round(p))
}

// ResolveContinuationPath picks the route a "resume" action should open.
// Records of the course (and of moduleID, unless it is empty) are scanned
// newest first; the first record carrying a continue, quiz or completed path
// wins, in that order of preference. defaultPath is the last resort.
func ResolveContinuationPath(records []ProgressRecord, courseID int, moduleID ModuleID, defaultPath string) string {
	var matching []ProgressRecord
	for _, r := range records {
		if r.CourseID != courseID {
			continue
		}
		if moduleID != "" && r.ModuleID != moduleID {
			continue
		}
		matching = append(matching, r)
	}

	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].Timestamp.After(matching[j].Timestamp)
	})

	for _, r := range matching {
		switch {
		case r.ContinuePath != "":
			return r.ContinuePath
		case r.LastQuizPath != "":
			return r.LastQuizPath
		case r.LastCompletedPath != "":
			return r.LastCompletedPath
		}
	}
	return defaultPath
}

// IsModuleComplete reports whether every required section of the module has
// a completed record. A module with no required sections is not complete.
func IsModuleComplete(records []ProgressRecord, courseID int, moduleID ModuleID, requiredSectionIDs []string) bool {
	if len(requiredSectionIDs) == 0 {
		return false
	}
	done := completedSections(records, courseID, moduleID)
	for _, id := range requiredSectionIDs {
		if _, ok := done[id]; !ok {
			return false
		}
	}
	return true
}

// NextSection returns the first section of ordered that is not completed yet.
func NextSection(records []ProgressRecord, courseID int, moduleID ModuleID, ordered []string) (string, bool) {
	done := completedSections(records, courseID, moduleID)
	for _, id := range ordered {
		if _, ok := done[id]; !ok {
			return id, true
		}
	}
	return "", false
}

func completedSections(records []ProgressRecord, courseID int, moduleID ModuleID) map[string]struct{} {
	done := make(map[string]struct{})
	for _, r := range latestByKey(records) {
		if r.CourseID == courseID && r.ModuleID == moduleID && r.Completed {
			done[r.SectionID] = struct{}{}
		}
	}
	return done
}

// latestByKey keeps the newest record per key so that a snapshot with
// duplicates (e.g. an unmerged server list) is judged by its latest state.
func latestByKey(records []ProgressRecord) map[Key]ProgressRecord {
	out := make(map[Key]ProgressRecord, len(records))
	for _, r := range records {
		k := r.Key()
		if cur, ok := out[k]; ok && cur.Timestamp.After(r.Timestamp) {
			continue
		}
		out[k] = r
	}
	return out
}
