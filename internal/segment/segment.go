// Package segment derives work segments from time records. A segment is one
// continuous stretch during which a fixed set of workers was jointly active
// on a work order; its total hours are person-hours, elapsed wall-clock time
// multiplied by crew size, which is how field labor is billed.
//
// Everything here is a pure function of the records it is given; no I/O.
package segment

import (
	"slices"
	"sort"
	"time"

	"github.com/SpaceTrucker2196/fieldhand/internal/models"
)

// WorkSegment is a derived interval with a fixed worker set.
type WorkSegment struct {
	Start     time.Time
	End       *time.Time // nil while the segment is still open
	WorkerIDs []string   // sorted

	ElapsedHours float64 // wall-clock, zero while open
	TotalHours   float64 // ElapsedHours x crew size, zero while open
}

// Open reports whether the segment has no end yet.
func (s WorkSegment) Open() bool { return s.End == nil }

// LiveElapsedHours returns wall-clock hours from Start to now for an open
// segment, or ElapsedHours for a closed one.
func (s WorkSegment) LiveElapsedHours(now time.Time) float64 {
	if !s.Open() {
		return s.ElapsedHours
	}
	if !now.After(s.Start) {
		return 0
	}
	return now.Sub(s.Start).Hours()
}

// Summary is the accumulated-hours view of a work order. Derived from closed
// segments only; never authoritative.
type Summary struct {
	Segments    int
	PersonHours float64
}

// Fold groups one work order's time records into an ordered sequence of
// segments. A new segment boundary is introduced whenever the set of
// concurrently active workers changes or the calendar date changes. Records
// still open (nil clock-out) produce a trailing open segment.
func Fold(records []*models.TimeRecord) []WorkSegment {
	byDate := make(map[time.Time][]*models.TimeRecord)
	for _, rec := range records {
		key := rec.WorkDate.UTC()
		byDate[key] = append(byDate[key], rec)
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var segments []WorkSegment
	for _, d := range dates {
		segments = append(segments, foldDay(byDate[d])...)
	}
	return segments
}

// Summarize totals the closed segments.
func Summarize(segments []WorkSegment) Summary {
	var sum Summary
	for _, s := range segments {
		if s.Open() {
			continue
		}
		sum.Segments++
		sum.PersonHours += s.TotalHours
	}
	return sum
}

// Current returns the open segment, if any.
func Current(segments []WorkSegment) (WorkSegment, bool) {
	for _, s := range segments {
		if s.Open() {
			return s, true
		}
	}
	return WorkSegment{}, false
}

// foldDay sweeps one calendar date's records. Boundary instants are every
// clock-in and clock-out; between consecutive boundaries the active worker
// set is constant, and adjacent intervals with the same set are merged.
func foldDay(records []*models.TimeRecord) []WorkSegment {
	var boundaries []time.Time
	anyOpen := false
	for _, rec := range records {
		boundaries = appendInstant(boundaries, rec.ClockIn)
		if rec.ClockOut != nil {
			boundaries = appendInstant(boundaries, *rec.ClockOut)
		} else {
			anyOpen = true
		}
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Before(boundaries[j]) })

	var segments []WorkSegment
	for i := 0; i < len(boundaries)-1; i++ {
		start, end := boundaries[i], boundaries[i+1]
		workers := activeAt(records, start, false)
		if len(workers) == 0 {
			continue
		}
		segments = mergeOrAppend(segments, closedSegment(start, end, workers))
	}

	if anyOpen && len(boundaries) > 0 {
		last := boundaries[len(boundaries)-1]
		workers := activeAt(records, last, true)
		if len(workers) > 0 {
			segments = append(segments, WorkSegment{Start: last, WorkerIDs: workers})
		}
	}
	return segments
}

// activeAt returns the sorted worker ids whose interval covers instant t.
// When openOnly is set, only records without a clock-out count.
func activeAt(records []*models.TimeRecord, t time.Time, openOnly bool) []string {
	var workers []string
	for _, rec := range records {
		if rec.ClockIn.After(t) {
			continue
		}
		if rec.ClockOut != nil {
			if openOnly || !rec.ClockOut.After(t) {
				continue
			}
		}
		if !slices.Contains(workers, rec.WorkerID) {
			workers = append(workers, rec.WorkerID)
		}
	}
	sort.Strings(workers)
	return workers
}

func closedSegment(start, end time.Time, workers []string) WorkSegment {
	elapsed := end.Sub(start).Hours()
	e := end
	return WorkSegment{
		Start:        start,
		End:          &e,
		WorkerIDs:    workers,
		ElapsedHours: elapsed,
		TotalHours:   elapsed * float64(len(workers)),
	}
}

func mergeOrAppend(segments []WorkSegment, next WorkSegment) []WorkSegment {
	if len(segments) > 0 {
		prev := &segments[len(segments)-1]
		if prev.End != nil && prev.End.Equal(next.Start) && slices.Equal(prev.WorkerIDs, next.WorkerIDs) {
			prev.End = next.End
			prev.ElapsedHours += next.ElapsedHours
			prev.TotalHours += next.TotalHours
			return segments
		}
	}
	return append(segments, next)
}

func appendInstant(instants []time.Time, t time.Time) []time.Time {
	for _, existing := range instants {
		if existing.Equal(t) {
			return instants
		}
	}
	return append(instants, t)
}
