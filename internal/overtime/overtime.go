// Package overtime splits a worker's weekly hours into regular and overtime
// portions. The authoritative split considers sealed records only; the live
// total adds the open record's elapsed time for dashboard display and is
// never used for payroll-style reporting.
package overtime

import (
	"context"
	"fmt"

	"github.com/SpaceTrucker2196/fieldhand/internal/clock"
	"github.com/SpaceTrucker2196/fieldhand/internal/store"
)

// WeeklyRegularLimit is the regular-hours ceiling per ISO week.
const WeeklyRegularLimit = 40.0

// Split is one worker's hours for one ISO week.
type Split struct {
	WorkerID string
	ISOYear  int
	ISOWeek  int

	TotalHours    float64
	RegularHours  float64
	OvertimeHours float64
}

// Calculator reads sealed time records and derives weekly splits.
type Calculator struct {
	records store.TimeRecordStore
	clk     clock.Clock
}

func NewCalculator(records store.TimeRecordStore, clk clock.Clock) *Calculator {
	return &Calculator{records: records, clk: clk}
}

// WeeklySplit computes the regular/overtime split for the worker's given ISO
// week from sealed records. RegularHours + OvertimeHours always equals
// TotalHours.
func (c *Calculator) WeeklySplit(ctx context.Context, workerID string, year, week int) (Split, error) {
	start := clock.WeekStart(year, week)
	end := start.AddDate(0, 0, 7)

	recs, err := c.records.ListForWorkerBetween(ctx, workerID, start, end)
	if err != nil {
		return Split{}, fmt.Errorf("list records: %w", err)
	}

	var total float64
	for _, rec := range recs {
		if !rec.Sealed() {
			continue
		}
		if rec.ISOYear != year || rec.ISOWeek != week {
			continue
		}
		total += rec.HoursWorked
	}

	return split(workerID, year, week, total), nil
}

// LiveSplit is WeeklySplit plus the elapsed time of the worker's open record
// when it falls in the requested week. For "hours so far" displays only.
func (c *Calculator) LiveSplit(ctx context.Context, workerID string, year, week int) (Split, error) {
	s, err := c.WeeklySplit(ctx, workerID, year, week)
	if err != nil {
		return Split{}, err
	}
	now := c.clk.Now()

	active, err := c.records.ActiveForWorker(ctx, workerID)
	if err != nil {
		return Split{}, fmt.Errorf("check active record: %w", err)
	}
	if active != nil && active.ISOYear == year && active.ISOWeek == week && now.After(active.ClockIn) {
		s = split(workerID, year, week, s.TotalHours+now.Sub(active.ClockIn).Hours())
	}
	return s, nil
}

func split(workerID string, year, week int, total float64) Split {
	regular := min(total, WeeklyRegularLimit)
	return Split{
		WorkerID:      workerID,
		ISOYear:       year,
		ISOWeek:       week,
		TotalHours:    total,
		RegularHours:  regular,
		OvertimeHours: total - regular,
	}
}
