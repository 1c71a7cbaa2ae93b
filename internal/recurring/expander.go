package recurring

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirbrooks/daynote/internal/store"
	"github.com/charmbracelet/log"
)

// SkipReason tells why a template or a single insertion was skipped.
type SkipReason int

const (
	SkipNone SkipReason = iota
	SkipCompleted
	SkipNoRecurrence
	SkipUnknownWeekday
	SkipUnknownMonthday
	SkipNoNote
	SkipNotWorkday
	SkipPresent
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipCompleted:
		return "completed"
	case SkipNoRecurrence:
		return "no-recurrence"
	case SkipUnknownWeekday:
		return "unknown-weekday"
	case SkipUnknownMonthday:
		return "unknown-monthday"
	case SkipNoNote:
		return "no-note"
	case SkipNotWorkday:
		return "not-workday"
	case SkipPresent:
		return "already-present"
	default:
		return "unknown"
	}
}

// DefaultWindow is the number of days after today covered by an expansion.
const DefaultWindow = 14

// DefaultWorkdayMarkers mark a day note as a work shift.
var DefaultWorkdayMarkers = []string{"勤務", "出勤"}

// Templates groups the parsed template files by frequency.
type Templates struct {
	Daily   []Template
	Weekly  []Template
	Monthly []Template
}

// Skip records one skipped template or insertion.
type Skip struct {
	Date   string // empty for template-level skips
	Line   string
	Reason SkipReason
}

// ExpandReport summarizes an expansion run.
type ExpandReport struct {
	Added   int
	Skipped int // insertions skipped because the task was already present
	Created []string
	Skips   []Skip
}

func (r *ExpandReport) skip(date, line string, reason SkipReason) {
	if reason == SkipPresent {
		r.Skipped++
	}
	r.Skips = append(r.Skips, Skip{Date: date, Line: line, Reason: reason})
}

// createdNote reports whether this run created the note of date.
func (r *ExpandReport) createdNote(date string) bool {
	for _, d := range r.Created {
		if d == date {
			return true
		}
	}
	return false
}

// Expander inserts template tasks into the day notes of a window of days.
type Expander struct {
	Vault          *store.Vault
	Window         int
	WorkdayMarkers []string
	Logger         *log.Logger
}

// Run expands templates over today .. today+Window. A zero Window covers
// today only.
//
// Daily and monthly templates only go into existing notes of workdays.
// Weekly templates go into workday notes on the matching weekday and create
// the note when it does not exist yet; a note created during the run counts
// as eligible for the remaining weekly templates, never for monthly ones.
func (e *Expander) Run(today time.Time, tpl Templates) (ExpandReport, error) {
	var rep ExpandReport
	if e.Window < 0 {
		return rep, fmt.Errorf("%w: window must not be negative, got %d", store.ErrInvalid, e.Window)
	}
	end := today.AddDate(0, 0, e.Window)

	for _, t := range tpl.Daily {
		if t.Completed {
			rep.skip("", t.Line, SkipCompleted)
			continue
		}
		for day := today; !day.After(end); day = day.AddDate(0, 0, 1) {
			if err := e.insert(day, t, false, &rep); err != nil {
				return rep, err
			}
		}
	}

	for _, t := range tpl.Weekly {
		if t.Completed {
			rep.skip("", t.Line, SkipCompleted)
			continue
		}
		wd, reason := t.Weekday()
		if reason != SkipNone {
			e.logger().Debug("skipping weekly template", "line", t.Line, "reason", reason)
			rep.skip("", t.Line, reason)
			continue
		}
		for day := today; !day.After(end); day = day.AddDate(0, 0, 1) {
			if MondayIndex(day.Weekday()) != wd {
				continue
			}
			if err := e.insert(day, t, true, &rep); err != nil {
				return rep, err
			}
		}
	}

	for _, t := range tpl.Monthly {
		if t.Completed {
			rep.skip("", t.Line, SkipCompleted)
			continue
		}
		md, reason := t.Monthday()
		if reason != SkipNone {
			e.logger().Debug("skipping monthly template", "line", t.Line, "reason", reason)
			rep.skip("", t.Line, reason)
			continue
		}
		for day := today; !day.After(end); day = day.AddDate(0, 0, 1) {
			if day.Day() != md {
				continue
			}
			if err := e.insert(day, t, false, &rep); err != nil {
				return rep, err
			}
		}
	}
	return rep, nil
}

// insert adds the template to the note of day. An existing note must be a
// workday note; a missing note is created only when createMissing is set, and
// then a note created earlier in this run also qualifies.
func (e *Expander) insert(day time.Time, t Template, createMissing bool, rep *ExpandReport) error {
	date := store.FormatDate(day)
	line := t.LineFor(day)
	note, err := e.Vault.ReadNote(date)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if !createMissing {
			rep.skip(date, line, SkipNoNote)
			return nil
		}
	case err != nil:
		return fmt.Errorf("read %s: %w", date, err)
	case !note.ContainsAny(e.markers()) && !(createMissing && rep.createdNote(date)):
		rep.skip(date, line, SkipNotWorkday)
		return nil
	}

	added, err := e.Vault.AppendMissing(date, []string{line}, createMissing)
	if err != nil {
		return fmt.Errorf("update %s: %w", date, err)
	}
	if note == nil {
		rep.Created = append(rep.Created, date)
	}
	if len(added) == 0 {
		rep.skip(date, line, SkipPresent)
		return nil
	}
	e.logger().Debug("inserted task", "date", date, "line", line)
	rep.Added++
	return nil
}

func (e *Expander) markers() []string {
	if len(e.WorkdayMarkers) == 0 {
		return DefaultWorkdayMarkers
	}
	return e.WorkdayMarkers
}

func (e *Expander) logger() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}
