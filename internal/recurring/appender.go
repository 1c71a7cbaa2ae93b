package recurring

import (
	"fmt"
	"time"

	"github.com/amirbrooks/daynote/internal/store"
	"github.com/charmbracelet/log"
)

// Appender adds the fixed daily checklist to a range of day notes.
type Appender struct {
	Vault     *store.Vault
	Checklist []Definition
	Logger    *log.Logger
}

// AppendReport lists the days whose note received new lines.
type AppendReport struct {
	Updated []string
	Created []string
	Lines   int
}

// Run processes every day in [start, end]. Missing notes are created from the
// template; all missing checklist lines of a day are written at once.
func (a *Appender) Run(start, end time.Time) (AppendReport, error) {
	var rep AppendReport
	if end.Before(start) {
		return rep, fmt.Errorf("%w: start %s is after end %s", store.ErrInvalid,
			store.FormatDate(start), store.FormatDate(end))
	}
	for _, d := range a.Checklist {
		if err := d.Validate(); err != nil {
			return rep, err
		}
	}
	if err := a.Vault.Init(); err != nil {
		return rep, err
	}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := store.FormatDate(day)
		created := !a.Vault.Exists(date)
		var lines []string
		for _, d := range a.Checklist {
			if d.AppliesTo(day) {
				lines = append(lines, d.Line(day))
			}
		}
		added, err := a.Vault.AppendMissing(date, lines, true)
		if err != nil {
			return rep, fmt.Errorf("update %s: %w", date, err)
		}
		if created {
			rep.Created = append(rep.Created, date)
		}
		if len(added) == 0 {
			a.logger().Debug("checklist already present", "date", date)
			continue
		}
		a.logger().Debug("appended checklist", "date", date, "lines", len(added), "created", created)
		rep.Updated = append(rep.Updated, date)
		rep.Lines += len(added)
	}
	return rep, nil
}

func (a *Appender) logger() *log.Logger {
	if a.Logger == nil {
		return log.Default()
	}
	return a.Logger
}
