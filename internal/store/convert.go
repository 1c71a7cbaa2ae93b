package store

import (
	"github.com/amirbrooks/daynote/internal/taskline"
	"github.com/charmbracelet/log"
)

// ConvertReport summarizes a conversion pass over the vault.
type ConvertReport struct {
	Converted []string // dates whose note was rewritten
	Lines     int      // task lines rewritten
	Skipped   int      // notes without convertible lines
	Failed    []string // dates whose note could not be read or written
}

// ConvertNote rewrites the legacy task lines of one note and returns how many
// lines changed. With dryRun nothing is written.
func (v *Vault) ConvertNote(date string, n *taskline.Normalizer, dryRun bool) (int, error) {
	note, err := v.ReadNote(date)
	if err != nil {
		return 0, err
	}
	out, changed := n.ConvertText(note.Content, date)
	if changed == 0 || dryRun {
		return changed, nil
	}
	if err := atomicWriteFile(note.Path, []byte(out), 0o644); err != nil {
		return 0, err
	}
	return changed, nil
}

// ConvertAll converts every note in the vault. A failing note is logged and
// the pass continues with the next one.
func (v *Vault) ConvertAll(n *taskline.Normalizer, dryRun bool, logger *log.Logger) (ConvertReport, error) {
	var rep ConvertReport
	dates, err := v.ListNotes()
	if err != nil {
		return rep, err
	}
	for _, date := range dates {
		changed, err := v.ConvertNote(date, n, dryRun)
		if err != nil {
			logger.Error("convert failed", "date", date, "err", err)
			rep.Failed = append(rep.Failed, date)
			continue
		}
		if changed == 0 {
			rep.Skipped++
			continue
		}
		logger.Debug("converted note", "date", date, "lines", changed, "dry_run", dryRun)
		rep.Converted = append(rep.Converted, date)
		rep.Lines += changed
	}
	return rep, nil
}
