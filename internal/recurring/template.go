package recurring

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amirbrooks/daynote/internal/store"
	"github.com/amirbrooks/daynote/internal/taskline"
)

// Template is one task line of a human-authored template file.
type Template struct {
	Line      string // trimmed source line
	Text      string // line without the checkbox
	Completed bool
}

var (
	templateLineRe = regexp.MustCompile(`^\s*-\s+\[([ xX])\]\s+(.+)$`)
	weeklyRe       = regexp.MustCompile(`(?i)🔁\s*every\s+(\w+)`)
	monthlyRe      = regexp.MustCompile(`(?i)🔁\s*every\s+month\s+on\s+the\s+(\d+)(?:st|nd|rd|th)?`)
	recurrenceRe   = regexp.MustCompile(`🔁.*$`)
	dueDateRe      = regexp.MustCompile(`📅\s*\d{4}-\d{2}-\d{2}`)
)

var weekdayIndex = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// ParseTemplates extracts the task lines of a template file. Comment lines
// and empty tasks are dropped; completed tasks are kept and marked.
func ParseTemplates(lines []string) []Template {
	var out []Template
	for _, raw := range lines {
		m := templateLineRe.FindStringSubmatch(strings.TrimRight(raw, "\r"))
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[2])
		if text == "" || strings.HasPrefix(text, "<!--") {
			continue
		}
		out = append(out, Template{
			Line:      strings.TrimSpace(raw),
			Text:      text,
			Completed: strings.EqualFold(m[1], "x"),
		})
	}
	return out
}

// Weekday returns the weekday (0 = Monday) named by "🔁 every <Weekday>".
func (t Template) Weekday() (int, SkipReason) {
	m := weeklyRe.FindStringSubmatch(t.Text)
	if m == nil {
		return 0, SkipNoRecurrence
	}
	wd, ok := weekdayIndex[strings.ToLower(m[1])]
	if !ok {
		return 0, SkipUnknownWeekday
	}
	return wd, SkipNone
}

// Monthday returns N from "🔁 every month on the Nth".
func (t Template) Monthday() (int, SkipReason) {
	m := monthlyRe.FindStringSubmatch(t.Text)
	if m == nil {
		return 0, SkipNoRecurrence
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 31 {
		return 0, SkipUnknownMonthday
	}
	return n, SkipNone
}

// LineFor renders the template for day: the recurrence suffix is dropped and
// the due date is set to day.
func (t Template) LineFor(day time.Time) string {
	date := store.FormatDate(day)
	line := strings.TrimSpace(recurrenceRe.ReplaceAllString(t.Line, ""))
	due := taskline.DueMarker + " " + date
	if loc := dueDateRe.FindStringIndex(line); loc != nil {
		return line[:loc[0]] + due + line[loc[1]:]
	}
	return line + " " + due
}
