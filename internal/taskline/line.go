// Package taskline parses, normalizes and renders the task lines of a day note.
//
// A canonical line looks like
//
//	- [ ] 品出し #売場作業 ⏱️ 30 📅 2025-12-01
//
// Legacy lines carry an HH:MM-HH:MM range instead of a duration and are
// converted one way into the canonical form by Normalizer.Convert.
package taskline

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// DurationMarker precedes the duration in minutes.
	DurationMarker = "⏱️"
	// DueMarker precedes the due date.
	DueMarker = "📅"
	// ScheduledMarker precedes the scheduled date.
	ScheduledMarker = "⏳"
	// DoneMarker precedes the completion date.
	DoneMarker = "✅"
	// RecurrenceMarker precedes a recurrence expression such as "every Thursday".
	RecurrenceMarker = "🔁"
)

// Line is one task occurrence.
type Line struct {
	Completed  bool
	Title      string
	Tag        string // without the leading '#'
	Duration   int    // minutes, 0 when absent
	Due        string // YYYY-MM-DD
	Scheduled  string // YYYY-MM-DD
	Done       string // YYYY-MM-DD
	Recurrence string // text after the recurrence marker
	Extra      string
	// TimeRange is only set for legacy lines and is never rendered.
	TimeRange string
}

// IsTask reports whether line is a checkbox line followed by text.
func IsTask(line string) bool {
	loc := checkboxRe.FindStringIndex(line)
	if loc == nil {
		return false
	}
	return strings.TrimSpace(line[loc[1]:]) != ""
}

// Parse splits a task line into its fields. It returns false for non-task lines.
func Parse(line string) (Line, bool) {
	m := checkboxRe.FindStringSubmatch(line)
	if m == nil || !IsTask(line) {
		return Line{}, false
	}
	l := Line{Completed: strings.EqualFold(m[1], "x")}
	rest := line[len(m[0]):]

	if i := strings.Index(rest, RecurrenceMarker); i >= 0 {
		l.Recurrence = strings.TrimSpace(rest[i+len(RecurrenceMarker):])
		rest = rest[:i]
	}
	rest, l.TimeRange = cut(rest, timeRangeRe, 0)
	var minutes string
	rest, minutes = cut(rest, durationRe, 1)
	if minutes != "" {
		l.Duration, _ = strconv.Atoi(minutes)
	}

	// Text after the last date marker is the extra suffix.
	var tail string
	if end := lastDateEnd(rest); end >= 0 {
		rest, tail = rest[:end], rest[end:]
	}
	rest, l.Due = cut(rest, dueRe, 1)
	rest, l.Scheduled = cut(rest, scheduledRe, 1)
	rest, l.Done = cut(rest, doneRe, 1)

	tags := hashtagRe.FindAllString(rest, -1)
	rest = hashtagRe.ReplaceAllString(rest, "")
	var extra []string
	if len(tags) > 0 {
		l.Tag = strings.TrimPrefix(tags[0], "#")
		extra = tags[1:]
	}
	if tail = squash(tail); tail != "" {
		extra = append(extra, tail)
	}
	l.Extra = strings.Join(extra, " ")
	l.Title = squash(rest)
	return l, true
}

// lastDateEnd returns the end offset of the last due, scheduled or
// completion marker in s, or -1.
func lastDateEnd(s string) int {
	end := -1
	for _, re := range []*regexp.Regexp{dueRe, scheduledRe, doneRe} {
		for _, loc := range re.FindAllStringIndex(s, -1) {
			if loc[1] > end {
				end = loc[1]
			}
		}
	}
	return end
}

// cut removes the first match of re from s and returns the requested group.
func cut(s string, re *regexp.Regexp, group int) (string, string) {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s, ""
	}
	value := s[loc[2*group]:loc[2*group+1]]
	return s[:loc[0]] + " " + s[loc[1]:], value
}

// Render writes the line in canonical order: checkbox, title, tag, duration,
// due, scheduled, completion, extra suffix, recurrence.
func (l Line) Render() string {
	parts := []string{"- [ ]"}
	if l.Completed {
		parts[0] = "- [x]"
	}
	if l.Title != "" {
		parts = append(parts, l.Title)
	}
	if l.Tag != "" {
		parts = append(parts, "#"+strings.TrimPrefix(l.Tag, "#"))
	}
	if l.Duration > 0 {
		parts = append(parts, DurationMarker+" "+strconv.Itoa(l.Duration))
	}
	if l.Due != "" {
		parts = append(parts, DueMarker+" "+l.Due)
	}
	if l.Scheduled != "" {
		parts = append(parts, ScheduledMarker+" "+l.Scheduled)
	}
	if l.Done != "" {
		parts = append(parts, DoneMarker+" "+l.Done)
	}
	if l.Extra != "" {
		parts = append(parts, l.Extra)
	}
	if l.Recurrence != "" {
		parts = append(parts, RecurrenceMarker+" "+l.Recurrence)
	}
	return strings.Join(parts, " ")
}

// Key returns the duplicate-detection key of the rendered line.
func (l Line) Key() string {
	return Key(l.Render())
}
