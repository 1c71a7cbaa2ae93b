package taskline

import (
	"regexp"
	"strings"
)

// Rule strips one kind of token from a task line.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	// Once limits the rule to the first match.
	Once bool
}

// Apply removes the rule's matches from s.
func (r Rule) Apply(s string) string {
	if !r.Once {
		return r.Pattern.ReplaceAllString(s, "")
	}
	loc := r.Pattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + s[loc[1]:]
}

const weekdayNames = `(?:mon|tues|wednes|thurs|fri|satur|sun)day`

var (
	checkboxRe   = regexp.MustCompile(`^\s*-\s+\[([ xX])\]\s*`)
	timeRangeRe  = regexp.MustCompile(`(\d{2}):(\d{2})-(\d{2}):(\d{2})`)
	durationRe   = regexp.MustCompile(`⏱\x{FE0F}?\s*(\d+)`)
	dueRe        = regexp.MustCompile(`📅\s*(\d{4}-\d{2}-\d{2})`)
	scheduledRe  = regexp.MustCompile(`⏳\s*(\d{4}-\d{2}-\d{2})`)
	doneRe       = regexp.MustCompile(`✅\s*(\d{4}-\d{2}-\d{2})`)
	// A '#' anywhere starts a tag, so "C#勉強" keys as "C".
	hashtagRe    = regexp.MustCompile(`#[^\s#]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	ordinal = `(?:\d+(?:st|nd|rd|th)|last)`
	// 🔁 followed by an optional keyword: "every day", "every Thursday",
	// "every 2nd, 4th Wednesday", "every month on the 1st".
	recurrenceKeywordRe = regexp.MustCompile(`(?i)🔁\s*(?:every\s+)?(?:` +
		`weekday|day|week|` +
		`month(?:\s+on\s+the\s+\d+(?:st|nd|rd|th)?)?|` +
		`(?:` + ordinal + `(?:\s*,\s*` + ordinal + `)*\s+)?` + weekdayNames +
		`)?\s*`)
)

// TitleRules extract the bare title from a legacy or canonical line, in order.
var TitleRules = []Rule{
	{Name: "checkbox", Pattern: checkboxRe},
	{Name: "time-range", Pattern: regexp.MustCompile(`\d{2}:\d{2}-\d{2}:\d{2}\s*`), Once: true},
	{Name: "due", Pattern: regexp.MustCompile(`📅\s*\d{4}-\d{2}-\d{2}\s*`)},
	{Name: "scheduled", Pattern: regexp.MustCompile(`⏳\s*\d{4}-\d{2}-\d{2}\s*`)},
	{Name: "calendar-tag", Pattern: regexp.MustCompile(`#calendar(?:\s+|$)`)},
	{Name: "recurrence", Pattern: recurrenceKeywordRe},
	{Name: "completion", Pattern: regexp.MustCompile(`✅\s*\d{4}-\d{2}-\d{2}\s*`)},
}

// KeyRules reduce a line to the title used for duplicate detection, in order.
var KeyRules = []Rule{
	{Name: "checkbox", Pattern: checkboxRe},
	{Name: "duration", Pattern: durationRe},
	{Name: "date", Pattern: regexp.MustCompile(`(?:📅|⏳|✅|🛫|➕)\s*\d{4}-\d{2}-\d{2}`)},
	{Name: "hashtag", Pattern: hashtagRe},
	{Name: "recurrence", Pattern: regexp.MustCompile(`🔁.*$`)},
}

// Strip applies rules left to right and normalizes the remaining whitespace.
func Strip(s string, rules []Rule) string {
	for _, r := range rules {
		s = r.Apply(s)
	}
	return squash(s)
}

// Title returns the bare title of a line using TitleRules.
func Title(line string) string {
	return Strip(line, TitleRules)
}

// Key returns the comparison key of a line using KeyRules. Two task lines
// describe the same task iff their keys are equal.
func Key(line string) string {
	return Strip(line, KeyRules)
}

func squash(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
