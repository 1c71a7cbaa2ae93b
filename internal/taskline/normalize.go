package taskline

import (
	"regexp"
	"strconv"
	"strings"
)

// Outcome tells why Convert did or did not rewrite a line.
type Outcome int

const (
	Converted Outcome = iota
	NotTask
	AlreadyCanonical
	Exempt
	NoTimeRange
	NonPositiveDuration
)

func (o Outcome) String() string {
	switch o {
	case Converted:
		return "converted"
	case NotTask:
		return "not-task"
	case AlreadyCanonical:
		return "already-canonical"
	case Exempt:
		return "exempt"
	case NoTimeRange:
		return "no-time-range"
	case NonPositiveDuration:
		return "non-positive-duration"
	default:
		return "unknown"
	}
}

// Options configure a Normalizer. Zero fields fall back to the package defaults.
type Options struct {
	Genres        []Genre
	DefaultGenre  string
	CanonicalTags []string
	ExemptTitles  []string
}

// Normalizer converts legacy task lines into the canonical format.
type Normalizer struct {
	genres      []Genre
	fallback    string
	exempt      map[string]bool
	canonicalRe *regexp.Regexp
}

// New builds a Normalizer from opts.
func New(opts Options) *Normalizer {
	n := &Normalizer{
		genres:   opts.Genres,
		fallback: strings.TrimPrefix(strings.TrimSpace(opts.DefaultGenre), "#"),
		exempt:   map[string]bool{},
	}
	if len(n.genres) == 0 {
		n.genres = DefaultGenres
	}
	if n.fallback == "" {
		n.fallback = DefaultGenre
	}
	exempt := opts.ExemptTitles
	if exempt == nil {
		exempt = DefaultExemptTitles
	}
	for _, t := range exempt {
		n.exempt[strings.TrimSpace(t)] = true
	}

	extra := opts.CanonicalTags
	if extra == nil {
		extra = ExtraCanonicalTags
	}
	seen := map[string]bool{}
	var alts []string
	add := func(tag string) {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		alts = append(alts, regexp.QuoteMeta(tag))
	}
	for _, g := range n.genres {
		add(g.Tag)
	}
	add(n.fallback)
	for _, t := range extra {
		add(t)
	}
	n.canonicalRe = regexp.MustCompile(`#(?:` + strings.Join(alts, "|") + `)`)
	return n
}

// Genre infers the tag for title.
func (n *Normalizer) Genre(title string) string {
	return Classify(title, n.genres, n.fallback)
}

// IsCanonical reports whether line already has a duration and a known tag.
func (n *Normalizer) IsCanonical(line string) bool {
	return strings.Contains(line, "⏱") && n.canonicalRe.MatchString(line)
}

// IsExempt reports whether title is a fixed entry that must be left alone.
func (n *Normalizer) IsExempt(title string) bool {
	return n.exempt[strings.TrimSpace(title)]
}

// Convert rewrites a legacy task line from the note of date into canonical
// form, keeping its indentation. Lines that cannot be converted safely are
// returned unchanged.
func (n *Normalizer) Convert(line, date string) (string, Outcome) {
	if !IsTask(line) {
		return line, NotTask
	}
	if n.IsCanonical(line) {
		return line, AlreadyCanonical
	}
	m := checkboxRe.FindStringSubmatch(line)
	completed := strings.EqualFold(m[1], "x")
	timeRange := timeRangeRe.FindString(line)

	title := Title(line)
	if n.IsExempt(title) {
		return line, Exempt
	}
	if timeRange == "" {
		return line, NoTimeRange
	}
	minutes, ok := Minutes(timeRange)
	if !ok || minutes <= 0 {
		return line, NonPositiveDuration
	}
	out := Line{
		Completed: completed,
		Title:     title,
		Tag:       n.Genre(title),
		Duration:  minutes,
		Due:       date,
	}
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	return indent + out.Render(), Converted
}

// ConvertText converts every task line of a note and reports whether anything changed.
func (n *Normalizer) ConvertText(content, date string) (string, int) {
	lines := strings.Split(content, "\n")
	changed := 0
	for i, line := range lines {
		out, outcome := n.Convert(line, date)
		if outcome == Converted && out != line {
			lines[i] = out
			changed++
		}
	}
	return strings.Join(lines, "\n"), changed
}

// Minutes returns end minus start of an "HH:MM-HH:MM" range.
func Minutes(timeRange string) (int, bool) {
	m := timeRangeRe.FindStringSubmatch(strings.TrimSpace(timeRange))
	if m == nil {
		return 0, false
	}
	v := make([]int, 4)
	for i := range v {
		v[i], _ = strconv.Atoi(m[i+1])
	}
	return (v[2]*60 + v[3]) - (v[0]*60 + v[1]), true
}
