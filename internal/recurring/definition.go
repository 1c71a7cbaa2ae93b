// Package recurring turns recurring task definitions into dated task lines
// and inserts them into day notes without creating duplicates.
package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/amirbrooks/daynote/internal/store"
	"github.com/amirbrooks/daynote/internal/taskline"
)

const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
)

// Definition is one entry of the fixed daily checklist.
type Definition struct {
	Title     string `yaml:"title"`
	Tag       string `yaml:"tag,omitempty"`
	Duration  int    `yaml:"duration,omitempty"`
	Frequency string `yaml:"frequency"`
	Weekdays  []int  `yaml:"weekdays,omitempty"` // 0 = Monday
	Monthdays []int  `yaml:"monthdays,omitempty"`
	Extra     string `yaml:"extra,omitempty"`
}

// DefaultChecklist is used when no checklist file exists.
var DefaultChecklist = []Definition{
	{Title: "店長日次チェックリスト更新", Tag: "定型作業", Duration: 15, Frequency: Daily},
	{Title: "売場・在庫確認", Tag: "売場作業", Duration: 30, Frequency: Daily},
	{Title: "スタッフ共有事項整理", Tag: "デスクワーク", Duration: 30, Frequency: Daily},
	{Title: "日報・AI要約メモ作成", Tag: "デスクワーク", Duration: 30, Frequency: Daily},
}

// Validate checks the fields a definition needs to render.
func (d Definition) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: definition title is required", store.ErrInvalid)
	}
	switch d.frequency() {
	case Daily, Weekly, Monthly:
	default:
		return fmt.Errorf("%w: definition %q has unknown frequency %q", store.ErrInvalid, d.Title, d.Frequency)
	}
	for _, wd := range d.Weekdays {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("%w: definition %q has weekday %d (want 0-6)", store.ErrInvalid, d.Title, wd)
		}
	}
	for _, md := range d.Monthdays {
		if md < 1 || md > 31 {
			return fmt.Errorf("%w: definition %q has monthday %d (want 1-31)", store.ErrInvalid, d.Title, md)
		}
	}
	return nil
}

func (d Definition) frequency() string {
	f := strings.ToLower(strings.TrimSpace(d.Frequency))
	if f == "" {
		return Daily
	}
	return f
}

// AppliesTo reports whether the definition schedules a task on day.
func (d Definition) AppliesTo(day time.Time) bool {
	switch d.frequency() {
	case Daily:
		return true
	case Weekly:
		return containsInt(d.Weekdays, MondayIndex(day.Weekday()))
	case Monthly:
		return containsInt(d.Monthdays, day.Day())
	default:
		return false
	}
}

// Line renders the canonical task line for day.
func (d Definition) Line(day time.Time) string {
	return taskline.Line{
		Title:    strings.TrimSpace(d.Title),
		Tag:      strings.TrimPrefix(strings.TrimSpace(d.Tag), "#"),
		Duration: d.Duration,
		Due:      store.FormatDate(day),
		Extra:    strings.TrimSpace(d.Extra),
	}.Render()
}

// MondayIndex maps a weekday to 0 = Monday .. 6 = Sunday.
func MondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
