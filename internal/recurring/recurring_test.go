package recurring

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/amirbrooks/daynote/internal/store"
	"github.com/charmbracelet/log"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := store.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func newVault(t *testing.T) *store.Vault {
	t.Helper()
	v := store.Open(t.TempDir(), "スケジュール")
	if err := v.Init(); err != nil {
		t.Fatal(err)
	}
	return v
}

func writeNote(t *testing.T, v *store.Vault, date, content string) {
	t.Helper()
	if err := os.WriteFile(v.NotePath(date), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readNote(t *testing.T, v *store.Vault, date string) string {
	t.Helper()
	b, err := os.ReadFile(v.NotePath(date))
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{})
}

func TestAppliesTo(t *testing.T) {
	monday := day(t, "2025-12-01")
	tests := []struct {
		name string
		def  Definition
		day  time.Time
		want bool
	}{
		{"daily", Definition{Frequency: Daily}, monday, true},
		{"empty frequency is daily", Definition{}, monday, true},
		{"weekly match", Definition{Frequency: Weekly, Weekdays: []int{0}}, monday, true},
		{"weekly miss", Definition{Frequency: Weekly, Weekdays: []int{6}}, monday, false},
		{"weekly without days", Definition{Frequency: Weekly}, monday, false},
		{"monthly match", Definition{Frequency: Monthly, Monthdays: []int{1, 15}}, monday, true},
		{"monthly miss", Definition{Frequency: Monthly, Monthdays: []int{2}}, monday, false},
		{"unknown", Definition{Frequency: "yearly"}, monday, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.def.AppliesTo(tt.day); got != tt.want {
				t.Errorf("AppliesTo: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefinitionLine(t *testing.T) {
	d := Definition{Title: "店長日次チェックリスト更新", Tag: "#定型作業", Duration: 15, Extra: "#calendar"}
	want := "- [ ] 店長日次チェックリスト更新 #定型作業 ⏱️ 15 📅 2025-12-01 #calendar"
	if got := d.Line(day(t, "2025-12-01")); got != want {
		t.Errorf("Line: got %q, want %q", got, want)
	}
}

func TestDefinitionValidate(t *testing.T) {
	bad := []Definition{
		{},
		{Title: "x", Frequency: "yearly"},
		{Title: "x", Frequency: Weekly, Weekdays: []int{7}},
		{Title: "x", Frequency: Monthly, Monthdays: []int{0}},
	}
	for _, d := range bad {
		if err := d.Validate(); !errors.Is(err, store.ErrInvalid) {
			t.Errorf("Validate(%+v): expected ErrInvalid, got %v", d, err)
		}
	}
	for _, d := range DefaultChecklist {
		if err := d.Validate(); err != nil {
			t.Errorf("default checklist entry invalid: %v", err)
		}
	}
}

func TestAppenderCreatesNoteWithChecklist(t *testing.T) {
	v := newVault(t)
	a := &Appender{Vault: v, Checklist: DefaultChecklist, Logger: quietLogger()}
	rep, err := a.Run(day(t, "2025-12-01"), day(t, "2025-12-01"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Updated) != 1 || rep.Lines != 4 || len(rep.Created) != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	content := readNote(t, v, "2025-12-01")
	if !strings.HasPrefix(content, store.NoteTemplate("2025-12-01")) {
		t.Errorf("note does not start with the template: %q", content)
	}
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(content, store.NoteTemplate("2025-12-01")), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 appended lines, got %d: %q", len(lines), lines)
	}
	for i, line := range lines {
		if !strings.HasSuffix(line, "📅 2025-12-01") {
			t.Errorf("line %d does not end with the date: %q", i, line)
		}
		if !strings.Contains(line, DefaultChecklist[i].Title) {
			t.Errorf("line %d out of definition order: %q", i, line)
		}
	}
}

func TestAppenderIsIdempotent(t *testing.T) {
	v := newVault(t)
	a := &Appender{Vault: v, Checklist: DefaultChecklist, Logger: quietLogger()}
	start, end := day(t, "2025-12-01"), day(t, "2025-12-03")
	if _, err := a.Run(start, end); err != nil {
		t.Fatal(err)
	}
	first := readNote(t, v, "2025-12-02")
	rep, err := a.Run(start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(rep.Updated) != 0 || len(rep.Created) != 0 {
		t.Errorf("second run should change nothing: %+v", rep)
	}
	if second := readNote(t, v, "2025-12-02"); second != first {
		t.Errorf("content changed:\n%s\n---\n%s", first, second)
	}
}

func TestAppenderKeepsExistingNote(t *testing.T) {
	v := newVault(t)
	writeNote(t, v, "2025-12-01", "## 今日のスケジュール\n- [x] 売場・在庫確認 #売場作業 ⏱️ 30 📅 2025-12-01")
	a := &Appender{Vault: v, Checklist: DefaultChecklist, Logger: quietLogger()}
	rep, err := a.Run(day(t, "2025-12-01"), day(t, "2025-12-01"))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Lines != 3 {
		t.Fatalf("expected 3 lines appended, got %+v", rep)
	}
	content := readNote(t, v, "2025-12-01")
	if strings.Count(content, "売場・在庫確認") != 1 {
		t.Errorf("duplicate checklist line: %q", content)
	}
	if !strings.HasSuffix(content, "\n") || strings.Contains(content, "2025-12-01- [ ]") {
		t.Errorf("lines not separated by newlines: %q", content)
	}
}

func TestAppenderWeeklyAndMonthly(t *testing.T) {
	v := newVault(t)
	a := &Appender{Vault: v, Logger: quietLogger(), Checklist: []Definition{
		{Title: "週報", Tag: "定型作業", Duration: 30, Frequency: Weekly, Weekdays: []int{4}},
		{Title: "月報", Tag: "定型作業", Duration: 60, Frequency: Monthly, Monthdays: []int{1}},
	}}
	// 2025-12-01 is a Monday, 2025-12-05 a Friday.
	rep, err := a.Run(day(t, "2025-12-01"), day(t, "2025-12-07"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(rep.Updated, ",") != "2025-12-01,2025-12-05" {
		t.Errorf("unexpected updated days: %v", rep.Updated)
	}
	if len(rep.Created) != 7 {
		t.Errorf("every day of the range gets a note: %v", rep.Created)
	}
}

func TestAppenderRejectsReversedRange(t *testing.T) {
	v := newVault(t)
	a := &Appender{Vault: v, Checklist: DefaultChecklist, Logger: quietLogger()}
	if _, err := a.Run(day(t, "2025-12-02"), day(t, "2025-12-01")); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if v.Exists("2025-12-01") || v.Exists("2025-12-02") {
		t.Error("reversed range must not touch notes")
	}
}

func TestParseTemplates(t *testing.T) {
	got := ParseTemplates([]string{
		"# 毎週",
		"- [ ] <!-- comment -->",
		"- [ ] ",
		"- [ ] 週次ミーティング準備 #デスクワーク ⏱️ 30 🔁 every Thursday",
		"  - [x] 終了した作業 🔁 every Friday\r",
		"",
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 templates, got %d: %+v", len(got), got)
	}
	if got[0].Completed || got[0].Text != "週次ミーティング準備 #デスクワーク ⏱️ 30 🔁 every Thursday" {
		t.Errorf("unexpected first template: %+v", got[0])
	}
	if !got[1].Completed || got[1].Line != "- [x] 終了した作業 🔁 every Friday" {
		t.Errorf("unexpected second template: %+v", got[1])
	}
}

func TestTemplateWeekday(t *testing.T) {
	tests := []struct {
		text   string
		want   int
		reason SkipReason
	}{
		{"a 🔁 every Thursday", 3, SkipNone},
		{"a 🔁 every monday", 0, SkipNone},
		{"a 🔁 every SUNDAY", 6, SkipNone},
		{"a 🔁 every Funday", 0, SkipUnknownWeekday},
		{"a", 0, SkipNoRecurrence},
	}
	for _, tt := range tests {
		got, reason := Template{Text: tt.text}.Weekday()
		if got != tt.want || reason != tt.reason {
			t.Errorf("Weekday(%q): got %d/%v, want %d/%v", tt.text, got, reason, tt.want, tt.reason)
		}
	}
}

func TestTemplateMonthday(t *testing.T) {
	tests := []struct {
		text   string
		want   int
		reason SkipReason
	}{
		{"a 🔁 every month on the 1st", 1, SkipNone},
		{"a 🔁 every month on the 25th", 25, SkipNone},
		{"a 🔁 Every Month On The 3", 3, SkipNone},
		{"a 🔁 every month on the 40th", 0, SkipUnknownMonthday},
		{"a 🔁 every Friday", 0, SkipNoRecurrence},
	}
	for _, tt := range tests {
		got, reason := Template{Text: tt.text}.Monthday()
		if got != tt.want || reason != tt.reason {
			t.Errorf("Monthday(%q): got %d/%v, want %d/%v", tt.text, got, reason, tt.want, tt.reason)
		}
	}
}

func TestTemplateLineFor(t *testing.T) {
	d := day(t, "2025-12-04")
	tests := []struct {
		line string
		want string
	}{
		{"- [ ] 発注 #定型作業 ⏱️ 15 🔁 every Thursday", "- [ ] 発注 #定型作業 ⏱️ 15 📅 2025-12-04"},
		{"- [ ] 発注 📅 2024-01-01 #定型作業 🔁 every day", "- [ ] 発注 📅 2025-12-04 #定型作業"},
		{"- [ ] 発注", "- [ ] 発注 📅 2025-12-04"},
	}
	for _, tt := range tests {
		if got := (Template{Line: tt.line}).LineFor(d); got != tt.want {
			t.Errorf("LineFor(%q): got %q, want %q", tt.line, got, tt.want)
		}
	}
}

func newExpander(v *store.Vault, window int) *Expander {
	return &Expander{Vault: v, Window: window, Logger: quietLogger()}
}

func TestExpandDailyOnlyExistingWorkdays(t *testing.T) {
	v := newVault(t)
	writeNote(t, v, "2025-12-01", "- [ ] 09:00-18:00 勤務 📅 2025-12-01\n")
	writeNote(t, v, "2025-12-02", "- [ ] 終日 休み 📅 2025-12-02\n")
	tpl := Templates{Daily: ParseTemplates([]string{"- [ ] 朝礼 #定型作業 ⏱️ 10 🔁 every day"})}

	rep, err := newExpander(v, 2).Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Added != 1 || len(rep.Created) != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if !strings.Contains(readNote(t, v, "2025-12-01"), "- [ ] 朝礼 #定型作業 ⏱️ 10 📅 2025-12-01") {
		t.Error("workday note missing daily task")
	}
	if strings.Contains(readNote(t, v, "2025-12-02"), "朝礼") {
		t.Error("non-workday note received daily task")
	}
	if v.Exists("2025-12-03") {
		t.Error("daily expansion must not create notes")
	}
	reasons := map[SkipReason]int{}
	for _, s := range rep.Skips {
		reasons[s.Reason]++
	}
	if reasons[SkipNotWorkday] != 1 || reasons[SkipNoNote] != 1 {
		t.Errorf("unexpected skips: %+v", rep.Skips)
	}
}

func TestExpandWeeklyCreatesMissingNote(t *testing.T) {
	v := newVault(t)
	tpl := Templates{Weekly: ParseTemplates([]string{
		"- [ ] 週次ミーティング準備 #デスクワーク ⏱️ 30 🔁 every Thursday",
		"- [ ] 週次発注 #定型作業 ⏱️ 15 🔁 every Thursday",
	})}
	// 2025-12-04 is a Thursday.
	rep, err := newExpander(v, 6).Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(rep.Created, ",") != "2025-12-04" || rep.Added != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	content := readNote(t, v, "2025-12-04")
	if !strings.HasPrefix(content, store.NoteTemplate("2025-12-04")) {
		t.Errorf("created note lacks the template: %q", content)
	}
	for _, want := range []string{"週次ミーティング準備 #デスクワーク ⏱️ 30 📅 2025-12-04", "週次発注 #定型作業 ⏱️ 15 📅 2025-12-04"} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in %q", want, content)
		}
	}
}

func TestExpandWeeklySkipsNonWorkdayNote(t *testing.T) {
	v := newVault(t)
	writeNote(t, v, "2025-12-04", "- [ ] 休み 📅 2025-12-04\n")
	tpl := Templates{Weekly: ParseTemplates([]string{"- [ ] 週次発注 🔁 every Thursday"})}
	rep, err := newExpander(v, 6).Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Added != 0 || len(rep.Skips) != 1 || rep.Skips[0].Reason != SkipNotWorkday {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestExpandSkipsCompletedAndUnknown(t *testing.T) {
	v := newVault(t)
	tpl := Templates{
		Daily:  ParseTemplates([]string{"- [x] 済み 🔁 every day"}),
		Weekly: ParseTemplates([]string{"- [ ] 謎 🔁 every Funday", "- [ ] なし"}),
	}
	rep, err := newExpander(v, 3).Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	want := []SkipReason{SkipCompleted, SkipUnknownWeekday, SkipNoRecurrence}
	if len(rep.Skips) != len(want) {
		t.Fatalf("unexpected skips: %+v", rep.Skips)
	}
	for i, r := range want {
		if rep.Skips[i].Reason != r {
			t.Errorf("skip %d: got %v, want %v", i, rep.Skips[i].Reason, r)
		}
	}
	if rep.Added != 0 || len(rep.Created) != 0 {
		t.Errorf("nothing should be written: %+v", rep)
	}
}

func TestExpandMonthly(t *testing.T) {
	v := newVault(t)
	writeNote(t, v, "2025-12-10", "出勤 10:00-19:00\n")
	writeNote(t, v, "2025-12-11", "出勤 10:00-19:00\n")
	tpl := Templates{Monthly: ParseTemplates([]string{"- [ ] 棚卸し #売場作業 ⏱️ 60 🔁 every month on the 10th"})}
	rep, err := newExpander(v, 14).Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Added != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if !strings.Contains(readNote(t, v, "2025-12-10"), "棚卸し #売場作業 ⏱️ 60 📅 2025-12-10") {
		t.Error("monthly task missing")
	}
	if strings.Contains(readNote(t, v, "2025-12-11"), "棚卸し") {
		t.Error("monthly task on the wrong day")
	}
}

func TestExpandIsIdempotent(t *testing.T) {
	v := newVault(t)
	writeNote(t, v, "2025-12-01", "勤務\n")
	tpl := Templates{
		Daily:  ParseTemplates([]string{"- [ ] 朝礼 🔁 every day"}),
		Weekly: ParseTemplates([]string{"- [ ] 週次発注 🔁 every Thursday"}),
	}
	e := newExpander(v, 6)
	if _, err := e.Run(day(t, "2025-12-01"), tpl); err != nil {
		t.Fatal(err)
	}
	before := readNote(t, v, "2025-12-01") + readNote(t, v, "2025-12-04")
	rep, err := e.Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Added != 0 {
		t.Errorf("second run added %d lines", rep.Added)
	}
	if after := readNote(t, v, "2025-12-01") + readNote(t, v, "2025-12-04"); after != before {
		t.Errorf("notes changed on re-run:\n%s\n---\n%s", before, after)
	}
}

func TestExpandRejectsNegativeWindow(t *testing.T) {
	v := newVault(t)
	if _, err := newExpander(v, -1).Run(day(t, "2025-12-01"), Templates{}); !errors.Is(err, store.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestExpandZeroWindowCoversToday(t *testing.T) {
	v := newVault(t)
	writeNote(t, v, "2025-12-01", "勤務\n")
	writeNote(t, v, "2025-12-02", "勤務\n")
	tpl := Templates{Daily: ParseTemplates([]string{"- [ ] 朝礼 🔁 every day"})}
	rep, err := newExpander(v, 0).Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Added != 1 || strings.Contains(readNote(t, v, "2025-12-02"), "朝礼") {
		t.Errorf("zero window should only touch today: %+v", rep)
	}
}

func TestExpandMonthlySkipsNoteCreatedByWeekly(t *testing.T) {
	v := newVault(t)
	// 2025-12-04 is a Thursday; no note exists yet.
	tpl := Templates{
		Weekly:  ParseTemplates([]string{"- [ ] 週次発注 🔁 every Thursday"}),
		Monthly: ParseTemplates([]string{"- [ ] 棚卸し 🔁 every month on the 4th"}),
	}
	rep, err := newExpander(v, 6).Run(day(t, "2025-12-01"), tpl)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Added != 1 || strings.Join(rep.Created, ",") != "2025-12-04" {
		t.Fatalf("unexpected report: %+v", rep)
	}
	content := readNote(t, v, "2025-12-04")
	if !strings.Contains(content, "週次発注") || strings.Contains(content, "棚卸し") {
		t.Errorf("monthly task must wait for a workday marker: %q", content)
	}
	last := rep.Skips[len(rep.Skips)-1]
	if last.Date != "2025-12-04" || last.Reason != SkipNotWorkday {
		t.Errorf("unexpected last skip: %+v", last)
	}
}
