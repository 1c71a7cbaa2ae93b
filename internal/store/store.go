package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/amirbrooks/daynote/internal/taskline"
	"github.com/oklog/ulid/v2"
)

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
	timeNow     = time.Now
)

// DateLayout names day notes and date markers.
const DateLayout = "2006-01-02"

// Vault is a notes directory holding one markdown file per day.
type Vault struct {
	Root        string
	ScheduleDir string
}

// Note is the content of one day's file.
type Note struct {
	Date    string
	Path    string
	Content string
}

// Open returns a vault rooted at root. scheduleDir is resolved against root
// unless it is absolute. Nothing is created until a note is written.
func Open(root, scheduleDir string) *Vault {
	return &Vault{Root: expandHome(root), ScheduleDir: scheduleDir}
}

// Dir is the directory that holds the day notes.
func (v *Vault) Dir() string {
	return v.Resolve(v.ScheduleDir)
}

// Resolve makes path absolute relative to the vault root.
func (v *Vault) Resolve(path string) string {
	path = expandHome(strings.TrimSpace(path))
	if path == "" {
		return v.Root
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(v.Root, path)
}

// Init creates the schedule directory.
func (v *Vault) Init() error {
	return os.MkdirAll(v.Dir(), 0o755)
}

func (v *Vault) NotePath(date string) string {
	return filepath.Join(v.Dir(), date+".md")
}

// Exists reports whether the note for date is on disk.
func (v *Vault) Exists(date string) bool {
	info, err := os.Stat(v.NotePath(date))
	return err == nil && !info.IsDir()
}

func (v *Vault) ReadNote(date string) (*Note, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	path := v.NotePath(date)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: note %s", ErrNotFound, date)
		}
		return nil, err
	}
	return &Note{Date: date, Path: path, Content: string(b)}, nil
}

// EnsureNote reads the note for date, creating it from NoteTemplate if absent.
func (v *Vault) EnsureNote(date string) (*Note, bool, error) {
	n, err := v.ReadNote(date)
	if err == nil {
		return n, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	n = &Note{Date: date, Path: v.NotePath(date), Content: NoteTemplate(date)}
	if err := atomicWriteFile(n.Path, []byte(n.Content), 0o644); err != nil {
		return nil, false, err
	}
	return n, true, nil
}

// AppendLines adds lines to the end of the note in a single write.
func (v *Vault) AppendLines(n *Note, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	content := n.Content
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += strings.Join(lines, "\n") + "\n"
	if err := atomicWriteFile(n.Path, []byte(content), 0o644); err != nil {
		return err
	}
	n.Content = content
	return nil
}

// AppendMissing appends the lines that the note does not contain yet and
// returns them. The note is created first when create is set; otherwise a
// missing note yields ErrNotFound.
func (v *Vault) AppendMissing(date string, lines []string, create bool) ([]string, error) {
	var n *Note
	var err error
	if create {
		n, _, err = v.EnsureNote(date)
	} else {
		n, err = v.ReadNote(date)
	}
	if err != nil {
		return nil, err
	}
	var added []string
	seen := map[string]bool{}
	for _, line := range lines {
		key := taskline.Key(line)
		if seen[key] || n.Has(line) {
			continue
		}
		seen[key] = true
		added = append(added, line)
	}
	if err := v.AppendLines(n, added); err != nil {
		return nil, err
	}
	return added, nil
}

// ListNotes returns the dates of all day notes, oldest first. Files whose
// name is not a date are ignored.
func (v *Vault) ListNotes() ([]string, error) {
	entries, err := os.ReadDir(v.Dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: schedule dir %s", ErrNotFound, v.Dir())
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(name), ".md") {
			continue
		}
		date := strings.TrimSuffix(name, filepath.Ext(name))
		if _, err := ParseDate(date); err != nil {
			continue
		}
		out = append(out, date)
	}
	sort.Strings(out)
	return out, nil
}

// ReadLines reads a definition file relative to the vault root. A missing
// file holds no lines.
func (v *Vault) ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(v.Resolve(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	return strings.Split(s, "\n"), nil
}

// TaskLines returns the task lines of the note.
func (n *Note) TaskLines() []string {
	var out []string
	for _, line := range strings.Split(n.Content, "\n") {
		if taskline.IsTask(strings.TrimRight(line, "\r")) {
			out = append(out, strings.TrimRight(line, "\r"))
		}
	}
	return out
}

// Has reports whether the note already holds a task with the same key as line.
func (n *Note) Has(line string) bool {
	key := taskline.Key(line)
	for _, existing := range n.TaskLines() {
		if taskline.Key(existing) == key {
			return true
		}
	}
	return false
}

// ContainsAny reports whether any marker occurs anywhere in the note.
func (n *Note) ContainsAny(markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(n.Content, m) {
			return true
		}
	}
	return false
}

// NoteTemplate is the content of a freshly created day note.
func NoteTemplate(date string) string {
	return "- [ ] ## 今日のスケジュール\n\n" +
		fmt.Sprintf("- [ ] 00:00-00:00 シフト未設定 📅 %s ⏳ %s #calendar\n", date, date)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q (want YYYY-MM-DD)", ErrInvalid, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the local calendar date at midnight UTC.
func Today() time.Time {
	now := timeNow()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		return fmt.Sprintf("%d", timeNow().UnixNano())
	}
	return id.String()
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// WriteFile replaces path atomically.
func WriteFile(path string, data []byte) error {
	return atomicWriteFile(path, data, 0o644)
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, ".tmp-"+newULID())
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
