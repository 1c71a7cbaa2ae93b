// Package config loads the vault settings from <root>/.daynote.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/amirbrooks/daynote/internal/recurring"
	"github.com/amirbrooks/daynote/internal/store"
	"github.com/amirbrooks/daynote/internal/taskline"
)

const (
	// Dir holds the config files inside the vault root.
	Dir = ".daynote"

	DefaultScheduleDir   = "スケジュール"
	DefaultDailyFile     = "繰り返しタスク/毎日.md"
	DefaultWeeklyFile    = "繰り返しタスク/毎週.md"
	DefaultMonthlyFile   = "繰り返しタスク/毎月.md"
	DefaultAppendDays    = 30
	DefaultChecklistFile = Dir + "/checklist.yaml"
)

type TemplatesConfig struct {
	Daily   string `toml:"daily" json:"daily"`
	Weekly  string `toml:"weekly" json:"weekly"`
	Monthly string `toml:"monthly" json:"monthly"`
}

type AppendConfig struct {
	Days int `toml:"days" json:"days"`
}

type ExpandConfig struct {
	Window int `toml:"window" json:"window"`
}

// Config is the effective vault configuration.
type Config struct {
	ScheduleDir    string           `toml:"schedule_dir" json:"schedule_dir"`
	Templates      TemplatesConfig  `toml:"templates" json:"templates"`
	Append         AppendConfig     `toml:"append" json:"append"`
	Expand         ExpandConfig     `toml:"expand" json:"expand"`
	WorkdayMarkers []string         `toml:"workday_markers" json:"workday_markers"`
	ExemptTitles   []string         `toml:"exempt_titles" json:"exempt_titles"`
	Genres         []taskline.Genre `toml:"genre" json:"genre"`
	DefaultGenre   string           `toml:"default_genre" json:"default_genre"`
	CanonicalTags  []string         `toml:"canonical_tags" json:"canonical_tags"`
	ChecklistFile  string           `toml:"checklist_file" json:"checklist_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ScheduleDir: DefaultScheduleDir,
		Templates: TemplatesConfig{
			Daily:   DefaultDailyFile,
			Weekly:  DefaultWeeklyFile,
			Monthly: DefaultMonthlyFile,
		},
		Append:         AppendConfig{Days: DefaultAppendDays},
		Expand:         ExpandConfig{Window: recurring.DefaultWindow},
		WorkdayMarkers: append([]string(nil), recurring.DefaultWorkdayMarkers...),
		ExemptTitles:   append([]string(nil), taskline.DefaultExemptTitles...),
		Genres:         append([]taskline.Genre(nil), taskline.DefaultGenres...),
		DefaultGenre:   taskline.DefaultGenre,
		CanonicalTags:  append([]string(nil), taskline.ExtraCanonicalTags...),
		ChecklistFile:  DefaultChecklistFile,
	}
}

// Path is the default config file of a vault.
func Path(root string) string {
	return filepath.Join(root, Dir, "config.toml")
}

// Load reads path on top of the defaults. A missing file yields the defaults;
// unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	file := &Config{}
	md, err := toml.DecodeFile(path, file)
	if err != nil {
		return nil, fmt.Errorf("%w: config %s: %v", store.ErrInvalid, path, err)
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return nil, fmt.Errorf("%w: config %s: unknown keys %s", store.ErrInvalid, path, strings.Join(names, ", "))
	}
	merge(cfg, file, md)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// merge copies the values present in the file onto cfg.
func merge(cfg, file *Config, md toml.MetaData) {
	if md.IsDefined("schedule_dir") {
		cfg.ScheduleDir = file.ScheduleDir
	}
	if md.IsDefined("templates", "daily") {
		cfg.Templates.Daily = file.Templates.Daily
	}
	if md.IsDefined("templates", "weekly") {
		cfg.Templates.Weekly = file.Templates.Weekly
	}
	if md.IsDefined("templates", "monthly") {
		cfg.Templates.Monthly = file.Templates.Monthly
	}
	if md.IsDefined("append", "days") {
		cfg.Append.Days = file.Append.Days
	}
	if md.IsDefined("expand", "window") {
		cfg.Expand.Window = file.Expand.Window
	}
	if md.IsDefined("workday_markers") {
		cfg.WorkdayMarkers = file.WorkdayMarkers
	}
	if md.IsDefined("exempt_titles") {
		cfg.ExemptTitles = file.ExemptTitles
	}
	if md.IsDefined("genre") {
		cfg.Genres = file.Genres
	}
	if md.IsDefined("default_genre") {
		cfg.DefaultGenre = file.DefaultGenre
	}
	if md.IsDefined("canonical_tags") {
		cfg.CanonicalTags = file.CanonicalTags
	}
	if md.IsDefined("checklist_file") {
		cfg.ChecklistFile = file.ChecklistFile
	}
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ScheduleDir) == "" {
		return fmt.Errorf("%w: schedule_dir is empty", store.ErrInvalid)
	}
	if c.Append.Days < 1 {
		return fmt.Errorf("%w: append.days must be positive, got %d", store.ErrInvalid, c.Append.Days)
	}
	if c.Expand.Window < 0 {
		return fmt.Errorf("%w: expand.window must not be negative, got %d", store.ErrInvalid, c.Expand.Window)
	}
	for i, g := range c.Genres {
		if strings.TrimSpace(g.Tag) == "" {
			return fmt.Errorf("%w: genre %d has no tag", store.ErrInvalid, i+1)
		}
	}
	return nil
}

// Vault opens the vault at root with the configured schedule directory.
func (c *Config) Vault(root string) *store.Vault {
	return store.Open(root, c.ScheduleDir)
}

// Normalizer builds the line normalizer for the configured genres.
func (c *Config) Normalizer() *taskline.Normalizer {
	return taskline.New(taskline.Options{
		Genres:        c.Genres,
		DefaultGenre:  c.DefaultGenre,
		CanonicalTags: c.CanonicalTags,
		ExemptTitles:  c.ExemptTitles,
	})
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the config to path.
func (c *Config) Save(path string) error {
	b, err := c.Encode()
	if err != nil {
		return err
	}
	return store.WriteFile(path, b)
}

// setters for the scalar keys accepted by "config set".
var setters = map[string]func(c *Config, v string) error{
	"schedule_dir":      func(c *Config, v string) error { c.ScheduleDir = v; return nil },
	"templates.daily":   func(c *Config, v string) error { c.Templates.Daily = v; return nil },
	"templates.weekly":  func(c *Config, v string) error { c.Templates.Weekly = v; return nil },
	"templates.monthly": func(c *Config, v string) error { c.Templates.Monthly = v; return nil },
	"default_genre":     func(c *Config, v string) error { c.DefaultGenre = v; return nil },
	"checklist_file":    func(c *Config, v string) error { c.ChecklistFile = v; return nil },
	"append.days":       func(c *Config, v string) error { return setInt(&c.Append.Days, v) },
	"expand.window":     func(c *Config, v string) error { return setInt(&c.Expand.Window, v) },
	"workday_markers":   func(c *Config, v string) error { c.WorkdayMarkers = splitList(v); return nil },
	"exempt_titles":     func(c *Config, v string) error { c.ExemptTitles = splitList(v); return nil },
	"canonical_tags":    func(c *Config, v string) error { c.CanonicalTags = splitList(v); return nil },
}

// Keys lists the keys accepted by Set.
func Keys() []string {
	out := make([]string, 0, len(setters))
	for k := range setters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Set assigns value to key. List keys take comma-separated values.
func (c *Config) Set(key, value string) error {
	set, ok := setters[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return fmt.Errorf("%w: unknown key %q", store.ErrInvalid, key)
	}
	if err := set(c, strings.TrimSpace(value)); err != nil {
		return err
	}
	return c.Validate()
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %q is not a number", store.ErrInvalid, v)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
