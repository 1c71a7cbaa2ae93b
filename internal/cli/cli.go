package cli

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/amirbrooks/daynote/internal/config"
	"github.com/amirbrooks/daynote/internal/logging"
	"github.com/amirbrooks/daynote/internal/recurring"
	"github.com/amirbrooks/daynote/internal/store"
	"github.com/charmbracelet/log"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitInternal = 10
)

type GlobalFlags struct {
	Root      string
	Config    string
	LogLevel  string
	LogFormat string
	JSON      bool
	Plain     bool
	Quiet     bool
	Verbose   bool
}

// app carries what every command needs. It is built once per invocation.
type app struct {
	gf     GlobalFlags
	cfg    *config.Config
	vault  *store.Vault
	log    *log.Logger
	stdout io.Writer
	stderr io.Writer
}

// today is replaced in tests.
var today = store.Today

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp(stderr)
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	switch cmd {
	case "help", "--help", "-h":
		printHelp(stdout)
		return ExitOK
	}

	cfg, err := config.Load(gf.Config)
	if err != nil {
		fmt.Fprintln(stderr, "daynote:", err)
		return exitCode(err)
	}
	a := &app{
		gf:    gf,
		cfg:   cfg,
		vault: cfg.Vault(gf.Root),
		log: logging.New(stderr, logging.Options{
			Level:   gf.LogLevel,
			Verbose: gf.Verbose,
			Quiet:   gf.Quiet,
			Format:  gf.LogFormat,
		}),
		stdout: stdout,
		stderr: stderr,
	}
	a.log.Debug("starting", "command", cmd, "root", a.vault.Root, "config", gf.Config)

	switch cmd {
	case "init":
		return a.cmdInit(cmdArgs)
	case "ensure":
		return a.cmdEnsure(cmdArgs)
	case "append":
		return a.cmdAppend(cmdArgs)
	case "expand":
		return a.cmdExpand(cmdArgs)
	case "convert":
		return a.cmdConvert(cmdArgs)
	case "has":
		return a.cmdHas(cmdArgs)
	case "config", "cfg":
		return a.cmdConfig(cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printHelp(stderr)
		return ExitUsage
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `daynote: keeps one schedule note per day in a notes vault

Usage:
  daynote [global flags] <command> [args]

Global flags:
  --root <path>        Vault root (default: current directory)
  --config <file>      Config file (default: <root>/.daynote/config.toml)
  --log-level <l>      debug|info|warn|error (default: info)
  --log-format <f>     text|json|logfmt (default: text)
  --json               Print reports as JSON
  --plain              TSV output for config show
  --quiet              No report output; only warnings and errors are logged
  --verbose            Debug logging

Commands:
  init
  ensure <YYYY-MM-DD>
  append [--start YYYY-MM-DD] [--end YYYY-MM-DD] [--days N]
  expand [--today YYYY-MM-DD] [--window N]
  convert [--dry-run]
  has <YYYY-MM-DD> "<task line>"
  config show
  config set <key> <value>
  help
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{Root: "."}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--root":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--root requires a value")
			}
			gf.Root = args[i+1]
			skip = 1
		case "--config":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--config requires a value")
			}
			gf.Config = args[i+1]
			skip = 1
		case "--log-level":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--log-level requires a value")
			}
			gf.LogLevel = args[i+1]
			skip = 1
		case "--log-format":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--log-format requires a value")
			}
			gf.LogFormat = args[i+1]
			skip = 1
		case "--json":
			gf.JSON = true
		case "--plain":
			gf.Plain = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		default:
			out = append(out, a)
		}
	}

	if !logging.ValidLevel(gf.LogLevel) {
		return gf, nil, fmt.Errorf("--log-level must be debug, info, warn or error, got %q", gf.LogLevel)
	}
	if !logging.ValidFormat(gf.LogFormat) {
		return gf, nil, fmt.Errorf("--log-format must be text, json or logfmt, got %q", gf.LogFormat)
	}
	if gf.JSON && gf.Plain {
		return gf, nil, errors.New("--json and --plain are mutually exclusive")
	}
	root := store.Open(gf.Root, "")
	gf.Root = root.Root
	if gf.Config == "" {
		gf.Config = config.Path(gf.Root)
	} else {
		gf.Config = root.Resolve(gf.Config)
	}
	return gf, out, nil
}

// exitCode maps an error to the exit code table.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, store.ErrInvalid):
		return ExitUsage
	case errors.Is(err, store.ErrNotFound):
		return ExitNotFound
	default:
		return ExitInternal
	}
}

func (a *app) failed(cmd string, err error) int {
	fmt.Fprintln(a.stderr, cmd+":", err)
	return exitCode(err)
}

func (a *app) printJSON(payload any) int {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return a.failed("json", err)
	}
	return ExitOK
}

func (a *app) cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if err := a.vault.Init(); err != nil {
		return a.failed("init", err)
	}
	written, err := config.WriteDefaults(a.vault.Root, a.gf.Config)
	if err != nil {
		return a.failed("init", err)
	}
	if a.gf.Quiet {
		return ExitOK
	}
	fmt.Fprintln(a.stdout, "Initialized daynote vault at:", a.vault.Root)
	for _, p := range written {
		fmt.Fprintln(a.stdout, "  wrote", p)
	}
	return ExitOK
}

func (a *app) cmdEnsure(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "Usage: daynote ensure <YYYY-MM-DD>")
		return ExitUsage
	}
	day, err := store.ParseDate(args[0])
	if err != nil {
		return a.failed("ensure", err)
	}
	date := store.FormatDate(day)
	note, created, err := a.vault.EnsureNote(date)
	if err != nil {
		return a.failed("ensure", err)
	}
	if a.gf.JSON {
		return a.printJSON(map[string]any{"date": date, "path": note.Path, "created": created})
	}
	if created {
		fmt.Fprintln(a.stdout, "[CREATED]", date)
	} else if !a.gf.Quiet {
		fmt.Fprintln(a.stdout, "[EXISTS]", date)
	}
	return ExitOK
}

// appendRange resolves the --start/--end/--days flags. --days is ignored when
// --end is given.
func appendRange(startFlag, endFlag string, days int) (time.Time, time.Time, error) {
	start := today()
	if startFlag != "" {
		d, err := store.ParseDate(startFlag)
		if err != nil {
			return start, start, fmt.Errorf("--start: %w", err)
		}
		start = d
	}
	if endFlag != "" {
		end, err := store.ParseDate(endFlag)
		if err != nil {
			return start, start, fmt.Errorf("--end: %w", err)
		}
		if end.Before(start) {
			return start, end, fmt.Errorf("%w: --start %s is after --end %s", store.ErrInvalid,
				store.FormatDate(start), store.FormatDate(end))
		}
		return start, end, nil
	}
	if days < 1 {
		return start, start, fmt.Errorf("%w: --days must be positive, got %d", store.ErrInvalid, days)
	}
	return start, start.AddDate(0, 0, days-1), nil
}

func (a *app) cmdAppend(args []string) int {
	fs := flag.NewFlagSet("append", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	startFlag := fs.String("start", "", "First day (YYYY-MM-DD, default today)")
	endFlag := fs.String("end", "", "Last day (YYYY-MM-DD)")
	days := fs.Int("days", a.cfg.Append.Days, "Number of days when --end is not given")
	if err := fs.Parse(reorderFlags(args, map[string]bool{"--start": true, "--end": true, "--days": true})); err != nil {
		return ExitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(a.stderr, "Usage: daynote append [--start YYYY-MM-DD] [--end YYYY-MM-DD] [--days N]")
		return ExitUsage
	}
	start, end, err := appendRange(*startFlag, *endFlag, *days)
	if err != nil {
		return a.failed("append", err)
	}
	checklist, err := config.LoadChecklist(a.vault.Resolve(a.cfg.ChecklistFile))
	if err != nil {
		return a.failed("append", err)
	}

	appender := &recurring.Appender{Vault: a.vault, Checklist: checklist, Logger: a.log}
	rep, err := appender.Run(start, end)
	if err != nil {
		return a.failed("append", err)
	}
	total := int(end.Sub(start).Hours()/24) + 1
	if a.gf.JSON {
		return a.printJSON(map[string]any{
			"start":   store.FormatDate(start),
			"end":     store.FormatDate(end),
			"days":    total,
			"updated": nonNil(rep.Updated),
			"created": nonNil(rep.Created),
			"lines":   rep.Lines,
		})
	}
	if a.gf.Quiet {
		return ExitOK
	}
	for _, d := range rep.Updated {
		fmt.Fprintln(a.stdout, "[UPDATED]", d)
	}
	fmt.Fprintf(a.stdout, "Done: %d/%d days updated (%d lines added, %d notes created)\n",
		len(rep.Updated), total, rep.Lines, len(rep.Created))
	return ExitOK
}

func (a *app) cmdExpand(args []string) int {
	fs := flag.NewFlagSet("expand", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	todayFlag := fs.String("today", "", "First day of the window (YYYY-MM-DD, default today)")
	window := fs.Int("window", a.cfg.Expand.Window, "Days after --today to cover")
	if err := fs.Parse(reorderFlags(args, map[string]bool{"--today": true, "--window": true})); err != nil {
		return ExitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(a.stderr, "Usage: daynote expand [--today YYYY-MM-DD] [--window N]")
		return ExitUsage
	}
	start := today()
	if *todayFlag != "" {
		d, err := store.ParseDate(*todayFlag)
		if err != nil {
			return a.failed("expand", fmt.Errorf("--today: %w", err))
		}
		start = d
	}
	if *window < 0 {
		return a.failed("expand", fmt.Errorf("%w: --window must not be negative, got %d", store.ErrInvalid, *window))
	}

	var tpl recurring.Templates
	for _, f := range []struct {
		path string
		dst  *[]recurring.Template
	}{
		{a.cfg.Templates.Daily, &tpl.Daily},
		{a.cfg.Templates.Weekly, &tpl.Weekly},
		{a.cfg.Templates.Monthly, &tpl.Monthly},
	} {
		lines, err := a.vault.ReadLines(f.path)
		if err != nil {
			return a.failed("expand", err)
		}
		*f.dst = recurring.ParseTemplates(lines)
		a.log.Debug("loaded templates", "file", f.path, "count", len(*f.dst))
	}

	expander := &recurring.Expander{
		Vault:          a.vault,
		Window:         *window,
		WorkdayMarkers: a.cfg.WorkdayMarkers,
		Logger:         a.log,
	}
	rep, err := expander.Run(start, tpl)
	if err != nil {
		return a.failed("expand", err)
	}
	if a.gf.JSON {
		skips := make([]map[string]string, 0, len(rep.Skips))
		for _, s := range rep.Skips {
			skips = append(skips, map[string]string{"date": s.Date, "line": s.Line, "reason": s.Reason.String()})
		}
		return a.printJSON(map[string]any{
			"added":   rep.Added,
			"skipped": rep.Skipped,
			"created": nonNil(rep.Created),
			"skips":   skips,
		})
	}
	if a.gf.Quiet {
		return ExitOK
	}
	for _, d := range rep.Created {
		fmt.Fprintln(a.stdout, "[CREATED]", d)
	}
	fmt.Fprintf(a.stdout, "Done: %d added, %d already present, %d notes created\n",
		rep.Added, rep.Skipped, len(rep.Created))
	return ExitOK
}

func (a *app) cmdConvert(args []string) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	dryRun := fs.Bool("dry-run", false, "Report changes without writing")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	rep, err := a.vault.ConvertAll(a.cfg.Normalizer(), *dryRun, a.log)
	if err != nil {
		return a.failed("convert", err)
	}
	if a.gf.JSON {
		if code := a.printJSON(map[string]any{
			"converted": nonNil(rep.Converted),
			"lines":     rep.Lines,
			"skipped":   rep.Skipped,
			"failed":    nonNil(rep.Failed),
			"dry_run":   *dryRun,
		}); code != ExitOK {
			return code
		}
	} else if !a.gf.Quiet {
		label := "[CONVERTED]"
		if *dryRun {
			label = "[WOULD CONVERT]"
		}
		for _, d := range rep.Converted {
			fmt.Fprintln(a.stdout, label, d)
		}
		fmt.Fprintf(a.stdout, "Done: %d notes converted (%d lines), %d unchanged, %d failed\n",
			len(rep.Converted), rep.Lines, rep.Skipped, len(rep.Failed))
	}
	if len(rep.Failed) > 0 {
		return ExitInternal
	}
	return ExitOK
}

func (a *app) cmdHas(args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(a.stderr, "Usage: daynote has <YYYY-MM-DD> \"<task line>\"")
		return ExitUsage
	}
	day, err := store.ParseDate(args[0])
	if err != nil {
		return a.failed("has", err)
	}
	note, err := a.vault.ReadNote(store.FormatDate(day))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if !a.gf.Quiet {
				fmt.Fprintln(a.stdout, "absent (no note)")
			}
			return ExitNotFound
		}
		return a.failed("has", err)
	}
	if note.Has(args[1]) {
		if !a.gf.Quiet {
			fmt.Fprintln(a.stdout, "present")
		}
		return ExitOK
	}
	if !a.gf.Quiet {
		fmt.Fprintln(a.stdout, "absent")
	}
	return ExitNotFound
}

func (a *app) cmdConfig(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.stderr, "Usage: daynote config <show|set> ...")
		return ExitUsage
	}
	switch args[0] {
	case "show":
		return a.cmdConfigShow()
	case "set":
		return a.cmdConfigSet(args[1:])
	default:
		fmt.Fprintln(a.stderr, "Usage: daynote config <show|set> ...")
		return ExitUsage
	}
}

func (a *app) cmdConfigShow() int {
	cfg := a.cfg
	_, err := os.Stat(a.gf.Config)
	exists := err == nil

	if a.gf.JSON {
		return a.printJSON(map[string]any{
			"root":        a.vault.Root,
			"config_path": a.gf.Config,
			"exists":      exists,
			"config":      cfg,
		})
	}

	if a.gf.Plain {
		w := tabwriter.NewWriter(a.stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintf(w, "root\t%s\n", a.vault.Root)
		fmt.Fprintf(w, "config_path\t%s\n", a.gf.Config)
		fmt.Fprintf(w, "exists\t%t\n", exists)
		fmt.Fprintf(w, "schedule_dir\t%s\n", cfg.ScheduleDir)
		fmt.Fprintf(w, "templates.daily\t%s\n", cfg.Templates.Daily)
		fmt.Fprintf(w, "templates.weekly\t%s\n", cfg.Templates.Weekly)
		fmt.Fprintf(w, "templates.monthly\t%s\n", cfg.Templates.Monthly)
		fmt.Fprintf(w, "append.days\t%d\n", cfg.Append.Days)
		fmt.Fprintf(w, "expand.window\t%d\n", cfg.Expand.Window)
		fmt.Fprintf(w, "workday_markers\t%s\n", strings.Join(cfg.WorkdayMarkers, ","))
		fmt.Fprintf(w, "exempt_titles\t%s\n", strings.Join(cfg.ExemptTitles, ","))
		fmt.Fprintf(w, "default_genre\t%s\n", cfg.DefaultGenre)
		fmt.Fprintf(w, "canonical_tags\t%s\n", strings.Join(cfg.CanonicalTags, ","))
		fmt.Fprintf(w, "checklist_file\t%s\n", cfg.ChecklistFile)
		for _, g := range cfg.Genres {
			fmt.Fprintf(w, "genre.%s\t%s\n", g.Tag, strings.Join(g.Keywords, ","))
		}
		_ = w.Flush()
		return ExitOK
	}

	out := a.stdout
	fmt.Fprintln(out, "Config")
	fmt.Fprintln(out, "  Root:", a.vault.Root)
	if exists {
		fmt.Fprintln(out, "  Config file:", a.gf.Config)
	} else {
		fmt.Fprintln(out, "  Config file:", a.gf.Config, "(not found; defaults shown)")
	}
	fmt.Fprintln(out, "  Schedule dir:", a.vault.Dir())
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Templates:")
	fmt.Fprintf(out, "  daily: %s\n", cfg.Templates.Daily)
	fmt.Fprintf(out, "  weekly: %s\n", cfg.Templates.Weekly)
	fmt.Fprintf(out, "  monthly: %s\n", cfg.Templates.Monthly)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Append days: %d\n", cfg.Append.Days)
	fmt.Fprintf(out, "Expand window: %d\n", cfg.Expand.Window)
	fmt.Fprintf(out, "Workday markers: %s\n", strings.Join(cfg.WorkdayMarkers, ", "))
	fmt.Fprintf(out, "Exempt titles: %s\n", strings.Join(cfg.ExemptTitles, ", "))
	fmt.Fprintf(out, "Checklist file: %s\n", cfg.ChecklistFile)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Genres:")
	for _, g := range cfg.Genres {
		fmt.Fprintf(out, "  #%s: %s\n", g.Tag, strings.Join(g.Keywords, ", "))
	}
	fmt.Fprintf(out, "  #%s (default)\n", cfg.DefaultGenre)
	return ExitOK
}

func (a *app) cmdConfigSet(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(a.stderr, "Usage: daynote config set <key> <value>")
		fmt.Fprintln(a.stderr, "Keys:", strings.Join(config.Keys(), ", "))
		return ExitUsage
	}
	key := args[0]
	value := strings.Join(args[1:], " ")
	if err := a.cfg.Set(key, value); err != nil {
		return a.failed("config set", err)
	}
	if err := a.cfg.Save(a.gf.Config); err != nil {
		return a.failed("config set", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.stdout, "Set %s = %s\n", key, strconv.Quote(value))
	}
	return ExitOK
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
