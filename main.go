package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/carlrannaberg/claudekit-sub009/internal/api"
	"github.com/carlrannaberg/claudekit-sub009/internal/audit"
	"github.com/carlrannaberg/claudekit-sub009/internal/completion"
	"github.com/carlrannaberg/claudekit-sub009/internal/config"
	"github.com/carlrannaberg/claudekit-sub009/internal/guard"
	"github.com/carlrannaberg/claudekit-sub009/internal/hook"
	"github.com/carlrannaberg/claudekit-sub009/internal/ignore"
	"github.com/carlrannaberg/claudekit-sub009/internal/logger"
	"github.com/carlrannaberg/claudekit-sub009/internal/tui"
	"github.com/carlrannaberg/claudekit-sub009/internal/types"
)

// Version is set at build time via ldflags: -X main.Version=x.y.z
var Version = "1.0.0"

var log = logger.New("main")

func main() {
	// Shell completion requests (COMP_LINE set) are handled before
	// anything else touches stdout.
	if completion.Run() {
		return
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hook":
			runHook(os.Args[2:])
			return
		case "check":
			runCheck(os.Args[2:])
			return
		case "patterns":
			runPatterns(os.Args[2:])
			return
		case "serve":
			runServe(os.Args[2:])
			return
		case "history":
			runHistory(os.Args[2:])
			return
		case "stats":
			runStats(os.Args[2:])
			return
		case "purge":
			runPurge(os.Args[2:])
			return
		case "completion":
			runCompletion(os.Args[2:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		case "version", "-v", "--version":
			runVersion(os.Args[2:])
			return
		}
	}

	// Agents invoke hooks as bare commands with the payload on stdin, so
	// piped stdin with no subcommand means hook mode.
	if stdinIsPiped() {
		runHook(nil)
		return
	}

	printUsage()
}

// stdinIsPiped reports whether stdin is a pipe or redirect rather than a
// terminal.
func stdinIsPiped() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice == 0
}

// loadConfig loads the config file with environment overrides applied.
// Errors degrade to defaults: the CLI commands should work on a broken
// config, and the hook must.
func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Warn("loading configuration: %v", err)
		cfg = config.DefaultConfig()
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Warn("applying environment overrides: %v", err)
	}
	return cfg
}

func newGuard(cfg *config.Config) *guard.Guard {
	return guard.New(guard.Options{
		ExtraIgnoreFiles:  cfg.Guard.ExtraIgnoreFiles,
		DisableHeuristics: cfg.Guard.DisableHeuristics,
	})
}

// openAuditStore opens the decisions database. flagKey comes from a
// -db-key flag and loses to FILEGUARD_DB_KEY. Returns nil on any failure;
// callers decide whether that is fatal.
func openAuditStore(cfg *config.Config, flagKey string) *audit.Store {
	if flagKey == "" {
		flagKey = cfg.Audit.EncryptionKey
	}
	secrets, err := config.LoadSecretsWithDefaults(flagKey)
	if err != nil {
		log.Warn("loading secrets: %v", err)
		secrets = &config.Secrets{}
	}
	if err := secrets.ValidateDBKey(); err != nil {
		log.Warn("audit database disabled: %v", err)
		return nil
	}
	if secrets.HasDBEncryption() {
		log.Debug("audit database encryption enabled (key %s)", secrets.MaskDBKey())
	}

	dbPath := cfg.Audit.DBPath
	if dbPath == "" {
		dbPath, err = audit.DefaultPath()
		if err != nil {
			log.Warn("resolving audit database path: %v", err)
			return nil
		}
	}

	store, err := audit.Open(dbPath, secrets.DBKey)
	if err != nil {
		log.Warn("opening audit database: %v", err)
		return nil
	}
	return store
}

// runHook handles the hook subcommand: one decision per invocation, the
// payload on stdin, the verdict on stdout. Exits zero no matter what; a
// non-zero exit would surface to the agent as a hook failure.
func runHook(args []string) {
	hookFlags := flag.NewFlagSet("hook", flag.ExitOnError)
	configPath := hookFlags.String("config", config.DefaultConfigPath(), "Path to configuration file")
	_ = hookFlags.Parse(args)

	// stdout carries the decision JSON; logs go to stderr, uncolored.
	logger.SetColored(false)

	cfg := loadConfig(*configPath)
	logger.SetGlobalLevelFromString(string(cfg.Logging.Level))

	var rec hook.Recorder
	if cfg.Audit.Enabled {
		if store := openAuditStore(cfg, ""); store != nil {
			defer store.Close()
			rec = store
		}
	}

	runner := hook.NewRunner(newGuard(cfg), rec)
	if err := runner.Run(os.Stdin, os.Stdout); err != nil {
		log.Error("writing decision: %v", err)
	}
}

// runCheck handles the check subcommand: the hook decision path without
// the hook framing, for humans and scripts. Exits 1 when the target is
// denied.
func runCheck(args []string) {
	checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
	root := checkFlags.String("root", "", "Project root to resolve ignore files from (default: current directory)")
	tool := checkFlags.String("tool", "Read", "Tool to check as: Read, Edit, MultiEdit, Write, Bash")
	jsonOutput := checkFlags.Bool("json", false, "Output as JSON")
	_ = checkFlags.Parse(args)

	if checkFlags.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: fileguard check [-root DIR] [-tool NAME] [-json] <path-or-command>")
		os.Exit(2)
	}

	kind := types.ToolKind(*tool)
	if !kind.Valid() {
		fmt.Fprintf(os.Stderr, "Unknown tool %q (want Read, Edit, MultiEdit, Write, or Bash)\n", *tool)
		os.Exit(2)
	}

	// A command may arrive as several argv words; a file path is one.
	target := strings.Join(checkFlags.Args(), " ")
	var filePath, command string
	if kind.IsCommandTool() {
		command = target
	} else {
		filePath = target
	}

	cfg := loadConfig(config.DefaultConfigPath())
	applyOutputMode(cfg)
	res := newGuard(cfg).Check(*root, kind, filePath, command)

	if *jsonOutput {
		printJSON(api.CheckResponse{
			Decision: string(res.Decision),
			Mode:     string(res.Mode),
			Reason:   res.Reason,
			Path:     res.Path,
			Pattern:  res.Pattern,
			Source:   res.Source,
		})
	} else {
		fmt.Printf("%s %s\n", tui.DecisionBadge(res.Decision), res.Reason)
		if res.Pattern != "" {
			fmt.Println(tui.StyleMuted.Render(fmt.Sprintf("  pattern %q from %s", res.Pattern, res.Source)))
		}
	}

	if res.Decision.IsDeny() {
		os.Exit(1)
	}
}

// runPatterns handles the patterns subcommand.
func runPatterns(args []string) {
	patternsFlags := flag.NewFlagSet("patterns", flag.ExitOnError)
	root := patternsFlags.String("root", "", "Project root to resolve ignore files from (default: current directory)")
	jsonOutput := patternsFlags.Bool("json", false, "Output as JSON")
	_ = patternsFlags.Parse(args)

	cfg := loadConfig(config.DefaultConfigPath())
	applyOutputMode(cfg)
	eng := newGuard(cfg).Engine(*root)
	pats := eng.Patterns()

	if *jsonOutput {
		out := make([]api.PatternJSON, 0, len(pats))
		for _, p := range pats {
			out = append(out, api.PatternJSON{Raw: p.Raw, Negated: p.Negated, Source: p.Source})
		}
		printJSON(map[string]any{
			"root":     eng.Root(),
			"sources":  eng.Sources(),
			"fallback": eng.Fallback(),
			"patterns": out,
		})
		return
	}

	tui.PrintInfo(fmt.Sprintf("%d protection patterns for %s", len(pats), eng.Root()))
	if eng.Fallback() {
		tui.PrintWarning("No ignore files found; the built-in default patterns apply")
	} else {
		fmt.Println(tui.StyleMuted.Render("  from " + strings.Join(eng.Sources(), ", ")))
	}
	fmt.Println()

	rows := make([][]string, 0, len(pats))
	for _, p := range pats {
		rows = append(rows, []string{p.Raw, p.Source})
	}
	fmt.Print(tui.AlignColumns(rows, "  ", 2, tui.StylePattern, tui.StyleMuted))
}

// runServe handles the serve subcommand: the inspection API in the
// foreground until SIGINT or SIGTERM.
func runServe(args []string) {
	serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := serveFlags.String("config", config.DefaultConfigPath(), "Path to configuration file")
	addr := serveFlags.String("addr", "", "Listen address (default from config)")
	logLevel := serveFlags.String("log-level", "", "Log level: trace, debug, info, warn, error")
	noColor := serveFlags.Bool("no-color", false, "Disable colored output")
	dbKey := serveFlags.String("db-key", "", "Audit database encryption key (prefer FILEGUARD_DB_KEY env var)")
	_ = serveFlags.Parse(args)

	cfg := loadConfig(*configPath)
	if *addr != "" {
		cfg.Serve.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Logging.Level = types.LogLevel(*logLevel)
	}
	if *noColor {
		cfg.Logging.NoColor = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetGlobalLevelFromString(string(cfg.Logging.Level))
	applyOutputMode(cfg)

	root, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Resolving working directory: %v\n", err)
		os.Exit(1)
	}

	g := newGuard(cfg)

	var store *audit.Store
	if cfg.Audit.Enabled {
		store = openAuditStore(cfg, *dbKey)
		if store == nil {
			log.Error("audit is enabled but the database could not be opened")
			os.Exit(1)
		}
		defer store.Close()

		if cfg.Audit.RetentionDays > 0 {
			if _, err := store.Purge(cfg.Audit.RetentionDays); err != nil {
				log.Warn("purging old decisions: %v", err)
			}
		}
	}

	srv := api.NewServer(g, store, root, Version)

	// The pattern cache is immutable per process by default; the watcher
	// flags it stale so operators notice edits. reload_on_change trades
	// that stability for live rebuilds.
	watcher, err := ignore.NewWatcher(root, cfg.Guard.ExtraIgnoreFiles, func() {
		if cfg.Serve.ReloadOnChange {
			g.Invalidate(root)
			log.Info("ignore files changed, pattern cache rebuilt")
			return
		}
		srv.MarkStale()
		log.Warn("ignore files changed; cached patterns still apply (POST /v1/reload to pick them up)")
	})
	if err != nil {
		log.Warn("watching ignore files: %v", err)
	} else {
		if err := watcher.Start(); err != nil {
			log.Warn("starting ignore watcher: %v", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	server := &http.Server{
		Addr:              cfg.Serve.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	url := "http://" + cfg.Serve.Addr
	tui.PrintBrand(fmt.Sprintf("Inspection API: %s", tui.Hyperlink(url, url)))
	fmt.Println(tui.Faint("  Ctrl+C to stop"))
	log.Info("fileguard %s listening on %s (root %s)", Version, cfg.Serve.Addr, root)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Info("fileguard stopped")
}

// runHistory handles the history subcommand.
func runHistory(args []string) {
	historyFlags := flag.NewFlagSet("history", flag.ExitOnError)
	n := historyFlags.Int("n", 50, "Number of decisions to show")
	minutes := historyFlags.Int("minutes", 1440, "How many minutes back to look")
	jsonOutput := historyFlags.Bool("json", false, "Output as JSON")
	_ = historyFlags.Parse(args)

	if *n < 1 {
		*n = 50
	} else if *n > 1000 {
		*n = 1000
	}

	cfg := loadConfig(config.DefaultConfigPath())
	applyOutputMode(cfg)
	store := openAuditStore(cfg, "")
	if store == nil {
		tui.PrintError("audit database unavailable")
		os.Exit(1)
	}
	defer store.Close()

	entries, err := store.Recent(*minutes, *n)
	if err != nil {
		tui.PrintError(fmt.Sprintf("reading decision history: %v", err))
		os.Exit(1)
	}

	if *jsonOutput {
		if entries == nil {
			entries = []audit.Entry{}
		}
		printJSON(entries)
		return
	}

	if len(entries) == 0 {
		tui.PrintInfo(fmt.Sprintf("No decisions recorded in the last %s", formatWindow(*minutes)))
		return
	}

	fmt.Println(tui.Separator(fmt.Sprintf("Decisions (last %s)", formatWindow(*minutes))))
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Timestamp.Local().Format("Jan 02 15:04:05"),
			tui.DecisionBadge(types.Decision(e.Decision)),
			e.ToolName,
			e.ScanMode,
			truncate(e.Reason, 60),
		})
	}
	fmt.Print(tui.AlignColumns(rows, "  ", 2, tui.StyleMuted))
}

// runStats handles the stats subcommand.
func runStats(args []string) {
	statsFlags := flag.NewFlagSet("stats", flag.ExitOnError)
	jsonOutput := statsFlags.Bool("json", false, "Output as JSON")
	_ = statsFlags.Parse(args)

	cfg := loadConfig(config.DefaultConfigPath())
	applyOutputMode(cfg)
	store := openAuditStore(cfg, "")
	if store == nil {
		tui.PrintError("audit database unavailable")
		os.Exit(1)
	}
	defer store.Close()

	stats, err := store.GetStats()
	if err != nil {
		tui.PrintError(fmt.Sprintf("reading decision stats: %v", err))
		os.Exit(1)
	}

	if *jsonOutput {
		printJSON(stats)
		return
	}

	tui.PrintInfo(fmt.Sprintf("Recorded decisions: %d", stats.Total))
	fmt.Print(tui.AlignColumns([][]string{
		{"allowed", fmt.Sprintf("%d", stats.Allowed)},
		{"denied", fmt.Sprintf("%d", stats.Denied)},
	}, "  ", 2, tui.StyleMuted))

	printCountGroup("By tool", stats.ByTool)
	printCountGroup("By scan mode", stats.ByMode)
}

// printCountGroup renders one GROUP BY result, keys sorted.
func printCountGroup(title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println()
	fmt.Println(tui.Separator(title))
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprintf("%d", counts[k])})
	}
	fmt.Print(tui.AlignColumns(rows, "  ", 2, tui.StyleMuted))
}

// runPurge handles the purge subcommand.
func runPurge(args []string) {
	purgeFlags := flag.NewFlagSet("purge", flag.ExitOnError)
	days := purgeFlags.Int("days", 0, "Delete decisions older than this many days (default: configured retention)")
	dbKey := purgeFlags.String("db-key", "", "Audit database encryption key (prefer FILEGUARD_DB_KEY env var)")
	_ = purgeFlags.Parse(args)

	cfg := loadConfig(config.DefaultConfigPath())
	applyOutputMode(cfg)

	window := *days
	if window <= 0 {
		window = cfg.Audit.RetentionDays
	}
	if window <= 0 {
		fmt.Fprintln(os.Stderr, "No retention window configured; pass -days N")
		os.Exit(2)
	}

	store := openAuditStore(cfg, *dbKey)
	if store == nil {
		tui.PrintError("audit database unavailable")
		os.Exit(1)
	}
	defer store.Close()

	deleted, err := store.Purge(window)
	if err != nil {
		tui.PrintError(fmt.Sprintf("purging decisions: %v", err))
		os.Exit(1)
	}
	tui.PrintSuccess(fmt.Sprintf("Removed %d decisions older than %d days", deleted, window))
}

// runCompletion handles the completion subcommand.
func runCompletion(args []string) {
	completionFlags := flag.NewFlagSet("completion", flag.ExitOnError)
	installFlag := completionFlags.Bool("install", false, "Install shell completion")
	uninstallFlag := completionFlags.Bool("uninstall", false, "Uninstall shell completion")
	_ = completionFlags.Parse(args)

	switch {
	case *installFlag:
		if completion.IsInstalled() {
			tui.PrintInfo("Shell completion is already installed")
			return
		}
		if err := completion.Install(); err != nil {
			tui.PrintError(fmt.Sprintf("installing completion: %v", err))
			os.Exit(1)
		}
		tui.PrintSuccess("Shell completion installed. Restart your shell to activate.")
	case *uninstallFlag:
		if !completion.IsInstalled() {
			tui.PrintInfo("Shell completion is not installed")
			return
		}
		if err := completion.Uninstall(); err != nil {
			tui.PrintError(fmt.Sprintf("uninstalling completion: %v", err))
			os.Exit(1)
		}
		tui.PrintSuccess("Shell completion removed")
	default:
		fmt.Fprintln(os.Stderr, "Usage: fileguard completion -install | -uninstall")
		os.Exit(2)
	}
}

// runVersion handles the version subcommand.
func runVersion(args []string) {
	versionFlags := flag.NewFlagSet("version", flag.ExitOnError)
	jsonOutput := versionFlags.Bool("json", false, "Output as JSON")
	_ = versionFlags.Parse(args)

	if *jsonOutput {
		printJSON(map[string]string{"version": Version})
		return
	}
	fmt.Printf("fileguard version %s\n", Version)
}

// applyOutputMode applies the configured color settings to both the
// styled output and the logger.
func applyOutputMode(cfg *config.Config) {
	if cfg.Logging.NoColor {
		tui.SetPlainMode(true)
		logger.SetColored(false)
		return
	}
	logger.AutoColor()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		os.Exit(1)
	}
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	if max <= 3 {
		max = 3
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// formatWindow renders a minute count the way people say it.
func formatWindow(minutes int) string {
	if minutes <= 0 {
		minutes = 60
	}
	if minutes%1440 == 0 {
		d := minutes / 1440
		if d == 1 {
			return "24h"
		}
		return fmt.Sprintf("%dd", d)
	}
	if minutes%60 == 0 {
		return fmt.Sprintf("%dh", minutes/60)
	}
	return fmt.Sprintf("%dm", minutes)
}

func printUsage() {
	fmt.Println(`fileguard - File access control for AI coding agents

Decides, before an agent reads, edits, or runs anything, whether the
target is protected by the project's ignore files, and answers the
agent's PreToolUse hook with allow or deny.

Usage:
  fileguard hook                       Run one hook decision (payload on stdin)
  fileguard check [flags] <target>     Check a file path or a command
  fileguard patterns [flags]           Show the active protection patterns
  fileguard serve [flags]              Serve the inspection API
  fileguard history [flags]            Show recent decisions
  fileguard stats [flags]              Show decision totals
  fileguard purge [flags]              Delete old decisions
  fileguard completion -install        Install shell tab-completion
  fileguard help                       Show this help message
  fileguard version                    Show version

Check Flags:
  -root string     Project root to resolve ignore files from (default: current directory)
  -tool string     Tool to check as: Read, Edit, MultiEdit, Write, Bash (default "Read")
  -json            Output as JSON

Serve Flags:
  -config string     Path to configuration file (default ~/.fileguard/config.yaml)
  -addr string       Listen address (default from config, 127.0.0.1:7341)
  -log-level string  Log level: trace, debug, info, warn, error
  -no-color          Disable colored output
  -db-key string     Audit database encryption key (prefer FILEGUARD_DB_KEY env var)

History Flags:
  -n int         Number of decisions to show (default 50)
  -minutes int   How many minutes back to look (default 1440)
  -json          Output as JSON

Environment Variables (preferred for secrets):
  FILEGUARD_DB_KEY      Audit database encryption key
  FILEGUARD_LOG_LEVEL   Log level override
  FILEGUARD_AUDIT_DB    Audit database path override
  FILEGUARD_ADDR        Serve listen address override

Hook Setup (Claude Code settings.json):
  {"hooks": {"PreToolUse": [{"matcher": "Read|Edit|MultiEdit|Write|Bash",
    "hooks": [{"type": "command", "command": "fileguard hook"}]}]}}

Examples:
  fileguard check .env                   Check a file against the rules
  fileguard check -tool Bash "cat .env"  Check a shell command
  fileguard patterns                     List the patterns protecting this project
  fileguard serve                        Start the inspection API
  fileguard history -n 20                Show the 20 most recent decisions`)
}
