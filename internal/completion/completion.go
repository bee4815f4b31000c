// Package completion provides CLI tab-completion for fileguard.
//
// The binary itself handles completions: when invoked with COMP_LINE set
// (by the shell), it outputs matching completions and exits.
// Works across bash, zsh, and fish with a one-time install.
//
// User-facing output (styled messages) is handled by the caller in
// main.go.
package completion

import (
	"os"

	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/install"
	"github.com/posener/complete/v2/predict"
)

// command defines the full fileguard CLI completion tree.
var command = &complete.Command{
	Sub: map[string]*complete.Command{
		"hook": {
			Flags: map[string]complete.Predictor{
				"config": predict.Files("*.yaml"),
			},
		},
		"check": {
			Flags: map[string]complete.Predictor{
				"root": predict.Dirs("*"),
				"tool": predict.Set{"Read", "Edit", "MultiEdit", "Write", "Bash"},
				"json": predict.Nothing,
			},
			Args: predict.Files("*"),
		},
		"patterns": {
			Flags: map[string]complete.Predictor{
				"root": predict.Dirs("*"),
				"json": predict.Nothing,
			},
		},
		"serve": {
			Flags: map[string]complete.Predictor{
				"addr":      predict.Nothing,
				"config":    predict.Files("*.yaml"),
				"log-level": predict.Set{"trace", "debug", "info", "warn", "error"},
				"no-color":  predict.Nothing,
				"db-key":    predict.Nothing,
			},
		},
		"history": {
			Flags: map[string]complete.Predictor{
				"n":       predict.Nothing,
				"minutes": predict.Nothing,
				"json":    predict.Nothing,
			},
		},
		"stats": {Flags: map[string]complete.Predictor{"json": predict.Nothing}},
		"purge": {
			Flags: map[string]complete.Predictor{
				"days":   predict.Nothing,
				"db-key": predict.Nothing,
			},
		},
		"version": {
			Flags: map[string]complete.Predictor{"json": predict.Nothing},
		},
		"help": {},
		"completion": {
			Flags: map[string]complete.Predictor{
				"install":   predict.Nothing,
				"uninstall": predict.Nothing,
			},
		},
	},
}

// Run checks if the binary was invoked for shell completion.
// If COMP_LINE is set, it outputs completions and exits (never returns).
// Otherwise it returns false and the program continues normally.
func Run() bool {
	if os.Getenv("COMP_LINE") != "" || os.Getenv("COMP_INSTALL") != "" || os.Getenv("COMP_UNINSTALL") != "" {
		command.Complete("fileguard")
		return true
	}
	return false
}

// Install sets up shell completion for the detected shells.
// Returns nil on success. The caller handles user-facing output.
func Install() error {
	return install.Install("fileguard")
}

// Uninstall removes shell completion for the detected shells.
// Returns nil on success. The caller handles user-facing output.
func Uninstall() error {
	return install.Uninstall("fileguard")
}

// IsInstalled reports whether shell completion is already set up.
func IsInstalled() bool {
	return install.IsInstalled("fileguard")
}
