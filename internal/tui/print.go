package tui

import (
	"fmt"
	"os"
)

// PrintBrand prints a highlighted startup message with the shield marker.
func PrintBrand(msg string) {
	if IsPlainMode() {
		fmt.Printf("[fileguard] %s\n", msg)
		return
	}
	fmt.Printf("%s %s %s\n", Prefix(), StyleTitle.Render(IconShield), msg)
}

// PrintSuccess prints a styled success message with the [fileguard] prefix.
func PrintSuccess(msg string) {
	if IsPlainMode() {
		fmt.Printf("[fileguard] OK: %s\n", msg)
		return
	}
	fmt.Printf("%s %s %s\n", Prefix(), StyleSuccess.Render(IconCheck), msg)
}

// PrintError prints a styled error message with the [fileguard] prefix.
func PrintError(msg string) {
	if IsPlainMode() {
		fmt.Fprintf(os.Stderr, "[fileguard] ERROR: %s\n", msg)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s %s\n", Prefix(), StyleError.Render(IconCross), msg)
}

// PrintWarning prints a styled warning message with the [fileguard] prefix.
func PrintWarning(msg string) {
	if IsPlainMode() {
		fmt.Printf("[fileguard] WARNING: %s\n", msg)
		return
	}
	fmt.Printf("%s %s %s\n", Prefix(), StyleWarning.Render(IconWarning), msg)
}

// PrintInfo prints a styled info message with the [fileguard] prefix.
func PrintInfo(msg string) {
	if IsPlainMode() {
		fmt.Printf("[fileguard] %s\n", msg)
		return
	}
	fmt.Printf("%s %s %s\n", Prefix(), StyleInfo.Render(IconInfo), msg)
}
