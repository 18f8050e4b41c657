// Package ui prints the staged progress banner for interactive runs.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
)

// Header prints a centered banner for the run.
func Header(title string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Fprintln(os.Stderr, line)
	headerColor.Fprintln(os.Stderr, center(title, headerWidth))
	headerColor.Fprintln(os.Stderr, line)
}

// Step prints one numbered pipeline stage.
func Step(n, total int, text string) {
	stepColor.Fprintf(os.Stderr, "[%d/%d] %s\n", n, total, text)
}

// Success prints a completed-stage line.
func Success(text string) {
	successColor.Fprintf(os.Stderr, "  ✓ %s\n", text)
}

// Warning prints a non-fatal condition.
func Warning(text string) {
	warnColor.Fprintf(os.Stderr, "  ! %s\n", text)
}

// Summary prints a label/value line of the final run report.
func Summary(label string, value int) {
	fmt.Fprintf(os.Stderr, "  %-22s %d\n", label+":", value)
}

// center left-pads text to the midpoint of width. Text wider than width is
// returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return strings.Repeat(" ", pad) + text
}
