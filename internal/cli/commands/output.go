package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pointsStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
)

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warnStyle.Render("! "+fmt.Sprintf(format, args...)))
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func printMuted(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf(format, args...)))
}

func points(n int) string {
	return pointsStyle.Render(fmt.Sprintf("%d pts", n))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// failure builds an error from a backend message and its field errors
func failure(message string, fieldErrors map[string][]string) error {
	if len(fieldErrors) == 0 {
		return errors.New(message)
	}

	fields := make([]string, 0, len(fieldErrors))
	for field := range fieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString(message)
	for _, field := range fields {
		for _, msg := range fieldErrors[field] {
			fmt.Fprintf(&b, "\n  %s: %s", field, msg)
		}
	}
	return errors.New(b.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
