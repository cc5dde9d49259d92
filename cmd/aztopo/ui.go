package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, warnStyle.Render("⚠️  "+msg))
}

// printCountTable renders a two-column table of counts sorted by key.
func printCountTable(w io.Writer, header string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{header, "Count"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)

	total := 0
	for _, k := range keys {
		table.Append([]string{k, strconv.Itoa(counts[k])})
		total += counts[k]
	}
	table.SetFooter([]string{"total", strconv.Itoa(total)})
	table.Render()
}
