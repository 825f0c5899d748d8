package report

import (
	"fmt"
	"sort"
	"strings"

	"pyimports/internal/core/ports"
	"pyimports/internal/engine/resolver"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#334155")).
			Padding(0, 1)
)

const topPackages = 10

// RenderSummary describes an extraction, and its attributions when given,
// for a terminal.
func RenderSummary(extract ports.ExtractResult, records []resolver.Attribution) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("pyimports summary"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "units scanned: %d\n", extract.Units)
	fmt.Fprintf(&b, "import events: %d\n", len(extract.Events))

	if n := len(extract.Warnings); n > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d unit(s) failed", n)))
		b.WriteString("\n")
		for _, w := range extract.Warnings {
			b.WriteString(mutedStyle.Render("  " + w))
			b.WriteString("\n")
		}
	} else {
		b.WriteString(okStyle.Render("all units parsed"))
		b.WriteString("\n")
	}

	if records != nil {
		modes := make(map[resolver.Mode]int)
		packages := make(map[string]int)
		for _, r := range records {
			modes[r.Mode]++
			if r.Mode == resolver.ModeMap || r.Mode == resolver.ModeHeuristic {
				packages[r.Name]++
			}
		}
		fmt.Fprintf(&b, "attributions: %d (builtin %d, map %d, heuristic %d, unknown %d)\n",
			len(records),
			modes[resolver.ModeBuiltin],
			modes[resolver.ModeMap],
			modes[resolver.ModeHeuristic],
			modes[resolver.ModeUnknown],
		)
		for _, line := range rankPackages(packages, topPackages) {
			b.WriteString("  " + line + "\n")
		}
	}
	if extract.RunID != "" {
		b.WriteString(mutedStyle.Render("saved as run " + extract.RunID))
		b.WriteString("\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func rankPackages(counts map[string]int, limit int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > limit {
		names = names[:limit]
	}
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("%-24s %d", name, counts[name])
	}
	return lines
}
