package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/zulandar/scrumban/internal/sprint"
	"golang.org/x/term"
)

// burndownWidth is the widest bar drawn for a full backlog.
const burndownWidth = 40

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// wipLabel renders a column's task count against its limit, e.g. "3/4".
func wipLabel(count int, limit *int) string {
	if limit == nil {
		return fmt.Sprintf("%d", count)
	}
	return fmt.Sprintf("%d/%d", count, *limit)
}

// renderBurndown writes the burndown either as horizontal bars, for a
// terminal, or as plain tab-separated columns.
func renderBurndown(out io.Writer, points []sprint.Point, bars bool) {
	if len(points) == 0 {
		fmt.Fprintln(out, "No tasks in sprint.")
		return
	}
	if !bars {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tDATE\tIDEAL\tACTUAL")
		for _, p := range points {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", p.Day, p.Date.Format("2006-01-02"), p.Ideal, actualLabel(p.Actual))
		}
		w.Flush()
		return
	}

	total := points[0].Ideal
	for _, p := range points {
		fmt.Fprintf(out, "%s  %-*s %s\n",
			p.Date.Format("Jan 02"),
			burndownWidth, bar(p.Actual, total),
			actualLabel(p.Actual))
		fmt.Fprintf(out, "%s  %-*s %d ideal\n",
			"      ",
			burndownWidth, strings.Repeat(".", scale(p.Ideal, total)),
			p.Ideal)
	}
}

func bar(actual *int, total int) string {
	if actual == nil {
		return ""
	}
	return strings.Repeat("#", scale(*actual, total))
}

func scale(n, total int) int {
	if total <= 0 || n <= 0 {
		return 0
	}
	return n * burndownWidth / total
}

func actualLabel(actual *int) string {
	if actual == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *actual)
}
