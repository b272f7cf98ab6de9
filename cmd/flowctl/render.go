// Copyright 2026 The Flowd Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/flowd-project/flowd/lib/defs"
	"github.com/flowd-project/flowd/lib/notify"
)

// stdoutStyled reports whether output should carry colour: stdout is a
// terminal and NO_COLOR is unset.
func stdoutStyled() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
}

// theme renders statuses and paths. The zero-colour theme renders
// plain text.
type theme struct {
	status map[defs.Status]lipgloss.Style
	path   lipgloss.Style
	faint  lipgloss.Style
}

var statusColors = map[defs.Status]lipgloss.Color{
	defs.StatusUnknown:   "245",
	defs.StatusQueued:    "75",
	defs.StatusSubmitted: "44",
	defs.StatusRunning:   "34",
	defs.StatusComplete:  "220",
	defs.StatusAborted:   "196",
}

func newTheme(styled bool) theme {
	th := theme{
		status: make(map[defs.Status]lipgloss.Style, len(statusColors)),
		path:   lipgloss.NewStyle(),
		faint:  lipgloss.NewStyle(),
	}
	for status, color := range statusColors {
		style := lipgloss.NewStyle()
		if styled {
			style = style.Foreground(color).Bold(status == defs.StatusAborted)
		}
		th.status[status] = style
	}
	if styled {
		th.path = th.path.Bold(true)
		th.faint = th.faint.Foreground(lipgloss.Color("245"))
	}
	return th
}

func (th theme) statusText(s defs.Status) string {
	if s == "" {
		s = defs.StatusUnknown
	}
	return th.status[s].Render(string(s))
}

// writeTree prints the server state, server variables and every suite.
func writeTree(w io.Writer, th theme, d *defs.Defs) {
	fmt.Fprintf(w, "server %s\n", d.State)
	for _, variable := range d.Variables {
		fmt.Fprintf(w, "  %s\n", th.faint.Render(fmt.Sprintf("edit %s %q", variable.Name, variable.Value)))
	}
	for _, suite := range d.Suites {
		writeNode(w, th, suite, 0)
	}
}

// writeNode prints n and its descendants, indented by depth.
func writeNode(w io.Writer, th theme, n *defs.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	line := fmt.Sprintf("%s%s %s %s", indent, n.Kind, th.path.Render(n.Name), th.statusText(n.Status))
	var notes []string
	if n.Suspended {
		notes = append(notes, "suspended")
	}
	if n.DefStatus != "" && n.DefStatus != defs.StatusQueued {
		notes = append(notes, "defstatus "+string(n.DefStatus))
	}
	if n.Flags != 0 {
		notes = append(notes, "flags "+n.Flags.String())
	}
	if len(notes) > 0 {
		line += " " + th.faint.Render("("+strings.Join(notes, "; ")+")")
	}
	fmt.Fprintln(w, line)

	for _, attribute := range attributeLines(&n.Attributes) {
		fmt.Fprintf(w, "%s  %s\n", indent, th.faint.Render(attribute))
	}
	for _, child := range n.Children {
		writeNode(w, th, child, depth+1)
	}
}

// attributeLines renders one line per attribute.
func attributeLines(a *defs.Attributes) []string {
	var lines []string
	for _, v := range a.Variables {
		lines = append(lines, fmt.Sprintf("edit %s %q", v.Name, v.Value))
	}
	for _, l := range a.Labels {
		value := l.Value
		if l.NewValue != "" {
			value = l.NewValue
		}
		lines = append(lines, fmt.Sprintf("label %s %q", l.Name, value))
	}
	for _, e := range a.Events {
		state := "clear"
		if e.Value {
			state = "set"
		}
		lines = append(lines, fmt.Sprintf("event %s %s", e.Name, state))
	}
	for _, m := range a.Meters {
		lines = append(lines, fmt.Sprintf("meter %s %d [%d..%d]", m.Name, m.Value, m.Min, m.Max))
	}
	for _, l := range a.Limits {
		lines = append(lines, fmt.Sprintf("limit %s %d/%d", l.Name, l.Value, l.Max))
	}
	if a.Trigger != nil {
		lines = append(lines, expressionLine("trigger", a.Trigger))
	}
	if a.Complete != nil {
		lines = append(lines, expressionLine("complete", a.Complete))
	}
	if a.Repeat != nil {
		lines = append(lines, fmt.Sprintf("repeat %s %s index %d", a.Repeat.Kind, a.Repeat.Name, a.Repeat.Index))
	}
	for _, group := range []struct {
		kind string
		deps []defs.TimeDependency
	}{
		{"today", a.Todays}, {"time", a.Times}, {"day", a.Days}, {"date", a.Dates}, {"cron", a.Crons},
	} {
		for _, dep := range group.deps {
			line := group.kind + " " + dep.Spec
			if dep.Free {
				line += " (free)"
			}
			lines = append(lines, line)
		}
	}
	return lines
}

func expressionLine(kind string, e *defs.Expression) string {
	line := fmt.Sprintf("%s %s", kind, e.Expr)
	if e.Free {
		line += " (free)"
	}
	return line
}

// describeChange formats one replica change for watch.
func describeChange(th theme, c notify.Change) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", th.faint.Render(fmt.Sprintf("#%d", c.Sequence)), th.path.Render(c.Path), c.Aspects)
	switch {
	case c.Node != nil:
		fmt.Fprintf(&b, " %s", th.statusText(c.Node.Status))
		if c.Node.Suspended {
			b.WriteString(" suspended")
		}
	case c.Path == defs.RootPath && c.Defs != nil:
		fmt.Fprintf(&b, " server %s", c.Defs.State)
	default:
		b.WriteString(" " + th.faint.Render("removed"))
	}
	return b.String()
}
