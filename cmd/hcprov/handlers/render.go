package handlers

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/hcprov/internal/provisioning"
	"github.com/imamik/hcprov/internal/task"
)

var (
	colorGreen = lipgloss.Color("#22c55e")
	colorRed   = lipgloss.Color("#ef4444")
	colorDim   = lipgloss.Color("#6b7280")

	okStyle   = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
)

// renderOutcome formats the outcome of req as one or two lines.
func renderOutcome(req provisioning.Request, outcome task.Outcome, styled bool) string {
	mark, style := checkMark, okStyle
	if !outcome.Succeeded() {
		mark, style = crossMark, failStyle
	}
	subject := fmt.Sprintf("%s %s", req.Operation, req.ResourceRef)
	if req.IsMock {
		subject += " (mock)"
	}
	ref := "task " + outcome.TaskRef

	if styled {
		mark = style.Render(mark)
		ref = dimStyle.Render(ref)
	}
	line := fmt.Sprintf("%s %s  %s\n", mark, subject, ref)
	if !outcome.Succeeded() {
		line += fmt.Sprintf("     %v\n", outcome.Err)
	}
	return line
}

func renderCheck(ok bool, msg string, styled bool) string {
	mark, style := checkMark, okStyle
	if !ok {
		mark, style = crossMark, failStyle
	}
	if styled {
		mark = style.Render(mark)
	}
	return fmt.Sprintf("%s %s\n", mark, msg)
}
