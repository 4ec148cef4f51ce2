package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"readconfirm/internal/errs"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return titleStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...).
		Rows(rows...)
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return errs.Wrap(err, "write table")
	}
	return nil
}

func writeSection(w io.Writer, title string) error {
	if _, err := fmt.Fprintln(w, sectionStyle.Render(title)); err != nil {
		return errs.Wrap(err, "write section")
	}
	return nil
}

func writeDim(w io.Writer, text string) error {
	if _, err := fmt.Fprintln(w, dimStyle.Render(text)); err != nil {
		return errs.Wrap(err, "write output")
	}
	return nil
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
