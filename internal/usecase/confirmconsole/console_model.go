package confirmconsole

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"readconfirm/internal/ports"
	"readconfirm/internal/usecase/confirmation"
)

const maxAuditLines = 8

type Options struct {
	TypeFilter      string
	EnabledOnly     bool
	RefreshInterval time.Duration
}

// ItemRow is one line of the item list.
type ItemRow struct {
	Item      ports.ContentItem
	Enabled   bool
	Supported bool
	Confirmed int
}

type consoleModel struct {
	ctx             context.Context
	service         *confirmation.Service
	typeFilter      string
	enabledOnly     bool
	refreshInterval time.Duration

	rows          []ItemRow
	selectedIndex int
	report        confirmation.Report
	hasReport     bool
	armedReset    uint64
	status        string
	auditLogs     []string
}

type itemsLoadedMsg struct {
	rows []ItemRow
	err  error
}

type reportLoadedMsg struct {
	itemID uint64
	report confirmation.Report
	err    error
}

type tickMsg struct{}

type actionDoneMsg struct {
	action string
	itemID uint64
	result string
	err    error
}

func NewConsoleModel(ctx context.Context, service *confirmation.Service, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &consoleModel{
		ctx:             ctx,
		service:         service,
		typeFilter:      strings.ToLower(strings.TrimSpace(options.TypeFilter)),
		enabledOnly:     options.EnabledOnly,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *consoleModel) Init() tea.Cmd {
	return tea.Batch(m.loadItemsCmd(), m.tickCmd())
}

func (m *consoleModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadItemsCmd(), m.tickCmd())
	case itemsLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.rows = msg.rows
		if len(m.rows) == 0 {
			m.selectedIndex = 0
			m.hasReport = false
			m.status = "no items"
			return m, nil
		}
		if m.selectedIndex >= len(m.rows) {
			m.selectedIndex = len(m.rows) - 1
		}
		m.status = fmt.Sprintf("refreshed, %d items", len(m.rows))
		return m, m.loadReportCmd()
	case reportLoadedMsg:
		row, ok := m.selectedRow()
		if !ok || row.Item.ItemID != msg.itemID {
			return m, nil
		}
		if msg.err != nil {
			m.hasReport = false
			m.status = "report failed: " + msg.err.Error()
			return m, nil
		}
		m.report = msg.report
		m.hasReport = true
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.appendAuditLog(msg.action, msg.itemID, "failed", msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
			m.appendAuditLog(msg.action, msg.itemID, msg.result, nil)
		}
		return m, m.loadItemsCmd()
	case tea.KeyMsg:
		key := msg.String()
		if key != "R" {
			m.armedReset = 0
		}
		switch key {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadItemsCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.hasReport = false
				return m, m.loadReportCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.rows)-1 {
				m.selectedIndex++
				m.hasReport = false
				return m, m.loadReportCmd()
			}
			return m, nil
		case "e":
			return m, m.toggleEnabledCmd()
		case "R":
			return m, m.resetCmd()
		}
	}
	return m, nil
}

func (m *consoleModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Read Confirmation Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"type=%s enabled_only=%t refresh=%s",
		firstNonEmpty(m.typeFilter, "all"),
		m.enabledOnly,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Items"))
	builder.WriteString("\n")
	if len(m.rows) == 0 {
		builder.WriteString(dimStyle.Render("- no items"))
		builder.WriteString("\n\n")
	} else {
		for index, row := range m.rows {
			line := fmt.Sprintf("#%d [%s] %s confirmed=%d title=%s",
				row.Item.ItemID, row.Item.Type, enabledLabel(row), row.Confirmed, row.Item.Title)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Report"))
	builder.WriteString("\n")
	if !m.hasReport {
		builder.WriteString(dimStyle.Render("- no report"))
		builder.WriteString("\n\n")
	} else {
		builder.WriteString(fmt.Sprintf("Confirmed (%d):\n", len(m.report.Confirmed)))
		writeUsers(&builder, m.report.Confirmed)
		builder.WriteString(fmt.Sprintf("Not confirmed (%d):\n", len(m.report.Unconfirmed)))
		writeUsers(&builder, m.report.Unconfirmed)
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  e enable/disable  R R reset  q quit"))
	return builder.String()
}

func (m *consoleModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *consoleModel) loadItemsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.service.ListItems(m.ctx, ports.ContentItemFilter{Type: m.typeFilter})
		if err != nil {
			return itemsLoadedMsg{err: err}
		}
		rows := make([]ItemRow, 0, len(items))
		for _, item := range items {
			enabled, err := m.service.IsEnabled(m.ctx, item.ItemID)
			if err != nil {
				return itemsLoadedMsg{err: err}
			}
			confirmed, err := m.service.GetConfirmedUsers(m.ctx, item.ItemID)
			if err != nil {
				return itemsLoadedMsg{err: err}
			}
			rows = append(rows, ItemRow{
				Item:      item,
				Enabled:   enabled,
				Supported: m.service.SupportsType(item.Type),
				Confirmed: len(confirmed),
			})
		}
		return itemsLoadedMsg{rows: filterRows(rows, m.enabledOnly)}
	}
}

func (m *consoleModel) loadReportCmd() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok {
		return nil
	}
	itemID := row.Item.ItemID
	return func() tea.Msg {
		report, err := m.service.ConfirmationReport(m.ctx, itemID)
		return reportLoadedMsg{itemID: itemID, report: report, err: err}
	}
}

func (m *consoleModel) toggleEnabledCmd() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok {
		m.status = "no item selected"
		return nil
	}
	itemID := row.Item.ItemID
	next := !row.Enabled
	action := "disable"
	if next {
		action = "enable"
	}
	m.status = action + " in progress"
	return func() tea.Msg {
		if err := m.service.SetEnabled(m.ctx, itemID, next); err != nil {
			return actionDoneMsg{action: action, itemID: itemID, err: err}
		}
		return actionDoneMsg{action: action, itemID: itemID, result: fmt.Sprintf("enabled=%t", next)}
	}
}

// resetCmd clears the record only on the second consecutive R for the same item.
func (m *consoleModel) resetCmd() tea.Cmd {
	row, ok := m.selectedRow()
	if !ok {
		m.status = "no item selected"
		return nil
	}
	itemID := row.Item.ItemID
	if m.armedReset != itemID {
		m.armedReset = itemID
		m.status = fmt.Sprintf("press R again to clear %d confirmations of #%d", row.Confirmed, itemID)
		return nil
	}
	m.armedReset = 0
	m.status = "reset in progress"
	return func() tea.Msg {
		if err := m.service.Reset(m.ctx, itemID); err != nil {
			return actionDoneMsg{action: "reset", itemID: itemID, err: err}
		}
		return actionDoneMsg{action: "reset", itemID: itemID, result: "cleared"}
	}
}

func (m *consoleModel) selectedRow() (ItemRow, bool) {
	if len(m.rows) == 0 || m.selectedIndex < 0 || m.selectedIndex >= len(m.rows) {
		return ItemRow{}, false
	}
	return m.rows[m.selectedIndex], true
}

func (m *consoleModel) appendAuditLog(action string, itemID uint64, result string, err error) {
	line := fmt.Sprintf("%s %s #%d %s", time.Now().Format("15:04:05"), action, itemID, result)
	if err != nil {
		line += ": " + err.Error()
	}
	m.auditLogs = append(m.auditLogs, line)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[len(m.auditLogs)-maxAuditLines:]
	}
}

func filterRows(rows []ItemRow, enabledOnly bool) []ItemRow {
	if !enabledOnly {
		return rows
	}
	filtered := make([]ItemRow, 0, len(rows))
	for _, row := range rows {
		if row.Enabled {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

func enabledLabel(row ItemRow) string {
	switch {
	case !row.Supported:
		return "unsupported"
	case row.Enabled:
		return "on"
	default:
		return "off"
	}
}

func writeUsers(builder *strings.Builder, users []confirmation.UserSummary) {
	if len(users) == 0 {
		builder.WriteString("- none\n")
		return
	}
	for _, u := range users {
		builder.WriteString(fmt.Sprintf("- %d %s\n", u.UserID, firstNonEmpty(u.DisplayName, u.Login)))
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}
