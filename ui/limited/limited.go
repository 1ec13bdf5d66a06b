package limited

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/smilodon/backoff"
	"github.com/deemkeen/smilodon/ui/common"
)

var (
	rowStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color(common.COLOR_GREEN)).
			Bold(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DARK_GREY)).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_BLUE))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_RED))
)

type Model struct {
	Tracker  *backoff.Tracker
	Hosts    []backoff.LimitedHost
	Selected int
	Width    int
	Height   int
	Status   string
	Error    string
}

func InitialModel(tracker *backoff.Tracker, width, height int) Model {
	return Model{
		Tracker: tracker,
		Hosts:   []backoff.LimitedHost{},
		Width:   width,
		Height:  height,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadHosts(m.Tracker), tick())
}

// Reload refreshes the host list without starting another tick loop.
func (m Model) Reload() tea.Cmd {
	return loadHosts(m.Tracker)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case hostsLoadedMsg:
		m.Hosts = msg.hosts
		if m.Selected >= len(m.Hosts) {
			m.Selected = max(0, len(m.Hosts)-1)
		}
		return m, nil

	case tickMsg:
		// Windows expire on their own, so the list is re-read every second
		// to keep the countdowns honest.
		return m, tea.Batch(loadHosts(m.Tracker), tick())

	case clearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Selected > 0 {
				m.Selected--
			}
		case "down", "j":
			if len(m.Hosts) > 0 && m.Selected < len(m.Hosts)-1 {
				m.Selected++
			}
		case "c":
			if len(m.Hosts) > 0 && m.Selected < len(m.Hosts) {
				selected := m.Hosts[m.Selected]
				if m.Tracker.Clear(selected.Host) {
					m.Status = fmt.Sprintf("Cleared backoff for %s", selected.Host)
					m.Error = ""
				} else {
					m.Error = fmt.Sprintf("%s is no longer limited", selected.Host)
					m.Status = ""
				}
				return m, tea.Batch(loadHosts(m.Tracker), clearStatusAfter(3*time.Second))
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("limited hosts (%d)", len(m.Hosts))))
	s.WriteString("\n\n")

	if len(m.Hosts) == 0 {
		s.WriteString(emptyStyle.Render("No hosts are currently backing off."))
		s.WriteString("\n")
	} else {
		for i, host := range m.Hosts {
			prefix := "  "
			style := rowStyle
			if i == m.Selected {
				prefix = "> "
				style = selectedStyle
			}

			s.WriteString(style.Render(fmt.Sprintf("%s%s  until %s (%s left)",
				prefix,
				host.Host,
				host.Until.Format("15:04:05"),
				host.Remaining.Round(time.Second))))
			s.WriteString("\n")
		}
	}

	if m.Status != "" {
		s.WriteString("\n")
		s.WriteString(statusStyle.Render(m.Status))
		s.WriteString("\n")
	}

	if m.Error != "" {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(m.Error))
		s.WriteString("\n")
	}

	return s.String()
}

// hostsLoadedMsg carries the current backoff windows.
type hostsLoadedMsg struct {
	hosts []backoff.LimitedHost
}

// tickMsg drives the once-a-second countdown refresh.
type tickMsg struct{}

// clearStatusMsg clears the status and error lines after a delay.
type clearStatusMsg struct{}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func loadHosts(tracker *backoff.Tracker) tea.Cmd {
	return func() tea.Msg {
		return hostsLoadedMsg{hosts: tracker.LimitedHosts()}
	}
}
