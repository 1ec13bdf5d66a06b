package decisions

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/smilodon/db"
	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/ui/common"
	"log"
)

const decisionLimit = 50

var (
	acceptedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	rejectedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color(common.COLOR_RED))

	reasonStyle = lipgloss.NewStyle().
			PaddingLeft(6).
			Foreground(lipgloss.Color(common.COLOR_GREY)).
			Italic(true)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DARK_GREY)).
			Italic(true)
)

type Model struct {
	Decisions []domain.Activity
	Offset    int
	Width     int
	Height    int
}

func InitialModel(width, height int) Model {
	return Model{
		Decisions: []domain.Activity{},
		Offset:    0,
		Width:     width,
		Height:    height,
	}
}

func (m Model) Init() tea.Cmd {
	return m.Reload()
}

// Reload re-reads the most recent decisions.
func (m Model) Reload() tea.Cmd {
	return loadDecisions()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case decisionsLoadedMsg:
		m.Decisions = msg.decisions
		m.Offset = 0
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.Offset > 0 {
				m.Offset--
			}
		case "down", "j":
			if len(m.Decisions) > 0 && m.Offset < len(m.Decisions)-1 {
				m.Offset++
			}
		case "r":
			return m, loadDecisions()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("recent decisions (%d)", len(m.Decisions))))
	s.WriteString("\n\n")

	if len(m.Decisions) == 0 {
		s.WriteString(emptyStyle.Render("No activities logged yet."))
		s.WriteString("\n")
	} else {
		itemsPerPage := 10
		start := m.Offset
		end := start + itemsPerPage
		if end > len(m.Decisions) {
			end = len(m.Decisions)
		}

		for i := start; i < end; i++ {
			decision := m.Decisions[i]

			mark := "✓"
			style := acceptedStyle
			if !decision.Accepted {
				mark = "✗"
				style = rejectedStyle
			}

			s.WriteString(style.Render(fmt.Sprintf("%s %s from %s  %s",
				mark,
				decision.ActivityType,
				decision.SourceHost,
				decision.CreatedAt.Format("15:04:05"))))
			s.WriteString("\n")

			if !decision.Accepted && decision.Reason != "" {
				s.WriteString(reasonStyle.Render(decision.Reason))
				s.WriteString("\n")
			}
		}
	}

	return s.String()
}

// decisionsLoadedMsg carries the decision log rows, newest first.
type decisionsLoadedMsg struct {
	decisions []domain.Activity
}

func loadDecisions() tea.Cmd {
	return func() tea.Msg {
		err, activities := db.GetDB().ReadRecentActivities(decisionLimit)
		if err != nil {
			log.Printf("Dashboard: failed to load recent decisions: %v", err)
			return decisionsLoadedMsg{decisions: []domain.Activity{}}
		}
		if activities == nil {
			return decisionsLoadedMsg{decisions: []domain.Activity{}}
		}
		return decisionsLoadedMsg{decisions: *activities}
	}
}
