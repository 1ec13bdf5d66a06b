package policies

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/smilodon/db"
	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/reputation"
	"github.com/deemkeen/smilodon/ui/common"
	"log"
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

	blockedStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color(common.COLOR_RED))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DARK_GREY)).
			Italic(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_BLUE))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_RED))
)

type Model struct {
	Cache    *reputation.Cache
	Policies []domain.InstancePolicy
	Selected int
	Width    int
	Height   int
	Status   string
	Error    string
}

func InitialModel(cache *reputation.Cache, width, height int) Model {
	return Model{
		Cache:    cache,
		Policies: []domain.InstancePolicy{},
		Selected: 0,
		Width:    width,
		Height:   height,
	}
}

func (m Model) Init() tea.Cmd {
	return m.Reload()
}

// Reload refreshes the policy list without touching anything else.
func (m Model) Reload() tea.Cmd {
	return loadPolicies()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case policiesLoadedMsg:
		m.Policies = msg.policies
		if m.Selected >= len(m.Policies) {
			m.Selected = max(0, len(m.Policies)-1)
		}
		return m, nil

	case policyDeletedMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Delete failed: %v", msg.err)
			m.Status = ""
		} else {
			m.Status = fmt.Sprintf("Deleted policy for %s, cache invalidated", msg.domain)
			m.Error = ""
		}
		return m, tea.Batch(loadPolicies(), clearStatusAfter(3*time.Second))

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
			if len(m.Policies) > 0 && m.Selected < len(m.Policies)-1 {
				m.Selected++
			}
		case "c":
			if len(m.Policies) > 0 && m.Selected < len(m.Policies) {
				selected := m.Policies[m.Selected]
				m.Cache.Invalidate(selected.Domain)
				m.Status = fmt.Sprintf("Cache invalidated for %s", selected.Domain)
				m.Error = ""
				return m, clearStatusAfter(3 * time.Second)
			}
		case "d":
			if len(m.Policies) > 0 && m.Selected < len(m.Policies) {
				selected := m.Policies[m.Selected]
				return m, deletePolicy(m.Cache, selected.Domain)
			}
		case "r":
			return m, loadPolicies()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("instance policies (%d)", len(m.Policies))))
	s.WriteString("\n\n")

	if len(m.Policies) == 0 {
		s.WriteString(emptyStyle.Render("No instance policies on file."))
		s.WriteString("\n")
	} else {
		for i, policy := range m.Policies {
			prefix := "  "
			style := rowStyle

			if policy.Blocked {
				style = blockedStyle
			}
			if i == m.Selected {
				prefix = "> "
				style = selectedStyle
			}

			s.WriteString(style.Render(fmt.Sprintf("%s%s  [%s]", prefix, policy.Domain, policy.FlagSummary())))
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

// policiesLoadedMsg is sent when the policy list has been read.
type policiesLoadedMsg struct {
	policies []domain.InstancePolicy
}

// policyDeletedMsg reports the outcome of a delete.
type policyDeletedMsg struct {
	domain string
	err    error
}

// clearStatusMsg clears the status and error lines after a delay.
type clearStatusMsg struct{}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func loadPolicies() tea.Cmd {
	return func() tea.Msg {
		err, policies := db.GetDB().ReadAllInstancePolicies()
		if err != nil {
			log.Printf("Dashboard: failed to load instance policies: %v", err)
			return policiesLoadedMsg{policies: []domain.InstancePolicy{}}
		}
		if policies == nil {
			return policiesLoadedMsg{policies: []domain.InstancePolicy{}}
		}
		return policiesLoadedMsg{policies: *policies}
	}
}

// deletePolicy removes the row and drops any cached lookups covered by it. A
// wildcard domain clears the whole cache.
func deletePolicy(cache *reputation.Cache, domainName string) tea.Cmd {
	return func() tea.Msg {
		if err := db.GetDB().DeleteInstancePolicy(domainName); err != nil {
			return policyDeletedMsg{domain: domainName, err: err}
		}
		cache.Invalidate(domainName)
		return policyDeletedMsg{domain: domainName}
	}
}
