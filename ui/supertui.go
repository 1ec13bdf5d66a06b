package ui

import (
	"fmt"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/smilodon/backoff"
	"github.com/deemkeen/smilodon/relay"
	"github.com/deemkeen/smilodon/reputation"
	"github.com/deemkeen/smilodon/ui/common"
	"github.com/deemkeen/smilodon/ui/decisions"
	"github.com/deemkeen/smilodon/ui/header"
	"github.com/deemkeen/smilodon/ui/limited"
	"github.com/deemkeen/smilodon/ui/policies"
	"github.com/deemkeen/smilodon/ui/relays"
	"github.com/deemkeen/smilodon/ui/status"
	"github.com/deemkeen/smilodon/util"
)

var (
	modelStyle = lipgloss.NewStyle().
			Align(lipgloss.Top, lipgloss.Top).
			BorderStyle(lipgloss.HiddenBorder()).MarginLeft(1)
	focusedModelStyle = lipgloss.NewStyle().
				Align(lipgloss.Top, lipgloss.Top).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(common.COLOR_LIGHTBLUE)).MarginLeft(1)
)

// Deps carries the moderation components every dashboard session shares.
// They are built once in main; the store is reached through its singleton.
type Deps struct {
	Conf    *util.ConfigHolder
	Cache   *reputation.Cache
	Tracker *backoff.Tracker
	Relay   *relay.Service
}

type MainModel struct {
	width          int
	height         int
	state          common.SessionState
	headerModel    header.Model
	statusModel    status.Model
	policiesModel  policies.Model
	limitedModel   limited.Model
	relaysModel    relays.Model
	decisionsModel decisions.Model
}

func NewModel(deps Deps, width int, height int) MainModel {

	width = common.DefaultWindowWidth(width)
	height = common.DefaultWindowHeight(height)

	m := MainModel{state: common.PoliciesView}
	m.headerModel = header.Model{Width: width, Host: deps.Conf.Conf().Conf.Host}
	m.statusModel = status.InitialModel(deps.Cache, deps.Tracker, width, height)
	m.policiesModel = policies.InitialModel(deps.Cache, width, height)
	m.limitedModel = limited.InitialModel(deps.Tracker, width, height)
	m.relaysModel = relays.InitialModel(deps.Relay, width, height)
	m.decisionsModel = decisions.InitialModel(width, height)
	m.width = width
	m.height = height
	return m
}

func (m MainModel) Init() tea.Cmd {
	// Load every view up front so tabbing shows data immediately.
	return tea.Batch(
		m.statusModel.Init(),
		m.policiesModel.Init(),
		m.limitedModel.Init(),
		m.relaysModel.Init(),
		m.decisionsModel.Init(),
	)
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.headerModel.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			switch m.state {
			case common.PoliciesView:
				m.state = common.LimitedHostsView
			case common.LimitedHostsView:
				m.state = common.RelaysView
			case common.RelaysView:
				m.state = common.DecisionsView
			case common.DecisionsView:
				m.state = common.PoliciesView
			}
			cmds = append(cmds, m.reloadCmd(m.state))
		case "shift+tab":
			switch m.state {
			case common.PoliciesView:
				m.state = common.DecisionsView
			case common.LimitedHostsView:
				m.state = common.PoliciesView
			case common.RelaysView:
				m.state = common.LimitedHostsView
			case common.DecisionsView:
				m.state = common.RelaysView
			}
			cmds = append(cmds, m.reloadCmd(m.state))
		}
	}

	// Route non-keyboard messages to all sub-models so loader and tick
	// messages reach their owners regardless of focus.
	if _, isKeyMsg := msg.(tea.KeyMsg); !isKeyMsg {
		m.headerModel, _ = m.headerModel.Update(msg)
		m.statusModel, cmd = m.statusModel.Update(msg)
		cmds = append(cmds, cmd)
		m.policiesModel, cmd = m.policiesModel.Update(msg)
		cmds = append(cmds, cmd)
		m.limitedModel, cmd = m.limitedModel.Update(msg)
		cmds = append(cmds, cmd)
		m.relaysModel, cmd = m.relaysModel.Update(msg)
		cmds = append(cmds, cmd)
		m.decisionsModel, cmd = m.decisionsModel.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Keyboard input goes only to the focused view.
	if _, ok := msg.(tea.KeyMsg); ok {
		switch m.state {
		case common.PoliciesView:
			m.policiesModel, cmd = m.policiesModel.Update(msg)
		case common.LimitedHostsView:
			m.limitedModel, cmd = m.limitedModel.Update(msg)
		case common.RelaysView:
			m.relaysModel, cmd = m.relaysModel.Update(msg)
		case common.DecisionsView:
			m.decisionsModel, cmd = m.decisionsModel.Update(msg)
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m MainModel) View() string {

	var s string

	availableHeight := m.height - 10 // header and help line
	leftPanelWidth := m.width / 3
	rightPanelWidth := m.width - leftPanelWidth - 6 // borders and margins

	statusStyleStr := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(leftPanelWidth).
		MaxWidth(leftPanelWidth).
		Render(m.statusModel.View())

	rightPanel := lipgloss.NewStyle().
		MaxHeight(availableHeight).
		Height(availableHeight).
		Width(rightPanelWidth).
		MaxWidth(rightPanelWidth).
		Margin(1)

	var focusedView string
	switch m.state {
	case common.PoliciesView:
		focusedView = rightPanel.Render(m.policiesModel.View())
	case common.LimitedHostsView:
		focusedView = rightPanel.Render(m.limitedModel.View())
	case common.RelaysView:
		focusedView = rightPanel.Render(m.relaysModel.View())
	case common.DecisionsView:
		focusedView = rightPanel.Render(m.decisionsModel.View())
	}

	navContainer := lipgloss.NewStyle().Render(m.headerModel.View())
	s += navContainer + "\n"

	s += lipgloss.JoinHorizontal(lipgloss.Top,
		modelStyle.Render(statusStyleStr),
		focusedModelStyle.Render(focusedView))

	var viewCommands string
	switch m.state {
	case common.PoliciesView:
		viewCommands = "↑/↓: select • c: invalidate cache • d: delete • r: reload"
	case common.LimitedHostsView:
		viewCommands = "↑/↓: select • c: clear backoff"
	case common.RelaysView:
		viewCommands = "enter: follow relay • esc: clear"
	case common.DecisionsView:
		viewCommands = "↑/↓: scroll • r: reload"
	default:
		viewCommands = " "
	}

	s += common.HelpStyle.Render(fmt.Sprintf(
		"focused > %s\t\tkeys > tab: next • shift+tab: prev • %s • ctrl-c: exit",
		m.currentFocusedModel(), viewCommands))
	return lipgloss.NewStyle().Render(s)
}

func (m MainModel) currentFocusedModel() string {
	switch m.state {
	case common.PoliciesView:
		return "instance policies"
	case common.LimitedHostsView:
		return "limited hosts"
	case common.RelaysView:
		return "relay subscriptions"
	case common.DecisionsView:
		return "recent decisions"
	default:
		return "instance policies"
	}
}

// reloadCmd refreshes the data behind a view when it gains focus.
func (m MainModel) reloadCmd(state common.SessionState) tea.Cmd {
	switch state {
	case common.PoliciesView:
		return m.policiesModel.Reload()
	case common.LimitedHostsView:
		return m.limitedModel.Reload()
	case common.RelaysView:
		return m.relaysModel.Reload()
	case common.DecisionsView:
		return m.decisionsModel.Reload()
	default:
		return nil
	}
}
