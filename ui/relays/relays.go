package relays

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/smilodon/domain"
	"github.com/deemkeen/smilodon/relay"
	"github.com/deemkeen/smilodon/ui/common"
	"log"
)

var (
	rowStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0)

	activeStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			MarginBottom(0).
			Foreground(lipgloss.Color(common.COLOR_GREEN))

	rejectedStyle = lipgloss.NewStyle().
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
	Svc           *relay.Service
	TextInput     textinput.Model
	Subscriptions []domain.RelaySubscription
	Width         int
	Height        int
	Status        string
	Error         string
}

func InitialModel(svc *relay.Service, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "https://relay.example/actor"
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 50

	return Model{
		Svc:           svc,
		TextInput:     ti,
		Subscriptions: []domain.RelaySubscription{},
		Width:         width,
		Height:        height,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, loadSubscriptions(m.Svc))
}

// Reload refreshes the subscription list.
func (m Model) Reload() tea.Cmd {
	return loadSubscriptions(m.Svc)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case subscriptionsLoadedMsg:
		m.Subscriptions = msg.subscriptions
		return m, nil

	case subscribedMsg:
		if msg.err != nil {
			m.Error = fmt.Sprintf("Subscribe failed: %v", msg.err)
			m.Status = ""
			return m, nil
		}
		m.Status = fmt.Sprintf("Follow sent to %s (%s)", msg.sub.RelayURI, msg.sub.Status)
		m.Error = ""
		m.TextInput.SetValue("")
		return m, tea.Batch(loadSubscriptions(m.Svc), clearStatusAfter(5*time.Second))

	case clearStatusMsg:
		m.Status = ""
		m.Error = ""
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			input := strings.TrimSpace(m.TextInput.Value())
			if input == "" {
				m.Error = "Please enter a relay actor URI"
				return m, nil
			}
			m.Status = fmt.Sprintf("Subscribing to %s...", input)
			m.Error = ""
			return m, subscribe(m.Svc, input)
		case "esc":
			m.TextInput.SetValue("")
			m.Status = ""
			m.Error = ""
			return m, nil
		}
	}

	m.TextInput, cmd = m.TextInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render(fmt.Sprintf("relay subscriptions (%d)", len(m.Subscriptions))))
	s.WriteString("\n\n")
	s.WriteString("Follow a relay by its actor URI:\n\n")
	s.WriteString(m.TextInput.View())
	s.WriteString("\n\n")

	if len(m.Subscriptions) == 0 {
		s.WriteString(emptyStyle.Render("No relay subscriptions yet."))
		s.WriteString("\n")
	} else {
		for _, sub := range m.Subscriptions {
			style := rowStyle
			switch sub.Status {
			case domain.RelayStatusActive:
				style = activeStyle
			case domain.RelayStatusRejected:
				style = rejectedStyle
			}

			s.WriteString(style.Render(fmt.Sprintf("• %s [%s]", sub.RelayURI, sub.Status)))
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

// subscriptionsLoadedMsg carries every recorded handshake, newest first.
type subscriptionsLoadedMsg struct {
	subscriptions []domain.RelaySubscription
}

// subscribedMsg reports the outcome of a Subscribe call.
type subscribedMsg struct {
	sub *domain.RelaySubscription
	err error
}

// clearStatusMsg clears the status and error lines after a delay.
type clearStatusMsg struct{}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func loadSubscriptions(svc *relay.Service) tea.Cmd {
	return func() tea.Msg {
		subs, err := svc.ListSubscriptions()
		if err != nil {
			log.Printf("Dashboard: failed to load relay subscriptions: %v", err)
			return subscriptionsLoadedMsg{subscriptions: []domain.RelaySubscription{}}
		}
		return subscriptionsLoadedMsg{subscriptions: subs}
	}
}

func subscribe(svc *relay.Service, relayURI string) tea.Cmd {
	return func() tea.Msg {
		sub, err := svc.Subscribe(relayURI)
		return subscribedMsg{sub: sub, err: err}
	}
}
