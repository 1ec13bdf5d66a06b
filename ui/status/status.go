package status

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/deemkeen/smilodon/backoff"
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

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(common.COLOR_DARK_GREY)).
			Italic(true).
			PaddingLeft(2)
)

type serverStats struct {
	policies          int
	cachedPolicies    int
	limitedHosts      int
	activeRelays      int
	pendingRelays     int
	activities        int
	rejected          int
	pendingDeliveries int
}

// Model is the always-visible left panel mirroring the numbers the status
// endpoint serves.
type Model struct {
	Cache   *reputation.Cache
	Tracker *backoff.Tracker
	Width   int
	Height  int
	Stats   serverStats
}

func InitialModel(cache *reputation.Cache, tracker *backoff.Tracker, width, height int) Model {
	return Model{
		Cache:   cache,
		Tracker: tracker,
		Width:   width,
		Height:  height,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(loadStats(m.Cache, m.Tracker), scheduleRefresh())
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		m.Stats = msg.stats
		return m, nil

	case refreshMsg:
		return m, tea.Batch(loadStats(m.Cache, m.Tracker), scheduleRefresh())
	}
	return m, nil
}

func (m Model) View() string {
	var s strings.Builder

	s.WriteString(common.CaptionStyle.Render("server status"))
	s.WriteString("\n\n")

	rows := []struct {
		label string
		value int
	}{
		{"instance policies", m.Stats.policies},
		{"cached lookups", m.Stats.cachedPolicies},
		{"limited hosts", m.Stats.limitedHosts},
		{"active relays", m.Stats.activeRelays},
		{"pending relays", m.Stats.pendingRelays},
		{"activities seen", m.Stats.activities},
		{"rejected", m.Stats.rejected},
		{"queued deliveries", m.Stats.pendingDeliveries},
	}

	for _, row := range rows {
		s.WriteString(rowStyle.Render(fmt.Sprintf("%-18s %d", row.label, row.value)))
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(hintStyle.Render("refreshes every 5s"))

	return s.String()
}

// statsLoadedMsg carries a fresh snapshot of the counters.
type statsLoadedMsg struct {
	stats serverStats
}

// refreshMsg triggers the next snapshot.
type refreshMsg struct{}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// loadStats collects the counters. A failing counter reads as zero so a
// degraded store never takes the dashboard down with it.
func loadStats(cache *reputation.Cache, tracker *backoff.Tracker) tea.Cmd {
	return func() tea.Msg {
		database := db.GetDB()
		stats := serverStats{
			policies:          countOrZero("policies", database.CountInstancePolicies),
			activities:        countOrZero("activities", database.CountActivities),
			rejected:          countOrZero("rejections", database.CountRejectedActivities),
			pendingDeliveries: countOrZero("pending deliveries", database.CountPendingDeliveries),
			activeRelays: countOrZero("active relays", func() (error, int) {
				return database.CountRelaySubscriptionsByStatus(domain.RelayStatusActive)
			}),
			pendingRelays: countOrZero("pending relays", func() (error, int) {
				return database.CountRelaySubscriptionsByStatus(domain.RelayStatusPending)
			}),
			cachedPolicies: cache.Len(),
			limitedHosts:   len(tracker.LimitedHosts()),
		}
		return statsLoadedMsg{stats: stats}
	}
}

func countOrZero(name string, read func() (error, int)) int {
	err, n := read()
	if err != nil {
		log.Printf("Dashboard: could not count %s: %v", name, err)
		return 0
	}
	return n
}
