// Package tui renders a live terminal readout of the meter: both
// channels, unit and probe type, the meter's power-on clock, and how
// many messages have framed so far.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"tc2100/pkg/engine"
	"tc2100/pkg/observation"
)

// ObsMsg delivers a decoded observation into the Bubble Tea loop.
type ObsMsg observation.Observation

type Model struct {
	last  observation.Observation
	count int
}

func New() Model {
	return Model{}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case ObsMsg:
		m.last = observation.Observation(msg)
		m.count++
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("tc2100 live readings (q to quit)\n\n")
	if m.count == 0 {
		b.WriteString("  waiting for data...\n")
		return b.String()
	}

	unit := m.last.Units.String()
	hours, minutes, seconds := observation.SplitMeterTime(m.last.MeterTime)
	fmt.Fprintf(&b, "  channel 1:  %s\n", channelString(m.last.ChannelTemp[0], unit))
	fmt.Fprintf(&b, "  channel 2:  %s\n", channelString(m.last.ChannelTemp[1], unit))
	fmt.Fprintf(&b, "  probe:      type %s\n", m.last.ThermocoupleType)
	fmt.Fprintf(&b, "  meter time: %02d:%02d:%02d\n", hours, minutes, seconds)
	fmt.Fprintf(&b, "  messages:   %d\n", m.count)
	return b.String()
}

func channelString(temp float64, unit string) string {
	if math.IsNaN(temp) {
		return "---.- (no probe)"
	}
	return fmt.Sprintf("%.1f °%s", temp, unit)
}

// Run displays live readings until ctx ends, the hub closes, or the
// user quits.
func Run(ctx context.Context, hub *engine.Hub) error {
	p := tea.NewProgram(New())
	sub := hub.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case obs, ok := <-sub:
				if !ok {
					p.Quit()
					return
				}
				p.Send(ObsMsg(obs))
			}
		}
	}()
	_, err := p.Run()
	return err
}
