package tui

import (
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tc2100/pkg/observation"
)

func TestViewBeforeFirstMessage(t *testing.T) {
	view := New().View()
	if !strings.Contains(view, "waiting for data") {
		t.Fatalf("unexpected initial view:\n%s", view)
	}
}

func TestViewShowsReading(t *testing.T) {
	model, _ := New().Update(ObsMsg(observation.Observation{
		ChannelTemp:      [2]float64{22.8, math.NaN()},
		Units:            observation.Celsius,
		ThermocoupleType: observation.TypeK,
		MeterTime:        2*time.Minute + 34*time.Second,
	}))

	view := model.View()
	for _, want := range []string{"22.8 °C", "no probe", "type K", "00:02:34", "messages:   1"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestQuitKeys(t *testing.T) {
	for _, key := range []string{"q", "ctrl+c", "esc"} {
		var msg tea.KeyMsg
		switch key {
		case "q":
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		}
		_, cmd := New().Update(msg)
		if cmd == nil {
			t.Fatalf("expected quit command for %s", key)
		}
	}
}
