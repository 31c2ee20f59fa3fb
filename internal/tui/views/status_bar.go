package views

import (
	"fmt"
	"time"

	"github.com/pawkit/pawchat/internal/tui/model"
	"github.com/rivo/tview"
)

// StatusBar displays persistent profile/connection status.
type StatusBar struct {
	*tview.TextView
	profile    string
	conn       string
	flash      string
	flashLevel model.Level
}

// NewStatusBar creates the status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetConnState updates the connection state display.
func (sb *StatusBar) SetConnState(state string) {
	sb.conn = state
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string, lvl model.Level) {
	sb.flash = msg
	sb.flashLevel = lvl
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	connColor := "green"
	switch sb.conn {
	case "RECONNECTING", "DEGRADED":
		connColor = "orange"
	case "ERROR":
		connColor = "red"
	case "BOOTING", "CONNECTING":
		connColor = "gray"
	}

	clock := time.Now().Format("15:04")
	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-] | %s", sb.profile, connColor, sb.conn, clock)
	if sb.flash != "" {
		flashColor := "yellow"
		if sb.flashLevel == model.Error {
			flashColor = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", flashColor, sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
