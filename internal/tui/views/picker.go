package views

import (
	"fmt"

	"github.com/pawkit/pawchat/internal/convo"
	"github.com/pawkit/pawchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// Picker lists users for starting a new conversation.
type Picker struct {
	*tview.List
	theme    *ui.Theme
	users    []convo.Partner
	onSelect func(userID string)
}

// NewPicker creates the user picker view.
func NewPicker(theme *ui.Theme) *Picker {
	list := tview.NewList().
		ShowSecondaryText(false)
	list.SetBorder(true)
	list.SetBorderColor(theme.BorderColor)
	list.SetBackgroundColor(theme.BgColor)
	list.SetMainTextColor(theme.FgColor)
	list.SetSelectedTextColor(theme.TableCursorFg)
	list.SetSelectedBackgroundColor(theme.TableCursorBg)
	list.SetTitle(" New conversation ")
	list.SetTitleColor(theme.TitleColor)

	p := &Picker{List: list, theme: theme}

	list.SetSelectedFunc(func(index int, _, _ string, _ rune) {
		if p.onSelect != nil && index >= 0 && index < len(p.users) {
			p.onSelect(p.users[index].ID)
		}
	})
	return p
}

// SetOnSelect sets the callback invoked with the chosen user id.
func (p *Picker) SetOnSelect(fn func(userID string)) {
	p.onSelect = fn
}

// Update replaces the listed users.
func (p *Picker) Update(users []convo.Partner) {
	p.users = users
	p.Clear()
	for _, u := range users {
		p.AddItem(" "+tview.Escape(sanitizeForTerminal(u.DisplayName)), "", 0, nil)
	}
	p.SetTitle(fmt.Sprintf(" New conversation (%d) ", len(users)))
}
