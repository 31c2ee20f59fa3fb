package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pawkit/pawchat/internal/booking"
	"github.com/pawkit/pawchat/internal/convo"
	"github.com/pawkit/pawchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	theme         *ui.Theme
	conversations []convo.Conversation
	loading       bool
	errText       string
}

// NewConversationList creates the conversation list view.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table: table,
		theme: theme,
	}
}

// Update refreshes the table from an already-filtered snapshot. Filtering
// lives in the state layer so the same filters apply everywhere.
func (cl *ConversationList) Update(conversations []convo.Conversation, loading bool, errText string) {
	cl.conversations = conversations
	cl.loading = loading
	cl.errText = errText
	cl.render()
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" SERVICE", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	for i, c := range cl.conversations {
		row := i + 1
		name := c.Partner.DisplayName
		nameColor := cl.theme.FgColor
		if c.UnreadCount > 0 {
			name = fmt.Sprintf("(%d) %s", c.UnreadCount, name)
			nameColor = cl.theme.UnreadColor
		}

		service := ""
		if c.ServiceType != "" {
			hint := booking.TypeHint(c.ServiceType)
			service = hint.Icon + " " + booking.Title(c.ServiceType)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(1).SetTextColor(nameColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(previewText(c)))).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(c.LastMessageAt)).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(service).SetExpansion(0).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	switch {
	case cl.errText != "":
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) [%s] ", len(cl.conversations), cl.errText))
	case cl.loading:
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) loading… ", len(cl.conversations)))
	default:
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.conversations)))
	}
}

// previewText shortens the last message for the list, prefixing non-text
// kinds so a status update reads as one at a glance.
func previewText(c convo.Conversation) string {
	text := strings.ReplaceAll(c.LastMessage, "\n", " ")
	switch c.LastMessageKind {
	case convo.KindStatusUpdate:
		return "⟳ " + text
	case convo.KindPayment:
		return "$ " + text
	case convo.KindImage:
		return "[photo] " + text
	case convo.KindServiceRequest:
		return "• " + text
	default:
		return text
	}
}

// SelectedConversation returns the id of the currently selected row, empty
// when the cursor sits on the header.
func (cl *ConversationList) SelectedConversation() string {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(cl.conversations) {
		return ""
	}
	return cl.conversations[idx].ID
}

// ConversationByIndex returns the id of the Nth visible row (1-based).
func (cl *ConversationList) ConversationByIndex(n int) string {
	if n < 1 || n > len(cl.conversations) {
		return ""
	}
	return cl.conversations[n-1].ID
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
