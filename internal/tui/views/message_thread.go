package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/pawkit/pawchat/internal/convo"
	"github.com/pawkit/pawchat/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread displays the timeline and composer for one conversation.
type MessageThread struct {
	*tview.Flex
	theme       *ui.Theme
	messages    *tview.TextView
	composer    *tview.InputField
	typingLine  *tview.TextView
	partnerName string
	selfID      string
	onSend      func(text string)
	onComposing func(active bool)
}

// NewMessageThread creates the thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	typingLine := tview.NewTextView().
		SetDynamicColors(true)
	typingLine.SetBackgroundColor(theme.BgColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(typingLine, 1, 0, false).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:       flex,
		theme:      theme,
		messages:   messages,
		composer:   composer,
		typingLine: typingLine,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && mt.onSend != nil {
			text := composer.GetText()
			if text != "" {
				mt.onSend(text)
				composer.SetText("")
			}
		}
		if mt.onComposing != nil {
			mt.onComposing(false)
		}
	})
	composer.SetChangedFunc(func(text string) {
		if mt.onComposing != nil {
			mt.onComposing(text != "")
		}
	})

	return mt
}

// SetSelf tells the renderer which sender is "You".
func (mt *MessageThread) SetSelf(userID string) {
	mt.selfID = userID
}

// SetPartnerName updates the thread title.
func (mt *MessageThread) SetPartnerName(name string) {
	mt.partnerName = name
	mt.messages.SetTitle(fmt.Sprintf(" %s ", name))
}

// SetOnSend sets the callback invoked when the composer submits.
func (mt *MessageThread) SetOnSend(fn func(text string)) {
	mt.onSend = fn
}

// SetOnComposing sets the callback fired when the composer gains or loses
// pending text, used to report local typing activity.
func (mt *MessageThread) SetOnComposing(fn func(active bool)) {
	mt.onComposing = fn
}

// SetTyping toggles the partner-typing indicator line.
func (mt *MessageThread) SetTyping(typing bool) {
	mt.typingLine.Clear()
	if typing {
		_, _ = fmt.Fprintf(mt.typingLine, " [aqua]%s is typing…[-]", tview.Escape(mt.partnerName))
	}
}

// Update re-renders the timeline. Messages arrive newest-first; display is
// oldest-first with the view scrolled to the end.
func (mt *MessageThread) Update(msgs []convo.Message, hasMore bool) {
	mt.messages.Clear()

	if hasMore {
		_, _ = fmt.Fprint(mt.messages, " [::d]older messages available (PgUp)[-:-:-]\n\n")
	}

	for i := len(msgs) - 1; i >= 0; i-- {
		mt.renderMessage(msgs[i])
	}
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) renderMessage(m convo.Message) {
	switch m.RenderKind() {
	case convo.KindStatusUpdate:
		_, _ = fmt.Fprintf(mt.messages, "        [gold]⟳ %s[-]\n\n",
			tview.Escape(sanitizeForTerminal(m.Content)))
	case convo.KindPayment:
		_, _ = fmt.Fprintf(mt.messages, "        [lightgreen]$ %s (%s)[-]\n\n",
			tview.Escape(sanitizeForTerminal(m.Content)), tview.Escape(m.Meta.TransactionID))
	case convo.KindSystem, convo.KindNotification:
		_, _ = fmt.Fprintf(mt.messages, "        [gray]%s[-]\n\n",
			tview.Escape(sanitizeForTerminal(m.Content)))
	case convo.KindServiceRequest:
		mt.renderBubble(m, "• ")
	case convo.KindImage:
		mt.renderBubble(m, "[photo] ")
	default:
		mt.renderBubble(m, "")
	}
}

func (mt *MessageThread) renderBubble(m convo.Message, prefix string) {
	sender := mt.partnerName
	if m.SenderID == mt.selfID {
		sender = "You"
	}
	ts := m.CreatedAt.Format("15:04")
	glyph := deliveryGlyph(m)

	_, _ = fmt.Fprintf(mt.messages, "[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s%s\n\n",
		tview.Escape(sanitizeForTerminal(sender)), ts, glyph,
		prefix, tview.Escape(sanitizeForTerminal(m.Content)))
}

// deliveryGlyph renders the delivery progression for our own messages.
// Remote messages carry no status and get no glyph.
func deliveryGlyph(m convo.Message) string {
	switch m.Status {
	case convo.StatusSending:
		return " [gray]○[-]"
	case convo.StatusSent:
		return " [gray]✓[-]"
	case convo.StatusDelivered:
		return " [gray]✓✓[-]"
	case convo.StatusRead:
		return " [aqua]✓✓[-]"
	case convo.StatusError:
		return " [orangered]! failed (r to retry)[-]"
	default:
		return ""
	}
}

// Messages returns the timeline text view for focus management.
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field for focus management.
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
