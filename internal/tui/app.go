package tui

import (
	"context"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pawkit/pawchat/internal/booking"
	"github.com/pawkit/pawchat/internal/bus"
	"github.com/pawkit/pawchat/internal/conn"
	"github.com/pawkit/pawchat/internal/convo"
	"github.com/pawkit/pawchat/internal/directory"
	"github.com/pawkit/pawchat/internal/tui/model"
	"github.com/pawkit/pawchat/internal/tui/ui"
	"github.com/pawkit/pawchat/internal/tui/views"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

// Deps are the collaborators the TUI shell needs.
type Deps struct {
	Profile   string
	Service   *convo.Service
	State     *convo.State
	Subs      *convo.SubscriptionManager
	Presence  convo.PresenceAndReceipts
	Directory *directory.Directory
	Booking   *booking.Lookup
	Machine   *conn.Machine
	Bus       *bus.Bus
	Logger    *zap.Logger
}

// App is the main TUI application shell.
type App struct {
	app   *tview.Application
	pages *tview.Pages
	theme *ui.Theme
	deps  Deps
	list  *convo.ListController
	flash model.Flash

	statusBar   *views.StatusBar
	convList    *views.ConversationList
	thread      *views.MessageThread
	picker      *views.Picker
	filterInput *tview.InputField

	threadCtrl *convo.ThreadController

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(deps Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		theme:     theme,
		deps:      deps,
		list:      convo.NewListController(deps.Service, deps.State, deps.Logger),
		statusBar: views.NewStatusBar(),
		convList:  views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		picker:    views.NewPicker(theme),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.thread.SetSelf(deps.Service.UserID())
	a.statusBar.SetProfile(deps.Profile)
	a.statusBar.SetConnState(string(deps.Machine.Current()))
	a.setupFilterInput()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupFilterInput() {
	input := tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)
	input.SetBorder(true)
	input.SetBorderColor(a.theme.BorderColor)
	input.SetBackgroundColor(a.theme.BgColor)
	input.SetFieldBackgroundColor(a.theme.BgColor)
	input.SetFieldTextColor(a.theme.FgColor)

	input.SetChangedFunc(func(text string) {
		f := a.deps.State.CurrentFilters()
		f.Search = text
		a.deps.State.SetFilters(f)
	})
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEscape {
			f := a.deps.State.CurrentFilters()
			f.Search = ""
			a.deps.State.SetFilters(f)
			input.SetText("")
		}
		a.pages.SwitchToPage("conversations")
		a.app.SetFocus(a.convList)
	})
	a.filterInput = input
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if id := a.convList.SelectedConversation(); id != "" {
			a.openConversation(id)
		}
	})

	a.thread.SetOnSend(func(text string) {
		ctrl := a.threadCtrl
		if ctrl == nil {
			return
		}
		go func() {
			ctrl.Send(a.ctx, text)
			a.redraw()
		}()
	})

	a.thread.SetOnComposing(func(active bool) {
		if ctrl := a.threadCtrl; ctrl != nil {
			ctrl.NotifyComposing(active)
		}
	})

	a.picker.SetOnSelect(func(userID string) {
		a.openConversation(convo.ConversationID(a.deps.Service.UserID(), userID))
	})
}

func (a *App) setupLayout() {
	listFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.convList, 0, 1, true).
		AddItem(a.filterInput, 3, 0, false)

	a.pages.AddPage("conversations", listFlex, true, true)
	a.pages.AddPage("thread", a.thread, true, false)
	a.pages.AddPage("picker", a.picker, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	currentPage, _ := a.pages.GetFrontPage()

	if event.Key() == tcell.KeyEscape {
		switch currentPage {
		case "thread":
			a.closeConversation()
			return nil
		case "picker":
			a.pages.SwitchToPage("conversations")
			a.app.SetFocus(a.convList)
			return nil
		}
	}

	// Let text input widgets handle all keys normally.
	if _, ok := a.app.GetFocus().(*tview.InputField); ok {
		return event
	}

	if currentPage == "thread" {
		switch {
		case event.Key() == tcell.KeyPgUp:
			ctrl := a.threadCtrl
			if ctrl != nil {
				go func() {
					_ = ctrl.LoadOlder(a.ctx)
					a.redraw()
				}()
			}
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'i':
			a.app.SetFocus(a.thread.Composer())
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'r':
			a.retryFailedSend()
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'a':
			a.applyTransition(booking.TransitionAccepted)
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'x':
			a.applyTransition(booking.TransitionDeclined)
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'c':
			a.applyTransition(booking.TransitionCompleted)
			return nil
		case event.Key() == tcell.KeyRune && event.Rune() == 'p':
			a.applyTransition(booking.TransitionPaid)
			return nil
		}
	}

	if currentPage == "conversations" && event.Key() == tcell.KeyRune {
		switch r := event.Rune(); {
		case r == 'q':
			a.app.Stop()
			return nil
		case r == '/':
			a.app.SetFocus(a.filterInput)
			return nil
		case r == 'n':
			a.showPicker()
			return nil
		case r >= '1' && r <= '9':
			n, _ := strconv.Atoi(string(r))
			if id := a.convList.ConversationByIndex(n); id != "" {
				a.openConversation(id)
			}
			return nil
		}
	}

	return event
}

func (a *App) openConversation(conversationID string) {
	other, err := convo.PartnerOf(conversationID, a.deps.Service.UserID())
	if err != nil {
		a.deps.Logger.Warn("open conversation", zap.Error(err))
		return
	}

	if a.threadCtrl != nil {
		a.threadCtrl.Close()
	}
	ctrl := convo.NewThreadController(
		a.deps.Service, a.deps.State, a.deps.Subs, a.deps.Presence,
		a.deps.Bus, other, a.deps.Logger)
	a.threadCtrl = ctrl

	go func() {
		name := convo.FallbackDisplayName
		if p, err := a.deps.Directory.Resolve(a.ctx, other); err == nil {
			name = p.DisplayName
		}
		if err := ctrl.Open(a.ctx); err != nil {
			a.flash.SetError("Could not load messages", 5*time.Second)
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetPartnerName(name)
			a.renderThread()
			a.pages.SwitchToPage("thread")
			a.app.SetFocus(a.thread.Messages())
		})
	}()
}

func (a *App) closeConversation() {
	if a.threadCtrl != nil {
		a.threadCtrl.Close()
		a.threadCtrl = nil
	}
	a.pages.SwitchToPage("conversations")
	a.app.SetFocus(a.convList)
}

func (a *App) retryFailedSend() {
	ctrl := a.threadCtrl
	if ctrl == nil {
		return
	}
	for _, m := range a.deps.State.Messages() {
		if m.Status == convo.StatusError && m.LocalOnly {
			id := m.ID
			go func() {
				ctrl.Resend(a.ctx, id)
				a.redraw()
			}()
			return
		}
	}
}

// applyTransition acts on the service request linked to the open
// conversation. Conversations without a linked request ignore the key.
func (a *App) applyTransition(tr booking.Transition) {
	ctrl := a.threadCtrl
	if ctrl == nil {
		return
	}
	var requestID string
	for _, c := range a.deps.State.Conversations() {
		if c.ID == ctrl.ConversationID() {
			requestID = c.ServiceRequestID
			break
		}
	}
	if requestID == "" {
		a.flash.Set("No service request in this conversation", 3*time.Second)
		a.redraw()
		return
	}
	go func() {
		req, err := a.deps.Booking.ByID(a.ctx, requestID)
		if err != nil || req == nil {
			a.flash.SetError("Could not load service request", 5*time.Second)
			a.redraw()
			return
		}
		ctrl.ApplyTransition(a.ctx, *req, tr)
		a.redraw()
	}()
}

func (a *App) showPicker() {
	go func() {
		users, err := a.deps.Directory.ListOthers(a.ctx, a.deps.Service.UserID())
		if err != nil {
			a.flash.SetError("Could not load users", 5*time.Second)
			a.redraw()
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.picker.Update(users)
			a.pages.SwitchToPage("picker")
			a.app.SetFocus(a.picker)
		})
	}()
}

// redraw schedules a repaint from outside the event loop.
func (a *App) redraw() {
	a.app.QueueUpdateDraw(a.render)
}

func (a *App) render() {
	state := a.deps.State
	a.convList.Update(state.VisibleConversations(), state.ListLoading(), state.ListError())
	a.statusBar.SetConnState(string(a.deps.Machine.Current()))
	a.statusBar.SetFlash(a.flash.Get())

	if page, _ := a.pages.GetFrontPage(); page == "thread" {
		a.renderThread()
	}
}

func (a *App) renderThread() {
	hasMore, _ := a.deps.State.Pagination()
	a.thread.Update(a.deps.State.Messages(), hasMore)
	a.thread.SetTyping(a.deps.State.Typing())
	if errText := a.deps.State.ThreadError(); errText != "" {
		a.flash.SetError(errText, 5*time.Second)
		a.statusBar.SetFlash(a.flash.Get())
	}
}

// Run starts the TUI application and blocks until quit.
func (a *App) Run() error {
	go a.list.Load(a.ctx)
	a.startRefreshLoop()
	return a.app.Run()
}

// startRefreshLoop coalesces state change signals and connection events
// into repaints, and re-fetches the list periodically as a safety net.
func (a *App) startRefreshLoop() {
	connCh, unsubConn := a.deps.Bus.Subscribe("conn.", 16)
	ticker := time.NewTicker(30 * time.Second)

	go func() {
		defer unsubConn()
		defer ticker.Stop()
		for {
			select {
			case <-a.deps.State.RefreshCh():
				a.redraw()
			case evt := <-connCh:
				if change, ok := evt.Payload.(conn.StatusChange); ok &&
					change.From == conn.Reconnecting && change.To == conn.Ready {
					go a.list.Load(a.ctx)
				}
				a.redraw()
			case <-ticker.C:
				go a.list.Load(a.ctx)
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	if a.threadCtrl != nil {
		a.threadCtrl.Close()
	}
	a.cancel()
	a.app.Stop()
}
