package ui

import "github.com/gdamore/tcell/v2"

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableHeaderBg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	TitleColor       tcell.Color
	UnreadColor      tcell.Color
	OwnMsgColor      tcell.Color
	SystemMsgColor   tcell.Color
	StatusMsgColor   tcell.Color
	PaymentColor     tcell.Color
	ErrorColor       tcell.Color
	TypingColor      tcell.Color
	FlashColor       tcell.Color
}

// DefaultTheme returns a dark theme tuned for long chat sessions.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TableHeaderFg:    tcell.ColorWhite,
		TableHeaderBg:    tcell.ColorBlack,
		TableCursorFg:    tcell.ColorBlack,
		TableCursorBg:    tcell.ColorAqua,
		TitleColor:       tcell.ColorFuchsia,
		UnreadColor:      tcell.ColorOrange,
		OwnMsgColor:      tcell.ColorLightGreen,
		SystemMsgColor:   tcell.ColorGray,
		StatusMsgColor:   tcell.ColorGold,
		PaymentColor:     tcell.ColorLightGreen,
		ErrorColor:       tcell.ColorOrangeRed,
		TypingColor:      tcell.ColorAqua,
		FlashColor:       tcell.ColorNavajoWhite,
	}
}
