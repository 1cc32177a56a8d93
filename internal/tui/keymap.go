package tui

// Key bindings handled in handleKey. Plain letters go to the text input,
// so every control uses a modifier.
const (
	KeyQuit           = "ctrl+c"
	KeyEscape         = "esc"
	KeyConnect        = "ctrl+o"
	KeyDisconnect     = "ctrl+x"
	KeyTogglePlayback = "ctrl+p"
	KeyToggleVAD      = "ctrl+t"
	KeySend           = "enter"
	KeyPageUp         = "pgup"
	KeyPageDown       = "pgdown"
)
