// Package tui is the terminal front end of the conversation client.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/session"
	"github.com/ent0n29/concierge/internal/transcript"
)

// Controller is the session surface the UI drives. Every method except
// Connect returns immediately.
type Controller interface {
	Connect(ctx context.Context) error
	Disconnect()
	SendText(text string)
	TogglePlayback()
	ToggleTurnDetection()
}

const (
	headerHeight = 2
	systemLines  = 3
	inputHeight  = 2
	footerHeight = 1
)

type Model struct {
	ctx  context.Context
	ctrl Controller
	feed *Feed

	input    textinput.Model
	viewport viewport.Model

	snap       session.Snapshot
	connecting bool
	width      int
	height     int
}

func New(ctx context.Context, ctrl Controller, feed *Feed) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message and press enter"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		feed:     feed,
		input:    ti,
		viewport: viewport.New(80, 20),
		snap:     session.Snapshot{Playback: true, Mode: session.ModeServerVAD},
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.feed.Next())
}

func connectCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return ConnectResultMsg{Err: ctrl.Connect(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-headerHeight-systemLines-inputHeight-footerHeight)
		m.input.Width = max(10, msg.Width-4)
		m.refresh()
		return m, nil

	case SnapshotMsg:
		m.snap = msg.Snapshot
		m.refresh()
		return m, m.feed.Next()

	case ConnectResultMsg:
		m.connecting = false
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyEscape:
		return m, tea.Quit

	case KeyConnect:
		if m.connecting {
			return m, nil
		}
		m.connecting = true
		return m, connectCmd(m.ctx, m.ctrl)

	case KeyDisconnect:
		m.ctrl.Disconnect()
		return m, nil

	case KeyTogglePlayback:
		m.ctrl.TogglePlayback()
		return m, nil

	case KeyToggleVAD:
		m.ctrl.ToggleTurnDetection()
		return m, nil

	case KeySend:
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text != "" {
			m.ctrl.SendText(text)
		}
		return m, nil

	case KeyPageUp, KeyPageDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh re-renders the transcript and follows the tail.
func (m *Model) refresh() {
	m.viewport.SetContent(renderEntries(m.snap.Entries, m.viewport.Width))
	m.viewport.GotoBottom()
}

func renderEntries(entries []transcript.Entry, width int) string {
	if len(entries) == 0 {
		return StatusStyle.Render("No conversation yet.")
	}
	wrap := lipgloss.NewStyle()
	if width > 0 {
		wrap = wrap.Width(width)
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		label := AssistantLabelStyle.Render("Assistant: ")
		if e.Role == transcript.RoleUser {
			label = UserLabelStyle.Render("You: ")
		}
		body := transcript.Format(e.Text,
			func(s string) string { return TextStyle.Render(s) },
			func(s string) string { return StrongStyle.Render(s) })
		lines = append(lines, wrap.Render(label+body))
	}
	return strings.Join(lines, "\n")
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderSystem())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	state := m.snap.State
	if m.connecting && state != realtime.StateOpen {
		state = realtime.StateConnecting
	}
	dot := IdleDotStyle.Render("●")
	switch state {
	case realtime.StateOpen:
		dot = OpenDotStyle.Render("●")
	case realtime.StateConnecting:
		dot = BusyDotStyle.Render("●")
	case realtime.StateError:
		dot = ErrorDotStyle.Render("●")
	}
	playback := "on"
	if !m.snap.Playback {
		playback = "off"
	}
	status := fmt.Sprintf("%s  turn: %s  audio: %s", stateLabel(state), m.snap.Mode, playback)
	return TitleStyle.Render("Concierge") + "  " + dot + " " + StatusStyle.Render(status)
}

func stateLabel(s realtime.State) string {
	if s == "" {
		return string(realtime.StateIdle)
	}
	return string(s)
}

// renderSystem shows the most recent status lines.
func (m Model) renderSystem() string {
	lines := m.snap.System
	if len(lines) > systemLines {
		lines = lines[len(lines)-systemLines:]
	}
	out := make([]string, systemLines)
	for i := range out {
		if i < len(lines) {
			l := lines[i]
			out[i] = SystemLineStyle.Render(fmt.Sprintf("%s %s: %s", l.At.Format("15:04:05"), l.Sender, l.Text))
		}
	}
	return strings.Join(out, "\n")
}

func renderFooter() string {
	items := []struct{ key, desc string }{
		{KeyConnect, "connect"},
		{KeyDisconnect, "disconnect"},
		{KeyTogglePlayback, "audio"},
		{KeyToggleVAD, "turn mode"},
		{KeySend, "send"},
		{KeyQuit, "quit"},
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, FooterKeyStyle.Render(it.key)+" "+FooterDescStyle.Render(it.desc))
	}
	return strings.Join(parts, "  ")
}
