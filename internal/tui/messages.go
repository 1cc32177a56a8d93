package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ent0n29/concierge/internal/session"
)

// SnapshotMsg carries the latest session state.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

// ConnectResultMsg is sent when a connect attempt returns. The outcome is
// already visible as a system line; Err only clears the busy marker.
type ConnectResultMsg struct {
	Err error
}

// Feed hands session snapshots to the bubbletea loop. Publish never blocks;
// when the UI falls behind only the newest snapshot is kept.
type Feed struct {
	ch chan session.Snapshot
}

func NewFeed() *Feed {
	return &Feed{ch: make(chan session.Snapshot, 1)}
}

// Publish is the session observer.
func (f *Feed) Publish(s session.Snapshot) {
	for {
		select {
		case f.ch <- s:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// Updates exposes the feed to non-UI consumers.
func (f *Feed) Updates() <-chan session.Snapshot { return f.ch }

// Next waits for the next snapshot.
func (f *Feed) Next() tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg{Snapshot: <-f.ch}
	}
}
