package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ent0n29/concierge/internal/media"
	"github.com/ent0n29/concierge/internal/protocol"
	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/tools"
)

type snapshots struct {
	mu   sync.Mutex
	last Snapshot
}

func (s *snapshots) record(snap Snapshot) {
	s.mu.Lock()
	s.last = snap
	s.mu.Unlock()
}

func (s *snapshots) get() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func startSession(t *testing.T, conn *fakeConn, opts ...Option) (*Session, *snapshots) {
	t.Helper()
	snaps := &snapshots{}
	agent := tools.Agent{Name: "test", Instructions: "be brief", Tools: []tools.Tool{echoTool{}}}
	s, err := New(conn, agent, append(opts, WithObserver(snaps.record))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		s.Close()
	})
	return s, snaps
}

// flush waits until the loop has handled everything queued before it.
func flush(s *Session) {
	done := make(chan struct{})
	s.post(func() { close(done) })
	<-done
}

func signal(t *testing.T, s *Session, conn *fakeConn, sig realtime.Signal) {
	t.Helper()
	conn.signals <- sig
	// Signals and commands share the loop; wait until the signal is drained.
	deadline := time.Now().Add(time.Second)
	for len(conn.signals) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("signal not consumed")
		}
		time.Sleep(time.Millisecond)
	}
	flush(s)
}

func systemTexts(snap Snapshot) []string {
	out := make([]string, 0, len(snap.System))
	for _, l := range snap.System {
		out = append(out, l.Text)
	}
	return out
}

func TestChannelOpenConfiguresSession(t *testing.T) {
	conn := newFakeConn(realtime.StateConnecting)
	s, snaps := startSession(t, conn)

	conn.setState(realtime.StateOpen)
	signal(t, s, conn, realtime.ChannelOpened{})

	if n := conn.countType(protocol.TypeSessionUpdate); n != 1 {
		t.Fatalf("session.update sent %d times, want 1", n)
	}
	if !conn.capture() {
		t.Fatalf("capture disabled after server VAD configuration")
	}
	snap := snaps.get()
	if got := systemTexts(snap); len(got) != 1 || got[0] != "Connected to Realtime API" {
		t.Fatalf("system lines = %v, want connected line", got)
	}
	if snap.State != realtime.StateOpen {
		t.Fatalf("State = %q, want open", snap.State)
	}
}

func TestEndToEndVoiceTurn(t *testing.T) {
	conn := newFakeConn(realtime.StateOpen)
	s, snaps := startSession(t, conn)

	signal(t, s, conn, realtime.ChannelMessage{Data: []byte(`{"type":"conversation.item.input_audio_transcription.delta","item_id":"u1","delta":"Hel"}`)})
	signal(t, s, conn, realtime.ChannelMessage{Data: []byte(`{"type":"conversation.item.input_audio_transcription.delta","item_id":"u1","delta":"lo"}`)})
	signal(t, s, conn, realtime.ChannelMessage{Data: []byte(`{"type":"conversation.item.input_audio_transcription.completed","item_id":"u1","transcript":"Hello"}`)})

	snap := snaps.get()
	if len(snap.Entries) != 1 || snap.Entries[0].Text != "Hello" {
		t.Fatalf("entries = %+v, want single Hello", snap.Entries)
	}
	if n := conn.countType(protocol.TypeResponseCreate); n != 1 {
		t.Fatalf("response.create sent %d times, want 1", n)
	}
}

func TestSendText(t *testing.T) {
	conn := newFakeConn(realtime.StateOpen)
	s, _ := startSession(t, conn)

	s.SendText("  red running shoes  ")
	s.SendText("   ")
	flush(s)

	sent := conn.messages()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	item, ok := sent[0].(protocol.ConversationItemCreate)
	if !ok {
		t.Fatalf("sent[0] = %T, want ConversationItemCreate", sent[0])
	}
	if len(item.Item.ID) <= len("user_") || item.Item.ID[:5] != "user_" {
		t.Fatalf("item id = %q, want user_ prefix", item.Item.ID)
	}
	if len(item.Item.ID) > 32 {
		t.Fatalf("item id %q has %d chars, want at most 32", item.Item.ID, len(item.Item.ID))
	}
	if item.Item.Role != "user" || item.Item.Content[0].Type != "input_text" || item.Item.Content[0].Text != "red running shoes" {
		t.Fatalf("item = %+v, want trimmed input_text", item.Item)
	}
	if sent[1].MessageType() != protocol.TypeResponseCreate {
		t.Fatalf("sent[1] = %s, want response.create", sent[1].MessageType())
	}
}

func TestSendTextWhileClosedIsIgnored(t *testing.T) {
	conn := newFakeConn(realtime.StateClosed)
	s, _ := startSession(t, conn)
	s.SendText("hello")
	flush(s)
	if len(conn.messages()) != 0 {
		t.Fatalf("sent %d messages, want 0", len(conn.messages()))
	}
}

func TestToggleTurnDetectionReconfigures(t *testing.T) {
	conn := newFakeConn(realtime.StateOpen)
	s, snaps := startSession(t, conn)

	s.ToggleTurnDetection()
	flush(s)
	if snaps.get().Mode != ModeManual {
		t.Fatalf("Mode = %q, want manual", snaps.get().Mode)
	}
	if conn.capture() {
		t.Fatalf("capture enabled in manual mode")
	}
	s.SetTurnDetection(ModeServerVAD)
	flush(s)
	if n := conn.countType(protocol.TypeSessionUpdate); n != 2 {
		t.Fatalf("session.update sent %d times, want 2", n)
	}
	if !conn.capture() {
		t.Fatalf("capture disabled in server VAD mode")
	}
}

func TestPlaybackToggleMutesSpeaker(t *testing.T) {
	conn := newFakeConn(realtime.StateOpen)
	speaker := &media.DiscardSpeaker{}
	s, snaps := startSession(t, conn, WithSpeaker(speaker))

	s.SetPlayback(false)
	flush(s)
	if !speaker.Muted() || snaps.get().Playback {
		t.Fatalf("speaker muted = %v, playback = %v, want muted", speaker.Muted(), snaps.get().Playback)
	}
	s.TogglePlayback()
	flush(s)
	if speaker.Muted() {
		t.Fatalf("speaker still muted after toggle")
	}
}

func TestConnectFailureShowsOneLine(t *testing.T) {
	conn := newFakeConn(realtime.StateIdle)
	conn.connectErr = errors.New("credential unavailable: no ephemeral key found in server response")
	s, snaps := startSession(t, conn)

	if err := s.Connect(context.Background()); err == nil {
		t.Fatalf("Connect() expected error")
	}
	flush(s)
	got := systemTexts(snaps.get())
	if len(got) != 1 || got[0] != "Failed to connect: credential unavailable: no ephemeral key found in server response" {
		t.Fatalf("system lines = %v, want one failure line", got)
	}
	if snaps.get().State != realtime.StateError {
		t.Fatalf("State = %q, want error", snaps.get().State)
	}
}

func TestItemIDsFitServiceLimit(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := newItemID()
		if len(id) > maxItemIDLen || id[:5] != "user_" {
			t.Fatalf("newItemID() = %q (%d chars), want user_ prefix within %d", id, len(id), maxItemIDLen)
		}
		if seen[id] {
			t.Fatalf("newItemID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestConnectAbortedByDisconnectShowsNoFailure(t *testing.T) {
	conn := newFakeConn(realtime.StateIdle)
	conn.connectErr = fmt.Errorf("%w: transport closed", realtime.ErrConnectAborted)
	s, snaps := startSession(t, conn)

	if err := s.Connect(context.Background()); !errors.Is(err, realtime.ErrConnectAborted) {
		t.Fatalf("Connect() error = %v, want ErrConnectAborted", err)
	}
	s.Disconnect()
	flush(s)

	got := systemTexts(snaps.get())
	if len(got) != 1 || got[0] != "Disconnected from Realtime API." {
		t.Fatalf("system lines = %v, want only the disconnect line", got)
	}
}

func TestConnectThenDisconnect(t *testing.T) {
	conn := newFakeConn(realtime.StateIdle)
	s, snaps := startSession(t, conn)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	s.Disconnect()
	s.Disconnect()
	flush(s)

	got := systemTexts(snaps.get())
	want := []string{"Connection established!", "Disconnected from Realtime API.", "Disconnected from Realtime API."}
	if len(got) != len(want) {
		t.Fatalf("system lines = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("system lines = %v, want %v", got, want)
		}
	}
	if snaps.get().State != realtime.StateClosed {
		t.Fatalf("State = %q, want closed", snaps.get().State)
	}
}
