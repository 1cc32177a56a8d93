package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ent0n29/concierge/internal/protocol"
	"github.com/ent0n29/concierge/internal/realtime"
)

type fakeConn struct {
	mu             sync.Mutex
	state          realtime.State
	sent           []protocol.OutboundMessage
	captureEnabled bool
	connectErr     error
	disconnects    int
	signals        chan realtime.Signal
}

func newFakeConn(state realtime.State) *fakeConn {
	return &fakeConn{state: state, signals: make(chan realtime.Signal, 16)}
}

func (f *fakeConn) State() realtime.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) setState(s realtime.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeConn) Send(msg protocol.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != realtime.StateOpen {
		return realtime.ErrChannelNotOpen
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeConn) SetCaptureEnabled(enabled bool) {
	f.mu.Lock()
	f.captureEnabled = enabled
	f.mu.Unlock()
}

func (f *fakeConn) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		f.state = realtime.StateError
		return f.connectErr
	}
	f.state = realtime.StateConnecting
	return nil
}

func (f *fakeConn) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.state = realtime.StateClosed
	f.mu.Unlock()
}

func (f *fakeConn) Signals() <-chan realtime.Signal { return f.signals }

func (f *fakeConn) messages() []protocol.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.OutboundMessage(nil), f.sent...)
}

func (f *fakeConn) countType(t protocol.MessageType) int {
	n := 0
	for _, m := range f.messages() {
		if m.MessageType() == t {
			n++
		}
	}
	return n
}

func (f *fakeConn) capture() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captureEnabled
}

// sessionJSON decodes the session object of a sent session.update.
func sessionJSON(msg protocol.OutboundMessage) map[string]any {
	raw, _ := json.Marshal(msg)
	var out struct {
		Session map[string]any `json:"session"`
	}
	_ = json.Unmarshal(raw, &out)
	return out.Session
}
