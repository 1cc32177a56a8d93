// Package realtime negotiates and supervises the connection to the remote
// realtime agent: ephemeral credentials, transport setup and the
// control channel the session exchanges JSON events on.
package realtime

import (
	"context"
	"errors"

	"github.com/ent0n29/concierge/internal/media"
)

var (
	ErrCredential        = errors.New("credential unavailable")
	ErrMedia             = errors.New("local audio capture unavailable")
	ErrTransport         = errors.New("transport negotiation failed")
	ErrChannelNotOpen    = errors.New("control channel not open")
	ErrAlreadyConnecting = errors.New("connection already in progress")
	// ErrConnectAborted reports a Connect superseded by Disconnect.
	ErrConnectAborted = errors.New("connect aborted by disconnect")
)

// State is the lifecycle of one connection.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateOpen       State = "open"
	StateClosed     State = "closed"
	StateError      State = "error"
)

// ControlChannelLabel names the data channel the realtime service expects.
const ControlChannelLabel = "oai-events"

// Signal is delivered upward from the transport to the session loop.
type Signal interface {
	signal()
}

type ChannelOpened struct{}

type ChannelClosed struct{}

type ChannelError struct {
	Err error
}

// ChannelMessage carries one raw inbound control-channel payload.
type ChannelMessage struct {
	Data []byte
}

func (ChannelOpened) signal()  {}
func (ChannelClosed) signal()  {}
func (ChannelError) signal()   {}
func (ChannelMessage) signal() {}

// Transport is one negotiated media+control association. A Transport is
// used for a single connection and discarded afterwards.
type Transport interface {
	// CaptureRate is the sample rate the transport wants microphone audio at.
	CaptureRate() int
	// Start negotiates the association with the remote service using the
	// ephemeral secret. It returns once negotiation is complete; the control
	// channel reports readiness later through emit.
	Start(ctx context.Context, secret string, capture media.Capture, emit func(Signal)) error
	Send(data []byte) error
	Close() error
}

// TransportFactory builds a fresh transport per connect.
type TransportFactory func() Transport
