package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ent0n29/concierge/internal/media"
	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/protocol"
)

// Negotiator owns the connection lifecycle. Each Connect builds a fresh
// transport; signals from transports of earlier connects are discarded.
//
// Negotiator is safe for concurrent use: tool goroutines call Send while the
// session loop drives Connect and Disconnect.
type Negotiator struct {
	credentials  CredentialSource
	microphone   media.Microphone
	newTransport TransportFactory
	metrics      *observability.Metrics
	logger       *slog.Logger

	signals   chan Signal
	stop      chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	state       State
	generation  uint64
	transport   Transport
	capture     media.Capture
	connectedAt time.Time
}

type NegotiatorOption func(*Negotiator)

func WithMetrics(m *observability.Metrics) NegotiatorOption {
	return func(n *Negotiator) { n.metrics = m }
}

func WithLogger(l *slog.Logger) NegotiatorOption {
	return func(n *Negotiator) { n.logger = l }
}

func NewNegotiator(credentials CredentialSource, microphone media.Microphone, newTransport TransportFactory, opts ...NegotiatorOption) *Negotiator {
	n := &Negotiator{
		credentials:  credentials,
		microphone:   microphone,
		newTransport: newTransport,
		logger:       slog.Default(),
		signals:      make(chan Signal, 256),
		stop:         make(chan struct{}),
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Signals delivers transport signals of the current connection in arrival
// order.
func (n *Negotiator) Signals() <-chan Signal {
	return n.signals
}

func (n *Negotiator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Connect fetches a credential, acquires muted capture and negotiates a new
// transport. It returns once negotiation completes; the connection becomes
// open when the control channel reports ChannelOpened. On failure the state
// is StateError and acquired resources stay in place for Disconnect.
func (n *Negotiator) Connect(ctx context.Context) error {
	n.mu.Lock()
	switch n.state {
	case StateConnecting, StateOpen:
		n.mu.Unlock()
		return ErrAlreadyConnecting
	}
	staleTransport, staleCapture := n.detachLocked()
	n.generation++
	gen := n.generation
	n.state = StateConnecting
	n.connectedAt = time.Now()
	n.mu.Unlock()
	n.release(staleTransport, staleCapture)

	cred, err := n.credentials.Fetch(ctx)
	if err != nil {
		return n.fail(gen, err)
	}
	if cred.Value == "" {
		return n.fail(gen, fmt.Errorf("%w: empty client secret", ErrCredential))
	}

	transport := n.newTransport()
	capture, err := n.microphone.Open(transport.CaptureRate())
	if err != nil {
		return n.fail(gen, fmt.Errorf("%w: %v", ErrMedia, err))
	}
	capture.SetEnabled(false)

	n.mu.Lock()
	if gen != n.generation {
		n.mu.Unlock()
		_ = capture.Close()
		return ErrConnectAborted
	}
	n.capture = capture
	n.transport = transport
	n.mu.Unlock()

	if err := transport.Start(ctx, cred.Value, capture, n.emitter(gen)); err != nil {
		return n.fail(gen, fmt.Errorf("%w: %v", ErrTransport, err))
	}
	n.logger.Info("realtime negotiation complete", "elapsed_ms", time.Since(n.startedAt()).Milliseconds())
	return nil
}

func (n *Negotiator) fail(gen uint64, err error) error {
	n.mu.Lock()
	if gen != n.generation {
		n.mu.Unlock()
		n.logger.Debug("realtime connect superseded", "error", err)
		return fmt.Errorf("%w: %v", ErrConnectAborted, err)
	}
	n.state = StateError
	n.mu.Unlock()
	n.metrics.ObserveConnect(connectOutcome(err), 0)
	n.logger.Error("realtime connect failed", "error", err)
	return err
}

func connectOutcome(err error) string {
	switch {
	case errors.Is(err, ErrCredential):
		return "credential_error"
	case errors.Is(err, ErrMedia):
		return "media_error"
	default:
		return "transport_error"
	}
}

func (n *Negotiator) startedAt() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connectedAt
}

// emitter binds signals to one connect generation.
func (n *Negotiator) emitter(gen uint64) func(Signal) {
	return func(sig Signal) {
		n.mu.Lock()
		if gen != n.generation {
			n.mu.Unlock()
			return
		}
		switch sig.(type) {
		case ChannelOpened:
			if n.state != StateConnecting {
				n.mu.Unlock()
				return
			}
			n.state = StateOpen
			n.metrics.ObserveConnect("ok", time.Since(n.connectedAt))
			n.metrics.SessionOpened()
		case ChannelClosed:
			if n.state == StateOpen {
				n.metrics.SessionClosed()
			}
			n.state = StateClosed
		case ChannelError:
			if n.state == StateOpen {
				n.metrics.SessionClosed()
			}
			n.state = StateError
		}
		n.mu.Unlock()

		select {
		case n.signals <- sig:
		case <-n.stop:
		}
	}
}

// Send encodes msg and writes it to the control channel. While the channel
// is not open the message is dropped and ErrChannelNotOpen returned; callers
// treat that as a silent drop.
func (n *Negotiator) Send(msg protocol.OutboundMessage) error {
	n.mu.Lock()
	state, transport := n.state, n.transport
	n.mu.Unlock()

	if state != StateOpen || transport == nil {
		n.metrics.ObserveOutbound(string(msg.MessageType()), ErrChannelNotOpen)
		n.logger.Debug("outbound message dropped", "type", msg.MessageType(), "state", state)
		return ErrChannelNotOpen
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.MessageType(), err)
	}
	if err := transport.Send(raw); err != nil {
		n.metrics.ObserveOutbound(string(msg.MessageType()), err)
		n.logger.Debug("outbound message dropped", "type", msg.MessageType(), "error", err)
		return fmt.Errorf("%w: %v", ErrChannelNotOpen, err)
	}
	n.metrics.ObserveOutbound(string(msg.MessageType()), nil)
	return nil
}

// SetCaptureEnabled enables or silences the microphone of the current
// connection.
func (n *Negotiator) SetCaptureEnabled(enabled bool) {
	n.mu.Lock()
	capture := n.capture
	n.mu.Unlock()
	if capture != nil {
		capture.SetEnabled(enabled)
	}
}

func (n *Negotiator) CaptureEnabled() bool {
	n.mu.Lock()
	capture := n.capture
	n.mu.Unlock()
	return capture != nil && capture.Enabled()
}

// Disconnect closes the channel and transport and releases capture. It is
// safe in any state and idempotent.
func (n *Negotiator) Disconnect() {
	n.mu.Lock()
	// Later signals of this connection are stale.
	n.generation++
	transport, capture := n.detachLocked()
	if n.state == StateOpen {
		n.metrics.SessionClosed()
	}
	n.state = StateClosed
	n.mu.Unlock()

	n.release(transport, capture)
}

func (n *Negotiator) detachLocked() (Transport, media.Capture) {
	transport, capture := n.transport, n.capture
	n.transport, n.capture = nil, nil
	return transport, capture
}

// release runs without n.mu held; transports may emit while closing.
func (n *Negotiator) release(transport Transport, capture media.Capture) {
	if transport != nil {
		if err := transport.Close(); err != nil {
			n.logger.Debug("transport close", "error", err)
		}
	}
	if capture != nil {
		_ = capture.Close()
	}
}

// Close disconnects and unblocks any pending signal delivery. The
// negotiator is unusable afterwards.
func (n *Negotiator) Close() {
	n.Disconnect()
	n.closeOnce.Do(func() { close(n.stop) })
}
