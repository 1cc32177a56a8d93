// Package session runs one realtime conversation: a single loop goroutine
// owns the transcript and serializes transport signals with user commands.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/concierge/internal/media"
	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/protocol"
	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/tools"
	"github.com/ent0n29/concierge/internal/transcript"
)

// Connector is the negotiator surface the session drives.
type Connector interface {
	Channel
	Connect(ctx context.Context) error
	Disconnect()
	Signals() <-chan realtime.Signal
}

const (
	SenderSystem    = "System"
	SenderAssistant = "Assistant"
)

// SystemLine is a status message shown alongside the transcript. It is not
// part of the conversation.
type SystemLine struct {
	Sender string
	Text   string
	At     time.Time
}

// Snapshot is what presentation layers render.
type Snapshot struct {
	Entries  []transcript.Entry
	System   []SystemLine
	State    realtime.State
	Mode     TurnDetectionMode
	Playback bool
}

type Session struct {
	conn         Connector
	store        *transcript.Store
	configurator *Configurator
	dispatcher   *Dispatcher
	speaker      media.Speaker
	logger       *slog.Logger

	commands chan func()
	done     chan struct{}
	doneOnce sync.Once
	cancel   context.CancelFunc

	mode     TurnDetectionMode
	playback bool
	system   []SystemLine
	observer func(Snapshot)
}

type options struct {
	speaker     media.Speaker
	metrics     *observability.Metrics
	logger      *slog.Logger
	mode        TurnDetectionMode
	playback    bool
	voice       string
	toolTimeout time.Duration
	observer    func(Snapshot)
}

type Option func(*options)

func WithSpeaker(s media.Speaker) Option { return func(o *options) { o.speaker = s } }

func WithMetrics(m *observability.Metrics) Option { return func(o *options) { o.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

func WithTurnDetection(mode TurnDetectionMode) Option { return func(o *options) { o.mode = mode } }

func WithPlayback(on bool) Option { return func(o *options) { o.playback = on } }

func WithVoice(voice string) Option { return func(o *options) { o.voice = voice } }

func WithToolTimeout(d time.Duration) Option { return func(o *options) { o.toolTimeout = d } }

// WithObserver registers fn to receive a snapshot after every visible
// change. fn runs on the session loop and must not block.
func WithObserver(fn func(Snapshot)) Option { return func(o *options) { o.observer = fn } }

func New(conn Connector, agent tools.Agent, opts ...Option) (*Session, error) {
	o := options{
		mode:        ModeServerVAD,
		playback:    true,
		toolTimeout: 20 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.speaker == nil {
		o.speaker = &media.DiscardSpeaker{}
	}

	registry, err := agent.Registry()
	if err != nil {
		return nil, err
	}
	invoker := tools.NewInvoker(registry, conn,
		tools.WithTimeout(o.toolTimeout),
		tools.WithMetrics(o.metrics),
		tools.WithLogger(o.logger),
	)

	// Tools outlive Disconnect; only Close cancels them.
	toolCtx, cancel := context.WithCancel(context.Background())
	store := transcript.NewStore()
	s := &Session{
		conn:         conn,
		store:        store,
		configurator: NewConfigurator(conn, agent, registry, o.voice),
		dispatcher:   NewDispatcher(toolCtx, store, conn, invoker, o.metrics, o.logger),
		speaker:      o.speaker,
		logger:       o.logger,
		commands:     make(chan func(), 16),
		done:         make(chan struct{}),
		cancel:       cancel,
		mode:         o.mode,
		playback:     o.playback,
		observer:     o.observer,
	}
	s.speaker.SetMuted(!o.playback)
	store.SetObserver(func([]transcript.Entry) { s.notify() })
	return s, nil
}

// Run is the session loop. It returns when ctx is done.
func (s *Session) Run(ctx context.Context) error {
	defer s.doneOnce.Do(func() { close(s.done) })
	s.notify()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-s.conn.Signals():
			s.handleSignal(sig)
		case fn := <-s.commands:
			fn()
		}
	}
}

func (s *Session) post(fn func()) {
	select {
	case s.commands <- fn:
	case <-s.done:
	}
}

func (s *Session) handleSignal(sig realtime.Signal) {
	switch sig := sig.(type) {
	case realtime.ChannelOpened:
		s.addSystem(SenderSystem, "Connected to Realtime API")
		s.configurator.Apply(s.mode)
	case realtime.ChannelClosed:
		s.addSystem(SenderSystem, "Data channel closed")
	case realtime.ChannelError:
		s.logger.Error("control channel error", "error", sig.Err)
		s.notify()
	case realtime.ChannelMessage:
		s.dispatcher.Handle(sig.Data)
	}
}

// Connect negotiates on the calling goroutine and reports the outcome into
// the loop as one system line. Connect errors are returned for logging;
// they are already visible to the user.
func (s *Session) Connect(ctx context.Context) error {
	err := s.conn.Connect(ctx)
	if errors.Is(err, realtime.ErrAlreadyConnecting) || errors.Is(err, realtime.ErrConnectAborted) {
		s.logger.Debug("connect ignored", "state", s.conn.State(), "error", err)
		return err
	}
	s.post(func() {
		if err != nil {
			s.addSystem(SenderSystem, "Failed to connect: "+err.Error())
			return
		}
		s.addSystem(SenderAssistant, "Connection established!")
	})
	return err
}

func (s *Session) Disconnect() {
	s.post(func() {
		s.conn.Disconnect()
		s.addSystem(SenderSystem, "Disconnected from Realtime API.")
	})
}

// SendText submits a typed user message and asks for a response. Blank
// input and input while the channel is not open are ignored.
func (s *Session) SendText(text string) {
	s.post(func() { s.sendText(text) })
}

func (s *Session) sendText(text string) {
	text = strings.TrimSpace(text)
	if text == "" || s.conn.State() != realtime.StateOpen {
		return
	}
	if err := s.conn.Send(protocol.NewUserText(newItemID(), text)); err != nil {
		return
	}
	_ = s.conn.Send(protocol.NewResponseCreate())
}

// maxItemIDLen is the realtime service's limit on client-supplied item ids.
const maxItemIDLen = 32

func newItemID() string {
	id := "user_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:maxItemIDLen]
}

func (s *Session) SetPlayback(on bool) {
	s.post(func() {
		s.playback = on
		s.speaker.SetMuted(!on)
		s.notify()
	})
}

func (s *Session) TogglePlayback() {
	s.post(func() {
		s.playback = !s.playback
		s.speaker.SetMuted(!s.playback)
		s.notify()
	})
}

// SetTurnDetection switches modes and reconfigures an open session.
func (s *Session) SetTurnDetection(mode TurnDetectionMode) {
	s.post(func() { s.setMode(mode) })
}

func (s *Session) ToggleTurnDetection() {
	s.post(func() {
		if s.mode == ModeServerVAD {
			s.setMode(ModeManual)
			return
		}
		s.setMode(ModeServerVAD)
	})
}

func (s *Session) setMode(mode TurnDetectionMode) {
	s.mode = mode
	s.configurator.Apply(mode)
	s.notify()
}

// Close disconnects and cancels in-flight tool calls.
func (s *Session) Close() {
	s.conn.Disconnect()
	s.cancel()
	s.dispatcher.Wait()
}

func (s *Session) addSystem(sender, text string) {
	s.system = append(s.system, SystemLine{Sender: sender, Text: text, At: time.Now()})
	s.logger.Info("session status", "sender", sender, "text", text)
	s.notify()
}

func (s *Session) notify() {
	if s.observer == nil {
		return
	}
	s.observer(Snapshot{
		Entries:  s.store.Entries(),
		System:   append([]SystemLine(nil), s.system...),
		State:    s.conn.State(),
		Mode:     s.mode,
		Playback: s.playback,
	})
}
