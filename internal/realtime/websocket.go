package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/concierge/internal/media"
	"github.com/ent0n29/concierge/internal/protocol"
)

// websocketRate is the PCM16 rate of input_audio_buffer.append and
// response.audio.delta payloads.
const websocketRate = 24000

// WebSocketTransport talks to the realtime endpoint over a websocket. Audio
// travels inside JSON events, so the transport consumes response.audio.delta
// itself and forwards every other event upward.
type WebSocketTransport struct {
	endpoint string
	speaker  media.Speaker
	logger   *slog.Logger
	dialer   *websocket.Dialer

	writeMu   sync.Mutex
	conn      *websocket.Conn
	closeOnce sync.Once
	done      chan struct{}
}

// NewWebSocketTransport derives the wss:// endpoint from an http(s) base URL.
func NewWebSocketTransport(baseURL, model string, speaker media.Speaker, logger *slog.Logger) *WebSocketTransport {
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	q := url.Values{}
	q.Set("model", model)
	return &WebSocketTransport{
		endpoint: base + "/realtime?" + q.Encode(),
		speaker:  speaker,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
		done:     make(chan struct{}),
	}
}

func (t *WebSocketTransport) CaptureRate() int { return websocketRate }

func (t *WebSocketTransport) Start(ctx context.Context, secret string, capture media.Capture, emit func(Signal)) error {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+secret)
	headers.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := t.dialer.DialContext(ctx, t.endpoint, headers)
	if err != nil {
		return fmt.Errorf("dial realtime websocket: %w", err)
	}
	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()

	// Opened goes upward before any inbound event or read error.
	emit(ChannelOpened{})
	go t.readLoop(conn, emit)
	go t.pumpCapture(capture)
	return nil
}

func (t *WebSocketTransport) readLoop(conn *websocket.Conn, emit func(Signal)) {
	defer emit(ChannelClosed{})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.done:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					emit(ChannelError{Err: err})
				}
			}
			return
		}
		if t.playAudio(data) {
			continue
		}
		emit(ChannelMessage{Data: data})
	}
}

// playAudio consumes audio deltas. It reports whether data was one.
func (t *WebSocketTransport) playAudio(data []byte) bool {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != protocol.TypeAudioDelta {
		return false
	}
	var delta protocol.AudioDelta
	if err := json.Unmarshal(data, &delta); err != nil {
		t.logger.Debug("audio delta undecodable", "error", err)
		return true
	}
	pcm, err := delta.PCM()
	if err != nil {
		t.logger.Debug("audio delta payload invalid", "error", err)
		return true
	}
	if t.speaker != nil {
		t.speaker.Play(media.DecodePCM16(pcm), websocketRate)
	}
	return true
}

func (t *WebSocketTransport) pumpCapture(capture media.Capture) {
	if capture == nil {
		return
	}
	frame := make([]int16, websocketRate*int(frameDuration/time.Millisecond)/1000)
	for {
		select {
		case <-t.done:
			return
		default:
		}
		if err := capture.ReadFrame(frame); err != nil {
			if !errors.Is(err, media.ErrClosed) {
				t.logger.Warn("capture read failed", "error", err)
			}
			return
		}
		if !capture.Enabled() {
			continue
		}
		raw, err := json.Marshal(protocol.NewAudioAppend(media.EncodePCM16(frame)))
		if err != nil {
			continue
		}
		if err := t.Send(raw); err != nil {
			return
		}
	}
}

func (t *WebSocketTransport) Send(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	select {
	case <-t.done:
		return ErrChannelNotOpen
	default:
	}
	if t.conn == nil {
		return ErrChannelNotOpen
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		conn := t.conn
		t.writeMu.Unlock()
		if conn == nil {
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = conn.Close()
	})
	return err
}
