package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/ent0n29/concierge/internal/media"
)

const (
	pcmuRate      = 8000
	frameDuration = 20 * time.Millisecond
)

var pcmuCapability = webrtc.RTPCodecCapability{
	MimeType:  webrtc.MimeTypePCMU,
	ClockRate: pcmuRate,
	Channels:  1,
}

// WebRTCTransport carries microphone audio on a PCMU track, plays the
// remote track and exchanges events on the oai-events data channel.
type WebRTCTransport struct {
	signaler *Signaler
	speaker  media.Speaker
	logger   *slog.Logger

	mu     sync.Mutex
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	done   chan struct{}
	closed bool
}

func NewWebRTCTransport(signaler *Signaler, speaker media.Speaker, logger *slog.Logger) *WebRTCTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebRTCTransport{
		signaler: signaler,
		speaker:  speaker,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (t *WebRTCTransport) CaptureRate() int { return pcmuRate }

func (t *WebRTCTransport) Start(ctx context.Context, secret string, capture media.Capture, emit func(Signal)) error {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: pcmuCapability,
		PayloadType:        0,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return fmt.Errorf("register pcmu: %w", err)
	}
	api := webrtc.NewAPI(webrtc.WithMediaEngine(m))

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	t.mu.Lock()
	t.pc = pc
	t.mu.Unlock()

	track, err := webrtc.NewTrackLocalStaticSample(pcmuCapability, "audio", "concierge")
	if err != nil {
		return fmt.Errorf("create audio track: %w", err)
	}
	rtpSender, err := pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}
	go drainRTCP(rtpSender)

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		go t.playRemote(remote)
	})

	dc, err := pc.CreateDataChannel(ControlChannelLabel, nil)
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnOpen(func() {
		emit(ChannelOpened{})
		go t.pumpCapture(track, capture)
	})
	dc.OnClose(func() { emit(ChannelClosed{}) })
	dc.OnError(func(err error) { emit(ChannelError{Err: err}) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			return
		}
		emit(ChannelMessage{Data: msg.Data})
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return fmt.Errorf("gather candidates: %w", ctx.Err())
	}

	answer, err := t.signaler.Exchange(ctx, secret, pc.LocalDescription().SDP)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

func (t *WebRTCTransport) Send(data []byte) error {
	t.mu.Lock()
	dc := t.dc
	t.mu.Unlock()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	return dc.SendText(string(data))
}

// Close tears down the data channel and peer connection. Safe to call on a
// partially started transport and more than once.
func (t *WebRTCTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	dc, pc := t.dc, t.pc
	t.dc, t.pc = nil, nil
	t.mu.Unlock()

	var errs []error
	if dc != nil {
		errs = append(errs, dc.Close())
	}
	if pc != nil {
		errs = append(errs, pc.Close())
	}
	return errors.Join(errs...)
}

// pumpCapture writes one PCMU sample every frame. A disabled capture
// yields silence so the track keeps its timing.
func (t *WebRTCTransport) pumpCapture(track *webrtc.TrackLocalStaticSample, capture media.Capture) {
	if capture == nil {
		return
	}
	frame := make([]int16, pcmuRate*int(frameDuration/time.Millisecond)/1000)
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
		if err := track.WriteSample(pionmedia.Sample{
			Data:     media.EncodeUlaw(frame),
			Duration: frameDuration,
		}); err != nil {
			t.logger.Debug("audio track write failed", "error", err)
			return
		}
	}
}

func (t *WebRTCTransport) playRemote(remote *webrtc.TrackRemote) {
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if t.speaker == nil || len(pkt.Payload) == 0 {
			continue
		}
		t.speaker.Play(media.DecodeUlaw(pkt.Payload), pcmuRate)
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
