package media

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// PlaybackRate is the output rate of the process-wide playback context.
const PlaybackRate = 24000

// OtoSpeaker plays mono PCM16 through a single oto context. oto allows one
// context per process, so build one speaker and share it across sessions.
type OtoSpeaker struct {
	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	playing bool
	muted   bool
	closed  bool
}

func NewOtoSpeaker() (*OtoSpeaker, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   PlaybackRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		// 100ms at 24kHz mono 16-bit.
		BufferSize: 4800,
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s := &OtoSpeaker{
		ctx: ctx,
		buf: make([]byte, 0, PlaybackRate*4),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func (s *OtoSpeaker) Play(samples []int16, sampleRate int) {
	if len(samples) == 0 {
		return
	}
	pcm := EncodePCM16(Resample(samples, sampleRate, PlaybackRate))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted || s.closed {
		return
	}
	s.buf = append(s.buf, pcm...)
	if !s.playing {
		s.playing = true
		s.player = s.ctx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read feeds the oto player. It blocks until audio is queued and returns
// silence once the speaker is closed so the player drains cleanly.
func (s *OtoSpeaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.buf) == 0 {
		clear(p)
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *OtoSpeaker) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
	if muted {
		s.Flush()
	}
}

func (s *OtoSpeaker) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Flush discards queued audio and stops the current player.
func (s *OtoSpeaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	player := s.player
	wasPlaying := s.playing
	s.player = nil
	s.playing = false
	s.mu.Unlock()

	if player != nil && wasPlaying {
		player.Pause()
		_ = player.Close()
	}
}

func (s *OtoSpeaker) Close() error {
	s.mu.Lock()
	s.closed = true
	player := s.player
	s.player = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}
