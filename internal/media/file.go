package media

import (
	"sync"
	"time"
)

// ClipMicrophone replays a recorded clip as live capture. The clip restarts
// each time capture is enabled and is followed by silence, so server VAD
// sees the end of the utterance.
type ClipMicrophone struct {
	samples []int16
	rate    int
}

func NewClipMicrophone(samples []int16, sampleRate int) *ClipMicrophone {
	return &ClipMicrophone{samples: samples, rate: sampleRate}
}

// NewWAVMicrophone loads a 16-bit PCM WAV file as the clip.
func NewWAVMicrophone(path string) (*ClipMicrophone, error) {
	samples, rate, err := LoadWAV(path)
	if err != nil {
		return nil, err
	}
	return NewClipMicrophone(samples, rate), nil
}

func (m *ClipMicrophone) Open(sampleRate int) (Capture, error) {
	return &clipCapture{
		clip: Resample(m.samples, m.rate, sampleRate),
		rate: sampleRate,
		done: make(chan struct{}),
	}, nil
}

type clipCapture struct {
	clip []int16
	rate int

	mu      sync.Mutex
	enabled bool
	pos     int
	once    sync.Once
	done    chan struct{}
}

func (c *clipCapture) SampleRate() int { return c.rate }

func (c *clipCapture) ReadFrame(frame []int16) error {
	d := time.Duration(len(frame)) * time.Second / time.Duration(c.rate)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.done:
		return ErrClosed
	case <-t.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	clear(frame)
	if !c.enabled {
		return nil
	}
	n := copy(frame, c.clip[min(c.pos, len(c.clip)):])
	c.pos += n
	return nil
}

func (c *clipCapture) SetEnabled(enabled bool) {
	c.mu.Lock()
	if enabled && !c.enabled {
		c.pos = 0
	}
	c.enabled = enabled
	c.mu.Unlock()
}

func (c *clipCapture) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *clipCapture) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// RecordingSpeaker keeps everything played, resampled to one rate, so a
// session's audio can be saved with WriteWAVFile.
type RecordingSpeaker struct {
	rate int

	mu      sync.Mutex
	muted   bool
	samples []int16
}

func NewRecordingSpeaker(sampleRate int) *RecordingSpeaker {
	return &RecordingSpeaker{rate: sampleRate}
}

func (r *RecordingSpeaker) Play(samples []int16, sampleRate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.muted {
		return
	}
	r.samples = append(r.samples, Resample(samples, sampleRate, r.rate)...)
}

func (r *RecordingSpeaker) SetMuted(muted bool) {
	r.mu.Lock()
	r.muted = muted
	r.mu.Unlock()
}

func (r *RecordingSpeaker) Muted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.muted
}

func (*RecordingSpeaker) Flush() {}

func (*RecordingSpeaker) Close() error { return nil }

// Samples returns a copy of the recorded audio and its rate.
func (r *RecordingSpeaker) Samples() ([]int16, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int16(nil), r.samples...), r.rate
}
