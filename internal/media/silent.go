package media

import (
	"sync"
	"time"
)

// SilentMicrophone produces paced silence. It backs text-only sessions and
// tests where no capture hardware exists.
type SilentMicrophone struct{}

func (SilentMicrophone) Open(sampleRate int) (Capture, error) {
	return &silentCapture{rate: sampleRate, done: make(chan struct{})}, nil
}

type silentCapture struct {
	rate int

	mu      sync.Mutex
	enabled bool
	once    sync.Once
	done    chan struct{}
}

func (c *silentCapture) SampleRate() int { return c.rate }

func (c *silentCapture) ReadFrame(frame []int16) error {
	d := time.Duration(len(frame)) * time.Second / time.Duration(c.rate)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.done:
		return ErrClosed
	case <-t.C:
	}
	clear(frame)
	return nil
}

func (c *silentCapture) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

func (c *silentCapture) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *silentCapture) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// DiscardSpeaker drops all audio.
type DiscardSpeaker struct {
	mu    sync.Mutex
	muted bool
}

func (*DiscardSpeaker) Play([]int16, int) {}

func (d *DiscardSpeaker) SetMuted(muted bool) {
	d.mu.Lock()
	d.muted = muted
	d.mu.Unlock()
}

func (d *DiscardSpeaker) Muted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

func (*DiscardSpeaker) Flush() {}

func (*DiscardSpeaker) Close() error { return nil }
