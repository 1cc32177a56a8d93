// Package media adapts local audio devices to the sample formats the
// realtime transports exchange.
package media

import "errors"

var ErrClosed = errors.New("audio device closed")

// Microphone opens capture streams at a transport's sample rate.
type Microphone interface {
	Open(sampleRate int) (Capture, error)
}

// Capture is one open capture stream of mono 16-bit samples. A disabled
// capture keeps running and yields silence, the way a muted track does.
type Capture interface {
	SampleRate() int
	// ReadFrame fills frame completely, blocking until enough samples are
	// buffered. It returns ErrClosed after Close.
	ReadFrame(frame []int16) error
	SetEnabled(enabled bool)
	Enabled() bool
	Close() error
}

// Speaker plays remote audio. Muting drops incoming audio and clears what
// is queued.
type Speaker interface {
	Play(samples []int16, sampleRate int)
	SetMuted(muted bool)
	Muted() bool
	Flush()
	Close() error
}
