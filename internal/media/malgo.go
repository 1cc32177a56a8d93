package media

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoMicrophone opens capture devices on a shared miniaudio context.
type MalgoMicrophone struct {
	ctx *malgo.AllocatedContext
}

func NewMalgoMicrophone() (*MalgoMicrophone, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime
	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &MalgoMicrophone{ctx: ctx}, nil
}

// Open starts a mono S16 capture device at sampleRate. The device stays
// running until Close; disabling only silences what ReadFrame returns.
func (m *MalgoMicrophone) Open(sampleRate int) (Capture, error) {
	c := &malgoCapture{
		rate: sampleRate,
		buf:  make([]int16, 0, sampleRate),
	}
	c.cond = sync.NewCond(&c.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.push(DecodePCM16(input))
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("start capture device: %w", err)
	}
	c.device = device
	return c, nil
}

func (m *MalgoMicrophone) Close() error {
	if m.ctx == nil {
		return nil
	}
	err := m.ctx.Uninit()
	m.ctx.Free()
	m.ctx = nil
	return err
}

type malgoCapture struct {
	device *malgo.Device
	rate   int

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []int16
	enabled bool
	closed  bool
}

// maxBuffered bounds the backlog when nobody reads, in seconds of audio.
const maxBuffered = 2

func (c *malgoCapture) push(samples []int16) {
	c.mu.Lock()
	c.buf = append(c.buf, samples...)
	if limit := c.rate * maxBuffered; len(c.buf) > limit {
		c.buf = c.buf[len(c.buf)-limit:]
	}
	c.mu.Unlock()
	c.cond.Signal()
}

func (c *malgoCapture) SampleRate() int { return c.rate }

func (c *malgoCapture) ReadFrame(frame []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.buf) < len(frame) && !c.closed {
		c.cond.Wait()
	}
	if c.closed {
		return ErrClosed
	}
	if c.enabled {
		copy(frame, c.buf)
	} else {
		clear(frame)
	}
	c.buf = c.buf[len(frame):]
	return nil
}

func (c *malgoCapture) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

func (c *malgoCapture) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *malgoCapture) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
	}
	return nil
}
