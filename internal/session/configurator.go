package session

import (
	"github.com/ent0n29/concierge/internal/protocol"
	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/tools"
)

// TurnDetectionMode selects who decides when the user has finished a turn.
type TurnDetectionMode string

const (
	ModeServerVAD TurnDetectionMode = "server_vad"
	ModeManual    TurnDetectionMode = "manual"
)

const (
	audioFormatPCM16   = "pcm16"
	transcriptionModel = "whisper-1"
)

// Config is the full session configuration sent on every update.
type Config struct {
	TurnDetection     TurnDetectionMode
	InputAudioFormat  string
	OutputAudioFormat string
	Instructions      string
	Voice             string
	Tools             []tools.Spec
}

// MicEnabled reports whether local capture should be live. Only server VAD
// listens continuously; manual mode is text-driven.
func (c Config) MicEnabled() bool {
	return c.TurnDetection == ModeServerVAD
}

func (c Config) settings() protocol.SessionSettings {
	s := protocol.SessionSettings{
		Modalities:              []string{"text", "audio"},
		Instructions:            c.Instructions,
		Voice:                   c.Voice,
		InputAudioFormat:        c.InputAudioFormat,
		OutputAudioFormat:       c.OutputAudioFormat,
		InputAudioTranscription: &protocol.InputAudioTranscription{Model: transcriptionModel},
		Tools:                   make([]protocol.Tool, 0, len(c.Tools)),
	}
	if c.TurnDetection == ModeServerVAD {
		// Responses are requested explicitly after each completed transcript.
		s.TurnDetection = &protocol.TurnDetection{
			Type:              "server_vad",
			Threshold:         0.5,
			PrefixPaddingMS:   300,
			SilenceDurationMS: 300,
			CreateResponse:    false,
		}
	}
	for _, t := range c.Tools {
		s.Tools = append(s.Tools, protocol.Tool{
			Type:        t.Type,
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return s
}

// Channel is the slice of the negotiator the session components use.
type Channel interface {
	State() realtime.State
	Send(msg protocol.OutboundMessage) error
	SetCaptureEnabled(enabled bool)
}

// Configurator pushes the agent persona and turn-taking mode to the remote
// session.
type Configurator struct {
	channel      Channel
	instructions string
	voice        string
	registry     *tools.Registry
}

func NewConfigurator(channel Channel, agent tools.Agent, registry *tools.Registry, voice string) *Configurator {
	return &Configurator{
		channel:      channel,
		instructions: agent.Instructions,
		voice:        voice,
		registry:     registry,
	}
}

// Build returns the full configuration for mode.
func (c *Configurator) Build(mode TurnDetectionMode) Config {
	return Config{
		TurnDetection:     mode,
		InputAudioFormat:  audioFormatPCM16,
		OutputAudioFormat: audioFormatPCM16,
		Instructions:      c.instructions,
		Voice:             c.voice,
		Tools:             c.registry.Specs(),
	}
}

// Apply sets the capture state and sends one session.update. It does
// nothing unless the channel is open and reports whether it sent.
func (c *Configurator) Apply(mode TurnDetectionMode) bool {
	if c.channel.State() != realtime.StateOpen {
		return false
	}
	cfg := c.Build(mode)
	c.channel.SetCaptureEnabled(cfg.MicEnabled())
	return c.channel.Send(protocol.NewSessionUpdate(cfg.settings())) == nil
}
