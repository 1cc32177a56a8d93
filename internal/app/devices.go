package app

import (
	"errors"
	"log/slog"

	"github.com/ent0n29/concierge/internal/config"
	"github.com/ent0n29/concierge/internal/media"
)

type deviceSetup struct {
	microphone media.Microphone
	speaker    media.Speaker
	detail     string
	cleanup    func() error
}

// resolveDevices opens audio hardware. Missing capture or playback falls
// back to silence so the client still works for typed conversations.
func resolveDevices(cfg config.Config, logger *slog.Logger) deviceSetup {
	if cfg.AudioDevice == "none" {
		return deviceSetup{
			microphone: media.SilentMicrophone{},
			speaker:    &media.DiscardSpeaker{},
			detail:     "none (text only)",
		}
	}

	var (
		setup   deviceSetup
		closers []func() error
	)
	mic, err := media.NewMalgoMicrophone()
	if err != nil {
		logger.Warn("microphone unavailable, capturing silence", "error", err)
		setup.microphone = media.SilentMicrophone{}
		setup.detail = "silent mic"
	} else {
		setup.microphone = mic
		setup.detail = "malgo mic"
		closers = append(closers, mic.Close)
	}

	speaker, err := media.NewOtoSpeaker()
	if err != nil {
		logger.Warn("speaker unavailable, discarding audio", "error", err)
		setup.speaker = &media.DiscardSpeaker{}
		setup.detail += " + no playback"
	} else {
		setup.speaker = speaker
		setup.detail += " + oto playback"
		closers = append(closers, speaker.Close)
	}

	setup.cleanup = func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	return setup
}
