package service

import (
	"github.com/kursadbilgin/toast-engine/internal/audio"
	"go.uber.org/zap"
)

// SetSoundConfig installs the sound configuration. The audio manager is
// rebuilt only when cfg is a different pointer from the current one, so
// callers that re-submit the same value keep their loaded clips. A nil cfg
// releases the manager and disables sound.
//
// The SoundFactory runs under the service lock and must not call back into
// the service.
func (s *NotificationService) SetSoundConfig(cfg *audio.Config) {
	s.mu.Lock()
	if s.closed || cfg == s.soundCfg {
		s.mu.Unlock()
		return
	}

	old := s.sound
	s.soundCfg = cfg
	s.sound = nil
	if cfg != nil {
		s.sound = s.buildSoundLocked(*cfg)
	}
	s.mu.Unlock()

	old.Cleanup()
}

// UpdateSoundConfig merges patch into the live sound configuration. The
// first update creates a manager from the default configuration.
func (s *NotificationService) UpdateSoundConfig(patch audio.ConfigPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.sound == nil {
		cfg, _ := patch.Apply(audio.DefaultConfig())
		s.soundCfg = &cfg
		s.sound = s.buildSoundLocked(cfg)
		return
	}
	s.sound.UpdateConfig(patch)
}

// SoundConfig returns the live sound configuration. ok is false when sound
// is disabled.
func (s *NotificationService) SoundConfig() (audio.Config, bool) {
	s.mu.Lock()
	sound := s.sound
	s.mu.Unlock()

	if sound == nil {
		return audio.Config{}, false
	}
	return sound.Config(), true
}

func (s *NotificationService) buildSoundLocked(cfg audio.Config) *audio.Manager {
	manager := s.newSound(cfg, s.EmitCue)
	if manager == nil {
		return nil
	}
	if s.metrics != nil {
		manager.SetRecorder(s.metrics)
	}
	s.logger.Info("sound manager created",
		zap.Float64("volume", cfg.Volume),
		zap.Bool("allowOverlap", cfg.AllowOverlap),
		zap.Int("sounds", len(cfg.Sounds)),
	)
	return manager
}

func (s *NotificationService) defaultSoundFactory(cfg audio.Config, _ func(audio.Cue)) *audio.Manager {
	return audio.NewManager(cfg, audio.UnsupportedDevice{}, nil, s.logger)
}
