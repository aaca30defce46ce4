package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/toast-engine/internal/domain"
)

type Config struct {
	MaxNotifications  int     `env:"MAX_NOTIFICATIONS,default=5"`
	DefaultDurationMS int     `env:"DEFAULT_DURATION_MS,default=5000"`
	PlaySoundDefault  bool    `env:"PLAY_SOUND_DEFAULT,default=false"`
	SoundEnabled      bool    `env:"SOUND_ENABLED,default=true"`
	SoundVolume       float64 `env:"SOUND_VOLUME,default=0.5"`
	SoundAllowOverlap bool    `env:"SOUND_ALLOW_OVERLAP,default=false"`
	SoundBaseURL      string  `env:"SOUND_BASE_URL"`
	SoundCacheBytes   int64   `env:"SOUND_CACHE_BYTES,default=8388608"`
	SoundCueLengthMS  int     `env:"SOUND_CUE_LENGTH_MS,default=1000"`
	APIPort           int     `env:"API_PORT,default=8080"`
	LogLevel          string  `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxNotifications < 1 {
		return fmt.Errorf("%w: MAX_NOTIFICATIONS must be >= 1", domain.ErrValidation)
	}
	if c.DefaultDurationMS < 0 {
		return fmt.Errorf("%w: DEFAULT_DURATION_MS must not be negative", domain.ErrValidation)
	}
	if c.SoundVolume < 0 || c.SoundVolume > 1 {
		return fmt.Errorf("%w: SOUND_VOLUME must be between 0 and 1", domain.ErrValidation)
	}
	if c.SoundCacheBytes < 1 {
		return fmt.Errorf("%w: SOUND_CACHE_BYTES must be >= 1", domain.ErrValidation)
	}
	if c.APIPort < 1 || c.APIPort > 65535 {
		return fmt.Errorf("%w: API_PORT must be between 1 and 65535", domain.ErrValidation)
	}
	return nil
}

func (c *Config) DefaultDuration() time.Duration {
	return time.Duration(c.DefaultDurationMS) * time.Millisecond
}

func (c *Config) SoundCueLength() time.Duration {
	return time.Duration(c.SoundCueLengthMS) * time.Millisecond
}
