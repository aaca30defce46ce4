package audio

import (
	"maps"

	"github.com/kursadbilgin/toast-engine/internal/domain"
)

const (
	DefaultVolume       = 0.5
	DefaultAllowOverlap = false
)

// DefaultSounds maps each notification type to its bundled sound path.
var DefaultSounds = map[domain.Type]string{
	domain.TypeSuccess: "/sounds/success.mp3",
	domain.TypeError:   "/sounds/error.mp3",
	domain.TypeWarning: "/sounds/warning.mp3",
	domain.TypeInfo:    "/sounds/info.mp3",
}

// Config controls playback for every notification type.
type Config struct {
	Volume       float64
	AllowOverlap bool
	Sounds       map[domain.Type]string
}

func DefaultConfig() Config {
	return Config{
		Volume:       DefaultVolume,
		AllowOverlap: DefaultAllowOverlap,
		Sounds:       maps.Clone(DefaultSounds),
	}
}

// ConfigPatch is a partial Config update. Nil fields are left unchanged.
// An empty path in Sounds removes the sound for that type.
type ConfigPatch struct {
	Volume       *float64
	AllowOverlap *bool
	Sounds       map[domain.Type]string
}

// Apply merges p into cfg and reports which sound paths changed.
func (p ConfigPatch) Apply(cfg Config) (Config, []domain.Type) {
	next := Config{
		Volume:       cfg.Volume,
		AllowOverlap: cfg.AllowOverlap,
		Sounds:       maps.Clone(cfg.Sounds),
	}
	if next.Sounds == nil {
		next.Sounds = make(map[domain.Type]string)
	}
	if p.Volume != nil {
		next.Volume = *p.Volume
	}
	if p.AllowOverlap != nil {
		next.AllowOverlap = *p.AllowOverlap
	}

	var changed []domain.Type
	for _, t := range domain.Types() {
		uri, ok := p.Sounds[t]
		if !ok || next.Sounds[t] == uri {
			continue
		}
		if uri == "" {
			delete(next.Sounds, t)
		} else {
			next.Sounds[t] = uri
		}
		changed = append(changed, t)
	}

	next.Volume = clampVolume(next.Volume)
	return next, changed
}

func clampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
