// Package audio plays best-effort sound cues for notification types.
// Failures are logged and swallowed; nothing here blocks or fails a caller.
package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kursadbilgin/toast-engine/internal/domain"
	"go.uber.org/zap"
)

const loadTimeout = 15 * time.Second

// Recorder receives playback outcomes. observability.Metrics implements it.
type Recorder interface {
	IncAudioPlayed(soundType string)
	IncAudioFailure(reason string)
}

// Manager caches one clip per notification type and serializes playback
// unless overlap is allowed.
type Manager struct {
	device   Device
	source   Source
	logger   *zap.Logger
	recorder Recorder

	mu      sync.Mutex
	cfg     Config
	cache   map[domain.Type]Clip
	pending []domain.Type
	playing bool
	active  map[uint64]Clip
	retired map[uint64]struct{}
	nextID  uint64
	closed  bool

	loads sync.WaitGroup
}

func NewManager(cfg Config, device Device, source Source, logger *zap.Logger) *Manager {
	if device == nil {
		device = UnsupportedDevice{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, _ = ConfigPatch{}.Apply(cfg)

	return &Manager{
		device:  device,
		source:  source,
		logger:  logger,
		cfg:     cfg,
		cache:   make(map[domain.Type]Clip),
		active:  make(map[uint64]Clip),
		retired: make(map[uint64]struct{}),
	}
}

func (m *Manager) SetRecorder(recorder Recorder) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = recorder
}

// Preload loads uri into the cache for soundType in the background.
func (m *Manager) Preload(ctx context.Context, soundType domain.Type, uri string) {
	if m == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.loads.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.loads.Done()

		clip, err := m.open(ctx, uri)
		if err != nil {
			m.warn("sound preload failed", soundType, uri, "preload", err)
			return
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			clip.Close()
			return
		}
		clip.SetVolume(m.cfg.Volume)
		if old, ok := m.cache[soundType]; ok {
			old.Close()
		}
		m.cache[soundType] = clip
	}()
}

// PreloadAll preloads every configured sound.
func (m *Manager) PreloadAll(ctx context.Context) {
	if m == nil {
		return
	}
	cfg := m.Config()
	for _, t := range domain.Types() {
		if uri, ok := cfg.Sounds[t]; ok && uri != "" {
			m.Preload(ctx, t, uri)
		}
	}
}

// Wait blocks until in-flight preloads finish.
func (m *Manager) Wait() {
	if m == nil {
		return
	}
	m.loads.Wait()
}

// Play starts the sound for soundType, or queues it behind the sound that is
// currently playing when overlap is not allowed.
func (m *Manager) Play(soundType domain.Type) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.device.Supported() {
		return
	}
	if _, ok := m.cfg.Sounds[soundType]; !ok {
		return
	}
	if !m.cfg.AllowOverlap && m.playing {
		m.pending = append(m.pending, soundType)
		return
	}
	m.startLocked(soundType)
}

func (m *Manager) startLocked(soundType domain.Type) {
	uri := m.cfg.Sounds[soundType]
	cached := m.cache[soundType]
	overlap := m.cfg.AllowOverlap
	volume := m.cfg.Volume

	m.playing = true
	m.nextID++
	id := m.nextID

	go m.run(id, soundType, uri, cached, overlap, volume)
}

func (m *Manager) run(id uint64, soundType domain.Type, uri string, clip Clip, overlap bool, volume float64) {
	owned := overlap
	if clip == nil {
		opened, err := m.open(context.Background(), uri)
		if err != nil {
			m.warn("sound load failed", soundType, uri, "load", err)
			m.finish(id)
			return
		}
		var cached bool
		clip, cached = m.adopt(soundType, uri, opened)
		if clip == nil {
			m.finish(id)
			return
		}
		if !cached && !overlap {
			owned = true
		}
	}

	if overlap {
		cloned, err := clip.Clone()
		if err != nil {
			m.warn("sound clone failed", soundType, uri, "clone", err)
			m.finish(id)
			return
		}
		clip = cloned
	}
	clip.SetVolume(volume)

	if !m.track(id, clip) {
		if owned {
			clip.Close()
		}
		return
	}

	err := clip.Play(func(playErr error) {
		if playErr != nil {
			m.warn("sound playback failed", soundType, uri, "playback", playErr)
		}
		m.release(id, owned)
		m.finish(id)
	})
	if err != nil {
		m.warn("sound playback failed", soundType, uri, "playback", err)
		m.release(id, owned)
		m.finish(id)
		return
	}

	m.mu.Lock()
	recorder := m.recorder
	m.mu.Unlock()
	if recorder != nil {
		recorder.IncAudioPlayed(soundType.String())
	}
}

// adopt caches a clip opened on demand, preferring one a concurrent preload
// may have stored first. It reports whether the returned clip is cached.
func (m *Manager) adopt(soundType domain.Type, uri string, clip Clip) (Clip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		clip.Close()
		return nil, false
	}
	if existing, ok := m.cache[soundType]; ok {
		clip.Close()
		return existing, true
	}
	if m.cfg.Sounds[soundType] != uri {
		return clip, false
	}
	m.cache[soundType] = clip
	return clip, true
}

func (m *Manager) track(id uint64, clip Clip) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.active[id] = clip
	return true
}

func (m *Manager) release(id uint64, owned bool) {
	m.mu.Lock()
	clip, ok := m.active[id]
	_, retired := m.retired[id]
	delete(m.active, id)
	delete(m.retired, id)
	m.mu.Unlock()

	if ok && (owned || retired) {
		clip.Close()
	}
}

// finish clears the playing flag and starts the next queued sound.
func (m *Manager) finish(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playing = false
	if m.closed {
		return
	}

	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		if _, ok := m.cfg.Sounds[next]; !ok {
			continue
		}
		m.startLocked(next)
		return
	}
}

// UpdateConfig merges patch into the configuration and re-applies the volume
// to every cached clip. Clips whose sound path changed are dropped.
func (m *Manager) UpdateConfig(patch ConfigPatch) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next, changed := patch.Apply(m.cfg)
	m.cfg = next

	for _, t := range changed {
		clip, ok := m.cache[t]
		if !ok {
			continue
		}
		delete(m.cache, t)
		if !m.retireLocked(clip) {
			clip.Close()
		}
	}
	for _, clip := range m.cache {
		clip.SetVolume(m.cfg.Volume)
	}
}

// retireLocked marks clip for closing once its playback ends and reports
// whether it is playing.
func (m *Manager) retireLocked(clip Clip) bool {
	inUse := false
	for id, active := range m.active {
		if active == clip {
			m.retired[id] = struct{}{}
			inUse = true
		}
	}
	return inUse
}

// Cleanup drops queued sounds and stops and releases every clip. The manager
// plays nothing afterwards. Calling it again is a no-op.
func (m *Manager) Cleanup() {
	if m == nil {
		return
	}

	m.mu.Lock()
	m.closed = true
	m.pending = nil
	m.playing = false
	cache := m.cache
	active := m.active
	m.cache = make(map[domain.Type]Clip)
	m.active = make(map[uint64]Clip)
	m.retired = make(map[uint64]struct{})
	m.mu.Unlock()

	for _, clip := range active {
		clip.Stop()
		clip.Close()
	}
	for _, clip := range cache {
		clip.Stop()
		clip.Close()
	}
}

func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, _ := ConfigPatch{}.Apply(m.cfg)
	return cfg
}

// Pending returns the queued sound types in play order.
func (m *Manager) Pending() []domain.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Type(nil), m.pending...)
}

func (m *Manager) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *Manager) open(ctx context.Context, uri string) (Clip, error) {
	if !m.device.Supported() {
		return nil, ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	var data []byte
	if m.source != nil {
		fetched, err := m.source.Fetch(ctx, uri)
		if err != nil {
			return nil, err
		}
		data = fetched
	}
	return m.device.Open(ctx, uri, data)
}

func (m *Manager) warn(msg string, soundType domain.Type, uri string, reason string, err error) {
	m.logger.Warn(msg,
		zap.String("type", soundType.String()),
		zap.String("uri", uri),
		zap.Error(err),
	)

	m.mu.Lock()
	recorder := m.recorder
	m.mu.Unlock()
	if recorder == nil {
		return
	}
	if errors.Is(err, ErrUnsupported) {
		reason = "unsupported"
	}
	recorder.IncAudioFailure(reason)
}
