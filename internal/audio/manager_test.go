package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kursadbilgin/toast-engine/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const waitTimeout = 2 * time.Second

type fakeDevice struct {
	mu        sync.Mutex
	supported bool
	openErr   error
	playErr   map[string]error
	opened    []string
	plays     chan *fakeClip
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		supported: true,
		playErr:   map[string]error{},
		plays:     make(chan *fakeClip, 32),
	}
}

func (d *fakeDevice) Supported() bool { return d.supported }

func (d *fakeDevice) Open(_ context.Context, uri string, _ []byte) (Clip, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opened = append(d.opened, uri)
	return &fakeClip{device: d, uri: uri}, nil
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened)
}

type fakeClip struct {
	device *fakeDevice
	uri    string
	parent *fakeClip

	mu      sync.Mutex
	volume  float64
	done    func(error)
	stopped bool
	closed  bool
}

func (c *fakeClip) Play(done func(error)) error {
	c.device.mu.Lock()
	err := c.device.playErr[c.uri]
	c.device.mu.Unlock()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.done = done
	c.mu.Unlock()
	c.device.plays <- c
	return nil
}

func (c *fakeClip) SetVolume(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = v
}

func (c *fakeClip) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *fakeClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeClip) Clone() (Clip, error) {
	return &fakeClip{device: c.device, uri: c.uri, parent: c}, nil
}

func (c *fakeClip) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClip) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClip) end(err error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	done(err)
}

type fakeSource struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, uri string) ([]byte, error)
	calls   int
}

func (s *fakeSource) Fetch(ctx context.Context, uri string) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.fetchFn != nil {
		return s.fetchFn(ctx, uri)
	}
	return []byte("RIFF"), nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	played   map[string]int
	failures map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{played: map[string]int{}, failures: map[string]int{}}
}

func (r *fakeRecorder) IncAudioPlayed(soundType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played[soundType]++
}

func (r *fakeRecorder) IncAudioFailure(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[reason]++
}

func (r *fakeRecorder) failureCount(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[reason]
}

func waitPlay(t *testing.T, d *fakeDevice) *fakeClip {
	t.Helper()
	select {
	case clip := <-d.plays:
		return clip
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for playback")
		return nil
	}
}

func expectNoPlay(t *testing.T, d *fakeDevice) {
	t.Helper()
	select {
	case clip := <-d.plays:
		t.Fatalf("unexpected playback of %s", clip.uri)
	case <-time.After(50 * time.Millisecond):
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestManagerPlayUnsupportedIsNoop(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	device.supported = false
	m := NewManager(DefaultConfig(), device, nil, zap.NewNop())

	m.Play(domain.TypeError)

	expectNoPlay(t, device)
	if m.Playing() {
		t.Fatal("Playing() = true on unsupported device")
	}
	if len(m.Pending()) != 0 {
		t.Fatalf("Pending() = %v, want empty", m.Pending())
	}
}

func TestManagerPlayWithoutSoundForTypeIsNoop(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	cfg := DefaultConfig()
	delete(cfg.Sounds, domain.TypeInfo)
	m := NewManager(cfg, device, nil, zap.NewNop())

	m.Play(domain.TypeInfo)

	expectNoPlay(t, device)
	if m.Playing() {
		t.Fatal("Playing() = true for type without sound")
	}
}

func TestManagerSerializesPlaybackFIFO(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	m := NewManager(DefaultConfig(), device, nil, zap.NewNop())

	m.Play(domain.TypeError)
	m.Play(domain.TypeSuccess)
	m.Play(domain.TypeInfo)

	first := waitPlay(t, device)
	if first.uri != DefaultSounds[domain.TypeError] {
		t.Fatalf("first uri = %s, want error sound", first.uri)
	}
	expectNoPlay(t, device)

	pending := m.Pending()
	if len(pending) != 2 || pending[0] != domain.TypeSuccess || pending[1] != domain.TypeInfo {
		t.Fatalf("Pending() = %v, want [success info]", pending)
	}

	first.end(nil)
	second := waitPlay(t, device)
	if second.uri != DefaultSounds[domain.TypeSuccess] {
		t.Fatalf("second uri = %s, want success sound", second.uri)
	}

	second.end(nil)
	third := waitPlay(t, device)
	if third.uri != DefaultSounds[domain.TypeInfo] {
		t.Fatalf("third uri = %s, want info sound", third.uri)
	}

	third.end(nil)
	eventually(t, func() bool { return !m.Playing() })
}

func TestManagerPlaybackErrorDrainsQueue(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	device.playErr[DefaultSounds[domain.TypeError]] = errors.New("decode failed")

	core, recorded := observer.New(zapcore.WarnLevel)
	recorder := newFakeRecorder()
	m := NewManager(DefaultConfig(), device, nil, zap.New(core))
	m.SetRecorder(recorder)

	m.Play(domain.TypeError)
	m.Play(domain.TypeWarning)

	next := waitPlay(t, device)
	if next.uri != DefaultSounds[domain.TypeWarning] {
		t.Fatalf("uri = %s, want warning sound after failed playback", next.uri)
	}

	if got := recorded.FilterMessage("sound playback failed").Len(); got != 1 {
		t.Fatalf("playback warnings = %d, want 1", got)
	}
	if got := recorder.failureCount("playback"); got != 1 {
		t.Fatalf("playback failures = %d, want 1", got)
	}
}

func TestManagerPlaybackEndedWithErrorDrainsQueue(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	m := NewManager(DefaultConfig(), device, nil, zap.NewNop())

	m.Play(domain.TypeError)
	m.Play(domain.TypeInfo)

	first := waitPlay(t, device)
	first.end(errors.New("device unplugged"))

	second := waitPlay(t, device)
	if second.uri != DefaultSounds[domain.TypeInfo] {
		t.Fatalf("uri = %s, want info sound", second.uri)
	}
}

func TestManagerLoadFailureDrainsQueue(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	source := &fakeSource{
		fetchFn: func(ctx context.Context, uri string) ([]byte, error) {
			if uri == DefaultSounds[domain.TypeError] {
				return nil, &SourceError{URI: uri, StatusCode: 404}
			}
			return []byte("ok"), nil
		},
	}
	m := NewManager(DefaultConfig(), device, source, zap.NewNop())

	m.Play(domain.TypeError)
	m.Play(domain.TypeSuccess)

	next := waitPlay(t, device)
	if next.uri != DefaultSounds[domain.TypeSuccess] {
		t.Fatalf("uri = %s, want success sound", next.uri)
	}
}

func TestManagerOverlapPlaysClonesConcurrently(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	cfg := DefaultConfig()
	cfg.AllowOverlap = true
	m := NewManager(cfg, device, nil, zap.NewNop())

	m.Play(domain.TypeError)
	m.Play(domain.TypeError)

	a := waitPlay(t, device)
	b := waitPlay(t, device)
	if a == b {
		t.Fatal("overlapping plays shared one clip")
	}
	if a.parent == nil || b.parent == nil {
		t.Fatal("overlapping plays should use clones")
	}
	if a.parent != b.parent {
		t.Fatal("clones should come from the same cached clip")
	}
	if len(m.Pending()) != 0 {
		t.Fatalf("Pending() = %v, want empty with overlap", m.Pending())
	}

	a.end(nil)
	eventually(t, a.Closed)
	if a.parent.Closed() {
		t.Fatal("cached clip closed after clone finished")
	}
}

func TestManagerReusesCachedClip(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	m := NewManager(DefaultConfig(), device, nil, zap.NewNop())

	m.Play(domain.TypeError)
	first := waitPlay(t, device)
	first.end(nil)
	eventually(t, func() bool { return !m.Playing() })

	m.Play(domain.TypeError)
	second := waitPlay(t, device)
	if first != second {
		t.Fatal("second play did not reuse cached clip")
	}
	if device.openCount() != 1 {
		t.Fatalf("opened = %d, want 1", device.openCount())
	}
}

func TestManagerPreloadCachesClip(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	source := &fakeSource{}
	m := NewManager(DefaultConfig(), device, source, zap.NewNop())

	m.PreloadAll(context.Background())
	m.Wait()

	if device.openCount() != len(DefaultSounds) {
		t.Fatalf("opened = %d, want %d", device.openCount(), len(DefaultSounds))
	}

	m.Play(domain.TypeWarning)
	waitPlay(t, device)
	if device.openCount() != len(DefaultSounds) {
		t.Fatal("play after preload opened a new clip")
	}
}

func TestManagerPreloadFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	core, recorded := observer.New(zapcore.WarnLevel)
	recorder := newFakeRecorder()
	source := &fakeSource{
		fetchFn: func(ctx context.Context, uri string) ([]byte, error) {
			return nil, errors.New("connection refused")
		},
	}
	m := NewManager(DefaultConfig(), newFakeDevice(), source, zap.New(core))
	m.SetRecorder(recorder)

	m.Preload(context.Background(), domain.TypeError, "/sounds/missing.mp3")
	m.Wait()

	entries := recorded.FilterMessage("sound preload failed").All()
	if len(entries) != 1 {
		t.Fatalf("preload warnings = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["uri"]; got != "/sounds/missing.mp3" {
		t.Fatalf("uri field = %v, want /sounds/missing.mp3", got)
	}
	if got := recorder.failureCount("preload"); got != 1 {
		t.Fatalf("preload failures = %d, want 1", got)
	}
}

func TestManagerUpdateConfigReappliesVolume(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	m := NewManager(DefaultConfig(), device, &fakeSource{}, zap.NewNop())
	m.PreloadAll(context.Background())
	m.Wait()

	m.Play(domain.TypeError)
	clip := waitPlay(t, device)
	if clip.Volume() != DefaultVolume {
		t.Fatalf("volume = %v, want %v", clip.Volume(), DefaultVolume)
	}

	volume := 0.9
	m.UpdateConfig(ConfigPatch{Volume: &volume})
	if clip.Volume() != 0.9 {
		t.Fatalf("volume after update = %v, want 0.9", clip.Volume())
	}

	loud := 3.0
	m.UpdateConfig(ConfigPatch{Volume: &loud})
	if got := m.Config().Volume; got != 1 {
		t.Fatalf("clamped volume = %v, want 1", got)
	}
	if clip.Volume() != 1 {
		t.Fatalf("clip volume = %v, want 1", clip.Volume())
	}
}

func TestManagerUpdateConfigChangedSoundWaitsForPlayback(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	m := NewManager(DefaultConfig(), device, nil, zap.NewNop())

	m.Play(domain.TypeError)
	playing := waitPlay(t, device)

	m.UpdateConfig(ConfigPatch{Sounds: map[domain.Type]string{domain.TypeError: "/sounds/alarm.mp3"}})
	if playing.Closed() {
		t.Fatal("clip closed while still playing")
	}

	playing.end(nil)
	eventually(t, playing.Closed)

	m.Play(domain.TypeError)
	next := waitPlay(t, device)
	if next.uri != "/sounds/alarm.mp3" {
		t.Fatalf("uri = %s, want updated sound", next.uri)
	}
}

func TestManagerCleanupIsIdempotent(t *testing.T) {
	t.Parallel()

	device := newFakeDevice()
	m := NewManager(DefaultConfig(), device, nil, zap.NewNop())

	m.Play(domain.TypeError)
	m.Play(domain.TypeInfo)
	playing := waitPlay(t, device)

	m.Cleanup()
	m.Cleanup()

	if !playing.Closed() {
		t.Fatal("cached clip not released by Cleanup")
	}
	if len(m.Pending()) != 0 {
		t.Fatalf("Pending() = %v, want empty after Cleanup", m.Pending())
	}

	playing.end(nil)
	expectNoPlay(t, device)

	m.Play(domain.TypeSuccess)
	expectNoPlay(t, device)
}

func TestManagerNilIsSafe(t *testing.T) {
	t.Parallel()

	var m *Manager
	m.Play(domain.TypeError)
	m.Preload(context.Background(), domain.TypeError, "/x.mp3")
	m.UpdateConfig(ConfigPatch{})
	m.Cleanup()
	m.Wait()
}

func TestConfigPatchApply(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()
	overlap := true
	next, changed := ConfigPatch{
		AllowOverlap: &overlap,
		Sounds: map[domain.Type]string{
			domain.TypeInfo:    "",
			domain.TypeSuccess: DefaultSounds[domain.TypeSuccess],
			domain.TypeWarning: "/sounds/chime.mp3",
		},
	}.Apply(base)

	if !next.AllowOverlap {
		t.Fatal("AllowOverlap not applied")
	}
	if _, ok := next.Sounds[domain.TypeInfo]; ok {
		t.Fatal("empty path should remove the info sound")
	}
	if next.Sounds[domain.TypeWarning] != "/sounds/chime.mp3" {
		t.Fatalf("warning sound = %s", next.Sounds[domain.TypeWarning])
	}
	if len(changed) != 2 {
		t.Fatalf("changed = %v, want info and warning", changed)
	}
	if _, ok := base.Sounds[domain.TypeInfo]; !ok {
		t.Fatal("Apply mutated the input config")
	}
}
