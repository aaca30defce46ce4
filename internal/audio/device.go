package audio

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/toast-engine/internal/countdown"
)

// Clip is a loaded sound that can be played.
type Clip interface {
	// Play starts playback and returns immediately. done is called once when
	// playback ends or fails; it is not called when Play returns an error.
	Play(done func(error)) error
	SetVolume(volume float64)
	Stop()
	Clone() (Clip, error)
	// Close releases the clip. It must be safe to call more than once.
	Close()
}

// Device turns fetched sound data into playable clips.
type Device interface {
	Supported() bool
	Open(ctx context.Context, uri string, data []byte) (Clip, error)
}

// Source loads sound resources by URI.
type Source interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// UnsupportedDevice is used where no audio output exists. Every Play is a no-op.
type UnsupportedDevice struct{}

func (UnsupportedDevice) Supported() bool { return false }

func (UnsupportedDevice) Open(context.Context, string, []byte) (Clip, error) {
	return nil, ErrUnsupported
}

// Cue tells a connected client to play a sound.
type Cue struct {
	URI    string  `json:"uri"`
	Volume float64 `json:"volume"`
}

// CueDevice plays clips by emitting a Cue and holding the clip busy for a
// fixed length. The client on the other end does the actual playback.
type CueDevice struct {
	clock  countdown.Clock
	length time.Duration
	emit   func(Cue)
}

const defaultCueLength = time.Second

func NewCueDevice(clock countdown.Clock, length time.Duration, emit func(Cue)) *CueDevice {
	if clock == nil {
		clock = countdown.SystemClock{}
	}
	if length <= 0 {
		length = defaultCueLength
	}
	return &CueDevice{clock: clock, length: length, emit: emit}
}

func (d *CueDevice) Supported() bool { return d != nil && d.emit != nil }

func (d *CueDevice) Open(_ context.Context, uri string, _ []byte) (Clip, error) {
	if !d.Supported() {
		return nil, ErrUnsupported
	}
	return &cueClip{device: d, uri: uri, volume: DefaultVolume}, nil
}

type cueClip struct {
	device *CueDevice

	mu     sync.Mutex
	uri    string
	volume float64
	timer  countdown.Timer
	closed bool
}

func (c *cueClip) Play(done func(error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClipClosed
	}
	cue := Cue{URI: c.uri, Volume: c.volume}
	c.timer = c.device.clock.AfterFunc(c.device.length, func() {
		if done != nil {
			done(nil)
		}
	})
	c.mu.Unlock()

	c.device.emit(cue)
	return nil
}

func (c *cueClip) SetVolume(volume float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = clampVolume(volume)
}

func (c *cueClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *cueClip) Clone() (Clip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClipClosed
	}
	return &cueClip{device: c.device, uri: c.uri, volume: c.volume}, nil
}

func (c *cueClip) Close() {
	c.Stop()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
