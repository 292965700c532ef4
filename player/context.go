// Package player multiplexes a fixed pool of playback voices across an
// unbounded number of logical sound requests: buffer caching, priority
// preemption, channel volume groups and unlock-gated autoplay.
//
// The package is single-threaded by design: the Manager and its Voices
// must be driven from one goroutine (typically the host's render loop).
// Completion handling is deferred to the per-block render tick, so state
// notifications for one play id are always delivered in transition order.
package player

import "github.com/cwbudde/algo-spatial/dsp"

// Channel identifies a volume group. Sfx and Music feed into Master;
// Master feeds the output.
type Channel int

const (
	ChannelSfx Channel = iota
	ChannelMusic
	ChannelMaster
)

func (c Channel) String() string {
	switch c {
	case ChannelSfx:
		return "sfx"
	case ChannelMusic:
		return "music"
	case ChannelMaster:
		return "master"
	default:
		return "unknown"
	}
}

// minRampSeconds bounds volume ramps from below; shorter ramps click.
const minRampSeconds = 0.005

// volumeEpsilon is the smallest representable bus gain. Ramps cannot
// target exactly zero, so zero requests land here instead.
const volumeEpsilon = 1e-4

// Bus is one gain stage of the channel-group mixer. Volume changes are
// applied as sample-accurate linear ramps.
type Bus struct {
	gain       *dsp.GainRamp
	sampleRate int
}

func newBus(sampleRate int) *Bus {
	return &Bus{gain: dsp.NewGainRamp(1), sampleRate: sampleRate}
}

// SetVolume ramps the bus gain to volume over rampSeconds. Ramps shorter
// than 5 ms are stretched to 5 ms; volume is clamped to [epsilon, 1].
func (b *Bus) SetVolume(volume float32, rampSeconds float64) {
	if volume < volumeEpsilon {
		volume = volumeEpsilon
	}
	if volume > 1 {
		volume = 1
	}
	if rampSeconds < minRampSeconds {
		rampSeconds = minRampSeconds
	}
	b.gain.SetTarget(volume, int(rampSeconds*float64(b.sampleRate)))
}

// Volume returns the momentary bus gain.
func (b *Bus) Volume() float32 {
	return b.gain.Value()
}

// Context is the explicitly constructed audio engine context shared by a
// Manager and its Voices. The host application owns its lifecycle.
//
// A Context starts locked, mirroring platform audio outputs that stay
// suspended until a user gesture. Resume performs the one-time unlock and
// notifies subscribers so queued autoplay requests can be flushed.
type Context struct {
	sampleRate int
	blockSize  int

	unlocked bool
	onUnlock []func()
}

// NewContext creates a context. blockSize is the per-tick render quantum
// in frames; it defaults to 128 when non-positive.
func NewContext(sampleRate, blockSize int) *Context {
	if blockSize <= 0 {
		blockSize = 128
	}
	return &Context{sampleRate: sampleRate, blockSize: blockSize}
}

// SampleRate returns the engine rate in Hz.
func (c *Context) SampleRate() int { return c.sampleRate }

// BlockSize returns the render quantum in frames.
func (c *Context) BlockSize() int { return c.blockSize }

// Unlocked reports whether the output may produce sound.
func (c *Context) Unlocked() bool { return c.unlocked }

// Resume unlocks the output. The host calls this from its first
// click/touch/keydown handler. Subsequent calls are no-ops.
func (c *Context) Resume() {
	if c.unlocked {
		return
	}
	c.unlocked = true
	for _, fn := range c.onUnlock {
		fn()
	}
}

func (c *Context) subscribeUnlock(fn func()) {
	if c.unlocked {
		fn()
		return
	}
	c.onUnlock = append(c.onUnlock, fn)
}
