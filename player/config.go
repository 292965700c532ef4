package player

import "github.com/cwbudde/algo-spatial/spatial"

// PlayID identifies one live playback instance. The upper bits carry the
// source id, the low 16 bits a per-source instance counter:
//
//	playID = sourceID<<16 | instance
//
// The counter wraps at 2^16-1, so sessions that trigger one source more
// than 65535 times will eventually alias an old play id. The scheme
// accepts that; callers holding ids across very long sessions should not
// rely on uniqueness forever.
type PlayID int

// InvalidPlayID is returned by Play when no playback was started.
const InvalidPlayID PlayID = -1

// instanceLimit wraps the per-source instance counter.
const instanceLimit = 1<<16 - 1

// SourceID recovers the originating source id, or -1 for invalid ids.
func (p PlayID) SourceID() int {
	if p < 0 {
		return -1
	}
	return int(p >> 16)
}

// SpatialMode tags the SpatialConfig variant.
type SpatialMode int

const (
	// SpatialNone plays the source without a spatial stage.
	SpatialNone SpatialMode = iota
	// SpatialPosition spatializes at a position with default options.
	SpatialPosition
	// SpatialFull spatializes at a position with explicit panner options.
	SpatialFull
)

// SpatialConfig is a tagged variant: none, a bare position, or a
// position plus full panner options. Positions are listener-relative in
// the host engine's Y-up/Z-forward frame.
type SpatialConfig struct {
	Mode    SpatialMode
	X, Y, Z float64
	Options spatial.Options
}

// SpatialAt spatializes at a position with default panner options.
func SpatialAt(x, y, z float64) *SpatialConfig {
	return &SpatialConfig{Mode: SpatialPosition, X: x, Y: y, Z: z}
}

// SpatialWith spatializes at a position with explicit panner options.
func SpatialWith(x, y, z float64, opts spatial.Options) *SpatialConfig {
	return &SpatialConfig{Mode: SpatialFull, X: x, Y: y, Z: z, Options: opts}
}

// PlayConfig controls one playback instance. A nil config plays at full
// volume on the Sfx channel.
type PlayConfig struct {
	// Volume is the per-voice gain in [0,1].
	Volume float32

	// Loop restarts the buffer when it reaches the end.
	Loop bool

	// Channel routes the voice's gain stage to a volume group.
	Channel Channel

	// Priority exempts the voice from preemption while it plays.
	Priority bool

	// PlayOffset starts playback this many seconds into the buffer.
	PlayOffset float64

	// Spatial selects the spatial stage; nil means none.
	Spatial *SpatialConfig
}

func normalizeConfig(cfg *PlayConfig) PlayConfig {
	if cfg == nil {
		return PlayConfig{Volume: 1, Channel: ChannelSfx}
	}
	c := *cfg
	if c.Volume < 0 {
		c.Volume = 0
	}
	if c.Volume > 1 {
		c.Volume = 1
	}
	if c.PlayOffset < 0 {
		c.PlayOffset = 0
	}
	return c
}

// State is a voice lifecycle state, carried by notifications.
type State int

const (
	StateReady State = iota
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event is a state-change notification for one play id. Events for a
// given play id are delivered in the order the transitions occurred;
// cross-voice ordering is unspecified.
type Event struct {
	ID    PlayID
	State State
}
