package player

import (
	"github.com/cwbudde/algo-spatial/formats"
	"github.com/cwbudde/algo-spatial/hrir"
	"github.com/cwbudde/algo-spatial/spatial"
)

// Voice is one hardware playback slot. It owns its buffer cursor, gain
// and optional spatial stage, and carries a small state machine:
//
//	Ready -> Playing -> {Paused, Stopped}; Paused -> Playing; any -> Ready
//
// Voices are exclusively owned by a Manager and never reference each
// other.
type Voice struct {
	ctx *Context

	state  State
	playID PlayID

	buffer   *formats.Buffer
	cfg      PlayConfig
	cursor   int // frames into the buffer
	priority bool

	// Spatial stage. A fresh stage is constructed per play; re-seeding a
	// live stage with a new position plays a short window of stale-
	// position audio, so stages are never reused across plays.
	hrtf   *spatial.Panner
	stereo *spatial.EqualPowerPanner

	monoBuf []float32
}

func newVoice(ctx *Context) *Voice {
	return &Voice{
		ctx:     ctx,
		state:   StateReady,
		playID:  InvalidPlayID,
		monoBuf: make([]float32, ctx.BlockSize()),
	}
}

// State returns the voice's lifecycle state.
func (v *Voice) State() State { return v.state }

// PlayID returns the bound play id, or InvalidPlayID when idle.
func (v *Voice) PlayID() PlayID { return v.playID }

// play binds a buffer and play id and starts rendering. dataset selects
// HRTF spatialization when available; otherwise positioned plays fall
// back to equal-power panning.
func (v *Voice) play(buffer *formats.Buffer, playID PlayID, cfg PlayConfig, dataset *hrir.Dataset) error {
	v.buffer = buffer
	v.playID = playID
	v.cfg = cfg
	v.priority = cfg.Priority
	v.cursor = offsetFrames(buffer, cfg.PlayOffset, cfg.Loop)

	if err := v.buildSpatialStage(dataset); err != nil {
		return err
	}
	v.state = StatePlaying
	return nil
}

func (v *Voice) buildSpatialStage(dataset *hrir.Dataset) error {
	v.hrtf = nil
	v.stereo = nil
	sc := v.cfg.Spatial
	if sc == nil || sc.Mode == SpatialNone {
		return nil
	}

	if dataset != nil {
		opts := spatial.Options{}
		if sc.Mode == SpatialFull {
			opts = sc.Options
		}
		p, err := spatial.NewPanner(dataset, v.ctx.SampleRate(), opts)
		if err != nil {
			return err
		}
		if err := p.UpdatePosition(sc.X, sc.Y, sc.Z); err != nil {
			return err
		}
		v.hrtf = p
		return nil
	}

	pan := spatial.NewEqualPowerPanner(v.ctx.BlockSize())
	dir, _ := spatial.DirectionFromPosition(sc.X, sc.Y, sc.Z)
	pan.SetDirection(dir)
	v.stereo = pan
	return nil
}

// setPosition retargets the spatial stage; a no-op for non-spatial plays.
func (v *Voice) setPosition(x, y, z float64) {
	if sc := v.cfg.Spatial; sc != nil {
		sc.X, sc.Y, sc.Z = x, y, z
	}
	if v.hrtf != nil {
		_ = v.hrtf.UpdatePosition(x, y, z)
	}
	if v.stereo != nil {
		dir, _ := spatial.DirectionFromPosition(x, y, z)
		v.stereo.SetDirection(dir)
	}
}

// pause captures the current offset and tears down the live stage; a
// fresh stage is built on resume since a stopped source node cannot be
// restarted in place.
func (v *Voice) pause() bool {
	if v.state != StatePlaying {
		return false
	}
	v.cfg.PlayOffset = float64(v.cursor) / float64(v.ctx.SampleRate())
	v.hrtf = nil
	v.stereo = nil
	v.state = StatePaused
	return true
}

// resume replays from the offset captured by pause.
func (v *Voice) resume(dataset *hrir.Dataset) bool {
	if v.state != StatePaused {
		return false
	}
	v.cursor = offsetFrames(v.buffer, v.cfg.PlayOffset, v.cfg.Loop)
	if err := v.buildSpatialStage(dataset); err != nil {
		return false
	}
	v.state = StatePlaying
	return true
}

// stop halts playback and releases the live stage. Idempotent: stopping
// an already-stopped voice is a no-op.
func (v *Voice) stop() bool {
	if v.state != StatePlaying && v.state != StatePaused {
		return false
	}
	v.teardown()
	v.state = StateStopped
	return true
}

// reclaim resets a voice for reuse by the pool.
func (v *Voice) reclaim() {
	v.teardown()
	v.playID = InvalidPlayID
	v.priority = false
	v.state = StateReady
}

func (v *Voice) teardown() {
	v.buffer = nil
	v.hrtf = nil
	v.stereo = nil
	v.cursor = 0
}

// render mixes one block into the interleaved stereo accumulator and
// reports whether the buffer ran out this block.
func (v *Voice) render(dst []float32, frames int) (done bool) {
	if v.state != StatePlaying || v.buffer == nil {
		return false
	}
	if len(v.monoBuf) < frames {
		v.monoBuf = make([]float32, frames)
	}
	mono := v.monoBuf[:frames]

	data := v.buffer.Data
	for i := 0; i < frames; i++ {
		if v.cursor >= len(data) {
			if v.cfg.Loop && len(data) > 0 {
				v.cursor = 0
			} else {
				for ; i < frames; i++ {
					mono[i] = 0
				}
				done = true
				break
			}
		}
		mono[i] = data[v.cursor] * v.cfg.Volume
		v.cursor++
	}

	switch {
	case v.hrtf != nil:
		stereo := v.hrtf.Process(mono)
		for i := 0; i < frames; i++ {
			dst[i*2] += stereo[i*2]
			dst[i*2+1] += stereo[i*2+1]
		}
	case v.stereo != nil:
		stereo := v.stereo.Process(mono)
		for i := 0; i < frames; i++ {
			dst[i*2] += stereo[i*2]
			dst[i*2+1] += stereo[i*2+1]
		}
	default:
		for i := 0; i < frames; i++ {
			dst[i*2] += mono[i]
			dst[i*2+1] += mono[i]
		}
	}

	if done {
		v.teardown()
		v.state = StateStopped
	}
	return done
}

func offsetFrames(buffer *formats.Buffer, offsetSeconds float64, loop bool) int {
	if buffer == nil || len(buffer.Data) == 0 || offsetSeconds <= 0 {
		return 0
	}
	frames := int(offsetSeconds * float64(buffer.SampleRate))
	if loop {
		return frames % len(buffer.Data)
	}
	if frames > len(buffer.Data) {
		return len(buffer.Data)
	}
	return frames
}
