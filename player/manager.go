package player

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cwbudde/algo-spatial/dsp"
	"github.com/cwbudde/algo-spatial/formats"
	"github.com/cwbudde/algo-spatial/hrir"
)

// DecodeFunc decodes one asset path into a mono buffer at the engine
// rate. The default is formats.DecodeFile; tests inject synthetic
// buffers instead.
type DecodeFunc func(path string, sampleRate int) (*formats.Buffer, error)

// soundEntry is one loaded source: its decoded takes, a reference count
// and the per-source play instance counter. loading marks the window
// between Load starting and every path resolving; Play is rejected
// during it instead of racing a half-populated take list.
type soundEntry struct {
	id       int
	buffers  []*formats.Buffer
	refs     int
	loading  bool
	instance int
}

type queuedPlay struct {
	playID   PlayID
	sourceID int
	cfg      PlayConfig
}

// Options configures a Manager.
type Options struct {
	// Voices is the pool capacity. Defaults to 16.
	Voices int

	// Dataset enables HRTF spatialization for positioned plays. When
	// nil, positioned plays use equal-power panning.
	Dataset *hrir.Dataset

	// Decode overrides the asset decoder.
	Decode DecodeFunc

	// Seed fixes the take-selection RNG for reproducible runs.
	Seed int64
}

// Manager is the central voice allocator. It owns a fixed pool of
// Voices, a reference-counted buffer cache keyed by source id, and the
// preemption policy mapping play requests onto voices.
//
// The pool array is logically partitioned by position: preemptable
// voices occupy the front region [0, freeCount), priority voices are
// moved behind it on allocation and returned to the front on completion.
type Manager struct {
	ctx     *Context
	dataset *hrir.Dataset
	decode  DecodeFunc
	rng     *rand.Rand

	voices    []*Voice
	freeCount int
	cursor    int

	sounds map[int]*soundEntry

	sfxBus    *Bus
	musicBus  *Bus
	masterBus *Bus

	pending []queuedPlay
	events  []Event

	sfxMix    []float32
	musicMix  []float32
	directMix []float32

	framesRendered int64
}

// NewManager creates a manager bound to the given context.
func NewManager(ctx *Context, opts Options) *Manager {
	capacity := opts.Voices
	if capacity <= 0 {
		capacity = 16
	}
	decode := opts.Decode
	if decode == nil {
		decode = formats.DecodeFile
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	m := &Manager{
		ctx:       ctx,
		dataset:   opts.Dataset,
		decode:    decode,
		rng:       rand.New(rand.NewSource(seed)),
		voices:    make([]*Voice, capacity),
		freeCount: capacity,
		sounds:    make(map[int]*soundEntry),
		sfxBus:    newBus(ctx.SampleRate()),
		musicBus:  newBus(ctx.SampleRate()),
		masterBus: newBus(ctx.SampleRate()),
	}
	for i := range m.voices {
		m.voices[i] = newVoice(ctx)
	}
	ctx.subscribeUnlock(m.flushPending)
	return m
}

// BusFor exposes the gain stage for a channel group. Sfx and Music feed
// Master; Master feeds the output.
func (m *Manager) BusFor(channel Channel) *Bus {
	switch channel {
	case ChannelMusic:
		return m.musicBus
	case ChannelMaster:
		return m.masterBus
	default:
		return m.sfxBus
	}
}

// SetGlobalVolume ramps a channel group's volume. Ramps shorter than
// 5 ms are stretched; volume is clamped to [epsilon, 1].
func (m *Manager) SetGlobalVolume(channel Channel, volume float32, rampSeconds float64) {
	m.BusFor(channel).SetVolume(volume, rampSeconds)
}

// SetGlobalVolumeDB ramps a channel group's volume expressed in
// decibels; 0 dB is unity gain. The linear clamp of SetGlobalVolume
// still applies, so anything below -80 dB lands on the volume floor.
func (m *Manager) SetGlobalVolumeDB(channel Channel, db float32, rampSeconds float64) {
	m.SetGlobalVolume(channel, dsp.DBToLinear(db), rampSeconds)
}

// FreeVoices returns the number of voices that may be preempted.
func (m *Manager) FreeVoices() int {
	return m.freeCount
}

// Load decodes the given asset paths into the buffer cache under the
// source id. Multiple paths become alternate takes picked at random per
// play. Loading an already-loaded id only bumps its reference count.
func (m *Manager) Load(id int, paths ...string) error {
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if e, ok := m.sounds[id]; ok {
		if e.loading {
			return fmt.Errorf("%w: source %d", ErrStillLoading, id)
		}
		e.refs++
		return nil
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w: source %d has no paths", ErrInvalidID, id)
	}

	entry := &soundEntry{id: id, refs: 1, loading: true}
	m.sounds[id] = entry

	for _, path := range paths {
		buf, err := m.decode(path, m.ctx.SampleRate())
		if err != nil {
			// Isolated failure: the half-loaded entry must not linger.
			delete(m.sounds, id)
			return fmt.Errorf("player: load source %d: %w", id, err)
		}
		entry.buffers = append(entry.buffers, buf)
	}
	entry.loading = false
	return nil
}

// Remove drops one reference to a source; the decoded buffers are
// evicted when the last reference goes.
func (m *Manager) Remove(id int) error {
	entry, ok := m.sounds[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.sounds, id)
	}
	return nil
}

// RemoveAll evicts the whole buffer cache regardless of reference
// counts.
func (m *Manager) RemoveAll() {
	m.sounds = make(map[int]*soundEntry)
}

// Loaded reports whether a source id has fully decoded buffers.
func (m *Manager) Loaded(id int) bool {
	e, ok := m.sounds[id]
	return ok && !e.loading
}

// Play starts one playback instance of a loaded source and returns its
// play id, or InvalidPlayID when the source is unknown, still decoding,
// or the pool is saturated by priority playback. While the output is
// still locked the request is queued with a pre-generated play id and
// replayed on unlock.
func (m *Manager) Play(id int, cfg *PlayConfig) PlayID {
	entry, ok := m.sounds[id]
	if id < 0 || !ok || entry.loading {
		return InvalidPlayID
	}
	c := normalizeConfig(cfg)
	pid := m.nextPlayID(entry)

	if !m.ctx.Unlocked() {
		m.pending = append(m.pending, queuedPlay{playID: pid, sourceID: id, cfg: c})
		m.emit(pid, StateReady)
		return pid
	}
	if !m.start(pid, entry, c) {
		return InvalidPlayID
	}
	return pid
}

// AutoPlay is the deferred variant of Play: while the output is locked
// the request is queued and flushed FIFO on unlock with the config
// captured now, not at flush time.
func (m *Manager) AutoPlay(id int, cfg *PlayConfig) PlayID {
	return m.Play(id, cfg)
}

// PlayOneShot plays a source once at full volume on the Sfx channel.
//
// Deprecated: Use Play with a nil config.
func (m *Manager) PlayOneShot(id int) PlayID {
	return m.Play(id, nil)
}

// SourceIDFromPlayID recovers the source id a play id was generated
// from, or -1 for invalid ids.
func (m *Manager) SourceIDFromPlayID(pid PlayID) int {
	return pid.SourceID()
}

// SetPosition retargets a live playback's spatial stage with a
// listener-relative position in the host engine's Y-up/Z-forward frame.
func (m *Manager) SetPosition(pid PlayID, x, y, z float64) {
	if v := m.findVoice(pid); v != nil {
		v.setPosition(x, y, z)
	}
}

// Pause suspends a playback, capturing its offset for Resume.
func (m *Manager) Pause(pid PlayID) {
	if v := m.findVoice(pid); v != nil && v.pause() {
		m.emit(pid, StatePaused)
	}
}

// Resume continues a paused playback from its captured offset.
func (m *Manager) Resume(pid PlayID) {
	if v := m.findVoice(pid); v != nil && v.resume(m.dataset) {
		m.emit(pid, StatePlaying)
	}
}

// Stop halts a playback and frees its voice. Idempotent: stopping an
// unknown or already-stopped play id is a no-op. Queued requests with
// the id are cancelled.
func (m *Manager) Stop(pid PlayID) {
	for i, q := range m.pending {
		if q.playID == pid {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			m.emit(pid, StateStopped)
			return
		}
	}
	v := m.findVoice(pid)
	if v == nil || !v.stop() {
		return
	}
	m.emit(pid, StateStopped)
	m.release(v)
}

// PauseAll suspends every playing voice.
func (m *Manager) PauseAll() {
	for _, v := range m.voices {
		if v.State() == StatePlaying {
			pid := v.PlayID()
			if v.pause() {
				m.emit(pid, StatePaused)
			}
		}
	}
}

// ResumeAll continues every paused voice.
func (m *Manager) ResumeAll() {
	for _, v := range m.voices {
		if v.State() == StatePaused {
			pid := v.PlayID()
			if v.resume(m.dataset) {
				m.emit(pid, StatePlaying)
			}
		}
	}
}

// StopAll halts every live voice and cancels queued requests.
func (m *Manager) StopAll() {
	for _, q := range m.pending {
		m.emit(q.playID, StateStopped)
	}
	m.pending = m.pending[:0]
	// Snapshot: release reorders the pool array while we iterate.
	live := make([]*Voice, 0, len(m.voices))
	for _, v := range m.voices {
		if v.State() == StatePlaying || v.State() == StatePaused {
			live = append(live, v)
		}
	}
	for _, v := range live {
		pid := v.PlayID()
		if v.stop() {
			m.emit(pid, StateStopped)
		}
		m.release(v)
	}
}

// Render mixes one block of interleaved stereo into out, drives the
// channel buses sample-accurately, and then handles completions: this is
// the per-tick drain point, so end-of-buffer pool returns never nest
// inside another public call.
func (m *Manager) Render(out []float32) {
	frames := len(out) / 2
	if frames == 0 {
		return
	}
	m.ensureScratch(frames)

	if !m.ctx.Unlocked() {
		for i := range out[:frames*2] {
			out[i] = 0
		}
		return
	}

	var completed []*Voice
	for _, v := range m.voices {
		if v.State() != StatePlaying {
			continue
		}
		if v.render(m.mixFor(v.cfg.Channel), frames) {
			completed = append(completed, v)
		}
	}

	for i := 0; i < frames; i++ {
		sg := m.sfxBus.gain.Next()
		mg := m.musicBus.gain.Next()
		master := m.masterBus.gain.Next()
		l := (m.sfxMix[i*2]*sg + m.musicMix[i*2]*mg + m.directMix[i*2]) * master
		r := (m.sfxMix[i*2+1]*sg + m.musicMix[i*2+1]*mg + m.directMix[i*2+1]) * master
		out[i*2] = l
		out[i*2+1] = r
	}

	for _, v := range completed {
		m.emit(v.PlayID(), StateStopped)
		m.release(v)
	}
	m.framesRendered += int64(frames)
}

// FramesRendered returns the engine clock in frames.
func (m *Manager) FramesRendered() int64 {
	return m.framesRendered
}

// DrainEvents returns and clears the accumulated state-change
// notifications. Hosts call it once per tick.
func (m *Manager) DrainEvents() []Event {
	ev := m.events
	m.events = nil
	return ev
}

func (m *Manager) emit(pid PlayID, state State) {
	m.events = append(m.events, Event{ID: pid, State: state})
}

func (m *Manager) nextPlayID(entry *soundEntry) PlayID {
	pid := PlayID(entry.id<<16 | entry.instance)
	entry.instance = (entry.instance + 1) % instanceLimit
	return pid
}

func (m *Manager) start(pid PlayID, entry *soundEntry, cfg PlayConfig) bool {
	v, err := m.allocate(cfg.Priority)
	if err != nil {
		return false
	}
	buf := entry.buffers[0]
	if len(entry.buffers) > 1 {
		buf = entry.buffers[m.rng.Intn(len(entry.buffers))]
	}
	if err := v.play(buf, pid, cfg, m.dataset); err != nil {
		m.release(v)
		return false
	}
	m.emit(pid, StatePlaying)
	return true
}

// allocate picks the next voice from the free region round-robin,
// silently preempting whatever plays there. Priority allocations move
// the voice behind the free region so the cursor can never reach it.
func (m *Manager) allocate(priority bool) (*Voice, error) {
	if m.freeCount == 0 {
		return nil, ErrPoolExhausted
	}
	idx := m.cursor % m.freeCount
	m.cursor++

	v := m.voices[idx]
	if v.State() == StatePlaying || v.State() == StatePaused {
		pid := v.PlayID()
		if v.stop() {
			m.emit(pid, StateStopped)
		}
	}
	v.reclaim()

	if priority {
		copy(m.voices[idx:], m.voices[idx+1:])
		m.voices[len(m.voices)-1] = v
		m.freeCount--
	}
	return v, nil
}

// release returns a voice to circulation: priority voices move back to
// the front of the array, growing the free region.
func (m *Manager) release(v *Voice) {
	if v.priority {
		m.returnPriority(v)
	}
	v.reclaim()
}

// returnPriority searches the priority region from the back of the array
// and moves the voice to the front, restoring round-robin eligibility.
func (m *Manager) returnPriority(v *Voice) {
	for i := len(m.voices) - 1; i >= m.freeCount; i-- {
		if m.voices[i] != v {
			continue
		}
		copy(m.voices[1:i+1], m.voices[:i])
		m.voices[0] = v
		m.freeCount++
		return
	}
}

func (m *Manager) findVoice(pid PlayID) *Voice {
	if pid < 0 {
		return nil
	}
	for _, v := range m.voices {
		if v.PlayID() == pid {
			return v
		}
	}
	return nil
}

// flushPending replays queued requests in FIFO order once the output
// unlocks, each with the config captured at request time. Requests that
// can no longer start report Stopped so callers holding the provisional
// play id can clean up.
func (m *Manager) flushPending() {
	pending := m.pending
	m.pending = nil
	for _, q := range pending {
		entry, ok := m.sounds[q.sourceID]
		if !ok || entry.loading || !m.start(q.playID, entry, q.cfg) {
			m.emit(q.playID, StateStopped)
		}
	}
}

func (m *Manager) ensureScratch(frames int) {
	if len(m.sfxMix) < frames*2 {
		m.sfxMix = make([]float32, frames*2)
		m.musicMix = make([]float32, frames*2)
		m.directMix = make([]float32, frames*2)
	}
	zero(m.sfxMix[:frames*2])
	zero(m.musicMix[:frames*2])
	zero(m.directMix[:frames*2])
}

func (m *Manager) mixFor(channel Channel) []float32 {
	switch channel {
	case ChannelMusic:
		return m.musicMix
	case ChannelMaster:
		return m.directMix
	default:
		return m.sfxMix
	}
}

func zero(buf []float32) {
	for i := range buf {
		buf[i] = 0
	}
}
