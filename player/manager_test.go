package player

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-spatial/formats"
	"github.com/cwbudde/algo-spatial/hrir"
	"github.com/cwbudde/algo-spatial/internal/audiotest"
	"github.com/cwbudde/algo-spatial/spatial"
)

// constDecode ignores the path and returns frames of a constant value,
// so rendered samples reveal which buffer and gain are in effect.
func constDecode(frames int, value float32) DecodeFunc {
	return func(path string, sampleRate int) (*formats.Buffer, error) {
		data := make([]float32, frames)
		for i := range data {
			data[i] = value
		}
		return &formats.Buffer{Data: data, SampleRate: sampleRate}, nil
	}
}

// pathDecode maps each path to a distinct constant amplitude.
func pathDecode(frames int, values map[string]float32) DecodeFunc {
	return func(path string, sampleRate int) (*formats.Buffer, error) {
		v, ok := values[path]
		if !ok {
			return nil, errors.New("unknown path " + path)
		}
		data := make([]float32, frames)
		for i := range data {
			data[i] = v
		}
		return &formats.Buffer{Data: data, SampleRate: sampleRate}, nil
	}
}

func newTestManager(voices int, decode DecodeFunc) (*Context, *Manager) {
	ctx := NewContext(1000, 100)
	m := NewManager(ctx, Options{Voices: voices, Decode: decode, Seed: 1})
	return ctx, m
}

func renderFrames(m *Manager, frames int) []float32 {
	out := make([]float32, frames*2)
	m.Render(out)
	return out
}

func statesFor(events []Event, pid PlayID) []State {
	var out []State
	for _, e := range events {
		if e.ID == pid {
			out = append(out, e.State)
		}
	}
	return out
}

func TestPlayIDEncoding(t *testing.T) {
	ctx, m := newTestManager(4, constDecode(1000, 1))
	ctx.Resume()
	if err := m.Load(7, "click.wav"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	pid := m.Play(7, nil)
	if pid == InvalidPlayID {
		t.Fatalf("Play returned InvalidPlayID")
	}
	if pid != PlayID(7<<16) {
		t.Fatalf("first play id = %d, want %d", pid, 7<<16)
	}
	if got := m.SourceIDFromPlayID(pid); got != 7 {
		t.Fatalf("SourceIDFromPlayID = %d, want 7", got)
	}

	pid2 := m.Play(7, nil)
	if pid2 != PlayID(7<<16|1) {
		t.Fatalf("second play id = %d, want %d", pid2, 7<<16|1)
	}

	if got := InvalidPlayID.SourceID(); got != -1 {
		t.Fatalf("InvalidPlayID.SourceID() = %d, want -1", got)
	}
}

func TestPlayIDInstanceWraps(t *testing.T) {
	_, m := newTestManager(1, constDecode(10, 1))
	entry := &soundEntry{id: 3, instance: instanceLimit - 1}

	pid := m.nextPlayID(entry)
	if pid != PlayID(3<<16|(instanceLimit-1)) {
		t.Fatalf("pre-wrap id = %d", pid)
	}
	if entry.instance != 0 {
		t.Fatalf("instance should wrap to 0, got %d", entry.instance)
	}
}

func TestPlayUnknownOrLoadingSource(t *testing.T) {
	ctx, m := newTestManager(4, constDecode(1000, 1))
	ctx.Resume()

	if pid := m.Play(42, nil); pid != InvalidPlayID {
		t.Fatalf("unknown source should fail, got %d", pid)
	}
	if pid := m.Play(-1, nil); pid != InvalidPlayID {
		t.Fatalf("negative source should fail, got %d", pid)
	}

	m.sounds[5] = &soundEntry{id: 5, refs: 1, loading: true}
	if pid := m.Play(5, nil); pid != InvalidPlayID {
		t.Fatalf("loading source should fail, got %d", pid)
	}
	if err := m.Load(5, "x"); !errors.Is(err, ErrStillLoading) {
		t.Fatalf("Load during loading = %v, want ErrStillLoading", err)
	}
}

func TestLoadRefcounting(t *testing.T) {
	_, m := newTestManager(4, constDecode(1000, 1))

	if err := m.Load(1, "a.wav"); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if err := m.Load(1, "a.wav"); err != nil {
		t.Fatalf("second Load error: %v", err)
	}
	if !m.Loaded(1) {
		t.Fatalf("source 1 should be loaded")
	}

	if err := m.Remove(1); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if !m.Loaded(1) {
		t.Fatalf("source 1 should survive first Remove")
	}
	if err := m.Remove(1); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if m.Loaded(1) {
		t.Fatalf("source 1 should be evicted")
	}
	if err := m.Remove(1); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("Remove of evicted source = %v, want ErrInvalidID", err)
	}

	if err := m.Load(-3, "a.wav"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("negative id Load = %v, want ErrInvalidID", err)
	}
}

func TestLoadFailureLeavesNoEntry(t *testing.T) {
	decode := pathDecode(100, map[string]float32{"good": 1})
	_, m := newTestManager(4, decode)

	if err := m.Load(9, "good", "bad"); err == nil {
		t.Fatalf("expected Load failure")
	}
	if m.Loaded(9) {
		t.Fatalf("failed Load must not leave an entry")
	}
	if err := m.Load(9, "good"); err != nil {
		t.Fatalf("retry Load error: %v", err)
	}
}

func TestOneShotLifecycle(t *testing.T) {
	ctx, m := newTestManager(4, constDecode(250, 0.5))
	ctx.Resume()
	if err := m.Load(7, "click.wav"); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	freeBefore := m.FreeVoices()

	pid := m.Play(7, &PlayConfig{Volume: 0.8, Channel: ChannelSfx})
	if pid == InvalidPlayID {
		t.Fatalf("Play failed")
	}
	if m.FreeVoices() != freeBefore {
		t.Fatalf("non-priority play must not shrink the free region")
	}

	out := renderFrames(m, 100)
	want := 0.5 * 0.8
	if math.Abs(float64(out[0])-want) > 1e-6 || math.Abs(float64(out[1])-want) > 1e-6 {
		t.Fatalf("first frame = (%f,%f), want (%f,%f)", out[0], out[1], want, want)
	}

	// 250 frames of audio: two more blocks drain it, one more detects it.
	var stopped bool
	for i := 0; i < 5 && !stopped; i++ {
		renderFrames(m, 100)
		for _, e := range m.DrainEvents() {
			if e.ID == pid && e.State == StateStopped {
				stopped = true
			}
		}
	}
	if !stopped {
		t.Fatalf("one-shot never reported Stopped")
	}
	if m.FreeVoices() != freeBefore {
		t.Fatalf("voice not returned after completion")
	}
	if v := m.findVoice(pid); v != nil {
		t.Fatalf("play id still bound after completion")
	}
}

func TestRenderSilentWhileLocked(t *testing.T) {
	_, m := newTestManager(4, constDecode(1000, 1))
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	pid := m.Play(1, nil)
	if pid == InvalidPlayID {
		t.Fatalf("locked Play should queue, not fail")
	}
	if got := statesFor(m.DrainEvents(), pid); len(got) != 1 || got[0] != StateReady {
		t.Fatalf("queued play events = %v, want [ready]", got)
	}

	out := renderFrames(m, 100)
	for i, s := range out {
		if s != 0 {
			t.Fatalf("locked output sample %d = %f, want 0", i, s)
		}
	}
	if m.FramesRendered() != 0 {
		t.Fatalf("locked render must not advance the frame clock")
	}
}

func TestUnlockFlushesQueueInOrder(t *testing.T) {
	ctx, m := newTestManager(4, constDecode(1000, 1))
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	pid1 := m.AutoPlay(1, &PlayConfig{Volume: 0.2})
	pid2 := m.AutoPlay(1, &PlayConfig{Volume: 0.9})
	m.DrainEvents()

	ctx.Resume()
	events := m.DrainEvents()
	if len(events) != 2 || events[0].ID != pid1 || events[1].ID != pid2 {
		t.Fatalf("flush order wrong: %v", events)
	}
	for _, e := range events {
		if e.State != StatePlaying {
			t.Fatalf("flushed event state = %v, want playing", e.State)
		}
	}

	// The captured configs survive the queue: two voices at 0.2 and 0.9.
	v1 := m.findVoice(pid1)
	v2 := m.findVoice(pid2)
	if v1 == nil || v2 == nil {
		t.Fatalf("queued plays did not start")
	}
	if v1.cfg.Volume != 0.2 || v2.cfg.Volume != 0.9 {
		t.Fatalf("captured volumes = %f, %f", v1.cfg.Volume, v2.cfg.Volume)
	}
}

func TestStopCancelsQueuedPlay(t *testing.T) {
	ctx, m := newTestManager(4, constDecode(1000, 1))
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	pid := m.AutoPlay(1, nil)
	m.DrainEvents()
	m.Stop(pid)
	if got := statesFor(m.DrainEvents(), pid); len(got) != 1 || got[0] != StateStopped {
		t.Fatalf("cancel events = %v, want [stopped]", got)
	}

	ctx.Resume()
	if got := statesFor(m.DrainEvents(), pid); len(got) != 0 {
		t.Fatalf("cancelled play must not start on unlock, got %v", got)
	}
}

func TestRoundRobinPreemption(t *testing.T) {
	ctx, m := newTestManager(2, constDecode(100000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	loop := &PlayConfig{Volume: 1, Loop: true}
	pid1 := m.Play(1, loop)
	pid2 := m.Play(1, loop)
	m.DrainEvents()

	pid3 := m.Play(1, loop)
	if pid3 == InvalidPlayID {
		t.Fatalf("third play should preempt, not fail")
	}
	if got := statesFor(m.DrainEvents(), pid1); len(got) != 1 || got[0] != StateStopped {
		t.Fatalf("oldest voice should be preempted, events %v", got)
	}
	if m.findVoice(pid1) != nil {
		t.Fatalf("preempted play id still bound")
	}
	if m.findVoice(pid2) == nil || m.findVoice(pid3) == nil {
		t.Fatalf("surviving plays lost their voices")
	}
}

func TestPriorityNeverPreempted(t *testing.T) {
	ctx, m := newTestManager(2, constDecode(100000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	prio := &PlayConfig{Volume: 1, Loop: true, Priority: true}
	pidA := m.Play(1, prio)
	pidB := m.Play(1, prio)
	if pidA == InvalidPlayID || pidB == InvalidPlayID {
		t.Fatalf("priority plays failed")
	}
	if m.FreeVoices() != 0 {
		t.Fatalf("free region = %d, want 0", m.FreeVoices())
	}

	if pid := m.Play(1, nil); pid != InvalidPlayID {
		t.Fatalf("saturated pool should reject, got %d", pid)
	}
	if m.findVoice(pidA) == nil || m.findVoice(pidB) == nil {
		t.Fatalf("priority voices must survive the rejected request")
	}

	m.Stop(pidA)
	if m.FreeVoices() != 1 {
		t.Fatalf("stopped priority voice should return, free = %d", m.FreeVoices())
	}
	if pid := m.Play(1, nil); pid == InvalidPlayID {
		t.Fatalf("play should succeed after a priority voice returns")
	}
}

func TestPauseResumeKeepsOffset(t *testing.T) {
	ctx, m := newTestManager(2, constDecode(1000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	pid := m.Play(1, nil)
	renderFrames(m, 100)
	renderFrames(m, 100)

	m.Pause(pid)
	v := m.findVoice(pid)
	if v == nil || v.State() != StatePaused {
		t.Fatalf("voice not paused")
	}
	if math.Abs(v.cfg.PlayOffset-0.2) > 1e-9 {
		t.Fatalf("captured offset = %f, want 0.2", v.cfg.PlayOffset)
	}

	// Paused voices contribute silence.
	out := renderFrames(m, 100)
	if out[0] != 0 {
		t.Fatalf("paused voice leaked audio: %f", out[0])
	}

	m.Resume(pid)
	if v.State() != StatePlaying {
		t.Fatalf("voice not resumed")
	}
	if v.cursor != 200 {
		t.Fatalf("resume cursor = %d, want 200", v.cursor)
	}

	if got := statesFor(m.DrainEvents(), pid); len(got) != 3 ||
		got[0] != StatePlaying || got[1] != StatePaused || got[2] != StatePlaying {
		t.Fatalf("lifecycle events = %v", got)
	}
}

func TestPlayOffsetStartsMidBuffer(t *testing.T) {
	ctx, m := newTestManager(2, constDecode(1000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	pid := m.Play(1, &PlayConfig{Volume: 1, PlayOffset: 0.5})
	v := m.findVoice(pid)
	if v == nil || v.cursor != 500 {
		t.Fatalf("offset start cursor wrong")
	}
}

func TestStopAllReleasesEverything(t *testing.T) {
	ctx, m := newTestManager(4, constDecode(100000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	loop := &PlayConfig{Volume: 1, Loop: true}
	pids := []PlayID{
		m.Play(1, loop),
		m.Play(1, &PlayConfig{Volume: 1, Loop: true, Priority: true}),
		m.Play(1, loop),
	}
	m.DrainEvents()

	m.StopAll()
	events := m.DrainEvents()
	for _, pid := range pids {
		if got := statesFor(events, pid); len(got) != 1 || got[0] != StateStopped {
			t.Fatalf("play %d events = %v, want [stopped]", pid, got)
		}
		if m.findVoice(pid) != nil {
			t.Fatalf("play %d still bound after StopAll", pid)
		}
	}
	if m.FreeVoices() != 4 {
		t.Fatalf("free region = %d, want 4", m.FreeVoices())
	}
}

func TestBusVolumeRampIsGradual(t *testing.T) {
	ctx, m := newTestManager(1, constDecode(100000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	m.Play(1, &PlayConfig{Volume: 1, Loop: true})

	// 0.1 s ramp at 1 kHz is 100 samples.
	m.SetGlobalVolume(ChannelSfx, 0.5, 0.1)
	out := renderFrames(m, 200)

	if out[0] < 0.9 {
		t.Fatalf("ramp start = %f, want near 1", out[0])
	}
	for i := 1; i < 200; i++ {
		if out[i*2] > out[(i-1)*2]+1e-6 {
			t.Fatalf("ramp not monotonic at frame %d", i)
		}
	}
	if math.Abs(float64(out[398])-0.5) > 1e-3 {
		t.Fatalf("ramp end = %f, want 0.5", out[398])
	}
}

func TestBusVolumeClampsAndStretches(t *testing.T) {
	_, m := newTestManager(1, constDecode(10, 1))

	bus := m.BusFor(ChannelMaster)
	bus.SetVolume(0, 0)
	// An instant request still ramps over the 5 ms floor.
	if v := bus.Volume(); v != 1 {
		t.Fatalf("volume before any render = %f, want 1", v)
	}
	for i := 0; i < 10; i++ {
		bus.gain.Next()
	}
	if v := bus.Volume(); math.Abs(float64(v)-volumeEpsilon) > 1e-6 {
		t.Fatalf("zero request should land at epsilon, got %g", v)
	}

	bus.SetVolume(4, 0)
	for i := 0; i < 10; i++ {
		bus.gain.Next()
	}
	if v := bus.Volume(); v != 1 {
		t.Fatalf("overdriven volume should clamp to 1, got %f", v)
	}
}

func TestMusicChannelUsesOwnBus(t *testing.T) {
	ctx, m := newTestManager(2, constDecode(100000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	m.Play(1, &PlayConfig{Volume: 1, Loop: true, Channel: ChannelMusic})

	m.SetGlobalVolume(ChannelSfx, volumeEpsilon, 0.005)
	out := renderFrames(m, 100)
	if out[198] < 0.9 {
		t.Fatalf("music should ignore the sfx bus, got %f", out[198])
	}

	m.SetGlobalVolume(ChannelMusic, volumeEpsilon, 0.005)
	out = renderFrames(m, 100)
	if out[198] > 0.01 {
		t.Fatalf("music bus should duck its channel, got %f", out[198])
	}
}

func TestRandomTakeSelection(t *testing.T) {
	decode := pathDecode(100000, map[string]float32{"a": 0.25, "b": 0.75})
	ctx, m := newTestManager(1, decode)
	ctx.Resume()
	if err := m.Load(1, "a", "b"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	seen := map[float32]bool{}
	for i := 0; i < 20; i++ {
		if pid := m.Play(1, &PlayConfig{Volume: 1, Loop: true}); pid == InvalidPlayID {
			t.Fatalf("Play %d failed", i)
		}
		out := renderFrames(m, 1)
		seen[out[0]] = true
	}
	if !seen[0.25] || !seen[0.75] {
		t.Fatalf("takes not mixed: %v", seen)
	}
}

func TestEqualPowerFallbackFollowsPosition(t *testing.T) {
	ctx := NewContext(48000, 128)
	m := NewManager(ctx, Options{Voices: 2, Decode: constDecode(1 << 20, 1), Seed: 1})
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	pid := m.Play(1, &PlayConfig{Volume: 1, Loop: true, Spatial: SpatialAt(1, 0, 0)})
	renderFrames(m, 128)
	out := renderFrames(m, 128)
	l, r := out[254], out[255]
	if math.Abs(float64(l)) > 1e-3 || math.Abs(float64(r)-1) > 1e-3 {
		t.Fatalf("source at the right = (%f,%f), want hard right", l, r)
	}

	m.SetPosition(pid, -1, 0, 0)
	renderFrames(m, 128)
	out = renderFrames(m, 128)
	l, r = out[254], out[255]
	if math.Abs(float64(l)-1) > 1e-3 || math.Abs(float64(r)) > 1e-3 {
		t.Fatalf("source at the left = (%f,%f), want hard left", l, r)
	}
}

func TestGlobalVolumeDBMapsToLinearGain(t *testing.T) {
	ctx, m := newTestManager(1, constDecode(100000, 1))
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	m.Play(1, &PlayConfig{Volume: 1, Loop: true})

	m.SetGlobalVolumeDB(ChannelSfx, -6, 0)
	out := renderFrames(m, 50)

	// The minimum 5 ms ramp has settled well before frame 20.
	got := float64(out[40])
	want := 0.5012
	if math.Abs(got-want)/want > 0.02 {
		t.Fatalf("-6 dB bus gain = %f, want ~%f", got, want)
	}
}

func TestHRTFSpatializedPlayback(t *testing.T) {
	points, samples := audiotest.Grid(90, -40, 40, 40, 8)
	dataset, err := hrir.NewDataset(points, samples, 8)
	if err != nil {
		t.Fatalf("NewDataset error: %v", err)
	}

	ctx := NewContext(48000, 128)
	m := NewManager(ctx, Options{Voices: 2, Dataset: dataset, Decode: constDecode(1 << 20, 1), Seed: 1})
	ctx.Resume()
	if err := m.Load(1, "a"); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	cfg := &PlayConfig{
		Volume:  1,
		Loop:    true,
		Spatial: SpatialWith(1, 0, 0.5, spatial.Options{CrossoverHz: 20}),
	}
	pid := m.Play(1, cfg)
	if pid == InvalidPlayID {
		t.Fatalf("spatial Play failed")
	}

	var energy float64
	for i := 0; i < 10; i++ {
		out := renderFrames(m, 128)
		for j, s := range out {
			if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
				t.Fatalf("non-finite sample at block %d index %d", i, j)
			}
			energy += float64(s) * float64(s)
		}
		m.SetPosition(pid, math.Cos(float64(i)/5), 0, math.Sin(float64(i)/5))
	}
	if energy == 0 {
		t.Fatalf("spatialized playback produced silence")
	}
}
