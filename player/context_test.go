package player

import "testing"

func TestContextDefaults(t *testing.T) {
	ctx := NewContext(48000, 0)
	if ctx.SampleRate() != 48000 {
		t.Fatalf("sample rate = %d", ctx.SampleRate())
	}
	if ctx.BlockSize() != 128 {
		t.Fatalf("default block size = %d, want 128", ctx.BlockSize())
	}
	if ctx.Unlocked() {
		t.Fatalf("context must start locked")
	}
}

func TestContextResumeNotifiesOnce(t *testing.T) {
	ctx := NewContext(48000, 128)
	calls := 0
	ctx.subscribeUnlock(func() { calls++ })

	ctx.Resume()
	ctx.Resume()
	if calls != 1 {
		t.Fatalf("unlock callback ran %d times, want 1", calls)
	}

	// Subscribing after unlock fires immediately.
	late := 0
	ctx.subscribeUnlock(func() { late++ })
	if late != 1 {
		t.Fatalf("late subscriber ran %d times, want 1", late)
	}
}
