package analysis

import (
	"math"
	"testing"
)

func impulseAt(n, pos int, amp float32) []float32 {
	out := make([]float32, n)
	out[pos] = amp
	return out
}

func TestCompareEarsDetectsLeadingLeft(t *testing.T) {
	const sampleRate = 48000
	left := impulseAt(256, 10, 1)
	right := impulseAt(256, 30, 1)

	m := CompareEars(left, right, sampleRate)
	if m.ITDSamples != 20 {
		t.Fatalf("ITD = %d samples, want 20", m.ITDSamples)
	}
	want := 20.0 / sampleRate
	if math.Abs(m.ITDSeconds-want) > 1e-12 {
		t.Fatalf("ITD seconds = %g, want %g", m.ITDSeconds, want)
	}
}

func TestCompareEarsDetectsLeadingRight(t *testing.T) {
	left := impulseAt(256, 40, 1)
	right := impulseAt(256, 25, 1)

	m := CompareEars(left, right, 48000)
	if m.ITDSamples != -15 {
		t.Fatalf("ITD = %d samples, want -15", m.ITDSamples)
	}
}

func TestCompareEarsLevelDifference(t *testing.T) {
	left := impulseAt(128, 5, 1)
	right := impulseAt(128, 5, 0.5)

	m := CompareEars(left, right, 48000)
	if math.Abs(m.ILDDB-6.0206) > 0.01 {
		t.Fatalf("ILD = %f dB, want ~6.02", m.ILDDB)
	}
	if m.LeftRMS <= m.RightRMS {
		t.Fatalf("left RMS %f should exceed right %f", m.LeftRMS, m.RightRMS)
	}
}

func TestCompareEarsSymmetricInput(t *testing.T) {
	same := impulseAt(128, 12, 0.8)
	m := CompareEars(same, same, 48000)
	if m.ITDSamples != 0 {
		t.Fatalf("identical ears ITD = %d, want 0", m.ITDSamples)
	}
	if math.Abs(m.ILDDB) > 1e-9 {
		t.Fatalf("identical ears ILD = %f, want 0", m.ILDDB)
	}
}

func TestCompareEarsLagSearchIsBounded(t *testing.T) {
	// A 2 ms offset exceeds the 1 ms search window; the estimate must
	// stay inside the bound rather than chase it.
	const sampleRate = 48000
	left := impulseAt(512, 10, 1)
	right := impulseAt(512, 10+96, 1)

	m := CompareEars(left, right, sampleRate)
	if m.ITDSamples < -48 || m.ITDSamples > 48 {
		t.Fatalf("ITD = %d outside +-48 sample bound", m.ITDSamples)
	}
}

func TestCompareEarsDegenerateInput(t *testing.T) {
	m := CompareEars(nil, nil, 48000)
	if m.ITDSamples != 0 || m.ILDDB != 0 {
		t.Fatalf("empty input should measure zero, got %+v", m)
	}
	m = CompareEars(impulseAt(8, 0, 1), impulseAt(8, 0, 1), 0)
	if m.SampleRate != 0 {
		t.Fatalf("invalid rate should pass through zero value")
	}
}
