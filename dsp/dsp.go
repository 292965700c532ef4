package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// Biquad implements a second-order IIR filter (no heap allocations in Process)
type Biquad struct {
	// Coefficients
	b0, b1, b2 float32
	a1, a2     float32

	// State (previous samples)
	x1, x2 float32 // input history
	y1, y2 float32 // output history
}

// NewBiquad creates a new biquad filter with the given coefficients
func NewBiquad(b0, b1, b2, a1, a2 float32) *Biquad {
	return &Biquad{
		b0: b0,
		b1: b1,
		b2: b2,
		a1: a1,
		a2: a2,
	}
}

// Process processes one sample through the biquad filter
func (b *Biquad) Process(input float32) float32 {
	// Direct Form I implementation
	output := b.b0*input + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2

	// Update state
	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// NewLowpass creates a simple lowpass biquad filter
func NewLowpass(cutoff, sampleRate, q float32) *Biquad {
	b0, b1, b2, a1, a2 := rbjCoefficients(cutoff, sampleRate, q, false)
	return NewBiquad(b0, b1, b2, a1, a2)
}

// NewHighpass creates a simple highpass biquad filter
func NewHighpass(cutoff, sampleRate, q float32) *Biquad {
	b0, b1, b2, a1, a2 := rbjCoefficients(cutoff, sampleRate, q, true)
	return NewBiquad(b0, b1, b2, a1, a2)
}

func rbjCoefficients(cutoff, sampleRate, q float32, highpass bool) (float32, float32, float32, float32, float32) {
	w0 := 2.0 * math.Pi * float64(cutoff) / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * float64(q))
	cosw0 := math.Cos(w0)

	var b0, b1, b2 float64
	if highpass {
		b0 = (1.0 + cosw0) / 2.0
		b1 = -(1.0 + cosw0)
		b2 = (1.0 + cosw0) / 2.0
	} else {
		b0 = (1.0 - cosw0) / 2.0
		b1 = 1.0 - cosw0
		b2 = (1.0 - cosw0) / 2.0
	}
	a0 := 1.0 + alpha
	a1 := -2.0 * cosw0
	a2 := 1.0 - alpha

	// Normalize by a0
	return float32(b0 / a0),
		float32(b1 / a0),
		float32(b2 / a0),
		float32(a1 / a0),
		float32(a2 / a0)
}

// DelayLine implements a circular buffer for delay
type DelayLine struct {
	buffer   []float32
	writePos int
	size     int
}

// NewDelayLine creates a new delay line with the given size
func NewDelayLine(size int) *DelayLine {
	return &DelayLine{
		buffer: make([]float32, size),
		size:   size,
	}
}

// Write writes a sample to the delay line
func (d *DelayLine) Write(sample float32) {
	d.buffer[d.writePos] = sample
	d.writePos = (d.writePos + 1) % d.size
}

// Read returns the sample written delay writes ago; delay 0 is the most
// recent Write.
func (d *DelayLine) Read(delay int) float32 {
	readPos := (d.writePos - 1 - delay + d.size) % d.size
	return d.buffer[readPos]
}

// Reset clears the delay line
func (d *DelayLine) Reset() {
	for i := range d.buffer {
		d.buffer[i] = 0
	}
	d.writePos = 0
}

// GainRamp is a sample-accurate linear gain ramp. Between SetTarget calls the
// gain advances by a fixed per-sample step until the target is reached.
type GainRamp struct {
	current   float32
	target    float32
	step      float32
	remaining int
}

// NewGainRamp creates a ramp resting at the given initial gain.
func NewGainRamp(initial float32) *GainRamp {
	return &GainRamp{current: initial, target: initial}
}

// SetTarget schedules a linear ramp to target over rampSamples samples.
// A non-positive rampSamples jumps immediately.
func (g *GainRamp) SetTarget(target float32, rampSamples int) {
	g.target = target
	if rampSamples <= 0 {
		g.current = target
		g.step = 0
		g.remaining = 0
		return
	}
	g.step = (target - g.current) / float32(rampSamples)
	g.remaining = rampSamples
}

// Next advances the ramp by one sample and returns the gain to apply.
// The final ramp sample lands exactly on the target; accumulated float
// error never leaves the ramp short of it.
func (g *GainRamp) Next() float32 {
	if g.remaining == 0 {
		return g.current
	}
	g.current += g.step
	g.remaining--
	if g.remaining == 0 {
		g.current = g.target
		g.step = 0
	}
	return g.current
}

// Value returns the momentary gain without advancing.
func (g *GainRamp) Value() float32 {
	return g.current
}

// Ramping reports whether the ramp is still moving toward its target.
func (g *GainRamp) Ramping() bool {
	return g.remaining > 0
}

// DBToLinear converts a decibel value to a linear gain factor.
func DBToLinear(db float32) float32 {
	// 10^(db/20) = e^(db * ln(10)/20)
	const ln10Over20 = 0.1151292546497023
	return approx.FastExp(db * ln10Over20)
}

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float32) float32 {
	const epsilon = 1e-30
	if x > -epsilon && x < epsilon {
		return 0.0
	}
	return x
}
