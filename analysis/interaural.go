// Package analysis provides objective measurements over stereo impulse
// responses: interaural time and level differences, the two cues that
// make a binaural response sound directional.
package analysis

import "math"

// Interaural describes the time and level relationship between the two
// ears of a stereo impulse response.
type Interaural struct {
	SampleRate int `json:"sample_rate"`

	// ITDSamples is the cross-correlation lag between the ears;
	// positive when the left ear leads.
	ITDSamples int     `json:"itd_samples"`
	ITDSeconds float64 `json:"itd_seconds"`

	// ILDDB is the level difference in dB; positive when the left ear
	// is louder.
	ILDDB float64 `json:"ild_db"`

	LeftRMS  float64 `json:"left_rms"`
	RightRMS float64 `json:"right_rms"`
}

// CompareEars measures interaural cues of a stereo impulse response.
// The lag search is bounded to ±1 ms, beyond any plausible head delay.
func CompareEars(left, right []float32, sampleRate int) Interaural {
	m := Interaural{SampleRate: sampleRate}
	if sampleRate <= 0 || len(left) == 0 || len(right) == 0 {
		return m
	}

	l := toFloat64(left)
	r := toFloat64(right)

	maxLag := sampleRate / 1000
	if maxLag < 1 {
		maxLag = 1
	}
	if maxLag > len(l)-1 {
		maxLag = len(l) - 1
	}
	m.ITDSamples = estimateLag(l, r, maxLag)
	m.ITDSeconds = float64(m.ITDSamples) / float64(sampleRate)

	m.LeftRMS = rms(l)
	m.RightRMS = rms(r)
	if m.LeftRMS > 1e-12 && m.RightRMS > 1e-12 {
		m.ILDDB = 20 * math.Log10(m.LeftRMS/m.RightRMS)
	}
	return m
}

// estimateLag returns the lag maximizing cross-correlation; positive
// when a leads b.
func estimateLag(a, b []float64, maxLag int) int {
	bestLag := 0
	best := math.Inf(-1)
	for lag := -maxLag; lag <= maxLag; lag++ {
		s := dotAtLag(a, b, lag)
		if s > best {
			best = s
			bestLag = lag
		}
	}
	return bestLag
}

func dotAtLag(a, b []float64, lag int) float64 {
	var ai, bi int
	if lag >= 0 {
		bi = lag
	} else {
		ai = -lag
	}
	n := len(a) - ai
	if len(b)-bi < n {
		n = len(b) - bi
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[ai+i] * b[bi+i]
	}
	return sum
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
