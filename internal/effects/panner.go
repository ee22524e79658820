package effects

import "math"

// Panner positions a stereo signal between the left (-1) and right (+1)
// speakers. Values outside [-1, 1] are accepted and clamped when rendered.
type Panner struct {
	pan float64
}

func NewPanner(pan float64) *Panner {
	return &Panner{pan: pan}
}

// SetPan stores the requested position unchanged.
func (p *Panner) SetPan(pan float64) { p.pan = pan }

// Pan returns the last requested position.
func (p *Panner) Pan() float64 { return p.pan }

func (p *Panner) Process(l, r float32) (float32, float32) {
	return StereoPan(l, r, p.pan)
}

func (p *Panner) Reset() {}

// StereoPan applies the equal-power stereo panning law: the side being
// panned away from is folded into the opposite channel.
func StereoPan(l, r float32, pan float64) (float32, float32) {
	if math.IsNaN(pan) {
		pan = 0
	}
	pan = math.Max(-1, math.Min(1, pan))
	if pan <= 0 {
		x := (pan + 1) * math.Pi / 2
		gainL := float32(math.Cos(x))
		gainR := float32(math.Sin(x))
		return l + r*gainL, r * gainR
	}
	x := pan * math.Pi / 2
	gainL := float32(math.Cos(x))
	gainR := float32(math.Sin(x))
	return l * gainL, r + l*gainR
}
