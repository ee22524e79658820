// Package lfo provides the low-frequency oscillator behind synth vibrato.
package lfo

import "math"

type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
)

// LFO produces one modulation value per sample in [-depth, +depth].
// The zero value is inactive.
type LFO struct {
	depth  float64
	rateHz float64
	shape  Shape
	phase  float64
}

func New(depth, rateHz float64, shape Shape) *LFO {
	l := &LFO{}
	l.Set(depth, rateHz, shape)
	return l
}

func (l *LFO) Set(depth, rateHz float64, shape Shape) {
	l.depth = depth
	l.rateHz = rateHz
	if shape < Sine || shape > Square {
		shape = Sine
	}
	l.shape = shape
}

// Sample returns the current value and advances one sample.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	var v float64
	switch l.shape {
	case Triangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case Square:
		v = 1
		if l.phase >= 0.5 {
			v = -1
		}
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

func (l *LFO) Active() bool { return l.depth != 0 && l.rateHz != 0 }

func (l *LFO) Reset() { l.phase = 0 }
