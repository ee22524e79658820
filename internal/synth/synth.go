// Package synth is the oscillator voice behind every sonified point: a small
// polyphonic synth with one ADSR envelope per voice.
package synth

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cbegin/sonoscope-go/internal/effects"
	"github.com/cbegin/sonoscope-go/internal/lfo"
)

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
	Sawtooth
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Sawtooth:
		return "sawtooth"
	default:
		return "triangle"
	}
}

// ParseWaveform accepts sine, triangle, square and sawtooth (or saw).
func ParseWaveform(name string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sine":
		return Sine, nil
	case "", "triangle":
		return Triangle, nil
	case "square":
		return Square, nil
	case "saw", "sawtooth":
		return Sawtooth, nil
	default:
		return Triangle, fmt.Errorf("synth: unknown waveform %q", name)
	}
}

type Params struct {
	Polyphony  int
	Waveform   Waveform
	AttackSec  float64
	DecaySec   float64
	SustainLvl float64
	ReleaseSec float64
	MasterGain float64
	// Vibrato is applied to every voice. Zero depth disables it.
	VibratoCents float64
	VibratoHz    float64
}

func DefaultParams() Params {
	return Params{
		Polyphony:  8,
		Waveform:   Triangle,
		AttackSec:  0.005,
		DecaySec:   0.1,
		SustainLvl: 0.3,
		ReleaseSec: 1.0,
		MasterGain: 0.5,
	}
}

// Note is a trigger that carries its own detune and pan. Notes started with
// Trigger ignore the synth-wide detune and render their own stereo position.
type Note struct {
	Frequency   float64
	Duration    time.Duration
	DetuneCents float64
	Pan         float64
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active      bool
	id          int
	age         int
	freq        float64
	phase       float64
	env         float64
	envState    envState
	releaseStep float64
	gate        int64 // frames left before release; <0 holds until TriggerRelease
	scoped      bool
	detune      float64
	pan         float64
}

// Synth is not safe for concurrent use; tone.Context serialises access.
type Synth struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	detune     float64 // cents, applied to every unscoped voice
	vibrato    *lfo.LFO
}

func New(sampleRate int, params Params) *Synth {
	if params.Polyphony <= 0 {
		params.Polyphony = 8
	}
	if params.AttackSec <= 0 {
		params.AttackSec = 0.001
	}
	if params.DecaySec <= 0 {
		params.DecaySec = 0.001
	}
	if params.ReleaseSec <= 0 {
		params.ReleaseSec = 0.001
	}
	params.SustainLvl = clamp(params.SustainLvl, 0, 1)
	return &Synth{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
		vibrato:    lfo.New(params.VibratoCents, params.VibratoHz, lfo.Sine),
	}
}

func (s *Synth) Params() Params { return s.params }

// SetDetune sets the synth-wide detune in cents. It takes effect on
// sounding voices immediately.
func (s *Synth) SetDetune(cents float64) { s.detune = cents }

func (s *Synth) Detune() float64 { return s.detune }

// TriggerAttackRelease starts a note now and releases it after d.
func (s *Synth) TriggerAttackRelease(freq float64, d time.Duration) int {
	return s.start(freq, s.gateFrames(d), false, 0, 0)
}

// TriggerAttack starts a note that sounds until TriggerRelease.
func (s *Synth) TriggerAttack(freq float64) int {
	return s.start(freq, -1, false, 0, 0)
}

// Trigger starts a note with its own detune and pan.
func (s *Synth) Trigger(n Note) int {
	return s.start(n.Frequency, s.gateFrames(n.Duration), true, n.DetuneCents, n.Pan)
}

// TriggerRelease moves the voice with the given id into its release stage.
func (s *Synth) TriggerRelease(id int) {
	for i := range s.voices {
		v := &s.voices[i]
		if v.active && v.id == id {
			s.release(v)
		}
	}
}

// ReleaseAll releases every sounding voice.
func (s *Synth) ReleaseAll() {
	for i := range s.voices {
		if s.voices[i].active {
			s.release(&s.voices[i])
		}
	}
}

func (s *Synth) gateFrames(d time.Duration) int64 {
	frames := int64(d.Seconds() * s.sampleRate)
	if frames < 1 {
		frames = 1
	}
	return frames
}

func (s *Synth) start(freq float64, gate int64, scoped bool, detune, pan float64) int {
	slot := s.stealVoice()
	id := s.nextID
	s.nextID++
	s.voices[slot] = voice{
		active:   true,
		id:       id,
		freq:     freq,
		envState: envAttack,
		gate:     gate,
		scoped:   scoped,
		detune:   detune,
		pan:      pan,
	}
	return id
}

func (s *Synth) release(v *voice) {
	if v.envState == envRelease || v.envState == envOff {
		return
	}
	v.envState = envRelease
	v.gate = -1
	v.releaseStep = v.env / (s.params.ReleaseSec * s.sampleRate)
	if v.releaseStep <= 0 {
		v.releaseStep = 1
	}
}

// RenderFrame mixes all active voices into one stereo frame.
func (s *Synth) RenderFrame() (float32, float32) {
	gain := s.masterGainValue()
	vib := s.vibrato.Sample(s.sampleRate)
	var l, r float32
	for i := range s.voices {
		v := &s.voices[i]
		if !v.active {
			continue
		}
		v.age++
		if v.gate > 0 {
			v.gate--
			if v.gate == 0 {
				s.release(v)
			}
		}
		env := s.advanceEnv(v)
		if !v.active {
			continue
		}
		cents := s.detune + vib
		if v.scoped {
			cents = v.detune + vib
		}
		sig := float32(s.oscillate(v, v.freq*math.Pow(2, cents/1200)) * env * gain)
		if v.scoped {
			vl, vr := effects.StereoPan(sig, sig, v.pan)
			l += vl
			r += vr
			continue
		}
		l += sig
		r += sig
	}
	return l, r
}

func (s *Synth) oscillate(v *voice, freq float64) float64 {
	dt := freq / s.sampleRate
	p := v.phase
	v.phase += dt
	v.phase -= math.Floor(v.phase)
	adt := math.Abs(dt)
	switch s.params.Waveform {
	case Sine:
		return math.Sin(twoPi * p)
	case Square:
		out := -1.0
		if p < 0.5 {
			out = 1
		}
		out += polyBLEP(p, adt)
		out -= polyBLEP(math.Mod(p+0.5, 1), adt)
		return out
	case Sawtooth:
		return 2*p - 1 - polyBLEP(p, adt)
	default:
		return 2*math.Abs(2*p-1) - 1
	}
}

// polyBLEP smooths the discontinuity of a naive waveform at phase t.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func (s *Synth) advanceEnv(v *voice) float64 {
	switch v.envState {
	case envAttack:
		v.env += 1.0 / (s.params.AttackSec * s.sampleRate)
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		v.env -= (1 - s.params.SustainLvl) / (s.params.DecaySec * s.sampleRate)
		if v.env <= s.params.SustainLvl {
			v.env = s.params.SustainLvl
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		v.env -= v.releaseStep
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

func (s *Synth) stealVoice() int {
	for i := range s.voices {
		if !s.voices[i].active {
			return i
		}
	}
	oldestRelease, oldestReleaseAge := -1, -1
	oldest, oldestAge := 0, -1
	for i := range s.voices {
		v := &s.voices[i]
		if v.envState == envRelease && v.age > oldestReleaseAge {
			oldestRelease, oldestReleaseAge = i, v.age
		}
		if v.age > oldestAge {
			oldest, oldestAge = i, v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldest
}

func (s *Synth) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&s.masterGain, math.Float64bits(gain))
}

func (s *Synth) MasterGain() float64 { return s.masterGainValue() }

func (s *Synth) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.masterGain))
}

// ActiveVoiceCount returns the number of voices still sounding, release tails included.
func (s *Synth) ActiveVoiceCount() int {
	n := 0
	for i := range s.voices {
		if s.voices[i].active {
			n++
		}
	}
	return n
}

const twoPi = math.Pi * 2

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
