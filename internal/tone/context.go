// Package tone is the audio engine the sequencer plays through: a shared
// synth voice, a sample-clocked transport and the output device, all driven
// from one render loop.
//
// Context holds a single lock that stands in for the event loop. Process
// takes it for every rendered buffer and transport callbacks run with it
// held, so Voice and Transport may only be touched inside Do or from a
// transport callback.
package tone

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/sonoscope-go/internal/audio"
	"github.com/cbegin/sonoscope-go/internal/effects"
	"github.com/cbegin/sonoscope-go/internal/synth"
	"github.com/cbegin/sonoscope-go/internal/transport"
)

const DefaultSampleRate = 48000

var ErrClosed = errors.New("tone: context closed")

type Option func(*config)

type config struct {
	sampleRate int
	factory    audio.OutputFactory
	params     synth.Params
	master     []effects.Effector
	tap        func([]float32)
}

func WithSampleRate(sr int) Option {
	return func(c *config) {
		if sr > 0 {
			c.sampleRate = sr
		}
	}
}

// WithOutputFactory replaces the system audio device.
func WithOutputFactory(f audio.OutputFactory) Option {
	return func(c *config) { c.factory = f }
}

// WithoutOutput runs the context with no device. Audio only advances when
// the caller pulls frames through Process.
func WithoutOutput() Option {
	return func(c *config) { c.factory = nil }
}

func WithSynthParams(p synth.Params) Option {
	return func(c *config) { c.params = p }
}

// WithMasterEffect appends an effect to the master chain, ahead of the limiter.
func WithMasterEffect(e effects.Effector) Option {
	return func(c *config) { c.master = append(c.master, e) }
}

// WithTap installs a callback that sees every rendered buffer. It runs on
// the audio thread after the lock is released; keep it brief.
func WithTap(tap func([]float32)) Option {
	return func(c *config) { c.tap = tap }
}

// Voice is the shared instrument: one synth feeding one stereo panner.
// Pan and detune are shared by every note it plays.
type Voice struct {
	synth  *synth.Synth
	panner *effects.Panner
}

func (v *Voice) SetPan(pan float64)      { v.panner.SetPan(pan) }
func (v *Voice) Pan() float64            { return v.panner.Pan() }
func (v *Voice) SetDetune(cents float64) { v.synth.SetDetune(cents) }
func (v *Voice) Detune() float64         { return v.synth.Detune() }
func (v *Voice) Trigger(n synth.Note)    { v.synth.Trigger(n) }
func (v *Voice) ReleaseAll()             { v.synth.ReleaseAll() }
func (v *Voice) ActiveVoiceCount() int   { return v.synth.ActiveVoiceCount() }

func (v *Voice) render() (float32, float32) {
	return v.panner.Process(v.synth.RenderFrame())
}

// TriggerAttackRelease starts a note now and releases it after d.
func (v *Voice) TriggerAttackRelease(freq float64, d time.Duration) {
	v.synth.TriggerAttackRelease(freq, d)
}

type Context struct {
	mu         sync.Mutex
	sampleRate int
	factory    audio.OutputFactory
	params     synth.Params
	transport  *transport.Transport
	voice      *Voice
	master     *effects.Chain
	tap        func([]float32)
	out        audio.Output
	started    bool
	closed     bool
	rendered   int64
	volume     uint64
}

func New(opts ...Option) *Context {
	cfg := config{
		sampleRate: DefaultSampleRate,
		factory:    audio.OpenDevice,
		params:     synth.DefaultParams(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	master := effects.NewChain(cfg.master...)
	master.Add(effects.NewMasterLimiter(cfg.sampleRate))
	return &Context{
		sampleRate: cfg.sampleRate,
		factory:    cfg.factory,
		params:     cfg.params,
		transport:  transport.New(cfg.sampleRate),
		master:     master,
		tap:        cfg.tap,
		volume:     math.Float64bits(1),
	}
}

func (c *Context) SampleRate() int { return c.sampleRate }

// Start unlocks audio output. The device is opened on the first call; later
// calls return immediately.
func (c *Context) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	factory := c.factory
	c.mu.Unlock()

	var out audio.Output
	if factory != nil {
		var err error
		out, err = factory(c.sampleRate, c)
		if err != nil {
			return fmt.Errorf("tone: start output: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.started {
		// Lost a race with Close or another Start.
		if out != nil {
			_ = out.Close()
		}
		if c.closed {
			return ErrClosed
		}
		return nil
	}
	c.out = out
	c.started = true
	if out != nil {
		out.Play()
	}
	return nil
}

// Started reports whether Start has succeeded.
func (c *Context) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Do runs fn on the event loop.
func (c *Context) Do(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

// Voice returns the shared voice, building it on first use. Loop only.
func (c *Context) Voice() *Voice {
	if c.voice == nil {
		c.voice = &Voice{
			synth:  synth.New(c.sampleRate, c.params),
			panner: effects.NewPanner(0),
		}
	}
	return c.voice
}

// Transport returns the timeline. Loop only.
func (c *Context) Transport() *transport.Transport { return c.transport }

// Process renders interleaved stereo frames into dst. It is the render loop:
// for every frame the transport fires due callbacks before the voice renders.
func (c *Context) Process(dst []float32) {
	gain := float32(c.Volume())
	c.mu.Lock()
	for i := 0; i+1 < len(dst); i += 2 {
		c.transport.Advance()
		var l, r float32
		if c.voice != nil {
			l, r = c.voice.render()
		}
		l, r = c.master.Process(l, r)
		dst[i], dst[i+1] = l*gain, r*gain
	}
	c.rendered += int64(len(dst) / 2)
	tap := c.tap
	c.mu.Unlock()
	if tap != nil {
		tap(dst)
	}
}

// Now returns the rendered time in seconds.
func (c *Context) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.rendered) / float64(c.sampleRate)
}

// SetVolume scales the final output. It is safe to call from any goroutine.
func (c *Context) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	atomic.StoreUint64(&c.volume, math.Float64bits(v))
}

func (c *Context) Volume() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.volume))
}

// Position is how much audio the device has played, or the rendered time
// when there is no device.
func (c *Context) Position() time.Duration {
	c.mu.Lock()
	out := c.out
	rendered := c.rendered
	c.mu.Unlock()
	if out != nil {
		return out.Position()
	}
	return time.Duration(float64(rendered) / float64(c.sampleRate) * float64(time.Second))
}

// Close stops the transport and releases the output device.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.transport.Stop()
	c.transport.Cancel(0)
	if c.voice != nil {
		c.voice.ReleaseAll()
	}
	out := c.out
	c.out = nil
	c.mu.Unlock()
	if out != nil {
		return out.Close()
	}
	return nil
}
