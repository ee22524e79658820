// Package sonoscope plays datasets as sound: every point becomes a tone
// whose pitch, detune and stereo position follow its embedding and cluster.
package sonoscope

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	intaudio "github.com/cbegin/sonoscope-go/internal/audio"
	"github.com/cbegin/sonoscope-go/internal/config"
	"github.com/cbegin/sonoscope-go/internal/dataset"
	intfx "github.com/cbegin/sonoscope-go/internal/effects"
	"github.com/cbegin/sonoscope-go/internal/mapping"
	"github.com/cbegin/sonoscope-go/internal/playback"
	"github.com/cbegin/sonoscope-go/internal/synth"
	"github.com/cbegin/sonoscope-go/internal/tone"
)

type (
	Point  = dataset.Point
	Preset = mapping.Preset
	Timing = playback.Timing
)

const (
	PresetPCA           = mapping.PresetPCA
	PresetClusterChords = mapping.PresetClusterChords
)

// PlaybackEvent carries sequence progress from Watch().
type PlaybackEvent struct {
	Kind    playback.EventKind
	Session uuid.UUID
	Index   int
	PointID int
}

const (
	EventSequenceStarted = playback.EventSequenceStarted
	EventNote            = playback.EventNote
	EventSequenceEnded   = playback.EventSequenceEnded
	EventStopped         = playback.EventStopped
)

type PlayerOption func(*playerConfig)

type reverbConfig struct {
	room, decay, wet float32
}

type playerConfig struct {
	tempo     float64
	timing    playback.Timing
	scoped    bool
	params    synth.Params
	reverb    *reverbConfig
	volume    float64
	sampleTap func([]float32)
	factory   intaudio.OutputFactory
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		tempo:   120,
		timing:  playback.DefaultTiming(),
		params:  synth.DefaultParams(),
		volume:  1,
		factory: intaudio.OpenDevice,
	}
}

// WithTempo sets the transport BPM. The default note length is an eighth
// note at this tempo.
func WithTempo(bpm float64) PlayerOption {
	return func(cfg *playerConfig) {
		if bpm > 0 {
			cfg.tempo = bpm
		}
	}
}

// WithStep sets the gap between sequence notes.
func WithStep(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		if d > 0 {
			cfg.timing.Step = d
		}
	}
}

func WithNoteDuration(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.timing.NoteDuration = d }
}

// WithTail sets how long after the last step a sequence still counts as running.
func WithTail(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) {
		if d >= 0 {
			cfg.timing.Tail = d
		}
	}
}

// WithScopedNotes gives every sequenced note its own pan and detune
// instead of sharing the voice settings.
func WithScopedNotes(enabled bool) PlayerOption {
	return func(cfg *playerConfig) { cfg.scoped = enabled }
}

func WithSynthParams(p synth.Params) PlayerOption {
	return func(cfg *playerConfig) { cfg.params = p }
}

// WithMasterVolume sets the starting volume scalar. Negative values clamp to 0.
func WithMasterVolume(v float64) PlayerOption {
	return func(cfg *playerConfig) { cfg.volume = math.Max(0, v) }
}

// WithReverb adds a room reverb to the master bus.
func WithReverb(room, decay, wet float32) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.reverb = &reverbConfig{room: room, decay: decay, wet: wet}
	}
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleTap = tap }
}

func WithOutputFactory(f intaudio.OutputFactory) PlayerOption {
	return func(cfg *playerConfig) { cfg.factory = f }
}

// WithoutAudio renders only when samples are pulled, as offline rendering does.
func WithoutAudio() PlayerOption {
	return func(cfg *playerConfig) { cfg.factory = nil }
}

type Player struct {
	mu         sync.Mutex
	sampleRate int
	tone       *tone.Context
	seq        *playback.Sequencer
	timing     playback.Timing
	params     synth.Params
	volume     float64
	closed     bool
	eventCh    chan PlaybackEvent
	eventChMu  sync.Mutex
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	toneOpts := []tone.Option{
		tone.WithSampleRate(sampleRate),
		tone.WithSynthParams(cfg.params),
		tone.WithOutputFactory(cfg.factory),
		tone.WithTap(cfg.sampleTap),
	}
	if r := cfg.reverb; r != nil {
		toneOpts = append(toneOpts, tone.WithMasterEffect(intfx.NewReverb(sampleRate, r.room, r.decay, r.wet)))
	}
	tc := tone.New(toneOpts...)
	tc.Do(func() { tc.Transport().SetBPM(cfg.tempo) })

	tc.SetVolume(cfg.volume)

	p := &Player{
		sampleRate: sampleRate,
		tone:       tc,
		timing:     cfg.timing,
		params:     cfg.params,
		volume:     cfg.volume,
	}
	p.seq = playback.New(playback.ToneEngine(tc),
		playback.WithTiming(cfg.timing),
		playback.WithScopedNotes(cfg.scoped),
		playback.WithEventHandler(p.forward),
	)
	return p, nil
}

// ConfigOptions translates loaded settings into player options.
func ConfigOptions(cfg config.Config) ([]PlayerOption, error) {
	params, err := cfg.Synth.Params()
	if err != nil {
		return nil, err
	}
	opts := []PlayerOption{
		WithTempo(cfg.Tempo),
		WithStep(cfg.Step.Std()),
		WithNoteDuration(cfg.NoteDuration.Std()),
		WithTail(cfg.Tail.Std()),
		WithScopedNotes(cfg.ScopedNotes),
		WithSynthParams(params),
		WithMasterVolume(cfg.Volume),
	}
	if cfg.Reverb.Enabled {
		opts = append(opts, WithReverb(float32(cfg.Reverb.Room), float32(cfg.Reverb.Decay), float32(cfg.Reverb.Wet)))
	}
	return opts, nil
}

// NewPlayerFromConfig builds a player from loaded settings. Extra options
// are applied after the config.
func NewPlayerFromConfig(cfg config.Config, opts ...PlayerOption) (*Player, error) {
	base, err := ConfigOptions(cfg)
	if err != nil {
		return nil, err
	}
	return NewPlayer(cfg.SampleRate, append(base, opts...)...)
}

// PlayOne sounds a single point now. Overlapping calls share the voice.
func (p *Player) PlayOne(ctx context.Context, point Point, preset Preset) error {
	if p.isClosed() {
		return tone.ErrClosed
	}
	return p.seq.PlayOne(ctx, point, preset)
}

// PlaySequence plays points in order, one step apart. It returns once the
// notes are scheduled and does nothing when points is empty or a sequence
// is already running.
func (p *Player) PlaySequence(ctx context.Context, points []Point, preset Preset) error {
	if p.isClosed() {
		return tone.ErrClosed
	}
	return p.seq.PlaySequence(ctx, points, preset)
}

// StopAll cancels the running sequence. Safe to call at any time.
func (p *Player) StopAll() { p.seq.StopAll() }

// Running reports whether a sequence is playing.
func (p *Player) Running() bool { return p.seq.Running() }

// Pending returns the scheduled handles of the current sequence.
func (p *Player) Pending() []int { return p.seq.Pending() }

func (p *Player) Session() uuid.UUID { return p.seq.Session() }

func (p *Player) SampleRate() int { return p.sampleRate }

func (p *Player) Timing() Timing { return p.timing }

// Watch returns a channel that receives playback events.
//
// The channel is buffered (cap 8); events are dropped when it is full, so
// receive in a goroutine. Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

func (p *Player) forward(ev playback.Event) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- PlaybackEvent{Kind: ev.Kind, Session: ev.Session, Index: ev.Index, PointID: ev.PointID}:
	default:
		// Channel full; drop event
	}
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	p.tone.SetVolume(volume)
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// PlaybackPosition returns the output position in frames, i.e. what the
// listener actually hears right now.
func (p *Player) PlaybackPosition() int64 {
	return int64(p.tone.Position().Seconds() * float64(p.sampleRate))
}

// Close stops playback and releases the audio device.
func (p *Player) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	p.seq.StopAll()
	if err := p.tone.Close(); err != nil {
		return fmt.Errorf("sonoscope: close: %w", err)
	}
	return nil
}

func (p *Player) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// render pulls frames straight from the engine. Only meaningful without a device.
func (p *Player) render(frames int) []float32 {
	const chunk = 1024
	out := make([]float32, frames*2)
	for off := 0; off < len(out); off += chunk * 2 {
		end := off + chunk*2
		if end > len(out) {
			end = len(out)
		}
		p.tone.Process(out[off:end])
	}
	return out
}
