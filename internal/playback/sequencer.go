// Package playback schedules sonified points on the tone engine, one at a
// time or as a timed sequence.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbegin/sonoscope-go/internal/dataset"
	"github.com/cbegin/sonoscope-go/internal/mapping"
	"github.com/cbegin/sonoscope-go/internal/synth"
	"github.com/cbegin/sonoscope-go/internal/tone"
)

// Voice is the shared instrument. Pan and detune persist between notes.
type Voice interface {
	SetPan(pan float64)
	SetDetune(cents float64)
	TriggerAttackRelease(freq float64, d time.Duration)
	Trigger(n synth.Note)
}

type Transport interface {
	Schedule(cb func(), offset time.Duration) int
	Start()
	Stop()
	Cancel(after time.Duration) int
	NoteValue(denominator int) time.Duration
}

// Engine is the audio engine the sequencer drives. Voice and Transport are
// only used inside Do or from a scheduled callback.
type Engine interface {
	Start(ctx context.Context) error
	Do(fn func())
	Voice() Voice
	Transport() Transport
}

type toneEngine struct {
	*tone.Context
}

// ToneEngine adapts a tone.Context to Engine.
func ToneEngine(c *tone.Context) Engine { return toneEngine{c} }

func (e toneEngine) Voice() Voice         { return e.Context.Voice() }
func (e toneEngine) Transport() Transport { return e.Context.Transport() }

const (
	DefaultStep = 250 * time.Millisecond
	DefaultTail = 200 * time.Millisecond
)

// Timing controls sequence spacing. A zero NoteDuration means an eighth
// note at the transport tempo.
type Timing struct {
	Step         time.Duration
	NoteDuration time.Duration
	Tail         time.Duration
}

func DefaultTiming() Timing {
	return Timing{Step: DefaultStep, Tail: DefaultTail}
}

// Length is the time from sequence start until the running flag clears.
func (t Timing) Length(n int) time.Duration {
	return time.Duration(n)*t.Step + t.Tail
}

// Trigger is one scheduled note of a sequence.
type Trigger struct {
	Index   int
	PointID int
	Offset  time.Duration
	Params  mapping.Params
}

// Plan lays points out on the timeline in list order.
func Plan(points []dataset.Point, preset mapping.Preset, timing Timing) []Trigger {
	plan := make([]Trigger, len(points))
	for i, p := range points {
		plan[i] = Trigger{
			Index:   i,
			PointID: p.ID,
			Offset:  time.Duration(i) * timing.Step,
			Params:  mapping.Resolve(p, preset),
		}
	}
	return plan
}

type EventKind int

const (
	EventSequenceStarted EventKind = iota
	EventNote
	EventSequenceEnded
	EventStopped
)

func (k EventKind) String() string {
	switch k {
	case EventSequenceStarted:
		return "started"
	case EventNote:
		return "note"
	case EventSequenceEnded:
		return "ended"
	case EventStopped:
		return "stopped"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event reports sequence progress. Index, PointID and Params are set for
// EventNote only.
type Event struct {
	Kind    EventKind
	Session uuid.UUID
	Index   int
	PointID int
	Params  mapping.Params
}

type Option func(*Sequencer)

func WithTiming(t Timing) Option {
	return func(s *Sequencer) { s.timing = t }
}

// WithScopedNotes makes every note carry its own pan and detune instead of
// writing them to the shared voice first.
func WithScopedNotes(enabled bool) Option {
	return func(s *Sequencer) { s.scoped = enabled }
}

// WithEventHandler installs fn to receive events. fn runs on the engine
// loop and must not block.
func WithEventHandler(fn func(Event)) Option {
	return func(s *Sequencer) { s.onEvent = fn }
}

// PlayOption overrides the sequencer timing for a single PlaySequence call.
type PlayOption func(*Timing)

func WithStep(d time.Duration) PlayOption {
	return func(t *Timing) {
		if d > 0 {
			t.Step = d
		}
	}
}

func WithNoteDuration(d time.Duration) PlayOption {
	return func(t *Timing) { t.NoteDuration = d }
}

func WithTail(d time.Duration) PlayOption {
	return func(t *Timing) {
		if d >= 0 {
			t.Tail = d
		}
	}
}

// Sequencer owns the running flag and the scheduled handles of the current
// sequence. Lock order is engine loop first, then mu; mu is never held
// while calling into the engine.
type Sequencer struct {
	engine  Engine
	timing  Timing
	scoped  bool
	onEvent func(Event)

	mu      sync.Mutex
	running bool
	handles []int
	session uuid.UUID
}

func New(engine Engine, opts ...Option) *Sequencer {
	s := &Sequencer{engine: engine, timing: DefaultTiming()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) Timing() Timing { return s.timing }

// PlayOne sounds a single point right away. It does not touch the running
// flag; overlapping calls share the voice and the last one sets pan and detune.
func (s *Sequencer) PlayOne(ctx context.Context, p dataset.Point, preset mapping.Preset) error {
	if err := s.engine.Start(ctx); err != nil {
		return fmt.Errorf("playback: start engine: %w", err)
	}
	params := mapping.Resolve(p, preset)
	s.engine.Do(func() {
		s.sound(params, s.noteDuration(s.timing))
	})
	return nil
}

// PlaySequence schedules every point at i*step and returns once the notes
// are on the timeline. It does nothing when points is empty or a sequence
// is already running.
func (s *Sequencer) PlaySequence(ctx context.Context, points []dataset.Point, preset mapping.Preset, opts ...PlayOption) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	session := uuid.New()
	s.running = true
	s.session = session
	s.handles = nil
	s.mu.Unlock()

	if err := s.engine.Start(ctx); err != nil {
		s.mu.Lock()
		if s.session == session {
			s.running = false
			s.session = uuid.Nil
		}
		s.mu.Unlock()
		return fmt.Errorf("playback: start engine: %w", err)
	}

	timing := s.timing
	for _, opt := range opts {
		opt(&timing)
	}
	plan := Plan(points, preset, timing)

	s.engine.Do(func() {
		// StopAll may have run while the engine was starting.
		if !s.current(session) {
			return
		}
		tr := s.engine.Transport()
		tr.Stop()
		tr.Cancel(0)
		dur := s.noteDuration(timing)
		handles := make([]int, 0, len(plan)+1)
		for _, trig := range plan {
			trig := trig
			handles = append(handles, tr.Schedule(func() { s.fire(session, trig, dur) }, trig.Offset))
		}
		handles = append(handles, tr.Schedule(func() { s.complete(session) }, timing.Length(len(plan))))
		s.mu.Lock()
		s.handles = handles
		s.mu.Unlock()
		tr.Start()
		s.emit(Event{Kind: EventSequenceStarted, Session: session})
	})
	return nil
}

// StopAll halts the transport, drops every scheduled event and clears the
// running flag. Notes already sounding finish their release. Safe to call
// at any time.
func (s *Sequencer) StopAll() {
	s.engine.Do(func() {
		tr := s.engine.Transport()
		tr.Stop()
		tr.Cancel(0)

		s.mu.Lock()
		wasRunning := s.running
		session := s.session
		s.running = false
		s.handles = nil
		s.session = uuid.Nil
		s.mu.Unlock()

		if wasRunning {
			s.emit(Event{Kind: EventStopped, Session: session})
		}
	})
}

func (s *Sequencer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Pending returns the transport handles of the current sequence.
func (s *Sequencer) Pending() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.handles))
	copy(out, s.handles)
	return out
}

// Session returns the id of the running sequence, or uuid.Nil.
func (s *Sequencer) Session() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Sequencer) current(session uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.session == session
}

func (s *Sequencer) noteDuration(t Timing) time.Duration {
	if t.NoteDuration > 0 {
		return t.NoteDuration
	}
	return s.engine.Transport().NoteValue(8)
}

// sound runs on the engine loop.
func (s *Sequencer) sound(p mapping.Params, dur time.Duration) {
	v := s.engine.Voice()
	if s.scoped {
		v.Trigger(synth.Note{
			Frequency:   p.Frequency,
			Duration:    dur,
			DetuneCents: p.DetuneCents(),
			Pan:         p.Pan,
		})
		return
	}
	v.SetPan(p.Pan)
	v.SetDetune(p.DetuneCents())
	v.TriggerAttackRelease(p.Frequency, dur)
}

func (s *Sequencer) fire(session uuid.UUID, trig Trigger, dur time.Duration) {
	if !s.current(session) {
		return
	}
	s.sound(trig.Params, dur)
	s.emit(Event{
		Kind:    EventNote,
		Session: session,
		Index:   trig.Index,
		PointID: trig.PointID,
		Params:  trig.Params,
	})
}

func (s *Sequencer) complete(session uuid.UUID) {
	s.mu.Lock()
	if !s.running || s.session != session {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.handles = nil
	s.session = uuid.Nil
	s.mu.Unlock()
	s.emit(Event{Kind: EventSequenceEnded, Session: session})
}

func (s *Sequencer) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
