// Package transport is a sample-clocked event timeline.
//
// Callbacks are registered at time offsets from the start of the timeline
// and fire from Advance, which the renderer calls once per output frame.
// A Transport is not safe for concurrent use; the owner serialises access
// (see tone.Context).
package transport

import (
	"math"
	"sort"
	"time"
)

// State is the playback state of the transport.
type State int

const (
	Stopped State = iota
	Started
	Paused
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

const defaultBPM = 120

type event struct {
	id    int
	frame int64
	cb    func()
}

type Transport struct {
	sampleRate int
	bpm        float64
	state      State
	position   int64 // frames since the timeline origin
	events     []event
	next       int // index of the first event not yet fired at the current position
	nextID     int
}

// New returns a stopped transport at 120 BPM.
func New(sampleRate int) *Transport {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Transport{sampleRate: sampleRate, bpm: defaultBPM}
}

func (t *Transport) SampleRate() int { return t.sampleRate }

// SetBPM changes the tempo used by NoteValue. Non-positive values are ignored.
func (t *Transport) SetBPM(bpm float64) {
	if bpm > 0 {
		t.bpm = bpm
	}
}

func (t *Transport) BPM() float64 { return t.bpm }

// NoteValue returns the length of a 1/denominator note at the current tempo,
// so NoteValue(8) is an eighth note ("8n").
func (t *Transport) NoteValue(denominator int) time.Duration {
	if denominator <= 0 {
		denominator = 4
	}
	beats := 4.0 / float64(denominator)
	return time.Duration(beats * 60 / t.bpm * float64(time.Second))
}

// Frames converts a duration to a frame count at the transport's sample rate.
func (t *Transport) Frames(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Round(d.Seconds() * float64(t.sampleRate)))
}

// Schedule registers cb at offset from the timeline origin and returns its id.
// cb runs on the render loop when its frame is reached.
// Events stay on the timeline after they fire until cleared or cancelled.
// Events sharing a frame fire in the order they were scheduled.
func (t *Transport) Schedule(cb func(), offset time.Duration) int {
	frame := t.Frames(offset)
	id := t.nextID
	t.nextID++
	i := sort.Search(len(t.events), func(i int) bool { return t.events[i].frame > frame })
	t.events = append(t.events, event{})
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = event{id: id, frame: frame, cb: cb}
	if i < t.next || (i == t.next && frame < t.position) {
		// Already behind the playhead; wait for the next rewind.
		t.next++
	}
	return id
}

// Clear removes a single event. It reports whether the id was found.
func (t *Transport) Clear(id int) bool {
	for i := range t.events {
		if t.events[i].id == id {
			t.removeAt(i)
			return true
		}
	}
	return false
}

// Cancel removes every event at or after the given offset and returns how
// many were removed. Cancel(0) empties the timeline.
func (t *Transport) Cancel(after time.Duration) int {
	frame := t.Frames(after)
	i := sort.Search(len(t.events), func(i int) bool { return t.events[i].frame >= frame })
	removed := len(t.events) - i
	for j := i; j < len(t.events); j++ {
		t.events[j] = event{}
	}
	t.events = t.events[:i]
	if t.next > len(t.events) {
		t.next = len(t.events)
	}
	return removed
}

func (t *Transport) removeAt(i int) {
	copy(t.events[i:], t.events[i+1:])
	t.events[len(t.events)-1] = event{}
	t.events = t.events[:len(t.events)-1]
	if i < t.next {
		t.next--
	}
}

// Start begins (or resumes) advancing the timeline.
func (t *Transport) Start() {
	if t.state == Stopped {
		t.seek(0)
	}
	t.state = Started
}

// Pause holds the current position.
func (t *Transport) Pause() {
	if t.state == Started {
		t.state = Paused
	}
}

// Stop halts the timeline and rewinds it to the origin. Scheduled events are kept.
func (t *Transport) Stop() {
	t.state = Stopped
	t.seek(0)
}

func (t *Transport) seek(frame int64) {
	t.position = frame
	t.next = sort.Search(len(t.events), func(i int) bool { return t.events[i].frame >= frame })
}

func (t *Transport) State() State { return t.state }

// Position returns the current frame.
func (t *Transport) Position() int64 { return t.position }

// Seconds returns the current position in seconds.
func (t *Transport) Seconds() float64 {
	return float64(t.position) / float64(t.sampleRate)
}

// Len returns the number of events on the timeline.
func (t *Transport) Len() int { return len(t.events) }

// Pending returns the number of events that have not fired yet.
func (t *Transport) Pending() int { return len(t.events) - t.next }

// Advance moves the timeline forward by one frame, firing every event that
// falls on the current frame. Callbacks may schedule or cancel events.
func (t *Transport) Advance() {
	if t.state != Started {
		return
	}
	var due []func()
	for t.next < len(t.events) && t.events[t.next].frame <= t.position {
		due = append(due, t.events[t.next].cb)
		t.next++
	}
	t.position++
	for _, cb := range due {
		if cb != nil {
			cb()
		}
	}
}
