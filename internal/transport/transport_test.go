package transport

import (
	"testing"
	"time"
)

func advance(t *Transport, frames int) {
	for i := 0; i < frames; i++ {
		t.Advance()
	}
}

func TestEventsFireInOffsetOrder(t *testing.T) {
	tr := New(1000)
	var fired []int
	var at []int64
	for _, tc := range []struct {
		id     int
		offset time.Duration
	}{
		{2, 500 * time.Millisecond},
		{0, 0},
		{1, 250 * time.Millisecond},
	} {
		id := tc.id
		tr.Schedule(func() {
			fired = append(fired, id)
			at = append(at, tr.Position()-1)
		}, tc.offset)
	}
	tr.Start()
	advance(tr, 1000)
	if len(fired) != 3 || fired[0] != 0 || fired[1] != 1 || fired[2] != 2 {
		t.Fatalf("fired order = %v, want [0 1 2]", fired)
	}
	if at[0] != 0 || at[1] != 250 || at[2] != 500 {
		t.Fatalf("fired frames = %v, want [0 250 500]", at)
	}
}

func TestSameFrameEventsKeepScheduleOrder(t *testing.T) {
	tr := New(100)
	var fired []string
	tr.Schedule(func() { fired = append(fired, "a") }, 10*time.Millisecond)
	tr.Schedule(func() { fired = append(fired, "b") }, 10*time.Millisecond)
	tr.Start()
	advance(tr, 5)
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("fired = %v", fired)
	}
}

func TestNothingFiresWhileStopped(t *testing.T) {
	tr := New(100)
	n := 0
	tr.Schedule(func() { n++ }, 0)
	advance(tr, 10)
	if n != 0 {
		t.Fatalf("stopped transport fired %d events", n)
	}
	if tr.Position() != 0 {
		t.Fatalf("stopped transport moved to %d", tr.Position())
	}
}

func TestCancelRemovesPendingEvents(t *testing.T) {
	tr := New(100)
	n := 0
	for i := 0; i < 4; i++ {
		tr.Schedule(func() { n++ }, time.Duration(i)*100*time.Millisecond)
	}
	tr.Start()
	advance(tr, 15) // fires frames 0 and 10
	if n != 2 {
		t.Fatalf("fired %d events before cancel, want 2", n)
	}
	if removed := tr.Cancel(0); removed != 4 {
		t.Fatalf("cancel removed %d, want 4", removed)
	}
	advance(tr, 100)
	if n != 2 {
		t.Fatalf("cancelled events fired: n=%d", n)
	}
	if tr.Len() != 0 || tr.Pending() != 0 {
		t.Fatalf("timeline not empty: len=%d pending=%d", tr.Len(), tr.Pending())
	}
}

func TestCancelAfterKeepsEarlierEvents(t *testing.T) {
	tr := New(100)
	tr.Schedule(func() {}, 0)
	tr.Schedule(func() {}, time.Second)
	tr.Schedule(func() {}, 2*time.Second)
	if removed := tr.Cancel(time.Second); removed != 2 {
		t.Fatalf("removed %d, want 2", removed)
	}
	if tr.Len() != 1 {
		t.Fatalf("len = %d, want 1", tr.Len())
	}
}

func TestStopRewindsAndKeepsTimeline(t *testing.T) {
	tr := New(100)
	n := 0
	tr.Schedule(func() { n++ }, 50*time.Millisecond)
	tr.Start()
	advance(tr, 20)
	tr.Stop()
	if tr.Position() != 0 || tr.State() != Stopped {
		t.Fatalf("stop did not rewind: pos=%d state=%v", tr.Position(), tr.State())
	}
	tr.Start()
	advance(tr, 20)
	if n != 2 {
		t.Fatalf("event should fire once per pass, got %d", n)
	}
}

func TestPauseHoldsPosition(t *testing.T) {
	tr := New(100)
	tr.Start()
	advance(tr, 7)
	tr.Pause()
	advance(tr, 7)
	if tr.Position() != 7 {
		t.Fatalf("position = %d, want 7", tr.Position())
	}
	tr.Start()
	advance(tr, 3)
	if tr.Position() != 10 {
		t.Fatalf("position = %d, want 10 after resume", tr.Position())
	}
}

func TestClear(t *testing.T) {
	tr := New(100)
	n := 0
	id := tr.Schedule(func() { n++ }, 0)
	tr.Schedule(func() { n += 10 }, 0)
	if !tr.Clear(id) {
		t.Fatalf("clear should find id %d", id)
	}
	if tr.Clear(id) {
		t.Fatalf("second clear should miss")
	}
	tr.Start()
	advance(tr, 2)
	if n != 10 {
		t.Fatalf("n = %d, want 10", n)
	}
}

func TestScheduleBehindPlayheadWaitsForRewind(t *testing.T) {
	tr := New(100)
	tr.Start()
	advance(tr, 50)
	n := 0
	tr.Schedule(func() { n++ }, 100*time.Millisecond)
	advance(tr, 10)
	if n != 0 {
		t.Fatalf("event behind the playhead fired")
	}
	tr.Stop()
	tr.Start()
	advance(tr, 11)
	if n != 1 {
		t.Fatalf("event should fire after rewind, n=%d", n)
	}
}

func TestCallbackCanScheduleAhead(t *testing.T) {
	tr := New(100)
	var fired []int64
	tr.Schedule(func() {
		fired = append(fired, tr.Position()-1)
		tr.Schedule(func() { fired = append(fired, tr.Position()-1) }, 200*time.Millisecond)
	}, 100*time.Millisecond)
	tr.Start()
	advance(tr, 30)
	if len(fired) != 2 || fired[0] != 10 || fired[1] != 20 {
		t.Fatalf("fired = %v, want [10 20]", fired)
	}
}

func TestNoteValue(t *testing.T) {
	tr := New(48000)
	if got := tr.NoteValue(8); got != 250*time.Millisecond {
		t.Fatalf("8n at 120 BPM = %v, want 250ms", got)
	}
	if got := tr.NoteValue(4); got != 500*time.Millisecond {
		t.Fatalf("4n at 120 BPM = %v, want 500ms", got)
	}
	tr.SetBPM(60)
	if got := tr.NoteValue(8); got != 500*time.Millisecond {
		t.Fatalf("8n at 60 BPM = %v, want 500ms", got)
	}
	tr.SetBPM(-1)
	if tr.BPM() != 60 {
		t.Fatalf("negative bpm should be ignored")
	}
}

func TestFrames(t *testing.T) {
	tr := New(48000)
	if got := tr.Frames(250 * time.Millisecond); got != 12000 {
		t.Fatalf("frames = %d, want 12000", got)
	}
	if got := tr.Frames(-time.Second); got != 0 {
		t.Fatalf("negative offset frames = %d, want 0", got)
	}
}
