package synth

import (
	"math"
	"testing"
	"time"
)

func render(s *Synth, frames int) (peakL, peakR float64) {
	for i := 0; i < frames; i++ {
		l, r := s.RenderFrame()
		peakL = math.Max(peakL, math.Abs(float64(l)))
		peakR = math.Max(peakR, math.Abs(float64(r)))
	}
	return peakL, peakR
}

func TestSilentWithoutNotes(t *testing.T) {
	s := New(48000, DefaultParams())
	if l, r := render(s, 512); l != 0 || r != 0 {
		t.Fatalf("expected silence, got peaks %v %v", l, r)
	}
}

func TestNoteReleasesAfterDuration(t *testing.T) {
	p := DefaultParams()
	p.ReleaseSec = 0.01
	s := New(1000, p)
	s.TriggerAttackRelease(100, 50*time.Millisecond)
	render(s, 40)
	if s.ActiveVoiceCount() != 1 {
		t.Fatalf("voice should still be sounding inside its gate")
	}
	render(s, 40) // gate (50) + release (10) + slack
	if n := s.ActiveVoiceCount(); n != 0 {
		t.Fatalf("active voices after release = %d, want 0", n)
	}
}

func TestHeldNoteSustainsUntilRelease(t *testing.T) {
	p := DefaultParams()
	p.ReleaseSec = 0.01
	s := New(1000, p)
	id := s.TriggerAttack(220)
	render(s, 2000)
	if s.ActiveVoiceCount() != 1 {
		t.Fatalf("held voice stopped early")
	}
	s.TriggerRelease(id)
	render(s, 50)
	if s.ActiveVoiceCount() != 0 {
		t.Fatalf("released voice still sounding")
	}
}

func TestSharedNotesAreCentred(t *testing.T) {
	s := New(48000, DefaultParams())
	s.TriggerAttackRelease(440, time.Second)
	for i := 0; i < 1000; i++ {
		l, r := s.RenderFrame()
		if l != r {
			t.Fatalf("frame %d: shared voice not mono (%v, %v)", i, l, r)
		}
	}
}

func TestScopedNotePans(t *testing.T) {
	s := New(48000, DefaultParams())
	s.Trigger(Note{Frequency: 440, Duration: time.Second, Pan: -1})
	l, r := render(s, 2000)
	if l == 0 {
		t.Fatalf("hard-left note produced no left signal")
	}
	if r > 1e-6 {
		t.Fatalf("hard-left note leaked right: %v", r)
	}
}

// zeroCrossings counts upward crossings of the left channel.
func zeroCrossings(s *Synth, frames int) int {
	n := 0
	prev, _ := s.RenderFrame()
	for i := 1; i < frames; i++ {
		cur, _ := s.RenderFrame()
		if prev <= 0 && cur > 0 {
			n++
		}
		prev = cur
	}
	return n
}

func TestDetuneShiftsPitch(t *testing.T) {
	p := DefaultParams()
	p.Waveform = Sine
	base := New(48000, p)
	base.TriggerAttack(200)
	up := New(48000, p)
	up.SetDetune(1200)
	up.TriggerAttack(200)

	a := zeroCrossings(base, 48000)
	b := zeroCrossings(up, 48000)
	if a < 195 || a > 205 {
		t.Fatalf("base crossings = %d, want ~200", a)
	}
	if b < 395 || b > 405 {
		t.Fatalf("octave-up crossings = %d, want ~400", b)
	}
}

func TestScopedDetuneIgnoresShared(t *testing.T) {
	p := DefaultParams()
	p.Waveform = Sine
	s := New(48000, p)
	s.SetDetune(1200)
	s.Trigger(Note{Frequency: 200, Duration: 2 * time.Second, DetuneCents: -1200})
	if n := zeroCrossings(s, 48000); n < 95 || n > 105 {
		t.Fatalf("crossings = %d, want ~100", n)
	}
}

func TestVoiceStealingCapsPolyphony(t *testing.T) {
	p := DefaultParams()
	p.Polyphony = 2
	s := New(48000, p)
	for i := 0; i < 5; i++ {
		s.TriggerAttackRelease(float64(200+i*100), time.Second)
		render(s, 10)
	}
	if n := s.ActiveVoiceCount(); n != 2 {
		t.Fatalf("active voices = %d, want 2", n)
	}
}

func TestReleaseAll(t *testing.T) {
	p := DefaultParams()
	p.ReleaseSec = 0.01
	s := New(1000, p)
	s.TriggerAttack(100)
	s.TriggerAttack(200)
	s.ReleaseAll()
	render(s, 30)
	if s.ActiveVoiceCount() != 0 {
		t.Fatalf("voices survived ReleaseAll")
	}
}

func TestMasterGain(t *testing.T) {
	s := New(48000, DefaultParams())
	s.SetMasterGain(0)
	s.TriggerAttackRelease(440, time.Second)
	if l, r := render(s, 1000); l != 0 || r != 0 {
		t.Fatalf("zero gain produced output %v %v", l, r)
	}
	s.SetMasterGain(-3)
	if s.MasterGain() != 0 {
		t.Fatalf("negative gain should clamp to 0")
	}
}

func TestNegativeFrequencyStaysFinite(t *testing.T) {
	s := New(48000, DefaultParams())
	s.TriggerAttackRelease(-200, 100*time.Millisecond)
	for i := 0; i < 4800; i++ {
		l, r := s.RenderFrame()
		if math.IsNaN(float64(l)) || math.IsInf(float64(r), 0) {
			t.Fatalf("frame %d not finite", i)
		}
	}
}

func TestParseWaveform(t *testing.T) {
	for in, want := range map[string]Waveform{
		"sine":     Sine,
		"Triangle": Triangle,
		"":         Triangle,
		"square":   Square,
		"saw":      Sawtooth,
	} {
		got, err := ParseWaveform(in)
		if err != nil || got != want {
			t.Errorf("ParseWaveform(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseWaveform("noise"); err == nil {
		t.Fatalf("expected error for unknown waveform")
	}
}

func TestVibratoModulatesPitch(t *testing.T) {
	p := DefaultParams()
	p.Waveform = Sine
	p.VibratoCents = 50
	p.VibratoHz = 5
	plain := DefaultParams()
	plain.Waveform = Sine

	a := New(48000, plain)
	b := New(48000, p)
	a.TriggerAttack(440)
	b.TriggerAttack(440)
	diff := false
	for i := 0; i < 4800; i++ {
		la, _ := a.RenderFrame()
		lb, _ := b.RenderFrame()
		if math.Abs(float64(la-lb)) > 1e-3 {
			diff = true
			break
		}
	}
	if !diff {
		t.Fatalf("vibrato had no effect")
	}
}
