package spectrum

import (
	"math"
	"testing"
)

func sine(freq float64, sampleRate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestPeakFrequency(t *testing.T) {
	for _, freq := range []float64{220, 600, 1000, 4321} {
		got := PeakFrequency(sine(freq, 48000, 4096), 48000)
		if math.Abs(got-freq) > 5 {
			t.Errorf("peak for %v Hz = %v", freq, got)
		}
	}
	if got := PeakFrequency(make([]float32, 10), 48000); got != 0 {
		t.Fatalf("short input peak = %v, want 0", got)
	}
}

func TestBarsHighlightTone(t *testing.T) {
	bars := Bars(sine(1000, 48000, FFTSize), 48000, 32)
	if len(bars) != 32 {
		t.Fatalf("bars = %d, want 32", len(bars))
	}
	loudest := 0
	for i, v := range bars {
		if v < 0 || v > 1 {
			t.Fatalf("bar %d out of range: %v", i, v)
		}
		if v > bars[loudest] {
			loudest = i
		}
	}
	if loudest < 8 || loudest > 28 {
		t.Fatalf("loudest bar %d is not in the kHz region", loudest)
	}
	if Bars(make([]float32, FFTSize), 48000, 0) != nil {
		t.Fatalf("zero bars should return nil")
	}
}

func TestTapAndSnapshot(t *testing.T) {
	a := NewAnalyzer(48000)
	stereo := make([]float32, 0, 200)
	for i := 0; i < 100; i++ {
		stereo = append(stereo, float32(i), float32(i)+2)
	}
	a.Tap(stereo)
	if a.Tapped() != 100 {
		t.Fatalf("tapped = %d, want 100", a.Tapped())
	}
	snap := a.Snapshot(4, -1)
	for i, want := range []float32{97, 98, 99, 100} {
		if snap[i] != want {
			t.Fatalf("newest snapshot = %v", snap)
		}
	}
	// The listener is 10 frames behind the tap.
	snap = a.Snapshot(2, 90)
	if snap[0] != 89 || snap[1] != 90 {
		t.Fatalf("delayed snapshot = %v, want [89 90]", snap)
	}
	a.Reset()
	if a.Tapped() != 0 {
		t.Fatalf("reset did not clear counter")
	}
	if s := a.Snapshot(4, -1); s[3] != 0 {
		t.Fatalf("reset did not clear ring: %v", s)
	}
}

func TestSmoother(t *testing.T) {
	var s Smoother
	up := s.Apply([]float64{1})
	if math.Abs(up[0]-0.7) > 1e-9 {
		t.Fatalf("attack = %v, want 0.7", up[0])
	}
	down := s.Apply([]float64{0})
	if math.Abs(down[0]-0.595) > 1e-9 {
		t.Fatalf("decay = %v, want 0.595", down[0])
	}
}

func TestZeroCrossing(t *testing.T) {
	samples := []float32{0.5, 0.2, -0.1, -0.3, 0.4, 0.6, 0.7, 0.8}
	if got := ZeroCrossing(samples, 10); got != 4 {
		t.Fatalf("zero crossing = %d, want 4", got)
	}
	if got := ZeroCrossing([]float32{1, 1, 1}, 3); got != 0 {
		t.Fatalf("no crossing = %d, want 0", got)
	}
}
