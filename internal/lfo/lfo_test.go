package lfo

import (
	"math"
	"testing"
)

func TestTriangleShape(t *testing.T) {
	l := New(1, 1, Triangle)
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(100)
	}
	for _, tc := range []struct {
		i    int
		want float64
	}{
		{0, -1},
		{25, 0},
		{50, 1},
		{75, 0},
	} {
		if math.Abs(samples[tc.i]-tc.want) > 0.05 {
			t.Errorf("sample %d = %f, want %f", tc.i, samples[tc.i], tc.want)
		}
	}
}

func TestSquareShape(t *testing.T) {
	l := New(2, 1, Square)
	if v := l.Sample(100); v != 2 {
		t.Fatalf("first half = %f, want 2", v)
	}
	for i := 1; i < 50; i++ {
		l.Sample(100)
	}
	if v := l.Sample(100); v != -2 {
		t.Fatalf("second half = %f, want -2", v)
	}
}

func TestSineStaysWithinDepth(t *testing.T) {
	l := New(15, 5.5, Sine)
	for i := 0; i < 48000; i++ {
		if v := l.Sample(48000); math.Abs(v) > 15+1e-9 {
			t.Fatalf("sample %d = %f exceeds depth", i, v)
		}
	}
}

func TestInactive(t *testing.T) {
	var l LFO
	if l.Active() {
		t.Fatalf("zero value should be inactive")
	}
	if v := l.Sample(48000); v != 0 {
		t.Fatalf("inactive lfo returned %f", v)
	}
	l.Set(1, 0, Sine)
	if l.Active() {
		t.Fatalf("zero rate should be inactive")
	}
}

func TestReset(t *testing.T) {
	l := New(1, 1, Triangle)
	first := l.Sample(100)
	for i := 0; i < 33; i++ {
		l.Sample(100)
	}
	l.Reset()
	if v := l.Sample(100); v != first {
		t.Fatalf("after reset = %f, want %f", v, first)
	}
}

func TestUnknownShapeFallsBackToSine(t *testing.T) {
	l := New(1, 1, Shape(9))
	l.Sample(4)
	if v := l.Sample(4); math.Abs(v-1) > 1e-9 {
		t.Fatalf("quarter-cycle sine = %f, want 1", v)
	}
}
