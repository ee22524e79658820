package sonoscope

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cbegin/sonoscope-go/internal/dataset"
	"github.com/cbegin/sonoscope-go/internal/spectrum"
	"github.com/cbegin/sonoscope-go/internal/synth"
)

func sineParams() synth.Params {
	p := synth.DefaultParams()
	p.Waveform = synth.Sine
	return p
}

func left(stereo []float32) []float32 {
	out := make([]float32, len(stereo)/2)
	for i := range out {
		out[i] = stereo[2*i]
	}
	return out
}

func TestRenderOnePitchFollowsEmbedding(t *testing.T) {
	const sr = 48000
	// y = 0.5 -> 600 Hz; cluster 1 has no detune.
	pt := dataset.Point{Embedding: dataset.Embedding{X: 0.5, Y: 0.5}, Cluster: 1}
	out, err := RenderOne(pt, PresetPCA, sr, 200*time.Millisecond, WithSynthParams(sineParams()))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	mono := left(out)[sr/50 : sr/50+spectrum.FFTSize]
	if got := spectrum.PeakFrequency(mono, sr); math.Abs(got-600) > 5 {
		t.Fatalf("peak = %.1f Hz, want 600", got)
	}
}

func TestRenderOneDetunesByCluster(t *testing.T) {
	const sr = 48000
	// Cluster 0 drops an octave: 600 Hz -> 300 Hz.
	pt := dataset.Point{Embedding: dataset.Embedding{X: 0.5, Y: 0.5}, Cluster: 0}
	out, err := RenderOne(pt, PresetPCA, sr, 200*time.Millisecond, WithSynthParams(sineParams()))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	mono := left(out)[sr/50 : sr/50+spectrum.FFTSize]
	if got := spectrum.PeakFrequency(mono, sr); math.Abs(got-300) > 5 {
		t.Fatalf("peak = %.1f Hz, want 300", got)
	}
}

func TestRenderSequenceLength(t *testing.T) {
	const sr = 8000
	out, err := RenderSequence(points(3), PresetClusterChords, sr)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// 3*250ms + 200ms tail + eighth note at 120 BPM + 1s release.
	want := int((950*time.Millisecond + 250*time.Millisecond + time.Second).Seconds() * sr)
	if len(out) != want*2 {
		t.Fatalf("frames = %d, want %d", len(out)/2, want)
	}
	var peak float32
	for _, s := range out {
		if s > peak {
			peak = s
		}
	}
	if peak == 0 {
		t.Fatalf("render is silent")
	}
	// Notes are fully released by the end.
	for _, s := range out[len(out)-64:] {
		if math.Abs(float64(s)) > 1e-3 {
			t.Fatalf("tail not silent: %v", s)
		}
	}
}

func TestRenderSequenceEmpty(t *testing.T) {
	out, err := RenderSequence(nil, PresetPCA, 8000)
	if err != nil || out != nil {
		t.Fatalf("empty render = %v, %v", out, err)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0, 0.5, -0.5, 1, -1, 2, -2}
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteWAVFile(path, samples, 22050); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, sr, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sr != 22050 || len(got) != len(samples) {
		t.Fatalf("sr=%d len=%d", sr, len(got))
	}
	want := []float32{0, 0, 0.5, -0.5, 1, -1, 1, -1}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-3 {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatalf("expected error")
	}
}
