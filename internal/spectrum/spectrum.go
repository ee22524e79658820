// Package spectrum analyses rendered audio for the scope display.
package spectrum

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	FFTSize    = 2048
	ringBufLen = 131072
)

// Analyzer keeps the most recent mono samples tapped from the output.
type Analyzer struct {
	mu          sync.Mutex
	sampleRate  int
	ring        []float32
	writePos    int
	totalTapped int64
}

func NewAnalyzer(sampleRate int) *Analyzer {
	return &Analyzer{
		sampleRate: sampleRate,
		ring:       make([]float32, ringBufLen),
	}
}

func (a *Analyzer) SampleRate() int { return a.sampleRate }

// Tap copies interleaved stereo samples into the ring as mono. It runs on
// the audio thread.
func (a *Analyzer) Tap(samples []float32) {
	a.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		a.ring[a.writePos] = (samples[i] + samples[i+1]) * 0.5
		a.writePos = (a.writePos + 1) % ringBufLen
		a.totalTapped++
	}
	a.mu.Unlock()
}

func (a *Analyzer) Reset() {
	a.mu.Lock()
	for i := range a.ring {
		a.ring[i] = 0
	}
	a.writePos = 0
	a.totalTapped = 0
	a.mu.Unlock()
}

// Tapped returns the number of frames seen since the last Reset.
func (a *Analyzer) Tapped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalTapped
}

// Snapshot returns n samples ending at what the listener hears now.
// heard is the device position in frames; a negative value means the
// newest samples.
func (a *Analyzer) Snapshot(n int, heard int64) []float32 {
	if n > ringBufLen {
		n = ringBufLen
	}
	out := make([]float32, n)
	a.mu.Lock()
	delay := 0
	if heard >= 0 {
		delay = int(a.totalTapped - heard)
	}
	if delay < 0 {
		delay = 0
	}
	if delay > ringBufLen-n {
		delay = ringBufLen - n
	}
	start := (a.writePos - delay - n + ringBufLen*2) % ringBufLen
	for i := 0; i < n; i++ {
		out[i] = a.ring[(start+i)%ringBufLen]
	}
	a.mu.Unlock()
	return out
}

// Magnitudes returns the Hann-windowed magnitude spectrum of the last
// FFTSize samples, bins 0..FFTSize/2.
func Magnitudes(samples []float32) []float64 {
	if len(samples) < FFTSize {
		return nil
	}
	buf := make([]float64, FFTSize)
	tail := samples[len(samples)-FFTSize:]
	for i, s := range tail {
		buf[i] = float64(s)
	}
	window.Apply(buf, window.Hann)
	spec := fft.FFTReal(buf)
	mags := make([]float64, FFTSize/2+1)
	for i := range mags {
		mags[i] = cmplx.Abs(spec[i])
	}
	return mags
}

// PeakFrequency returns the frequency of the loudest bin, refined by
// parabolic interpolation. Zero when there are too few samples.
func PeakFrequency(samples []float32, sampleRate int) float64 {
	mags := Magnitudes(samples)
	if mags == nil {
		return 0
	}
	best := 1
	for i := 2; i < len(mags)-1; i++ {
		if mags[i] > mags[best] {
			best = i
		}
	}
	offset := 0.0
	if best > 0 && best < len(mags)-1 {
		a, b, c := mags[best-1], mags[best], mags[best+1]
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}
	return (float64(best) + offset) * float64(sampleRate) / FFTSize
}

// Bars maps the spectrum onto numBars log-spaced bands up to ~18 kHz,
// each normalised from -80 dB..0 dB to 0..1.
func Bars(samples []float32, sampleRate, numBars int) []float64 {
	mags := Magnitudes(samples)
	if mags == nil || numBars <= 0 {
		return nil
	}
	half := FFTSize / 2
	minBin := 1
	maxBin := half * 18000 / (sampleRate / 2)
	if maxBin > half {
		maxBin = half
	}
	logMin := math.Log(float64(minBin))
	logMax := math.Log(float64(maxBin))
	bars := make([]float64, numBars)
	for i := range bars {
		frac0 := float64(i) / float64(numBars)
		frac1 := float64(i+1) / float64(numBars)
		start := int(math.Exp(logMin + frac0*(logMax-logMin)))
		end := int(math.Exp(logMin + frac1*(logMax-logMin)))
		if end <= start {
			end = start + 1
		}
		if end > half {
			end = half
		}
		sum := 0.0
		for b := start; b < end; b++ {
			sum += mags[b]
		}
		avg := sum / float64(end-start)
		db := 20 * math.Log10(avg/FFTSize+1e-10)
		bars[i] = math.Max(0, math.Min(1, (db+80)/80))
	}
	return bars
}

// Smoother eases bar heights: fast attack, slow decay.
type Smoother struct {
	bins []float64
}

func (s *Smoother) Apply(bars []float64) []float64 {
	if len(s.bins) != len(bars) {
		s.bins = make([]float64, len(bars))
	}
	for i, v := range bars {
		prev := s.bins[i]
		if v > prev {
			s.bins[i] = prev*0.3 + v*0.7
		} else {
			s.bins[i] = prev*0.85 + v*0.15
		}
	}
	return s.bins
}

// ZeroCrossing finds a rising zero crossing in the first searchLen samples
// so the waveform display stays still.
func ZeroCrossing(samples []float32, searchLen int) int {
	if searchLen > len(samples)-2 {
		searchLen = len(samples) - 2
	}
	for i := 1; i < searchLen; i++ {
		if samples[i-1] <= 0 && samples[i] > 0 {
			return i
		}
	}
	return 0
}
