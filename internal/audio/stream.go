// Package audio connects a frame renderer to the system audio device.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills dst with interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader exposes a SampleSource as the 32-bit float little-endian
// stereo byte stream the device player pulls from.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
	closed bool
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Output is a running connection to the audio device.
type Output interface {
	Play()
	Pause()
	IsPlaying() bool
	// Position is how much audio the listener has actually heard.
	Position() time.Duration
	Close() error
}

// OutputFactory opens an Output that pulls from source.
type OutputFactory func(sampleRate int, source SampleSource) (Output, error)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio: context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

type devicePlayer struct {
	player *ebitaudio.Player
	reader *StreamReader
}

// OpenDevice is the OutputFactory for the system audio device. The ebiten
// audio context is process-wide, so every Output must share one sample rate.
func OpenDevice(sampleRate int, source SampleSource) (Output, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("audio: open player: %w", err)
	}
	// Short buffer keeps scheduling latency low.
	pl.SetBufferSize(40 * time.Millisecond)
	return &devicePlayer{player: pl, reader: reader}, nil
}

func (p *devicePlayer) Play()                   { p.player.Play() }
func (p *devicePlayer) Pause()                  { p.player.Pause() }
func (p *devicePlayer) IsPlaying() bool         { return p.player.IsPlaying() }
func (p *devicePlayer) Position() time.Duration { return p.player.Position() }

func (p *devicePlayer) Close() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return err
	}
	return p.reader.Close()
}
