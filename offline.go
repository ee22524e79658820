package sonoscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// RenderSequence plays points through a device-less player and returns the
// interleaved stereo result, long enough for the last note to fully release.
func RenderSequence(points []Point, preset Preset, sampleRate int, opts ...PlayerOption) ([]float32, error) {
	p, err := NewPlayer(sampleRate, append(opts, WithoutAudio())...)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	if len(points) == 0 {
		return nil, nil
	}
	if err := p.PlaySequence(context.Background(), points, preset); err != nil {
		return nil, err
	}
	note := p.timing.NoteDuration
	if note <= 0 {
		p.tone.Do(func() { note = p.tone.Transport().NoteValue(8) })
	}
	release := time.Duration(p.params.ReleaseSec * float64(time.Second))
	total := p.timing.Length(len(points)) + note + release
	return p.render(int(total.Seconds() * float64(sampleRate))), nil
}

// RenderOne renders a single point for the given length.
func RenderOne(point Point, preset Preset, sampleRate int, length time.Duration, opts ...PlayerOption) ([]float32, error) {
	p, err := NewPlayer(sampleRate, append(opts, WithoutAudio())...)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	if err := p.PlayOne(context.Background(), point, preset); err != nil {
		return nil, err
	}
	return p.render(int(length.Seconds() * float64(sampleRate))), nil
}

// EncodeWAV writes interleaved stereo samples as 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return errors.New("sampleRate must be positive")
	}
	enc := wav.NewEncoder(w, sampleRate, wavBitDepth, 2, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		v := math.Max(-1, math.Min(1, float64(s)))
		data[i] = int(math.Round(v * math.MaxInt16))
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("sonoscope: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("sonoscope: finish wav: %w", err)
	}
	return nil
}

func WriteWAVFile(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sonoscope: create %s: %w", path, err)
	}
	if err := EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeWAV reads a PCM WAV file back into interleaved float samples in
// [-1, 1]. Mono input is duplicated to both channels.
func DecodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("sonoscope: not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("sonoscope: decode wav: %w", err)
	}
	scale := float32(int64(1) << (uint(dec.BitDepth) - 1))
	chans := int(dec.NumChans)
	switch chans {
	case 1:
		out := make([]float32, len(buf.Data)*2)
		for i, v := range buf.Data {
			out[2*i] = float32(v) / scale
			out[2*i+1] = out[2*i]
		}
		return out, int(dec.SampleRate), nil
	case 2:
		out := make([]float32, len(buf.Data))
		for i, v := range buf.Data {
			out[i] = float32(v) / scale
		}
		return out, int(dec.SampleRate), nil
	default:
		return nil, 0, fmt.Errorf("sonoscope: unsupported channel count %d", chans)
	}
}
