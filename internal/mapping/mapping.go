// Package mapping turns dataset points into audio parameters.
//
// All functions are pure: the same point and preset always produce the same
// parameters. Input ranges are not validated; embeddings outside [0, 1]
// extrapolate linearly.
package mapping

import (
	"strings"

	"github.com/cbegin/sonoscope-go/internal/dataset"
)

// Preset selects one point-to-sound rule set.
type Preset string

const (
	PresetPCA           Preset = "pca"
	PresetClusterChords Preset = "clusterChords"
)

// Frequency range of the pca preset, in Hz.
const (
	MinFreq = 200.0
	MaxFreq = 1000.0
)

// DetuneTable is indexed by cluster (mod len) under the pca preset, in semitones.
var DetuneTable = [...]float64{-12, 0, 7, 12}

// ChordTable is indexed by cluster (mod len) under the clusterChords preset:
// A3, C4, E4, G4.
var ChordTable = [...]float64{220, 261.63, 329.63, 392}

// PresetInfo describes a selectable preset.
type PresetInfo struct {
	ID    Preset
	Label string
}

var presets = []PresetInfo{
	{ID: PresetPCA, Label: "PCA (y -> pitch, cluster -> detune)"},
	{ID: PresetClusterChords, Label: "Cluster chords"},
}

// Presets returns the known presets in display order.
func Presets() []PresetInfo {
	out := make([]PresetInfo, len(presets))
	copy(out, presets)
	return out
}

// Lookup reports whether id names a known preset.
func Lookup(id Preset) (PresetInfo, bool) {
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return PresetInfo{}, false
}

// ParsePreset matches user input against the known presets, ignoring case
// and surrounding space. Unknown input is returned as-is so the mapping
// functions apply their fallback.
func ParsePreset(s string) Preset {
	trimmed := strings.TrimSpace(s)
	for _, p := range presets {
		if strings.EqualFold(string(p.ID), trimmed) {
			return p.ID
		}
	}
	return Preset(trimmed)
}

// Params is the resolved sound of one point.
type Params struct {
	Frequency       float64
	DetuneSemitones float64
	Pan             float64
}

// DetuneCents converts the detune to cents, the synth's unit.
func (p Params) DetuneCents() float64 {
	return p.DetuneSemitones * 100
}

// Resolve computes all three parameters for a point.
func Resolve(p dataset.Point, preset Preset) Params {
	return Params{
		Frequency:       FrequencyFor(p, preset),
		DetuneSemitones: DetuneSemitonesFor(p, preset),
		Pan:             PanFor(p.Embedding),
	}
}

// FrequencyFor returns the tone frequency in Hz. Unknown presets use the pca rule.
func FrequencyFor(p dataset.Point, preset Preset) float64 {
	switch preset {
	case PresetClusterChords:
		return ChordTable[wrap(p.Cluster, len(ChordTable))]
	default:
		return MinFreq + p.Embedding.Y*(MaxFreq-MinFreq)
	}
}

// DetuneSemitonesFor returns the detune in semitones. Unknown presets are neutral.
func DetuneSemitonesFor(p dataset.Point, preset Preset) float64 {
	switch preset {
	case PresetPCA:
		return DetuneTable[wrap(p.Cluster, len(DetuneTable))]
	default:
		// clusterChords already encodes the chord tone in the frequency.
		return 0
	}
}

// PanFor maps x in [0, 1] to a stereo position in [-1, 1].
func PanFor(e dataset.Embedding) float64 {
	return e.X*2 - 1
}

func wrap(i, n int) int {
	m := i % n
	if m < 0 {
		m += n
	}
	return m
}
