// Package config loads sonoscope settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cbegin/sonoscope-go/internal/dataset"
	"github.com/cbegin/sonoscope-go/internal/mapping"
	"github.com/cbegin/sonoscope-go/internal/synth"
)

// EnvDataURL overrides Config.DataURL when set.
const EnvDataURL = "SONOSCOPE_DATA_URL"

// Duration reads Go duration strings ("250ms") or plain seconds (0.25).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("config: line %d: duration must be a scalar", value.Line)
	}
	s := strings.TrimSpace(value.Value)
	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("config: line %d: invalid duration %q", value.Line, s)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Synth struct {
	Waveform     string  `yaml:"waveform"`
	Polyphony    int     `yaml:"polyphony"`
	Attack       float64 `yaml:"attack"`
	Decay        float64 `yaml:"decay"`
	Sustain      float64 `yaml:"sustain"`
	Release      float64 `yaml:"release"`
	Gain         float64 `yaml:"gain"`
	VibratoCents float64 `yaml:"vibrato_cents,omitempty"`
	VibratoHz    float64 `yaml:"vibrato_hz,omitempty"`
}

// Params converts the section to synth parameters.
func (s Synth) Params() (synth.Params, error) {
	wf, err := synth.ParseWaveform(s.Waveform)
	if err != nil {
		return synth.Params{}, err
	}
	return synth.Params{
		Polyphony:    s.Polyphony,
		Waveform:     wf,
		AttackSec:    s.Attack,
		DecaySec:     s.Decay,
		SustainLvl:   s.Sustain,
		ReleaseSec:   s.Release,
		MasterGain:   s.Gain,
		VibratoCents: s.VibratoCents,
		VibratoHz:    s.VibratoHz,
	}, nil
}

type Reverb struct {
	Enabled bool    `yaml:"enabled"`
	Room    float64 `yaml:"room"`
	Decay   float64 `yaml:"decay"`
	Wet     float64 `yaml:"wet"`
}

type Server struct {
	Addr           string   `yaml:"addr"`
	CSV            string   `yaml:"csv,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Clusters       int      `yaml:"clusters"`
	Seed           int64    `yaml:"seed"`
}

type Config struct {
	DataURL      string   `yaml:"data_url"`
	DataFile     string   `yaml:"data_file,omitempty"`
	Preset       string   `yaml:"preset"`
	SampleRate   int      `yaml:"sample_rate"`
	Tempo        float64  `yaml:"tempo"`
	Step         Duration `yaml:"step"`
	NoteDuration Duration `yaml:"note_duration,omitempty"`
	Tail         Duration `yaml:"tail"`
	ScopedNotes  bool     `yaml:"scoped_notes"`
	Volume       float64  `yaml:"volume"`
	Synth        Synth    `yaml:"synth"`
	Reverb       Reverb   `yaml:"reverb"`
	Server       Server   `yaml:"server"`
}

func Default() Config {
	p := synth.DefaultParams()
	return Config{
		DataURL:    dataset.DefaultBaseURL,
		Preset:     string(mapping.PresetPCA),
		SampleRate: 48000,
		Tempo:      120,
		Step:       Duration(250 * time.Millisecond),
		Tail:       Duration(200 * time.Millisecond),
		Volume:     1,
		Synth: Synth{
			Waveform:  p.Waveform.String(),
			Polyphony: p.Polyphony,
			Attack:    p.AttackSec,
			Decay:     p.DecaySec,
			Sustain:   p.SustainLvl,
			Release:   p.ReleaseSec,
			Gain:      p.MasterGain,
		},
		Reverb: Reverb{Room: 0.7, Decay: 0.5, Wet: 0.2},
		Server: Server{
			Addr:           ":8000",
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			Clusters:       4,
			Seed:           42,
		},
	}
}

// Load reads path over the defaults. An empty path loads defaults only.
// The environment override is applied last, then the result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataURL)); v != "" {
		cfg.DataURL = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c Config) Validate() error {
	var errs []error
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample_rate %d out of range [8000, 192000]", c.SampleRate))
	}
	if c.Tempo <= 0 {
		errs = append(errs, fmt.Errorf("tempo must be positive, got %v", c.Tempo))
	}
	if c.Step <= 0 {
		errs = append(errs, fmt.Errorf("step must be positive, got %v", c.Step.Std()))
	}
	if c.Tail < 0 || c.NoteDuration < 0 {
		errs = append(errs, errors.New("tail and note_duration must not be negative"))
	}
	if c.Volume < 0 {
		errs = append(errs, fmt.Errorf("volume must not be negative, got %v", c.Volume))
	}
	if _, err := c.Synth.Params(); err != nil {
		errs = append(errs, err)
	}
	if c.Server.Clusters <= 0 {
		errs = append(errs, fmt.Errorf("server.clusters must be positive, got %d", c.Server.Clusters))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// PresetID returns the configured preset, normalised.
func (c Config) PresetID() mapping.Preset {
	return mapping.ParsePreset(c.Preset)
}
