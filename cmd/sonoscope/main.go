package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cbegin/sonoscope-go"
	"github.com/cbegin/sonoscope-go/internal/config"
	"github.com/cbegin/sonoscope-go/internal/dataset"
	"github.com/cbegin/sonoscope-go/internal/mapping"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		dataURL    = flag.String("url", "", "data server base URL (overrides config)")
		dataFile   = flag.String("file", "", "read points from a JSON file instead of the server")
		presetName = flag.String("preset", "", "mapping preset: pca|clusterChords")
		pointID    = flag.Int("id", -1, "play only the point with this id")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate")
		tempo      = flag.Float64("tempo", 0, "transport BPM; sets the default note length")
		step       = flag.Duration("step", 0, "gap between sequence notes")
		scoped     = flag.Bool("scoped", false, "give every note its own pan and detune")
		volume     = flag.Float64("volume", -1, "master volume scalar")
		outPath    = flag.String("out", "", "render to this WAV file instead of the speakers")
		list       = flag.Bool("list", false, "list presets and exit")
	)
	flag.Parse()

	if *list {
		for _, p := range mapping.Presets() {
			fmt.Printf("%-14s %s\n", p.ID, p.Label)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url":
			cfg.DataURL = *dataURL
		case "file":
			cfg.DataFile = *dataFile
		case "preset":
			cfg.Preset = *presetName
		case "sample-rate":
			cfg.SampleRate = *sampleRate
		case "tempo":
			cfg.Tempo = *tempo
		case "step":
			cfg.Step = config.Duration(*step)
		case "scoped":
			cfg.ScopedNotes = *scoped
		case "volume":
			cfg.Volume = *volume
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	preset := cfg.PresetID()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	points, err := loadPoints(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if *pointID >= 0 {
		points, err = selectPoint(points, *pointID)
		if err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("loaded %d points, preset %s", len(points), preset)

	if strings.TrimSpace(*outPath) != "" {
		if err := renderToFile(cfg, points, preset, *outPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	pl, err := sonoscope.NewPlayerFromConfig(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pl.Close()

	if len(points) == 1 {
		if err := pl.PlayOne(ctx, points[0], preset); err != nil {
			log.Fatal(err)
		}
		select {
		case <-ctx.Done():
		case <-time.After(pl.Timing().Step + 1500*time.Millisecond):
		}
		return
	}

	ch := pl.Watch()
	if err := pl.PlaySequence(ctx, points, preset); err != nil {
		log.Fatal(err)
	}
	for {
		select {
		case <-ctx.Done():
			pl.StopAll()
			fmt.Println("stopped")
			return
		case ev := <-ch:
			switch ev.Kind {
			case sonoscope.EventNote:
				fmt.Printf("note %d (point %d)\n", ev.Index, ev.PointID)
			case sonoscope.EventSequenceEnded:
				fmt.Println("playback completed")
				// Let the last release ring out.
				time.Sleep(time.Second)
				return
			case sonoscope.EventStopped:
				return
			}
		}
	}
}

func loadPoints(ctx context.Context, cfg config.Config) ([]dataset.Point, error) {
	if strings.TrimSpace(cfg.DataFile) != "" {
		return dataset.LoadFile(cfg.DataFile)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return dataset.NewClient(nil, cfg.DataURL).Fetch(fetchCtx)
}

func selectPoint(points []dataset.Point, id int) ([]dataset.Point, error) {
	for _, p := range points {
		if p.ID == id {
			return []dataset.Point{p}, nil
		}
	}
	return nil, fmt.Errorf("no point with id %d", id)
}

func renderToFile(cfg config.Config, points []dataset.Point, preset mapping.Preset, path string) error {
	opts, err := sonoscope.ConfigOptions(cfg)
	if err != nil {
		return err
	}
	var samples []float32
	if len(points) == 1 {
		samples, err = sonoscope.RenderOne(points[0], preset, cfg.SampleRate, 1500*time.Millisecond, opts...)
	} else {
		samples, err = sonoscope.RenderSequence(points, preset, cfg.SampleRate, opts...)
	}
	if err != nil {
		return err
	}
	if err := sonoscope.WriteWAVFile(path, samples, cfg.SampleRate); err != nil {
		return err
	}
	log.Printf("wrote %s (%.2fs)", path, float64(len(samples)/2)/float64(cfg.SampleRate))
	return nil
}
