package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"strings"
	"time"

	"github.com/cbegin/sonoscope-go"
	"github.com/cbegin/sonoscope-go/internal/config"
	"github.com/cbegin/sonoscope-go/internal/dataset"
	"github.com/cbegin/sonoscope-go/internal/embedding"
	"github.com/cbegin/sonoscope-go/internal/mapping"
	"github.com/cbegin/sonoscope-go/internal/spectrum"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const (
	windowW    = 1100
	windowH    = 720
	minWindowW = 980
	minWindowH = 680

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	tableRows    = 30
	pointSize    = 6
	pickRadius   = 8
	fetchTimeout = 10 * time.Second
)

var (
	bgColor         = color.RGBA{192, 192, 192, 255}
	panelColor      = color.RGBA{192, 192, 192, 255}
	borderColor     = color.RGBA{128, 128, 128, 255}
	highlightColor  = color.RGBA{0, 0, 128, 255}
	disabledText    = color.RGBA{128, 128, 128, 255}
	plotBgColor     = color.RGBA{250, 250, 250, 255}
	plotGridColor   = color.RGBA{224, 224, 224, 255}
	activeRingColor = color.RGBA{0, 0, 0, 255}
	sliderFillColor = color.RGBA{0, 0, 128, 255}
	bevelLight      = color.RGBA{255, 255, 255, 255}
	bevelDarker     = color.RGBA{64, 64, 64, 255}
	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	loadingMessage  = "Loading points..."

	// Matplotlib tab10 order, indexed by cluster mod 4.
	clusterColors = [...]color.RGBA{
		{0x1f, 0x77, 0xb4, 255},
		{0xff, 0x7f, 0x0e, 255},
		{0x2c, 0xa0, 0x2c, 255},
		{0xd6, 0x27, 0x28, 255},
	}
)

type loadResult struct {
	points []dataset.Point
	source string
	err    error
}

type game struct {
	player   *sonoscope.Player
	events   <-chan sonoscope.PlaybackEvent
	analyzer *spectrum.Analyzer
	smoother spectrum.Smoother
	scopeImg *ebiten.Image
	scopeW   int
	scopeH   int
	wavePeak float64

	points  []dataset.Point
	loading <-chan loadResult

	presets   []mapping.PresetInfo
	presetIdx int
	volume    float64
	dragging  bool

	activeID  int
	hoverID   int
	status    string
	statusErr bool

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(cfg config.Config, local bool, csvPath string) (*game, error) {
	a := spectrum.NewAnalyzer(cfg.SampleRate)
	pl, err := sonoscope.NewPlayerFromConfig(cfg, sonoscope.WithSampleTap(a.Tap))
	if err != nil {
		return nil, err
	}
	presets := mapping.Presets()
	presetIdx := 0
	for i, p := range presets {
		if p.ID == cfg.PresetID() {
			presetIdx = i
		}
	}
	g := &game{
		player:    pl,
		events:    pl.Watch(),
		analyzer:  a,
		presets:   presets,
		presetIdx: presetIdx,
		volume:    pl.MasterVolume(),
		activeID:  -1,
		hoverID:   -1,
		status:    loadingMessage,
		textCache: make(map[string]*ebiten.Image, 1024),
		viewW:     windowW,
		viewH:     windowH,
	}
	g.loading = startLoad(cfg, local, csvPath)
	return g, nil
}

// startLoad fetches the dataset off the UI goroutine.
func startLoad(cfg config.Config, local bool, csvPath string) <-chan loadResult {
	ch := make(chan loadResult, 1)
	go func() {
		var res loadResult
		switch {
		case csvPath != "":
			res.source = csvPath
			tbl, err := embedding.LoadCSV(csvPath)
			if err == nil {
				res.points, err = embedding.Build(tbl, embedding.Options{Clusters: cfg.Server.Clusters, Seed: cfg.Server.Seed})
			}
			res.err = err
		case local:
			res.source = "embedded iris"
			res.points, res.err = embedding.Build(embedding.Iris(), embedding.Options{Clusters: cfg.Server.Clusters, Seed: cfg.Server.Seed})
		case strings.TrimSpace(cfg.DataFile) != "":
			res.source = cfg.DataFile
			res.points, res.err = dataset.LoadFile(cfg.DataFile)
		default:
			client := dataset.NewClient(nil, cfg.DataURL)
			res.source = client.BaseURL()
			ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
			res.points, res.err = client.Fetch(ctx)
			cancel()
		}
		ch <- res
	}()
	return ch
}

func (g *game) Update() error {
	g.pollLoad()
	g.pollEvents()
	g.handleMouse()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)

	l := g.layoutRects()

	g.drawSunkenPanel(screen, l.table)
	g.drawPlotPanel(screen, l.plot)
	g.drawDarkPanel(screen, l.spectrum)
	g.drawButton(screen, l.play, "Play all", g.canPlayAll())
	g.drawButton(screen, l.stop, "Stop", g.player.Running())
	g.drawButton(screen, l.preset, g.presetLabel(), true)
	g.drawVolumeSlider(screen, l.volume)
	g.drawSunkenPanel(screen, l.status)

	g.drawTable(screen, l.table)
	g.drawScatter(screen, l.plot)
	g.drawSpectrum(screen, l.spectrum)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	if outsideW < minWindowW {
		outsideW = minWindowW
	}
	if outsideH < minWindowH {
		outsideH = minWindowH
	}
	g.viewW = outsideW
	g.viewH = outsideH
	return outsideW, outsideH
}

func (g *game) Close() { _ = g.player.Close() }

func (g *game) pollLoad() {
	if g.loading == nil {
		return
	}
	select {
	case res := <-g.loading:
		g.loading = nil
		if res.err != nil {
			g.points = nil
			g.setError(res.err.Error())
			return
		}
		g.points = res.points
		g.setStatus(fmt.Sprintf("Loaded %d points from %s", len(res.points), res.source))
	default:
	}
}

func (g *game) pollEvents() {
	for {
		select {
		case ev, ok := <-g.events:
			if !ok {
				return
			}
			switch ev.Kind {
			case sonoscope.EventNote:
				g.activeID = ev.PointID
			case sonoscope.EventSequenceEnded:
				g.activeID = -1
				if !g.statusErr {
					g.status = "Playback ended"
				}
			case sonoscope.EventStopped:
				g.activeID = -1
			}
		default:
			return
		}
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	g.hoverID = -1
	if pointInRect(mx, my, l.plot) {
		g.hoverID = g.pickPoint(mx, my, l.plot)
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			g.playAll()
			return
		case pointInRect(mx, my, l.stop):
			g.player.StopAll()
			g.setStatus("Stopped")
			return
		case pointInRect(mx, my, l.preset):
			g.cyclePreset()
			return
		case pointInRect(mx, my, l.volume):
			g.dragging = true
			g.updateVolumeFromMouse(mx, l.volume)
			return
		case pointInRect(mx, my, l.plot):
			if g.hoverID >= 0 {
				g.playPoint(g.hoverID)
			}
			return
		case pointInRect(mx, my, l.table):
			g.clickTable(my, l.table)
			return
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragging = false
	}
	if g.dragging {
		g.updateVolumeFromMouse(mx, l.volume)
	}
}

type uiLayout struct {
	table, plot, spectrum image.Rectangle
	play, stop, preset    image.Rectangle
	volume, status        image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w := max(g.viewW, minWindowW)
	h := max(g.viewH, minWindowH)

	pad := 20
	rowH := 44
	statusH := 40

	statusTop := h - pad - statusH
	controlsTop := statusTop - 8 - rowH
	contentBottom := controlsTop - 12

	// Left column: point table.
	tableW := 360
	tableRect := image.Rect(pad, pad, pad+tableW, contentBottom)

	// Right column: scatterplot over the scope.
	rightX := tableRect.Max.X + 12
	rightW := w - rightX - pad
	contentH := contentBottom - pad
	scopeH := int(float64(contentH) * 0.28)
	scopeH = max(120, min(scopeH, 220))
	plotRect := image.Rect(rightX, pad, rightX+rightW, contentBottom-scopeH-12)
	spectrumRect := image.Rect(rightX, plotRect.Max.Y+12, rightX+rightW, contentBottom)

	playRect := image.Rect(pad, controlsTop, pad+150, controlsTop+rowH)
	stopRect := image.Rect(pad+162, controlsTop, pad+272, controlsTop+rowH)
	presetRect := image.Rect(pad+284, controlsTop, pad+560, controlsTop+rowH)
	volRight := min(pad+572+300, w-pad)
	volumeRect := image.Rect(pad+572, controlsTop, volRight, controlsTop+rowH)

	statusRect := image.Rect(pad, statusTop, w-pad, statusTop+statusH)

	return uiLayout{
		table: tableRect, plot: plotRect, spectrum: spectrumRect,
		play: playRect, stop: stopRect, preset: presetRect,
		volume: volumeRect, status: statusRect,
	}
}

// plotArea is the inner scatterplot region with room for the bevel.
func plotArea(rect image.Rectangle) image.Rectangle {
	return image.Rect(rect.Min.X+16, rect.Min.Y+16, rect.Max.X-16, rect.Max.Y-16)
}

// toScreen maps an embedding to pixels. y grows upward like a chart.
func toScreen(e dataset.Embedding, area image.Rectangle) (float64, float64) {
	x := float64(area.Min.X) + clamp(e.X, 0, 1)*float64(area.Dx())
	y := float64(area.Max.Y) - clamp(e.Y, 0, 1)*float64(area.Dy())
	return x, y
}

func (g *game) pickPoint(mx, my int, rect image.Rectangle) int {
	area := plotArea(rect)
	best, bestDist := -1, float64(pickRadius*pickRadius)
	for i, p := range g.points {
		x, y := toScreen(p.Embedding, area)
		dx, dy := x-float64(mx), y-float64(my)
		if d := dx*dx + dy*dy; d <= bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func (g *game) drawPlotPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), plotBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawScatter(screen *ebiten.Image, rect image.Rectangle) {
	area := plotArea(rect)
	for i := 1; i < 4; i++ {
		gx := float64(area.Min.X) + float64(area.Dx()*i)/4
		gy := float64(area.Min.Y) + float64(area.Dy()*i)/4
		ebitenutil.DrawRect(screen, gx, float64(area.Min.Y), 1, float64(area.Dy()), plotGridColor)
		ebitenutil.DrawRect(screen, float64(area.Min.X), gy, float64(area.Dx()), 1, plotGridColor)
	}
	if len(g.points) == 0 {
		msg := loadingMessage
		if g.loading == nil {
			msg = "No points"
		}
		g.drawTextColor(screen, msg, area.Min.X+8, area.Min.Y+8, disabledText)
		return
	}
	half := float64(pointSize) / 2
	for i, p := range g.points {
		x, y := toScreen(p.Embedding, area)
		if i == g.hoverID || p.ID == g.activeID {
			ebitenutil.DrawRect(screen, x-half-2, y-half-2, pointSize+4, pointSize+4, activeRingColor)
		}
		ebitenutil.DrawRect(screen, x-half, y-half, pointSize, pointSize, clusterColor(p.Cluster))
	}
}

func clusterColor(cluster int) color.RGBA {
	n := len(clusterColors)
	return clusterColors[((cluster%n)+n)%n]
}

func (g *game) drawTable(screen *ebiten.Image, rect image.Rectangle) {
	g.drawText(screen, fmt.Sprintf("%4s %3s %6s %6s", "id", "cl", "x", "y"), rect.Min.X+8, rect.Min.Y+8)
	top := rect.Min.Y + 12 + lineH
	maxLines := min(tableRows, (rect.Dy()-lineH-20)/lineH)
	for i := 0; i < maxLines && i < len(g.points); i++ {
		p := g.points[i]
		y := top + i*lineH
		if p.ID == g.activeID {
			ebitenutil.DrawRect(screen, float64(rect.Min.X+6), float64(y-2), float64(rect.Dx()-12), float64(lineH+2), highlightColor)
		}
		ebitenutil.DrawRect(screen, float64(rect.Min.X+10), float64(y+8), 10, 10, clusterColor(p.Cluster))
		row := fmt.Sprintf("%4d %3d %6.3f %6.3f", p.ID, p.Cluster, p.Embedding.X, p.Embedding.Y)
		g.drawText(screen, row, rect.Min.X+24, y)
	}
}

func (g *game) clickTable(my int, rect image.Rectangle) {
	top := rect.Min.Y + 12 + lineH
	row := (my - top) / lineH
	if my < top || row >= tableRows || row >= len(g.points) {
		return
	}
	g.playPoint(row)
}

func (g *game) drawSpectrum(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-8)
	width := inner.Dx()
	height := inner.Dy()
	if width <= 0 || height <= 0 {
		return
	}
	if g.scopeImg == nil || g.scopeW != width || g.scopeH != height {
		g.scopeW = width
		g.scopeH = height
		g.scopeImg = ebiten.NewImage(width, height)
	}
	g.scopeImg.Fill(color.RGBA{14, 16, 22, 255})

	snap := g.analyzer.Snapshot(spectrum.FFTSize, g.player.PlaybackPosition())

	waveH := int(float64(height) * 0.45)
	g.drawWaveform(g.scopeImg, snap, width, waveH)
	ebitenutil.DrawRect(g.scopeImg, 0, float64(waveH), float64(width), 1, color.RGBA{50, 54, 68, 180})
	specY := waveH + 1
	g.drawSpectrumBars(g.scopeImg, snap, width, height-specY, specY)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(g.scopeImg, op)
}

func (g *game) drawWaveform(dst *ebiten.Image, samples []float32, width int, height int) {
	if len(samples) < 2 || width < 2 || height < 4 {
		return
	}
	midY := height / 2
	ebitenutil.DrawRect(dst, 0, float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	peak := 0.0
	for _, s := range samples {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	target := math.Max(peak, 0.01)
	if target > g.wavePeak {
		g.wavePeak = g.wavePeak*0.3 + target*0.7
	} else {
		g.wavePeak = g.wavePeak*0.995 + target*0.005
	}
	g.wavePeak = math.Max(g.wavePeak, 0.01)
	gain := float64(midY-2) / g.wavePeak

	trigger := spectrum.ZeroCrossing(samples, len(samples)/4)
	visible := max(2, len(samples)-trigger)
	waveColor := color.RGBA{80, 200, 255, 220}
	prevX := 0
	prevY := midY - int(float64(samples[trigger])*gain)
	for px := 1; px < width; px++ {
		si := min(trigger+px*visible/width, len(samples)-1)
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(dst, float64(prevX), float64(prevY), float64(px), float64(y), waveColor)
		prevX = px
		prevY = y
	}
}

func (g *game) drawSpectrumBars(dst *ebiten.Image, samples []float32, width int, height int, yOffset int) {
	if width < 4 || height < 4 {
		return
	}
	numBars := max(16, min(width/3, 256))
	bars := spectrum.Bars(samples, g.analyzer.SampleRate(), numBars)
	if bars == nil {
		return
	}
	bars = g.smoother.Apply(bars)
	barW := float64(width) / float64(numBars)
	for i, v := range bars {
		barH := math.Max(1, v*float64(height-4))
		x := float64(i) * barW
		y := float64(yOffset) + float64(height-2) - barH
		r, gr, b := spectrumColor(v)
		ebitenutil.DrawRect(dst, x+1, y, barW-1, barH, color.RGBA{r, gr, b, 220})
	}
}

func spectrumColor(v float64) (uint8, uint8, uint8) {
	if v < 0.33 {
		t := v / 0.33
		return uint8(30 + 20*t), uint8(80 + 120*t), uint8(200 + 55*t)
	}
	if v < 0.66 {
		t := (v - 0.33) / 0.33
		return uint8(50 + 140*t), uint8(200 + 30*t), uint8(255 - 100*t)
	}
	t := (v - 0.66) / 0.34
	return uint8(190 + 65*t), uint8(230 - 100*t), uint8(155 - 100*t)
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	if g.hoverID >= 0 && g.hoverID < len(g.points) {
		p := g.points[g.hoverID]
		sp := mapping.Resolve(p, g.preset())
		msg = fmt.Sprintf("Point %d  cluster %d  %.1f Hz  %+g st  pan %+.2f", p.ID, p.Cluster, sp.Frequency, sp.DetuneSemitones, sp.Pan)
	}
	maxChars := max(8, (rect.Dx()-16)/charW)
	g.drawText(screen, shortenEnd(msg, maxChars), rect.Min.X+8, rect.Min.Y+6)
}

func (g *game) drawVolumeSlider(screen *ebiten.Image, rect image.Rectangle) {
	g.drawPanel(screen, rect)
	g.drawText(screen, fmt.Sprintf("Vol %d%%", int(g.volume*100+0.5)), rect.Min.X+8, rect.Min.Y+8)

	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	if trackW < 20 {
		return
	}
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), 1, 7, borderColor)
	fillW := int(float64(trackW) * clamp(g.volume, 0, 1))
	if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := max(trackX-5, min(trackX+fillW-5, trackX+trackW-5))
	knobRect := image.Rect(knobX, trackY-4, knobX+10, trackY+12)
	ebitenutil.DrawRect(screen, float64(knobRect.Min.X), float64(knobRect.Min.Y), float64(knobRect.Dx()), float64(knobRect.Dy()), panelColor)
	drawBorder(screen, knobRect)
}

func (g *game) updateVolumeFromMouse(mx int, rect image.Rectangle) {
	trackX := rect.Min.X + 130
	trackW := rect.Dx() - 146
	if trackW <= 0 {
		return
	}
	v := clamp(float64(mx-trackX)/float64(trackW), 0, 1)
	g.volume = v
	g.player.SetMasterVolume(v)
	g.setStatus(fmt.Sprintf("Volume: %d%%", int(v*100+0.5)))
}

func (g *game) preset() mapping.Preset { return g.presets[g.presetIdx].ID }

func (g *game) presetLabel() string { return "Preset: " + string(g.preset()) }

func (g *game) cyclePreset() {
	g.presetIdx = (g.presetIdx + 1) % len(g.presets)
	g.setStatus(g.presets[g.presetIdx].Label)
}

func (g *game) canPlayAll() bool {
	return len(g.points) > 0 && !g.player.Running()
}

func (g *game) playAll() {
	if !g.canPlayAll() {
		return
	}
	g.analyzer.Reset()
	if err := g.player.PlaySequence(context.Background(), g.points, g.preset()); err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus(fmt.Sprintf("Playing %d points", len(g.points)))
}

func (g *game) playPoint(idx int) {
	if idx < 0 || idx >= len(g.points) {
		return
	}
	p := g.points[idx]
	if err := g.player.PlayOne(context.Background(), p, g.preset()); err != nil {
		g.setError(err.Error())
		return
	}
	g.activeID = p.ID
	g.setStatus(fmt.Sprintf("Point %d", p.ID))
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		dataURL    = flag.String("url", "", "data server base URL (overrides config)")
		dataFile   = flag.String("file", "", "read points from a JSON file")
		csvPath    = flag.String("csv", "", "build points from a numeric CSV instead of fetching")
		local      = flag.Bool("local", false, "build points from the embedded Iris table")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *dataURL != "" {
		cfg.DataURL = *dataURL
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}

	g, err := newGame(cfg, *local, *csvPath)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("sonoscope")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
