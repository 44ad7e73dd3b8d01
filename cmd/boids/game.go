package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"github.com/lao-tseu-is-alive/go-boids/pkg/flock"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-boids/pkg/ui"
)

var (
	whiteImage  = ebiten.NewImage(3, 3)
	background  = color.RGBA{R: 10, G: 10, B: 30, A: 255}
	visualColor = color.RGBA{R: 50, G: 200, B: 50, A: 255}
	avoidColor  = color.RGBA{R: 255, G: 50, B: 50, A: 255}
)

func init() {
	whiteImage.Fill(color.RGBA{R: 100, G: 200, B: 255, A: 255})
}

type Game struct {
	ctx    context.Context
	engine *simulation.Engine
	logger *zap.Logger

	lastState *simulation.Snapshot

	// UI Controls
	panel      *ui.Panel
	showRanges *ui.Checkbox
	pauseBtn   *ui.Button
	paused     bool
	step       bool

	// Layout runs outside Update, the last size sent is guarded
	mu           sync.Mutex
	outW, outH   int
	resizeFailed bool

	updateAvg float64 // Rolling average in ms
}

func newGame(ctx context.Context, engine *simulation.Engine, cfg *simulation.Config, logger *zap.Logger) (*Game, error) {
	snap, err := engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	g := &Game{
		ctx:       ctx,
		engine:    engine,
		logger:    logger,
		lastState: snap,
		outW:      int(cfg.WorldWidth),
		outH:      int(cfg.WorldHeight),
	}

	p := snap.Parameters
	g.panel = ui.NewPanel("Boids", 10, 10, 240, 380)
	g.panel.AddSection("Rules")
	g.panel.AddSlider("Cohesion", 0.001, 0.1, p.CohesionWeight, g.setParameter("cohesionWeight"))
	g.panel.AddSlider("Separation", 0.001, 0.1, p.SeparationWeight, g.setParameter("separationWeight"))
	g.panel.AddSlider("Alignment", 0.001, 0.1, p.AlignmentWeight, g.setParameter("alignmentWeight"))
	g.panel.AddSection("Ranges")
	g.panel.AddSlider("Visual range", 1, 200, p.VisualRange, g.setParameter("visualRange"))
	g.panel.AddSlider("Avoid range", 1, 100, p.AvoidRange, g.setParameter("avoidRange"))
	g.showRanges = g.panel.AddCheckbox("Show ranges", false)
	g.panel.AddSection("Run")
	g.pauseBtn = g.panel.AddButton("Pause", g.togglePause)
	g.panel.AddButton("Step", func() { g.step = true })

	return g, nil
}

func (g *Game) setParameter(name string) func(float64) {
	return func(v float64) {
		if err := g.engine.UpdateParameters(g.ctx, map[string]float64{name: v}); err != nil {
			g.logger.Warn("parameter update failed", zap.String("parameter", name), zap.Error(err))
		}
	}
}

func (g *Game) togglePause() {
	g.paused = !g.paused
	if g.paused {
		g.pauseBtn.Label = "Resume"
	} else {
		g.pauseBtn.Label = "Pause"
	}
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.updateAvg = g.updateAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	g.panel.Update()

	var (
		snap *simulation.Snapshot
		err  error
	)
	if !g.paused || g.step {
		g.step = false
		snap, err = g.engine.Tick(g.ctx)
	} else {
		// keeps the view current while paused, e.g. after a resize
		snap, err = g.engine.Snapshot(g.ctx)
	}
	if err != nil {
		// keep the previous frame
		g.logger.Warn("world did not answer", zap.Error(err))
		return nil
	}
	g.lastState = snap
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	boids := g.lastState.Boids
	for _, b := range boids {
		drawBoid(screen, b)
	}
	if g.showRanges.Value && len(boids) > 0 {
		drawRanges(screen, boids[0], g.lastState.Parameters)
	}

	g.panel.Draw(screen)

	msg := fmt.Sprintf("FPS: %.1f  TPS: %.1f\nTick: %d  Boids: %d\nUpdate: %.2fms",
		ebiten.ActualFPS(), ebiten.ActualTPS(),
		g.lastState.Tick, len(boids), g.updateAvg)
	ebitenutil.DebugPrintAt(screen, msg, screen.Bounds().Dx()-200, 10)
}

// Layout makes the world follow the window size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.mu.Lock()
	changed := outsideWidth != g.outW || outsideHeight != g.outH || g.resizeFailed
	if changed {
		g.outW, g.outH = outsideWidth, outsideHeight
	}
	g.mu.Unlock()

	if changed && outsideWidth > 0 && outsideHeight > 0 {
		err := g.engine.Resize(g.ctx, float64(outsideWidth), float64(outsideHeight))
		if err != nil {
			g.logger.Warn("resize failed", zap.Error(err))
		}
		g.mu.Lock()
		g.resizeFailed = err != nil
		g.mu.Unlock()
	}
	return outsideWidth, outsideHeight
}

// drawBoid draws a triangle pointing along the velocity.
func drawBoid(screen *ebiten.Image, b flock.Boid) {
	angle := b.Velocity.Angle()
	x, y := b.Position.X, b.Position.Y

	tipX := x + math.Cos(angle)*6
	tipY := y + math.Sin(angle)*6
	rightX := x + math.Cos(angle+2.5)*5
	rightY := y + math.Sin(angle+2.5)*5
	leftX := x + math.Cos(angle-2.5)*5
	leftY := y + math.Sin(angle-2.5)*5

	vertices := []ebiten.Vertex{
		{DstX: float32(tipX), DstY: float32(tipY), SrcX: 1, SrcY: 1, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: float32(rightX), DstY: float32(rightY), SrcX: 1, SrcY: 1, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
		{DstX: float32(leftX), DstY: float32(leftY), SrcX: 1, SrcY: 1, ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1},
	}
	screen.DrawTriangles(vertices, []uint16{0, 1, 2}, whiteImage, &ebiten.DrawTrianglesOptions{})
}

// drawRanges circles the visual and avoid ranges of b.
func drawRanges(screen *ebiten.Image, b flock.Boid, p flock.Parameters) {
	x, y := float32(b.Position.X), float32(b.Position.Y)
	vector.StrokeCircle(screen, x, y, float32(p.VisualRange), 1, visualColor, true)
	vector.StrokeCircle(screen, x, y, float32(p.AvoidRange), 1, avoidColor, true)
}
