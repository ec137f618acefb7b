// Package sketch is the drawable surface fed to the agent as visual context.
package sketch

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"slices"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"go.aimuz.me/commentator/internal/types"
)

// capSegments is the polygon resolution of round stroke caps.
const capSegments = 16

// Stroke is a completed pointer-down to pointer-up gesture.
type Stroke struct {
	Points []types.Point
	Color  color.RGBA
	Width  float64
}

// Canvas is an RGBA drawing surface with a white background.
type Canvas struct {
	mu       sync.Mutex
	img      *image.RGBA
	raster   *vector.Rasterizer
	maxWidth int
	pen      color.RGBA
	penWidth float64
	drawing  bool
	current  []types.Point
	strokes  int
	onStroke []func(Stroke)
}

// New returns a blank canvas. Snapshots wider than snapshotMaxWidth are
// downscaled; zero disables scaling.
func New(width, height, snapshotMaxWidth int) *Canvas {
	c := &Canvas{
		img:      image.NewRGBA(image.Rect(0, 0, width, height)),
		raster:   vector.NewRasterizer(width, height),
		maxWidth: snapshotMaxWidth,
		pen:      color.RGBA{A: 0xff},
		penWidth: 3,
	}
	c.fill()
	return c
}

func (c *Canvas) fill() {
	draw.Draw(c.img, c.img.Bounds(), image.White, image.Point{}, draw.Src)
}

// Bounds returns the canvas rectangle.
func (c *Canvas) Bounds() image.Rectangle { return c.img.Bounds() }

// SetPen changes the color and width used by later strokes.
func (c *Canvas) SetPen(col color.RGBA, width float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pen = col
	if width > 0 {
		c.penWidth = width
	}
}

// OnStrokeComplete registers fn, called after each completed stroke.
func (c *Canvas) OnStrokeComplete(fn func(Stroke)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStroke = append(c.onStroke, fn)
}

// PointerDown begins a stroke at p.
func (c *Canvas) PointerDown(p types.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawing = true
	c.current = append(c.current[:0], p)
	c.dot(p)
}

// PointerMove extends the stroke in progress. Ignored when not drawing.
func (c *Canvas) PointerMove(p types.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.drawing {
		return
	}
	prev := c.current[len(c.current)-1]
	c.current = append(c.current, p)
	c.segment(prev, p)
}

// PointerUp completes the stroke in progress.
func (c *Canvas) PointerUp() { c.finish() }

// PointerLeave completes the stroke in progress, as when the pointer
// leaves the surface.
func (c *Canvas) PointerLeave() { c.finish() }

func (c *Canvas) finish() {
	c.mu.Lock()
	if !c.drawing {
		c.mu.Unlock()
		return
	}
	c.drawing = false
	c.strokes++
	s := Stroke{Points: slices.Clone(c.current), Color: c.pen, Width: c.penWidth}
	c.current = c.current[:0]
	hooks := c.onStroke
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(s)
	}
}

// Draw replays a whole stroke: down at the first point, moves, then up.
func (c *Canvas) Draw(points []types.Point) {
	if len(points) == 0 {
		return
	}
	c.PointerDown(points[0])
	for _, p := range points[1:] {
		c.PointerMove(p)
	}
	c.PointerUp()
}

// Strokes returns the number of completed strokes since the last Clear.
func (c *Canvas) Strokes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strokes
}

// Clear wipes the surface. A stroke in progress is abandoned.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fill()
	c.drawing = false
	c.current = c.current[:0]
	c.strokes = 0
}

// dot paints a round pen tip at p.
func (c *Canvas) dot(p types.Point) {
	b := c.img.Bounds()
	c.raster.Reset(b.Dx(), b.Dy())
	c.circle(p)
	c.paint()
}

// segment paints a line from a to b with round caps.
func (c *Canvas) segment(a, b types.Point) {
	bounds := c.img.Bounds()
	c.raster.Reset(bounds.Dx(), bounds.Dy())

	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	if l := math.Hypot(dx, dy); l > 0 {
		half := c.penWidth / 2
		// n is d rotated by +90 degrees, scaled to half the pen width.
		nx, ny := float32(-dy/l*half), float32(dx/l*half)
		c.raster.MoveTo(a.X+nx, a.Y+ny)
		c.raster.LineTo(b.X+nx, b.Y+ny)
		c.raster.LineTo(b.X-nx, b.Y-ny)
		c.raster.LineTo(a.X-nx, a.Y-ny)
		c.raster.ClosePath()
	}
	c.circle(a)
	c.circle(b)
	c.paint()
}

// circle adds a pen-sized disc. The winding matches segment's quads so
// overlapping shapes accumulate instead of cancelling.
func (c *Canvas) circle(p types.Point) {
	r := c.penWidth / 2
	for i := 0; i <= capSegments; i++ {
		theta := -2 * math.Pi * float64(i) / capSegments
		x := p.X + float32(r*math.Cos(theta))
		y := p.Y + float32(r*math.Sin(theta))
		if i == 0 {
			c.raster.MoveTo(x, y)
		} else {
			c.raster.LineTo(x, y)
		}
	}
	c.raster.ClosePath()
}

func (c *Canvas) paint() {
	c.raster.Draw(c.img, c.img.Bounds(), image.NewUniform(c.pen), image.Point{})
}

// At returns the color of one pixel.
func (c *Canvas) At(x, y int) color.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.img.RGBAAt(x, y)
}

// Snapshot is a PNG capture of the canvas.
type Snapshot struct {
	PNG    []byte
	Width  int
	Height int
}

// Base64 returns the PNG bytes in standard base64.
func (s Snapshot) Base64() string {
	return base64.StdEncoding.EncodeToString(s.PNG)
}

// DataURL returns the snapshot as a data:image/png URL.
func (s Snapshot) DataURL() string {
	return "data:image/png;base64," + s.Base64()
}

// Snapshot encodes the current surface as PNG, downscaled to the configured
// maximum width.
func (c *Canvas) Snapshot() (Snapshot, error) {
	c.mu.Lock()
	src := image.NewRGBA(c.img.Bounds())
	copy(src.Pix, c.img.Pix)
	maxWidth := c.maxWidth
	c.mu.Unlock()

	var out image.Image = src
	b := src.Bounds()
	if maxWidth > 0 && b.Dx() > maxWidth {
		h := max(1, b.Dy()*maxWidth/b.Dx())
		dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return Snapshot{}, fmt.Errorf("encode png: %w", err)
	}
	ob := out.Bounds()
	return Snapshot{PNG: buf.Bytes(), Width: ob.Dx(), Height: ob.Dy()}, nil
}
