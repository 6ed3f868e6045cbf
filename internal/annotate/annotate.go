// Package annotate renders the pipeline's working state onto frames:
// lane outlines, tracked boxes, live counts, and the FPS readout. Pure
// presentation; nothing here feeds back into tracking or statistics.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/lanewatch-data/lanewatch/internal/lanes"
	"github.com/lanewatch-data/lanewatch/internal/stats"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

var (
	laneColor  = color.RGBA{R: 80, G: 170, B: 255, A: 255}
	boxColor   = color.RGBA{R: 60, G: 220, B: 60, A: 255}
	textColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	panelColor = color.RGBA{R: 0, G: 0, B: 0, A: 180}
)

// Annotator draws overlays for a fixed lane layout.
type Annotator struct {
	laneDefs []lanes.LaneDefinition
	face     font.Face
}

// New creates an annotator for the given lane definitions.
func New(laneDefs []lanes.LaneDefinition) *Annotator {
	return &Annotator{
		laneDefs: laneDefs,
		face:     basicfont.Face7x13,
	}
}

// Render draws onto a copy of the frame image and returns it; the source
// frame is left untouched so sinks running behind the loop never observe
// a half-drawn buffer.
func (a *Annotator) Render(frame *video.Frame, objects []video.TrackedObject, laneIDs []string, snap stats.Snapshot, fpsValue float64) *image.RGBA {
	bounds := frame.Image.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame.Image, bounds.Min, draw.Src)

	for _, def := range a.laneDefs {
		a.drawPolygon(out, def)
	}

	for i, obj := range objects {
		lane := lanes.Unassigned
		if i < len(laneIDs) {
			lane = laneIDs[i]
		}
		a.drawBox(out, obj, lane)
	}

	a.drawPanel(out, snap, fpsValue)
	return out
}

// drawPolygon outlines one lane region and labels it near its first
// vertex.
func (a *Annotator) drawPolygon(img *image.RGBA, def lanes.LaneDefinition) {
	verts := def.Polygon.Vertices
	n := len(verts)
	if n < 2 {
		return
	}
	for i := 0; i < n; i++ {
		p1 := verts[i]
		p2 := verts[(i+1)%n]
		drawLine(img, int(p1.X), int(p1.Y), int(p2.X), int(p2.Y), laneColor)
	}
	a.drawText(img, int(verts[0].X)+4, int(verts[0].Y)+14, "lane "+def.ID)
}

// drawBox outlines one tracked object and labels it "id:class@lane".
func (a *Annotator) drawBox(img *image.RGBA, obj video.TrackedObject, lane string) {
	x1, y1 := int(obj.Box.X1), int(obj.Box.Y1)
	x2, y2 := int(obj.Box.X2), int(obj.Box.Y2)

	drawLine(img, x1, y1, x2, y1, boxColor)
	drawLine(img, x2, y1, x2, y2, boxColor)
	drawLine(img, x2, y2, x1, y2, boxColor)
	drawLine(img, x1, y2, x1, y1, boxColor)

	label := fmt.Sprintf("%d:%s", obj.TrackID, obj.Class)
	if lane != lanes.Unassigned {
		label += "@" + lane
	}
	a.drawText(img, x1, y1-4, label)
}

// drawPanel renders the live counts and FPS readout in the top-left
// corner on a translucent backing so it stays readable over traffic.
func (a *Annotator) drawPanel(img *image.RGBA, snap stats.Snapshot, fpsValue float64) {
	lineHeight := 16
	lines := make([]string, 0, len(snap.Lanes)+2)
	lines = append(lines, fmt.Sprintf("fps %.2f  total %d", fpsValue, snap.Total))
	for _, lc := range snap.Lanes {
		if lc.Windowed != nil {
			lines = append(lines, fmt.Sprintf("lane %s: %d (window %d)", lc.Lane, lc.Cumulative, *lc.Windowed))
		} else {
			lines = append(lines, fmt.Sprintf("lane %s: %d (warming up)", lc.Lane, lc.Cumulative))
		}
	}

	panelWidth := 0
	for _, line := range lines {
		if w := len(line)*7 + 16; w > panelWidth {
			panelWidth = w
		}
	}
	panel := image.Rect(4, 4, 4+panelWidth, 8+lineHeight*len(lines))
	draw.Draw(img, panel.Intersect(img.Bounds()), image.NewUniform(panelColor), image.Point{}, draw.Over)

	for i, line := range lines {
		a.drawText(img, 12, 18+lineHeight*i, line)
	}
}

// drawText renders one line of text at (x, y) using the bitmap face.
func (a *Annotator) drawText(img *image.RGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: a.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawLine draws a one-pixel line using integer Bresenham stepping,
// clipped to the image bounds.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx + dy

	bounds := img.Bounds()
	for {
		if image.Pt(x1, y1).In(bounds) {
			img.SetRGBA(x1, y1, c)
		}
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
