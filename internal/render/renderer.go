// Package render draws the event table on a Mercator map and saves it as a PNG.
package render

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/quake-catalog-etl/internal/domain"
	"github.com/couchcryptid/quake-catalog-etl/internal/render/basemap"
)

// Figure geometry.
const (
	figureWidth     = 10 * vg.Inch
	colorbarWidth   = 1.4 * vg.Inch
	chromeHeight    = 1.2 * vg.Inch
	minFigureHeight = 4 * vg.Inch
	maxFigureHeight = 16 * vg.Inch

	minRadius = 2.5
	maxRadius = 9.0
)

var (
	seaColor    = color.RGBA{R: 0x00, G: 0xff, B: 0xff, A: 0xff}
	landColor   = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	borderColor = color.RGBA{R: 0x00, G: 0x00, B: 0x73, A: 0xff}
	coastStyle  = draw.LineStyle{Color: color.Black, Width: vg.Points(0.5)}
	borderStyle = draw.LineStyle{Color: borderColor, Width: vg.Points(0.75)}
	frameStyle  = draw.LineStyle{Color: color.Black, Width: vg.Points(1)}
)

// MapRenderer turns an event table into a PNG map.
type MapRenderer struct {
	outputDir   string
	landPath    string
	bordersPath string
	dpi         int
	logger      *slog.Logger
}

// NewMapRenderer creates a renderer. Empty layer paths use the embedded
// basemap layers.
func NewMapRenderer(outputDir, landPath, bordersPath string, dpi int, logger *slog.Logger) *MapRenderer {
	return &MapRenderer{
		outputDir:   outputDir,
		landPath:    landPath,
		bordersPath: bordersPath,
		dpi:         dpi,
		logger:      logger,
	}
}

// Render draws the table and returns the PNG path. An empty table produces
// no file and an empty path. Bounds and layer problems come back as
// *domain.MapInitError.
func (r *MapRenderer) Render(table domain.EventTable, q domain.Query) (string, error) {
	if table.Empty() {
		r.logger.Info("no events to plot, skipping map")
		return "", nil
	}

	if err := checkBounds(q.Bounds); err != nil {
		return "", &domain.MapInitError{Err: err}
	}
	land, err := loadLayer(r.landPath, basemap.Land, q.Bounds)
	if err != nil {
		return "", &domain.MapInitError{Err: err}
	}
	borders, err := loadLayer(r.bordersPath, basemap.Borders, q.Bounds)
	if err != nil {
		return "", &domain.MapInitError{Err: err}
	}
	if land.empty() {
		r.logger.Warn("land layer has no geometry inside map bounds", "path", r.landPath)
	}

	lo, hi := table.MagnitudeExtent()
	cmap := colorScale(lo, hi)

	mp, err := mapPlot(table, q, land, borders, cmap, lo, hi)
	if err != nil {
		return "", fmt.Errorf("build map: %w", err)
	}
	cb := colorbarPlot(cmap)

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(r.outputDir, q.Title()+".png")
	if err := r.save(path, mp, cb, q.Bounds); err != nil {
		return "", err
	}

	r.logger.Info("map rendered", "path", path, "events", len(table),
		"min_magnitude", lo, "max_magnitude", hi)
	return path, nil
}

func (r *MapRenderer) save(path string, mp, cb *plot.Plot, b domain.MapBounds) error {
	w, h := figureSize(b)
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(r.dpi))
	dc := draw.New(img)

	mp.Draw(draw.Crop(dc, 0, -colorbarWidth, 0, 0))
	cb.Draw(draw.Crop(dc, w-colorbarWidth+vg.Points(12), -vg.Points(12), h*0.1, -h*0.1))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create map file: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode map: %w", err)
	}
	return f.Close()
}

// figureSize keeps one projected degree square on the page.
func figureSize(b domain.MapBounds) (vg.Length, vg.Length) {
	dx := b.MaxLongitude - b.MinLongitude
	dy := MercatorY(b.MaxLatitude) - MercatorY(b.MinLatitude)
	h := (figureWidth-colorbarWidth)*vg.Length(dy/dx) + chromeHeight
	h = max(minFigureHeight, min(maxFigureHeight, h))
	return figureWidth, h
}

func colorScale(lo, hi float64) palette.ColorMap {
	if hi <= lo {
		lo, hi = lo-0.5, hi+0.5
	}
	cmap := moreland.SmoothBlueRed()
	cmap.SetMax(hi)
	cmap.SetMin(lo)
	return cmap
}

// markerRadius grows linearly with the magnitude normalised to this batch.
func markerRadius(m, lo, hi float64) vg.Length {
	norm := 1.0
	if hi > lo {
		norm = (m - lo) / (hi - lo)
	}
	return vg.Points(minRadius + (maxRadius-minRadius)*norm)
}

func markerColor(cmap palette.ColorMap, m float64) color.Color {
	m = math.Max(cmap.Min(), math.Min(cmap.Max(), m))
	c, err := cmap.At(m)
	if err != nil {
		return color.Black
	}
	return c
}

func mapPlot(table domain.EventTable, q domain.Query, land, borders layer, cmap palette.ColorMap, lo, hi float64) (*plot.Plot, error) {
	b := q.Bounds
	p := plot.New()
	p.Title.Text = q.Title()
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Title.TextStyle.Font.Weight = xfont.WeightBold
	p.Title.Padding = vg.Points(8)
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Marker = degreeTicks{}
	p.Y.Tick.Marker = degreeTicks{latitude: true}

	sea, err := plotter.NewPolygon(project(orb.Ring{
		{b.MinLongitude, b.MinLatitude},
		{b.MaxLongitude, b.MinLatitude},
		{b.MaxLongitude, b.MaxLatitude},
		{b.MinLongitude, b.MaxLatitude},
	}))
	if err != nil {
		return nil, err
	}
	sea.Color = seaColor
	sea.LineStyle = frameStyle
	p.Add(sea)

	for _, poly := range land.polygons {
		rings := make([]plotter.XYer, 0, len(poly))
		for _, ring := range poly {
			rings = append(rings, project(ring))
		}
		lp, err := plotter.NewPolygon(rings...)
		if err != nil {
			return nil, fmt.Errorf("land polygon: %w", err)
		}
		lp.Color = landColor
		lp.LineStyle = coastStyle
		p.Add(lp)
	}
	for _, ls := range land.lines {
		if err := addLine(p, ls, coastStyle); err != nil {
			return nil, err
		}
	}
	for _, ls := range borders.rings() {
		if err := addLine(p, ls, borderStyle); err != nil {
			return nil, err
		}
	}

	pts := make(plotter.XYs, len(table))
	for i, rec := range table {
		pts[i] = plotter.XY{X: rec.Longitude, Y: MercatorY(rec.Latitude)}
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("event markers: %w", err)
	}
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		m := table[i].Magnitude
		return draw.GlyphStyle{
			Color:  markerColor(cmap, m),
			Radius: markerRadius(m, lo, hi),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(sc)

	p.X.Min, p.X.Max = b.MinLongitude, b.MaxLongitude
	p.Y.Min, p.Y.Max = MercatorY(b.MinLatitude), MercatorY(b.MaxLatitude)
	return p, nil
}

func addLine(p *plot.Plot, ls orb.LineString, style draw.LineStyle) error {
	l, err := plotter.NewLine(project(ls))
	if err != nil {
		return fmt.Errorf("line: %w", err)
	}
	l.LineStyle = style
	p.Add(l)
	return nil
}

func project[T ~[]orb.Point](pts T) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: pt.Lon(), Y: MercatorY(pt.Lat())}
	}
	return xys
}

func colorbarPlot(cmap palette.ColorMap) *plot.Plot {
	p := plot.New()
	p.HideX()
	p.Y.Label.Text = "Magnitude"
	p.Y.Label.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.TextStyle.Font.Weight = xfont.WeightBold
	p.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})
	return p
}

// degreeTicks labels projected map axes in degrees with hemisphere suffixes.
type degreeTicks struct {
	latitude bool
}

func (t degreeTicks) Ticks(lo, hi float64) []plot.Tick {
	if t.latitude {
		lo, hi = InverseMercatorY(lo), InverseMercatorY(hi)
	}
	step := tickStep(hi - lo)
	var ticks []plot.Tick
	for v := math.Ceil(lo/step-1e-9) * step; v <= hi+1e-9; v += step {
		tick := plot.Tick{Value: v, Label: t.label(v)}
		if t.latitude {
			tick.Value = MercatorY(v)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

func (t degreeTicks) label(v float64) string {
	v = math.Round(v*1e6) / 1e6
	suffix := ""
	switch {
	case t.latitude && v > 0:
		suffix = "N"
	case t.latitude && v < 0:
		suffix = "S"
	case !t.latitude && v > 0 && v < 180:
		suffix = "E"
	case !t.latitude && v < 0 && v > -180:
		suffix = "W"
	}
	return fmt.Sprintf("%g°%s", math.Abs(v), suffix)
}

func tickStep(span float64) float64 {
	switch {
	case span > 90:
		return 30
	case span > 40:
		return 10
	case span > 20:
		return 5
	case span > 8:
		return 2
	default:
		return 1
	}
}
