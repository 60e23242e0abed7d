// Package chart describes the charts curvefit draws (series of points plus
// axis settings) and renders them with gonum/plot.
package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ahmedtd/curvefit/points"
)

type SeriesKind string

const (
	Scatter SeriesKind = "scatter"
	Line    SeriesKind = "line"
)

type Series struct {
	Name   string         `json:"name"`
	Kind   SeriesKind     `json:"kind"`
	Points []points.Point `json:"points"`
	Color  color.RGBA     `json:"-"`
}

// Axis limits are optional; a nil limit lets the plot fit the data.
type Axis struct {
	Label string   `json:"label"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

// Limits returns an axis with both limits set.
func Limits(label string, lo, hi float64) Axis {
	return Axis{Label: label, Min: &lo, Max: &hi}
}

type Chart struct {
	Title  string   `json:"title"`
	XAxis  Axis     `json:"x_axis"`
	YAxis  Axis     `json:"y_axis"`
	Series []Series `json:"series"`
}

// Palette used by the series constructors.
var (
	DataColor       = color.RGBA{R: 0x70, G: 0xb0, B: 0xe0, A: 0xff}
	PredictionColor = color.RGBA{R: 0xe0, G: 0x60, B: 0x40, A: 0xff}
	CurveColor      = color.RGBA{R: 0x40, G: 0x90, B: 0x40, A: 0xff}
)

// Plot builds the gonum plot for c.  Series without points are left out.
func (c *Chart) Plot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XAxis.Label
	p.Y.Label.Text = c.YAxis.Label
	p.Add(plotter.NewGrid())

	for _, s := range c.Series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for i, pt := range s.Points {
			xys[i].X = pt.X
			xys[i].Y = pt.Y
		}

		switch s.Kind {
		case Scatter:
			sc, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, fmt.Errorf("while building series %q: %w", s.Name, err)
			}
			sc.GlyphStyle.Color = s.Color
			sc.GlyphStyle.Radius = vg.Points(3)
			p.Add(sc)
			p.Legend.Add(s.Name, sc)
		case Line:
			ln, err := plotter.NewLine(xys)
			if err != nil {
				return nil, fmt.Errorf("while building series %q: %w", s.Name, err)
			}
			ln.LineStyle.Color = s.Color
			ln.LineStyle.Width = vg.Points(1.5)
			p.Add(ln)
			p.Legend.Add(s.Name, ln)
		default:
			return nil, fmt.Errorf("series %q has unknown kind %q", s.Name, s.Kind)
		}
	}

	// Explicit limits win over the data range computed by Add.
	if c.XAxis.Min != nil {
		p.X.Min = *c.XAxis.Min
	}
	if c.XAxis.Max != nil {
		p.X.Max = *c.XAxis.Max
	}
	if c.YAxis.Min != nil {
		p.Y.Min = *c.YAxis.Min
	}
	if c.YAxis.Max != nil {
		p.Y.Max = *c.YAxis.Max
	}

	return p, nil
}

// Render draws c in the given format ("png", "svg", "pdf", ...) at the given
// size in inches.
func Render(w io.Writer, c *Chart, format string, width, height float64) error {
	p, err := c.Plot()
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("while preparing %s canvas: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("while rendering %s: %w", format, err)
	}
	return nil
}

// Save renders c to path.  A .json extension writes the chart description
// instead of an image.  Nothing is written if rendering fails.
func Save(path string, c *Chart) error {
	buf := &bytes.Buffer{}

	var err error
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "json" {
		err = WriteJSON(buf, c)
	} else {
		err = Render(buf, c, ext, 6, 4)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("while writing chart file: %w", err)
	}
	return nil
}

func WriteJSON(w io.Writer, c *Chart) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("while encoding chart: %w", err)
	}
	return nil
}
