package visualiser

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
)

// maxTablePoints bounds the table points drawn behind the clusters.
const maxTablePoints = 4000

var tableColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}

// RenderTopDown draws the table and clusters of r in the x-y plane as a
// PNG. Each cluster keeps its palette colour and is named by its label
// when the frame was classified.
func RenderTopDown(r *pipeline.FrameResult, width, height vg.Length) ([]byte, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("frame %d: %d clusters", r.Seq, len(r.Clusters))
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	if len(r.Table) > 0 {
		s, err := scatterOf(stride(r.Table, maxTablePoints), tableColor, 0.8)
		if err != nil {
			return nil, err
		}
		p.Add(s)
		p.Legend.Add("table", s)
	}

	off := 0
	for i, c := range r.Clusters {
		end := off + c.Size()
		if end > len(r.ClusterCloud) {
			return nil, fmt.Errorf("cluster %d: cloud has %d points, need %d", i, len(r.ClusterCloud), end)
		}
		pts := r.ClusterCloud[off:end]
		off = end
		if len(pts) == 0 {
			continue
		}
		col := color.RGBA{R: pts[0].R, G: pts[0].G, B: pts[0].B, A: 255}
		s, err := scatterOf(pts, col, 1.5)
		if err != nil {
			return nil, err
		}
		p.Add(s)
		name := fmt.Sprintf("cluster %d", i)
		if r.Classified && i < len(r.Markers) {
			name = r.Markers[i].Label
		}
		p.Legend.Add(name, s)
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create png writer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to render png: %w", err)
	}
	return buf.Bytes(), nil
}

func scatterOf(c l1cloud.Cloud, col color.Color, radius float64) (*plotter.Scatter, error) {
	xys := make(plotter.XYs, len(c))
	for i, pt := range c {
		xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = col
	s.GlyphStyle.Radius = vg.Points(radius)
	return s, nil
}

// stride keeps every k-th point so at most limit remain.
func stride(c l1cloud.Cloud, limit int) l1cloud.Cloud {
	if len(c) <= limit {
		return c
	}
	k := (len(c) + limit - 1) / limit
	out := make(l1cloud.Cloud, 0, limit)
	for i := 0; i < len(c); i += k {
		out = append(out, c[i])
	}
	return out
}
