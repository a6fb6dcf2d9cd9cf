package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pickplace/internal/httputil"
	"github.com/banshee-data/pickplace/internal/tabletop/l1cloud"
	"github.com/banshee-data/pickplace/internal/tabletop/pipeline"
	"github.com/banshee-data/pickplace/internal/tabletop/visualiser"
)

// maxScatterPoints bounds each series on the scatter page.
const maxScatterPoints = 3000

func (ws *WebServer) latestCompleted(w http.ResponseWriter) (*pipeline.FrameResult, bool) {
	if ws.latest == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "frame tracking not enabled")
		return nil, false
	}
	res, ok := ws.latest.Completed()
	if !ok {
		httputil.WriteJSONError(w, http.StatusNotFound, "no completed frame yet")
		return nil, false
	}
	return res, true
}

// handleClusterScatter renders the latest completed frame's table and
// clusters in the x-y plane with go-echarts, one series per cluster.
func (ws *WebServer) handleClusterScatter(w http.ResponseWriter, r *http.Request) {
	res, ok := ws.latestCompleted(w)
	if !ok {
		return
	}

	minX, maxX, minY, maxY := extent(res.Table, res.ClusterCloud)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tabletop clusters", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tabletop clusters (top-down)",
			Subtitle: fmt.Sprintf("frame=%s seq=%d clusters=%d", res.FrameID, res.Seq, len(res.Clusters)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: minX, Max: maxX, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: minY, Max: maxY, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("table", scatterData(res.Table),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#a0a0a0"}))

	off := 0
	for i, c := range res.Clusters {
		end := off + c.Size()
		if end > len(res.ClusterCloud) {
			break
		}
		pts := res.ClusterCloud[off:end]
		off = end
		if len(pts) == 0 {
			continue
		}
		name := fmt.Sprintf("cluster %d", i)
		if res.Classified && i < len(res.Markers) {
			name = fmt.Sprintf("%d: %s", i, res.Markers[i].Label)
		}
		col := fmt.Sprintf("#%02x%02x%02x", pts[0].R, pts[0].G, pts[0].B)
		scatter.AddSeries(name, scatterData(pts),
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: col}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// extent returns padded x and y ranges covering every cloud, or a unit
// square when all are empty.
func extent(clouds ...l1cloud.Cloud) (minX, maxX, minY, maxY float64) {
	first := true
	for _, c := range clouds {
		lo, hi, ok := c.Bounds()
		if !ok {
			continue
		}
		if first {
			minX, maxX, minY, maxY = lo.X, hi.X, lo.Y, hi.Y
			first = false
			continue
		}
		minX, maxX = math.Min(minX, lo.X), math.Max(maxX, hi.X)
		minY, maxY = math.Min(minY, lo.Y), math.Max(maxY, hi.Y)
	}
	if first {
		return 0, 1, 0, 1
	}
	const pad = 0.05
	return minX - pad, maxX + pad, minY - pad, maxY + pad
}

func scatterData(c l1cloud.Cloud) []opts.ScatterData {
	step := 1
	if len(c) > maxScatterPoints {
		step = (len(c) + maxScatterPoints - 1) / maxScatterPoints
	}
	data := make([]opts.ScatterData, 0, len(c)/step+1)
	for i := 0; i < len(c); i += step {
		data = append(data, opts.ScatterData{Value: []interface{}{c[i].X, c[i].Y}})
	}
	return data
}

// handleClusterPNG serves the latest completed frame as a gonum/plot PNG.
func (ws *WebServer) handleClusterPNG(w http.ResponseWriter, r *http.Request) {
	res, ok := ws.latestCompleted(w)
	if !ok {
		return
	}
	b, err := visualiser.RenderTopDown(res, 6*vg.Inch, 6*vg.Inch)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render png: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(b)
}
