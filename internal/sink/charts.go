package sink

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleLaneChart renders a bar chart of per-lane counts from the latest
// statistics snapshot.
func (w *Web) handleLaneChart(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	snap := w.snapshot
	w.mu.RUnlock()

	if len(snap.Lanes) == 0 {
		http.Error(rw, "no statistics yet", http.StatusServiceUnavailable)
		return
	}

	x := make([]string, 0, len(snap.Lanes))
	cumulative := make([]opts.BarData, 0, len(snap.Lanes))
	windowed := make([]opts.BarData, 0, len(snap.Lanes))
	for _, lc := range snap.Lanes {
		x = append(x, "lane "+lc.Lane)
		cumulative = append(cumulative, opts.BarData{Value: lc.Cumulative})
		if lc.Windowed != nil {
			windowed = append(windowed, opts.BarData{Value: *lc.Windowed})
		} else {
			windowed = append(windowed, opts.BarData{Value: 0})
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Lane counts",
			Subtitle: snap.GeneratedAt.Format(time.RFC3339),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("cumulative", cumulative,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		).
		AddSeries("windowed", windowed)

	page := components.NewPage()
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		http.Error(rw, fmt.Sprintf("render error: %v", err), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = rw.Write(buf.Bytes())
}
