// Package timeline draws a bring-up run as a Gantt chart: one row per
// stage, bars placed by start time and sized by duration.
package timeline

import (
	"fmt"
	"image"
	"io"

	"github.com/fogleman/gg"

	"mmcinit/sdmmc"
)

// Layout in pixels
const (
	Width      = 800
	rowHeight  = 22
	margin     = 10
	labelWidth = 230
	headerRows = 2
	minBar     = 2
)

var (
	colorBackground = [3]float64{1, 1, 1}
	colorText       = [3]float64{0.1, 0.1, 0.1}
	colorGrid       = [3]float64{0.85, 0.85, 0.85}
	colorOK         = [3]float64{0.20, 0.55, 0.85}
	colorFailed     = [3]float64{0.85, 0.20, 0.20}
)

// Height returns the image height for a run with n timings.
func Height(n int) int {
	return 2*margin + (n+headerRows)*rowHeight
}

// Render draws res. title goes on the first line, usually the controller
// name.
func Render(res sdmmc.Result, title string) image.Image {
	return draw(res, title).Image()
}

// EncodePNG renders res and writes it to w as PNG.
func EncodePNG(w io.Writer, res sdmmc.Result, title string) error {
	return draw(res, title).EncodePNG(w)
}

// SavePNG renders res to a PNG file.
func SavePNG(path string, res sdmmc.Result, title string) error {
	return draw(res, title).SavePNG(path)
}

func setColor(dc *gg.Context, c [3]float64) {
	dc.SetRGB(c[0], c[1], c[2])
}

func draw(res sdmmc.Result, title string) *gg.Context {
	dc := gg.NewContext(Width, Height(len(res.Timings)))
	setColor(dc, colorBackground)
	dc.Clear()

	setColor(dc, colorText)
	status := res.Status.String()
	if !res.Ready() {
		status += " at " + res.Stage.String()
	}
	dc.DrawString(fmt.Sprintf("%s: %s in %d us", title, status, res.Elapsed), margin, margin+rowHeight/2+4)

	plotX, plotW, total := scale(res)
	top := float64(margin + headerRows*rowHeight)

	// quarter grid with time labels
	setColor(dc, colorGrid)
	for i := 0; i <= 4; i++ {
		x := plotX + plotW*float64(i)/4
		dc.DrawLine(x, top-4, x, top+float64(len(res.Timings)*rowHeight))
	}
	dc.SetLineWidth(1)
	dc.Stroke()
	setColor(dc, colorText)
	for i := 0; i <= 4; i++ {
		x := plotX + plotW*float64(i)/4
		dc.DrawStringAnchored(fmt.Sprintf("%.0f us", total*float64(i)/4), x, top-8, 0.5, 0)
	}

	for i, t := range res.Timings {
		y := top + float64(i*rowHeight)

		setColor(dc, colorText)
		dc.DrawStringAnchored(fmt.Sprintf("%s %d us", t.Stage, t.Duration), margin, y+rowHeight/2, 0, 0.35)

		x, w := bar(t, plotX, plotW, total)
		if t.Failed {
			setColor(dc, colorFailed)
		} else {
			setColor(dc, colorOK)
		}
		dc.DrawRectangle(x, y+3, w, rowHeight-6)
		dc.Fill()
	}
	return dc
}

// scale returns the left edge and width of the plot area and the time
// span it covers.
func scale(res sdmmc.Result) (plotX, plotW, total float64) {
	total = float64(res.Elapsed)
	for _, t := range res.Timings {
		if end := float64(t.Start + t.Duration); end > total {
			total = end
		}
	}
	if total == 0 {
		total = 1
	}
	plotX = float64(margin + labelWidth)
	plotW = float64(Width-margin) - plotX
	return plotX, plotW, total
}

func bar(t sdmmc.StageTiming, plotX, plotW, total float64) (x, w float64) {
	x = plotX + plotW*float64(t.Start)/total
	w = plotW * float64(t.Duration) / total
	if w < minBar {
		w = minBar
	}
	return x, w
}

// BarSpan returns the pixel extent and centre row of timing i's bar.
func BarSpan(res sdmmc.Result, i int) (x0, x1, y int) {
	plotX, plotW, total := scale(res)
	x, w := bar(res.Timings[i], plotX, plotW, total)
	return int(x), int(x + w), margin + (headerRows+i)*rowHeight + rowHeight/2
}
