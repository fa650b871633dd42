package timeline

import (
	"bytes"
	"image/png"
	"path/filepath"
	"testing"

	"mmcinit/sdmmc"
)

func sample() sdmmc.Result {
	return sdmmc.Result{
		Status:  sdmmc.StatusFailed,
		Stage:   sdmmc.StageClockStabilization,
		Elapsed: 20000,
		Timings: []sdmmc.StageTiming{
			{Stage: sdmmc.StageResetClock, Start: 0, Duration: 5000},
			{Stage: sdmmc.StagePadTrim, Start: 5000, Duration: 10},
			{Stage: sdmmc.StageAutoCal, Start: 5010, Duration: 4990},
			{Stage: sdmmc.StageClockStabilization, Start: 10000, Duration: 10000, Failed: true},
		},
	}
}

func TestRenderSize(t *testing.T) {
	img := Render(sample(), "sdmmc1")
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height(4) {
		t.Errorf("Expected %dx%d, got %dx%d", Width, Height(4), b.Dx(), b.Dy())
	}
}

func TestRenderBars(t *testing.T) {
	res := sample()
	img := Render(res, "sdmmc1")

	x0, x1, y := BarSpan(res, 0)
	r, g, b, _ := img.At((x0+x1)/2, y).RGBA()
	if r>>8 > 100 || b>>8 < 180 {
		t.Errorf("Expected a blue bar for reset-clock, got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	x0, x1, y = BarSpan(res, 3)
	r, g, b, _ = img.At((x0+x1)/2, y).RGBA()
	if r>>8 < 180 || g>>8 > 100 {
		t.Errorf("Expected a red bar for the failed stage, got rgb(%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	// the failed stage ends at the right edge of the plot
	if _, end, _ := BarSpan(res, 3); end != Width-margin {
		t.Errorf("Expected last bar to end at %d, got %d", Width-margin, end)
	}
}

func TestBarMinimumWidth(t *testing.T) {
	x0, x1, _ := BarSpan(sample(), 1)
	if x1-x0 < minBar {
		t.Errorf("Expected at least %d px, got %d", minBar, x1-x0)
	}
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, sample(), "sdmmc1"); err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("Expected a valid PNG, got %v", err)
	}
	if img.Bounds().Dx() != Width {
		t.Errorf("Expected width %d, got %d", Width, img.Bounds().Dx())
	}

	path := filepath.Join(t.TempDir(), "run.png")
	if err := SavePNG(path, sdmmc.Result{Status: sdmmc.StatusReady}, "empty"); err != nil {
		t.Errorf("SavePNG failed: %v", err)
	}
}
