package pspnet

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestTileStride(t *testing.T) {

	tests := []struct {
		tile    int
		overlap float64
		want    int
	}{
		{100, 1.0 / 3.0, 67},
		{473, 1.0 / 3.0, 316},
		{713, 1.0 / 3.0, 476},
		{100, 0, 100},
		{100, 0.5, 50},
	}

	for _, tc := range tests {
		got := tileStride(tc.tile, tc.overlap)

		if got != tc.want {
			t.Errorf("tileStride(%d, %f) = %d, want %d",
				tc.tile, tc.overlap, got, tc.want)
		}
	}
}

func TestTileGridCounts(t *testing.T) {

	tests := []struct {
		imgW, imgH   int
		tileW, tileH int
		wantTiles    int
	}{
		// stride 67: ceil((250-100)/67)+1 = 4 per axis
		{250, 250, 100, 100, 16},
		// ceil((150-100)/67)+1 = 2 per axis
		{150, 150, 100, 100, 4},
		// image smaller than tile still yields one tile
		{80, 60, 100, 100, 1},
		{100, 100, 100, 100, 1},
		// 5 columns (stride 67 over width 333) by 2 rows
		{333, 127, 100, 100, 10},
	}

	for _, tc := range tests {
		rects, _ := tileGrid(tc.imgW, tc.imgH, tc.tileW, tc.tileH, DefaultOverlap)

		if len(rects) != tc.wantTiles {
			t.Errorf("tileGrid(%dx%d, tile %dx%d) = %d tiles, want %d",
				tc.imgW, tc.imgH, tc.tileW, tc.tileH, len(rects), tc.wantTiles)
		}
	}
}

func TestTileGridCoverage(t *testing.T) {

	sizes := []struct {
		imgW, imgH int
	}{
		{250, 250},
		{150, 150},
		{333, 127},
		{40, 40},
		{101, 99},
	}

	for _, sz := range sizes {
		rects, _ := tileGrid(sz.imgW, sz.imgH, 100, 100, DefaultOverlap)

		covered := make([]bool, sz.imgW*sz.imgH)

		for _, r := range rects {
			if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > sz.imgW || r.Max.Y > sz.imgH {
				t.Fatalf("tile %v exceeds image bounds %dx%d", r, sz.imgW, sz.imgH)
			}

			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					covered[y*sz.imgW+x] = true
				}
			}
		}

		for i, ok := range covered {
			if !ok {
				t.Fatalf("image %dx%d: pixel (%d,%d) covered by no tile",
					sz.imgW, sz.imgH, i%sz.imgW, i/sz.imgW)
			}
		}
	}
}

func TestPredictSlidingSingleTile(t *testing.T) {

	// image smaller than the network size runs as a single padded tile
	p := newStubPredictor(8, 8)
	img := testImage(t, 5, 6)
	defer img.Close()

	pm, err := PredictSliding(p, img, DefaultOverlap, false)

	if err != nil {
		t.Fatal(err)
	}

	assertMapsEqual(t, expectedMap(t, img), pm, 1e-6)

	if p.calls != 1 {
		t.Errorf("expected 1 predictor call, got %d", p.calls)
	}
}

func TestPredictSlidingOverlappingTiles(t *testing.T) {

	// 12x12 image with 8x8 tiles at stride 6 gives a 2x2 grid with
	// overlapping strips; after count normalisation the pointwise stub
	// must reproduce the direct per pixel prediction
	p := newStubPredictor(8, 8)
	img := testImage(t, 12, 12)
	defer img.Close()

	pm, err := PredictSliding(p, img, DefaultOverlap, false)

	if err != nil {
		t.Fatal(err)
	}

	assertMapsEqual(t, expectedMap(t, img), pm, 1e-6)

	if p.calls != 4 {
		t.Errorf("expected 4 predictor calls, got %d", p.calls)
	}
}

func TestPredictSlidingWideImage(t *testing.T) {

	// tiles at the right edge are clipped to the image and shifted
	// back, pixels near the boundary are still covered exactly
	p := newStubPredictor(8, 8)
	img := testImage(t, 21, 8)
	defer img.Close()

	pm, err := PredictSliding(p, img, DefaultOverlap, false)

	if err != nil {
		t.Fatal(err)
	}

	assertMapsEqual(t, expectedMap(t, img), pm, 1e-6)
}
