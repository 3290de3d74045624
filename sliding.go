package pspnet

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math"

	"gocv.io/x/gocv"
)

// DefaultOverlap is the default fraction of a tile that overlaps its
// neighbor during sliding prediction
const DefaultOverlap = 1.0 / 3.0

// tileStride returns the pixel distance between consecutive tile
// origins for the given tile height and overlap fraction
func tileStride(tileH int, overlap float64) int {
	return int(math.Ceil(float64(tileH) * (1 - overlap)))
}

// tileCount returns the number of tiles needed to cover imgLen pixels
// with tileLen sized tiles at the given stride, the strided
// convolution formula.  At least one tile is always produced.
func tileCount(imgLen, tileLen, stride int) int {

	n := int(math.Ceil(float64(imgLen-tileLen)/float64(stride))) + 1

	if n < 1 {
		n = 1
	}

	return n
}

// tileGrid computes the tile rectangles covering an imgW by imgH image
// and the stride used.  Tiles are clipped to the image bounds and
// shifted back so each keeps its full extent whenever the image is
// large enough, so a rectangle is only smaller than the tile size when
// the image itself is.
func tileGrid(imgW, imgH, tileW, tileH int, overlap float64) ([]image.Rectangle, int) {

	stride := tileStride(tileH, overlap)
	rows := tileCount(imgH, tileH, stride)
	cols := tileCount(imgW, tileW, stride)

	rects := make([]image.Rectangle, 0, rows*cols)

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {

			x2 := col*stride + tileW
			y2 := row*stride + tileH

			if x2 > imgW {
				x2 = imgW
			}

			if y2 > imgH {
				y2 = imgH
			}

			// shift the origin back to keep full tile extent, for
			// portrait images x1 underflows, for very few rows y1 does
			x1 := x2 - tileW
			y1 := y2 - tileH

			if x1 < 0 {
				x1 = 0
			}

			if y1 < 0 {
				y1 = 0
			}

			rects = append(rects, image.Rect(x1, y1, x2, y2))
		}
	}

	return rects, stride
}

// PredictSliding predicts segmentation by sliding tiles of exactly the
// network input size over the full image, so nothing gets squeezed.
// Overlapping tile predictions are averaged per pixel.  A tile at the
// image boundary that falls short of the network size, which only
// happens when the image itself is smaller than a tile, is zero padded
// on the bottom and right and the prediction cropped back before
// accumulation.
func PredictSliding(p Predictor, img gocv.Mat, overlap float64, flip bool) (*ProbMap, error) {

	if overlap < 0 || overlap >= 1 {
		return nil, fmt.Errorf("overlap fraction %f out of range [0,1)", overlap)
	}

	size := p.InputSize()
	imgW, imgH := img.Cols(), img.Rows()

	rects, stride := tileGrid(imgW, imgH, size.X, size.Y, overlap)

	log.Printf("need %d prediction tiles @ stride %d px", len(rects), stride)

	full := NewProbMap(imgH, imgW, p.Classes())
	counts := NewProbMap(imgH, imgW, p.Classes())

	ones := NewProbMap(size.Y, size.X, p.Classes())
	for i := range ones.Data {
		ones.Data[i] = 1
	}

	for _, rect := range rects {

		tile, err := predictTile(p, img, rect, flip)

		if err != nil {
			return nil, fmt.Errorf("error predicting tile %v: %w", rect, err)
		}

		if err := full.Accumulate(tile, rect.Min.Y, rect.Min.X); err != nil {
			return nil, err
		}

		cnt := ones

		if rect.Dy() != size.Y || rect.Dx() != size.X {
			cnt, err = ones.Crop(rect.Dy(), rect.Dx())

			if err != nil {
				return nil, err
			}
		}

		if err := counts.Accumulate(cnt, rect.Min.Y, rect.Min.X); err != nil {
			return nil, err
		}
	}

	// average the predictions in the overlapping regions.  a zero
	// count means a pixel no tile covered, which the grid guarantees
	// cannot happen, so fail fast on the tiling defect instead of
	// dividing by zero
	for i, c := range counts.Data {
		if c == 0 {
			y := (i / full.C) / full.W
			x := (i / full.C) % full.W
			return nil, fmt.Errorf("tiling defect: pixel (%d,%d) covered by no tile", y, x)
		}

		full.Data[i] /= c
	}

	return full, nil
}

// predictTile extracts the tile rectangle from the image, pads it to
// the network input size if needed, predicts it and returns the
// probability map cropped to the rectangles true extent
func predictTile(p Predictor, img gocv.Mat, rect image.Rectangle, flip bool) (*ProbMap, error) {

	size := p.InputSize()

	region := img.Region(rect)
	defer region.Close()

	tile := region

	padded := gocv.NewMat()
	defer padded.Close()

	if rect.Dx() < size.X || rect.Dy() < size.Y {
		gocv.CopyMakeBorder(region, &padded,
			0, size.Y-rect.Dy(), 0, size.X-rect.Dx(),
			gocv.BorderConstant, blackBorder)
		tile = padded
	}

	pm, err := PredictAugmented(p, tile, flip)

	if err != nil {
		return nil, err
	}

	if pm.H != rect.Dy() || pm.W != rect.Dx() {
		return pm.Crop(rect.Dy(), rect.Dx())
	}

	return pm, nil
}

// blackBorder is the zero padding color for boundary tiles
var blackBorder = color.RGBA{R: 0, G: 0, B: 0, A: 255}
