package render

import (
	"fmt"
	"math"

	"github.com/segkit/go-pspnet"
	"gocv.io/x/gocv"
)

// GrayscaleMap leaves a heatmap as grayscale instead of applying a
// gocv colormap
const GrayscaleMap = gocv.ColormapTypes(9999)

// ConfidenceMap renders the per pixel maximum class score as a heatmap
// image.  Scores are normalized to [0,255] over the whole map before
// the colormap is applied.
func ConfidenceMap(pm *pspnet.ProbMap, colormap gocv.ColormapTypes) (gocv.Mat, error) {
	return heatmap(pm.MaxProb(), pm.H, pm.W, colormap)
}

// ClassHeatmap renders the score channel of a single class as a
// heatmap image
func ClassHeatmap(pm *pspnet.ProbMap, classID int, colormap gocv.ColormapTypes) (gocv.Mat, error) {

	scores, err := pm.Channel(classID)

	if err != nil {
		return gocv.Mat{}, err
	}

	return heatmap(scores, pm.H, pm.W, colormap)
}

// heatmap builds the colormapped Mat from row major scores
func heatmap(scores []float32, h, w int, colormap gocv.ColormapTypes) (gocv.Mat, error) {

	u8 := scoresToU8(scores)

	u8Mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, u8)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("error creating heatmap Mat: %w", err)
	}

	defer u8Mat.Close()

	dst := gocv.NewMat()

	if colormap == GrayscaleMap {
		// no coloring
		u8Mat.CopyTo(&dst)
	} else {
		gocv.ApplyColorMap(u8Mat, &dst, colormap)
	}

	return dst, nil
}

// scoresToU8 normalizes float32 scores into an 8 bit visualization
// buffer.  Class scores are not bounded to [0,1] after count and scale
// averaging, so the min/max over the whole map is used, ignoring
// NaN/Inf values so they don't poison the range.
func scoresToU8(scores []float32) []byte {

	out := make([]byte, len(scores))

	minV := float32(math.Inf(1))
	maxV := float32(math.Inf(-1))

	for _, v := range scores {
		if !isFinite32(v) {
			continue
		}

		if v < minV {
			minV = v
		}

		if v > maxV {
			maxV = v
		}
	}

	// all invalid or constant scores render as black
	den := maxV - minV
	if !isFinite32(minV) || !isFinite32(maxV) || den <= 0 {
		return out
	}

	for i, v := range scores {
		if !isFinite32(v) {
			v = minV
		}

		n := (v - minV) / den

		if n < 0 {
			n = 0
		}

		if n > 1 {
			n = 1
		}

		out[i] = byte(n * 255.0)
	}

	return out
}

// isFinite32 returns true if v is neither NaN nor +/-Inf
func isFinite32(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}
