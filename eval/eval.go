// Package eval scores predicted class images against ground truth
// annotations using the standard intersection over union segmentation
// metrics.
package eval

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Result holds the segmentation metrics of one or more scored images
type Result struct {
	// ClassIoU is the intersection over union per class id.  Classes
	// absent from both prediction and ground truth are NaN free and
	// reported as 0 with Present false.
	ClassIoU []float64
	// Present marks classes that appear in the prediction or ground
	// truth and therefore contribute to the mean
	Present []bool
	// MeanIoU is the mean IoU over present classes
	MeanIoU float64
	// PixelAccuracy is the fraction of pixels labelled correctly
	PixelAccuracy float64
}

// ConfusionMatrix accumulates per pixel class confusion counts across
// scored images.  Rows are ground truth classes, columns predicted.
type ConfusionMatrix struct {
	classes int
	counts  *mat.Dense
}

// NewConfusionMatrix returns an empty confusion matrix for the given
// class count
func NewConfusionMatrix(classes int) *ConfusionMatrix {
	return &ConfusionMatrix{
		classes: classes,
		counts:  mat.NewDense(classes, classes, nil),
	}
}

// Add accumulates one image pair of row major class ids.  Pixels whose
// ground truth id falls outside the class range are ignored, matching
// the void label convention of segmentation benchmarks.
func (c *ConfusionMatrix) Add(pred, gt []uint8) error {

	if len(pred) != len(gt) {
		return fmt.Errorf("prediction size %d does not match ground truth size %d",
			len(pred), len(gt))
	}

	for i := range gt {
		g := int(gt[i])
		p := int(pred[i])

		if g >= c.classes || p >= c.classes {
			continue
		}

		c.counts.Set(g, p, c.counts.At(g, p)+1)
	}

	return nil
}

// Result computes the metrics accumulated so far
func (c *ConfusionMatrix) Result() Result {

	r := Result{
		ClassIoU: make([]float64, c.classes),
		Present:  make([]bool, c.classes),
	}

	var correct, total float64
	var iouSum float64
	present := 0

	for i := 0; i < c.classes; i++ {

		tp := c.counts.At(i, i)

		// row sum is all ground truth pixels of class i, column sum
		// all pixels predicted as class i
		var rowSum, colSum float64

		for j := 0; j < c.classes; j++ {
			rowSum += c.counts.At(i, j)
			colSum += c.counts.At(j, i)
		}

		correct += tp
		total += rowSum

		union := rowSum + colSum - tp

		if union > 0 {
			r.ClassIoU[i] = tp / union
			r.Present[i] = true
			iouSum += r.ClassIoU[i]
			present++
		}
	}

	if present > 0 {
		r.MeanIoU = iouSum / float64(present)
	}

	if total > 0 {
		r.PixelAccuracy = correct / total
	}

	return r
}

// Evaluate scores a single prediction against its ground truth
func Evaluate(pred, gt []uint8, classes int) (Result, error) {

	cm := NewConfusionMatrix(classes)

	if err := cm.Add(pred, gt); err != nil {
		return Result{}, err
	}

	return cm.Result(), nil
}
