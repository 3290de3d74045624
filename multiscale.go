package pspnet

import (
	"fmt"
	"image"
	"log"
	"math"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// EvaluationScales is the default scale set for multi scale
// prediction.  Callers wanting a different set pass their own, the
// scale list is always an explicit parameter.
var EvaluationScales = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75}

// PredictMultiScale predicts an image by looking at it resized to each
// of the given scales, interpolating every scale's probability map
// back to the original resolution and averaging across scales.  When
// sliding is true each scale is predicted with sliding tiles,
// otherwise with a single direct prediction.
func PredictMultiScale(p Predictor, img gocv.Mat, scales []float64,
	sliding, flip bool) (*ProbMap, error) {

	if len(scales) == 0 {
		return nil, fmt.Errorf("no scales given for multi scale prediction")
	}

	imgH, imgW := img.Rows(), img.Cols()
	full := NewProbMap(imgH, imgW, p.Classes())

	for _, scale := range scales {

		probs, err := predictScale(p, img, scale, sliding, flip)

		if err != nil {
			return nil, err
		}

		if err := full.AddAll(probs); err != nil {
			return nil, err
		}
	}

	full.Divide(float32(len(scales)))
	return full, nil
}

// PredictMultiScalePool is PredictMultiScale with scales predicted
// concurrently, one pool runtime per in flight scale.  Each scale
// writes a private buffer and the final mean is a single reduction, so
// no locking of the shared output is needed.
func PredictMultiScalePool(pool *Pool, img gocv.Mat, scales []float64,
	sliding, flip bool) (*ProbMap, error) {

	if len(scales) == 0 {
		return nil, fmt.Errorf("no scales given for multi scale prediction")
	}

	results := make([]*ProbMap, len(scales))

	var g errgroup.Group

	for i, scale := range scales {
		i, scale := i, scale

		g.Go(func() error {
			rt := pool.Get()
			defer pool.Return(rt)

			probs, err := predictScale(rt, img, scale, sliding, flip)

			if err != nil {
				return err
			}

			results[i] = probs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	full := NewProbMap(img.Rows(), img.Cols(), results[0].C)

	for _, probs := range results {
		if err := full.AddAll(probs); err != nil {
			return nil, err
		}
	}

	full.Divide(float32(len(scales)))
	return full, nil
}

// predictScale resizes the image by the scale factor, predicts it and
// interpolates the probability map back up to the original resolution
func predictScale(p Predictor, img gocv.Mat, scale float64,
	sliding, flip bool) (*ProbMap, error) {

	if scale <= 0 {
		return nil, fmt.Errorf("scale factor %f must be positive", scale)
	}

	imgH, imgW := img.Rows(), img.Cols()

	log.Printf("predicting image scaled by %f", scale)

	scaledW := int(math.Round(float64(imgW) * scale))
	scaledH := int(math.Round(float64(imgH) * scale))

	if scaledW < 1 {
		scaledW = 1
	}

	if scaledH < 1 {
		scaledH = 1
	}

	scaled := img

	if scaledW != imgW || scaledH != imgH {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(img, &resized, image.Pt(scaledW, scaledH), 0, 0,
			gocv.InterpolationLinear)
		scaled = resized
	}

	var probs *ProbMap
	var err error

	if sliding {
		probs, err = PredictSliding(p, scaled, DefaultOverlap, flip)
	} else {
		probs, err = PredictAugmented(p, scaled, flip)
	}

	if err != nil {
		return nil, fmt.Errorf("error predicting at scale %f: %w", scale, err)
	}

	// interpolate scale back up to full size
	if probs.H != imgH || probs.W != imgW {
		probs = probs.Resample(imgH, imgW)
	}

	return probs, nil
}
