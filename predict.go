package pspnet

import (
	"fmt"
	"image"
	"log"

	"gocv.io/x/gocv"
)

// PredictAugmented predicts segmentation for a single image through
// the given predictor.  Images that do not match the network input
// size are resized for prediction and the resulting probability map is
// interpolated back up to the image dimensions, which degrades quality
// compared to sliding prediction.
//
// When flip is true the predictor also runs on the horizontally
// mirrored input, the mirrored result is flipped back into alignment
// and the two maps are averaged elementwise.
func PredictAugmented(p Predictor, img gocv.Mat, flip bool) (*ProbMap, error) {

	size := p.InputSize()
	origW, origH := img.Cols(), img.Rows()

	useImg := img

	if origW != size.X || origH != size.Y {
		log.Printf("input %dx%d not fitting for network size %dx%d, resizing. "+
			"You may want to try sliding prediction for better results",
			origW, origH, size.X, size.Y)

		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(img, &resized, image.Pt(size.X, size.Y), 0, 0,
			gocv.InterpolationLinear)
		useImg = resized
	}

	pm, err := p.Predict(useImg)

	if err != nil {
		return nil, fmt.Errorf("error predicting image: %w", err)
	}

	if flip {
		flipped := gocv.NewMat()
		defer flipped.Close()

		// flip around the Y axis
		gocv.Flip(useImg, &flipped, 1)

		fpm, err := p.Predict(flipped)

		if err != nil {
			return nil, fmt.Errorf("error predicting flipped image: %w", err)
		}

		// mirror the prediction back so it aligns with the regular one
		fpm.FlipHorizontal()

		if err := pm.MeanWith(fpm); err != nil {
			return nil, fmt.Errorf("error averaging flipped prediction: %w", err)
		}
	}

	// upscale the prediction when the input needed resizing
	if origW != size.X || origH != size.Y {
		pm = pm.Resample(origH, origW)
	}

	return pm, nil
}
