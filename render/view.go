package render

import (
	"fmt"
	"path/filepath"

	"github.com/segkit/go-pspnet"
	"gocv.io/x/gocv"
)

// ViewStyle selects how a prediction is rendered for output
type ViewStyle string

const (
	// ViewOriginal is the untouched input image
	ViewOriginal ViewStyle = "original"
	// ViewPredictions is the class map painted in class colors
	ViewPredictions ViewStyle = "predictions"
	// ViewOverlay is the painted class map alpha blended over the input
	ViewOverlay ViewStyle = "overlay"
)

// DefaultAlpha is the blend weight of the class colors in an overlay
const DefaultAlpha float32 = 0.5

// ClassImage paints a class map into a BGR Mat using the label table
// colors, falling back to the palette for ids without a table entry.
// classMap is row major with height*width entries.
func ClassImage(classMap []uint8, height, width int, table *pspnet.LabelTable) (gocv.Mat, error) {

	if len(classMap) != height*width {
		return gocv.Mat{}, fmt.Errorf("class map size %d does not match %dx%d",
			len(classMap), height, width)
	}

	// manipulating pixels through GoCV is too slow over CGO, so build
	// the raw byte buffer and wrap it in a Mat afterwards
	imgData := make([]byte, height*width*3)

	for i, id := range classMap {
		clr := ClassColor(int(id))

		if table != nil {
			if l, err := table.ByID(int(id)); err == nil {
				clr.R, clr.G, clr.B = l.Color[0], l.Color[1], l.Color[2]
			}
		}

		// BGR byte order
		imgData[i*3+0] = clr.B
		imgData[i*3+1] = clr.G
		imgData[i*3+2] = clr.R
	}

	img, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, imgData)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("error creating class image Mat: %w", err)
	}

	return img, nil
}

// Blend alpha blends the overlay image over the source image.  Both
// Mats must have the same dimensions and type.
func Blend(src, overlay gocv.Mat, alpha float32) (gocv.Mat, error) {

	if src.Cols() != overlay.Cols() || src.Rows() != overlay.Rows() {
		return gocv.Mat{}, fmt.Errorf("blend size mismatch %dx%d != %dx%d",
			src.Cols(), src.Rows(), overlay.Cols(), overlay.Rows())
	}

	dst := gocv.NewMat()
	gocv.AddWeighted(overlay, float64(alpha), src, float64(1-alpha), 0, &dst)

	return dst, nil
}

// View produces an image of the prediction ready for saving.  src is
// the BGR source image as read by gocv.IMRead.  An unknown view style
// is an error, callers treat it as a warning and skip the view.
func View(src gocv.Mat, classMap []uint8, table *pspnet.LabelTable,
	style ViewStyle) (gocv.Mat, error) {

	switch style {

	case ViewOriginal:
		return src.Clone(), nil

	case ViewPredictions:
		return ClassImage(classMap, src.Rows(), src.Cols(), table)

	case ViewOverlay:
		classImg, err := ClassImage(classMap, src.Rows(), src.Cols(), table)

		if err != nil {
			return gocv.Mat{}, err
		}

		defer classImg.Close()
		return Blend(src, classImg, DefaultAlpha)

	default:
		return gocv.Mat{}, fmt.Errorf("unknown view style %q", style)
	}
}

// OutputPath derives an output filename by appending a suffix to the
// path's stem, so "out/ade20k.jpg" with suffix "_seg" becomes
// "out/ade20k_seg.jpg"
func OutputPath(path, suffix string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)] + suffix + ext
}
