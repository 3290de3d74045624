package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/segkit/go-pspnet"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// legend row geometry in pixels
	legendRowHeight = 26
	legendSwatch    = 18
	legendPad       = 4
	legendWidth     = 240
)

// Legend renders class name swatch rows for the classes present in a
// prediction using a TTF font
type Legend struct {
	// fontFace is the loaded TTF font face
	fontFace font.Face
	fontSize float64
}

// NewLegend loads the TTF font used to draw class names
func NewLegend(fontPath string, fontSize float64) (*Legend, error) {

	// load font data
	fontBytes, err := os.ReadFile(fontPath)

	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	// parse the font
	f, err := opentype.Parse(fontBytes)

	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}

	return &Legend{
		fontFace: face,
		fontSize: fontSize,
	}, nil
}

// Render draws one swatch row per label and returns the legend as a
// BGR Mat ready for saving or composing next to an output image
func (l *Legend) Render(labels []pspnet.Label) (gocv.Mat, error) {

	if len(labels) == 0 {
		return gocv.Mat{}, fmt.Errorf("no labels to render")
	}

	height := len(labels)*legendRowHeight + legendPad*2

	rgba := image.NewRGBA(image.Rect(0, 0, legendWidth, height))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(White), image.Point{}, draw.Src)

	for i, label := range labels {

		top := legendPad + i*legendRowHeight
		swatch := image.Rect(legendPad, top+(legendRowHeight-legendSwatch)/2,
			legendPad+legendSwatch, top+(legendRowHeight+legendSwatch)/2)

		clr := color.RGBA{
			R: label.Color[0],
			G: label.Color[1],
			B: label.Color[2],
			A: 255,
		}

		if clr == (color.RGBA{A: 255}) {
			clr = ClassColor(label.ID)
		}

		draw.Draw(rgba, swatch, image.NewUniform(clr), image.Point{}, draw.Src)

		dr := &font.Drawer{
			Dst:  rgba,
			Src:  image.NewUniform(Black),
			Face: l.fontFace,
			Dot: fixed.Point26_6{
				X: fixed.Int26_6((legendPad*2 + legendSwatch) * 64),
				Y: fixed.Int26_6((top + legendRowHeight - 8) * 64),
			},
		}
		dr.DrawString(label.Name)
	}

	// convert image.RGBA to gocv.Mat
	mat, err := gocv.NewMatFromBytes(rgba.Bounds().Dy(), rgba.Bounds().Dx(),
		gocv.MatTypeCV8UC4, rgba.Pix)

	if err != nil || mat.Empty() {
		return gocv.Mat{}, fmt.Errorf("error creating Mat from RGBA")
	}

	gocv.CvtColor(mat, &mat, gocv.ColorRGBAToBGR)

	return mat, nil
}

// Close releases the font face resources
func (l *Legend) Close() error {
	return l.fontFace.Close()
}
