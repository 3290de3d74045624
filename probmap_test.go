package pspnet

import (
	"math"
	"testing"
)

func TestClassMapArgmax(t *testing.T) {

	pm := NewProbMap(2, 2, 3)

	// known max at pixel (0,0) in channel 2
	pm.Set(0, 0, 0, 0.1)
	pm.Set(0, 0, 1, 0.2)
	pm.Set(0, 0, 2, 0.7)

	// pixel (1,1) max in channel 0
	pm.Set(1, 1, 0, 0.9)
	pm.Set(1, 1, 1, 0.05)
	pm.Set(1, 1, 2, 0.05)

	classMap := pm.ClassMap()

	if classMap[0] != 2 {
		t.Errorf("expected class 2 at pixel (0,0), got %d", classMap[0])
	}

	if classMap[3] != 0 {
		t.Errorf("expected class 0 at pixel (1,1), got %d", classMap[3])
	}
}

func TestMaxProb(t *testing.T) {

	pm := NewProbMap(1, 2, 3)
	pm.Set(0, 0, 1, 0.8)
	pm.Set(0, 1, 2, 0.3)

	maxProb := pm.MaxProb()

	if maxProb[0] != 0.8 || maxProb[1] != 0.3 {
		t.Errorf("unexpected max probabilities %v", maxProb)
	}
}

func TestFlipHorizontalInvolution(t *testing.T) {

	pm := NewProbMap(3, 5, 2)

	for i := range pm.Data {
		pm.Data[i] = float32(i) * 0.25
	}

	orig := pm.Clone()

	pm.FlipHorizontal()
	pm.FlipHorizontal()

	for i := range pm.Data {
		if pm.Data[i] != orig.Data[i] {
			t.Fatalf("flip twice changed cell %d: %f != %f", i, pm.Data[i], orig.Data[i])
		}
	}
}

func TestFlipHorizontalMirrorsColumns(t *testing.T) {

	pm := NewProbMap(1, 3, 2)
	pm.Set(0, 0, 0, 1)
	pm.Set(0, 0, 1, 10)
	pm.Set(0, 2, 0, 3)
	pm.Set(0, 2, 1, 30)

	pm.FlipHorizontal()

	if pm.At(0, 0, 0) != 3 || pm.At(0, 0, 1) != 30 {
		t.Errorf("expected column 2 values at column 0, got %f %f",
			pm.At(0, 0, 0), pm.At(0, 0, 1))
	}

	if pm.At(0, 2, 0) != 1 || pm.At(0, 2, 1) != 10 {
		t.Errorf("expected column 0 values at column 2, got %f %f",
			pm.At(0, 2, 0), pm.At(0, 2, 1))
	}
}

func TestAccumulateAndDivide(t *testing.T) {

	full := NewProbMap(4, 4, 2)

	tile := NewProbMap(2, 2, 2)
	for i := range tile.Data {
		tile.Data[i] = 1
	}

	// overlapping tiles at (0,0) and (1,1)
	if err := full.Accumulate(tile, 0, 0); err != nil {
		t.Fatal(err)
	}

	if err := full.Accumulate(tile, 1, 1); err != nil {
		t.Fatal(err)
	}

	if full.At(1, 1, 0) != 2 {
		t.Errorf("expected overlap cell to accumulate to 2, got %f", full.At(1, 1, 0))
	}

	if full.At(0, 0, 0) != 1 {
		t.Errorf("expected single coverage cell 1, got %f", full.At(0, 0, 0))
	}

	if full.At(3, 3, 0) != 0 {
		t.Errorf("expected uncovered cell 0, got %f", full.At(3, 3, 0))
	}

	full.Divide(2)

	if full.At(1, 1, 0) != 1 {
		t.Errorf("expected divided cell 1, got %f", full.At(1, 1, 0))
	}
}

func TestAccumulateOutOfBounds(t *testing.T) {

	full := NewProbMap(4, 4, 2)
	tile := NewProbMap(3, 3, 2)

	if err := full.Accumulate(tile, 2, 2); err == nil {
		t.Error("expected out of bounds error")
	}

	wrongC := NewProbMap(2, 2, 3)

	if err := full.Accumulate(wrongC, 0, 0); err == nil {
		t.Error("expected class count mismatch error")
	}
}

func TestCrop(t *testing.T) {

	pm := NewProbMap(4, 4, 2)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			pm.Set(y, x, 0, float32(y*10+x))
		}
	}

	cropped, err := pm.Crop(2, 3)

	if err != nil {
		t.Fatal(err)
	}

	if cropped.H != 2 || cropped.W != 3 || cropped.C != 2 {
		t.Fatalf("unexpected crop shape %dx%dx%d", cropped.H, cropped.W, cropped.C)
	}

	if cropped.At(1, 2, 0) != 12 {
		t.Errorf("expected value 12 at (1,2), got %f", cropped.At(1, 2, 0))
	}

	if _, err := pm.Crop(5, 2); err == nil {
		t.Error("expected out of bounds crop error")
	}
}

func TestMeanWith(t *testing.T) {

	a := NewProbMap(2, 2, 1)
	b := NewProbMap(2, 2, 1)

	for i := range a.Data {
		a.Data[i] = 2
		b.Data[i] = 4
	}

	if err := a.MeanWith(b); err != nil {
		t.Fatal(err)
	}

	for i := range a.Data {
		if a.Data[i] != 3 {
			t.Fatalf("expected mean 3 at cell %d, got %f", i, a.Data[i])
		}
	}

	wrong := NewProbMap(2, 3, 1)

	if err := a.MeanWith(wrong); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestResampleIdentity(t *testing.T) {

	pm := NewProbMap(3, 3, 2)
	for i := range pm.Data {
		pm.Data[i] = float32(i)
	}

	out := pm.Resample(3, 3)

	for i := range pm.Data {
		if out.Data[i] != pm.Data[i] {
			t.Fatalf("identity resample changed cell %d", i)
		}
	}
}

func TestResampleRoundTrip(t *testing.T) {

	// a linear gradient is reproduced by bilinear interpolation, so a
	// down and up round trip stays within a small tolerance
	pm := NewProbMap(16, 16, 2)

	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			pm.Set(y, x, 0, float32(x)/15)
			pm.Set(y, x, 1, float32(y)/15)
		}
	}

	down := pm.Resample(8, 8)
	up := down.Resample(16, 16)

	const tolerance = 0.05

	for i := range pm.Data {
		diff := math.Abs(float64(pm.Data[i] - up.Data[i]))

		if diff > tolerance {
			t.Fatalf("round trip error %f at cell %d exceeds tolerance", diff, i)
		}
	}
}

func TestResampleUpscaleCorners(t *testing.T) {

	pm := NewProbMap(2, 2, 1)
	pm.Set(0, 0, 0, 1)
	pm.Set(0, 1, 0, 2)
	pm.Set(1, 0, 0, 3)
	pm.Set(1, 1, 0, 4)

	out := pm.Resample(4, 4)

	// corner values are preserved with endpoint aligned interpolation
	if out.At(0, 0, 0) != 1 || out.At(0, 3, 0) != 2 ||
		out.At(3, 0, 0) != 3 || out.At(3, 3, 0) != 4 {
		t.Errorf("corners not preserved: %f %f %f %f",
			out.At(0, 0, 0), out.At(0, 3, 0), out.At(3, 0, 0), out.At(3, 3, 0))
	}
}

func TestChannel(t *testing.T) {

	pm := NewProbMap(2, 2, 3)
	pm.Set(0, 1, 2, 0.5)

	ch, err := pm.Channel(2)

	if err != nil {
		t.Fatal(err)
	}

	if ch[1] != 0.5 {
		t.Errorf("expected 0.5 at index 1, got %f", ch[1])
	}

	if _, err := pm.Channel(3); err == nil {
		t.Error("expected out of range channel error")
	}
}
