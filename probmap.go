package pspnet

import (
	"fmt"
)

// ProbMap holds per pixel class scores for an image in row major HWC
// layout, so the C score values of a single pixel are contiguous in
// memory.  Scores are accumulated sums until normalized and are not
// guaranteed to sum to 1, the class with the maximum value at a pixel
// is the predicted label.
type ProbMap struct {
	H, W, C int
	Data    []float32
}

// NewProbMap returns a zero filled probability map of the given
// height, width and class count
func NewProbMap(h, w, c int) *ProbMap {
	return &ProbMap{
		H:    h,
		W:    w,
		C:    c,
		Data: make([]float32, h*w*c),
	}
}

// idx returns the flat buffer index of (y,x,c)
func (m *ProbMap) idx(y, x, c int) int {
	return (y*m.W+x)*m.C + c
}

// At returns the score of class c at pixel (y,x)
func (m *ProbMap) At(y, x, c int) float32 {
	return m.Data[m.idx(y, x, c)]
}

// Set stores the score of class c at pixel (y,x)
func (m *ProbMap) Set(y, x, c int, v float32) {
	m.Data[m.idx(y, x, c)] = v
}

// Pixel returns the score vector of all classes at pixel (y,x).  The
// returned slice aliases the map's buffer.
func (m *ProbMap) Pixel(y, x int) []float32 {
	i := m.idx(y, x, 0)
	return m.Data[i : i+m.C]
}

// Clone returns a deep copy of the probability map
func (m *ProbMap) Clone() *ProbMap {
	n := NewProbMap(m.H, m.W, m.C)
	copy(n.Data, m.Data)
	return n
}

// Crop returns a new map holding the top left h by w region.  Used to
// strip the padded region off a tile prediction before it is
// accumulated at the tiles position.
func (m *ProbMap) Crop(h, w int) (*ProbMap, error) {

	if h > m.H || w > m.W || h < 1 || w < 1 {
		return nil, fmt.Errorf("crop %dx%d out of bounds for %dx%d map",
			h, w, m.H, m.W)
	}

	n := NewProbMap(h, w, m.C)

	for y := 0; y < h; y++ {
		si := m.idx(y, 0, 0)
		copy(n.Data[n.idx(y, 0, 0):], m.Data[si:si+w*m.C])
	}

	return n, nil
}

// Accumulate adds src into the region whose top left corner sits at
// pixel (y,x) of the receiver
func (m *ProbMap) Accumulate(src *ProbMap, y, x int) error {

	if src.C != m.C {
		return fmt.Errorf("class count mismatch %d != %d", src.C, m.C)
	}

	if y < 0 || x < 0 || y+src.H > m.H || x+src.W > m.W {
		return fmt.Errorf("region %dx%d at (%d,%d) out of bounds for %dx%d map",
			src.H, src.W, y, x, m.H, m.W)
	}

	for sy := 0; sy < src.H; sy++ {
		di := m.idx(y+sy, x, 0)
		si := src.idx(sy, 0, 0)
		row := src.Data[si : si+src.W*src.C]

		for i, v := range row {
			m.Data[di+i] += v
		}
	}

	return nil
}

// AddAll adds the other map elementwise into the receiver
func (m *ProbMap) AddAll(o *ProbMap) error {

	if o.H != m.H || o.W != m.W || o.C != m.C {
		return fmt.Errorf("shape mismatch %dx%dx%d != %dx%dx%d",
			o.H, o.W, o.C, m.H, m.W, m.C)
	}

	for i, v := range o.Data {
		m.Data[i] += v
	}

	return nil
}

// MeanWith averages the receiver with the other map elementwise in
// place.  Used to combine a prediction with its mirrored counterpart
// during flip augmentation.
func (m *ProbMap) MeanWith(o *ProbMap) error {

	if o.H != m.H || o.W != m.W || o.C != m.C {
		return fmt.Errorf("shape mismatch %dx%dx%d != %dx%dx%d",
			o.H, o.W, o.C, m.H, m.W, m.C)
	}

	for i, v := range o.Data {
		m.Data[i] = (m.Data[i] + v) / 2
	}

	return nil
}

// Divide scales every cell by 1/d
func (m *ProbMap) Divide(d float32) {
	for i := range m.Data {
		m.Data[i] /= d
	}
}

// FlipHorizontal mirrors the map left to right in place, preserving
// the per pixel class vectors
func (m *ProbMap) FlipHorizontal() {

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W/2; x++ {
			a := m.idx(y, x, 0)
			b := m.idx(y, m.W-1-x, 0)

			for c := 0; c < m.C; c++ {
				m.Data[a+c], m.Data[b+c] = m.Data[b+c], m.Data[a+c]
			}
		}
	}
}

// Resample returns the map bilinearly interpolated to the given height
// and width.  Each class channel is interpolated independently with
// order 1 interpolation, the channel count is unchanged.
func (m *ProbMap) Resample(h, w int) *ProbMap {

	if h == m.H && w == m.W {
		return m.Clone()
	}

	n := NewProbMap(h, w, m.C)

	// source step per destination pixel, endpoints aligned
	yStep := 0.0
	if h > 1 {
		yStep = float64(m.H-1) / float64(h-1)
	}

	xStep := 0.0
	if w > 1 {
		xStep = float64(m.W-1) / float64(w-1)
	}

	for y := 0; y < h; y++ {
		sy := float64(y) * yStep
		y0 := int(sy)
		y1 := y0 + 1
		if y1 > m.H-1 {
			y1 = m.H - 1
		}
		fy := float32(sy - float64(y0))

		for x := 0; x < w; x++ {
			sx := float64(x) * xStep
			x0 := int(sx)
			x1 := x0 + 1
			if x1 > m.W-1 {
				x1 = m.W - 1
			}
			fx := float32(sx - float64(x0))

			p00 := m.Data[m.idx(y0, x0, 0):]
			p01 := m.Data[m.idx(y0, x1, 0):]
			p10 := m.Data[m.idx(y1, x0, 0):]
			p11 := m.Data[m.idx(y1, x1, 0):]
			dst := n.Data[n.idx(y, x, 0):]

			for c := 0; c < m.C; c++ {
				top := p00[c] + (p01[c]-p00[c])*fx
				bot := p10[c] + (p11[c]-p10[c])*fx
				dst[c] = top + (bot-top)*fy
			}
		}
	}

	return n
}

// ClassMap returns the per pixel argmax class id in row major order.
// Class ids are returned as uint8 since all supported datasets have
// fewer than 256 classes.
func (m *ProbMap) ClassMap() []uint8 {

	out := make([]uint8, m.H*m.W)

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			px := m.Pixel(y, x)

			best := 0
			bestVal := px[0]

			for c := 1; c < m.C; c++ {
				if px[c] > bestVal {
					bestVal = px[c]
					best = c
				}
			}

			out[y*m.W+x] = uint8(best)
		}
	}

	return out
}

// MaxProb returns the per pixel maximum class score in row major
// order, the confidence of the predicted label at each pixel
func (m *ProbMap) MaxProb() []float32 {

	out := make([]float32, m.H*m.W)

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			px := m.Pixel(y, x)

			maxVal := px[0]

			for c := 1; c < m.C; c++ {
				if px[c] > maxVal {
					maxVal = px[c]
				}
			}

			out[y*m.W+x] = maxVal
		}
	}

	return out
}

// Channel returns a copy of a single class channel in row major order
func (m *ProbMap) Channel(c int) ([]float32, error) {

	if c < 0 || c >= m.C {
		return nil, fmt.Errorf("class %d out of range [0-%d)", c, m.C)
	}

	out := make([]float32, m.H*m.W)

	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			out[y*m.W+x] = m.At(y, x, c)
		}
	}

	return out, nil
}
