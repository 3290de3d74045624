package pspnet

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/x448/float16"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// Predictor is the opaque inference boundary.  Predict runs the
// network over an image that exactly matches InputSize and returns a
// probability map of the same spatial size with Classes channels.
//
// Implementations are not required to be safe for concurrent use, see
// Pool for running predictions in parallel.
type Predictor interface {
	Predict(img gocv.Mat) (*ProbMap, error)
	InputSize() image.Point
	Classes() int
}

// ortEnv guards one time initialization of the ONNX Runtime
// environment.  The environment stays alive for the process lifetime
// so runtimes can be created and closed independently.
var ortEnv sync.Once

// SetSharedLibraryPath sets the path of the ONNX Runtime shared
// library.  Must be called before the first NewRuntime when the
// library is not on the default search path.
func SetSharedLibraryPath(path string) {
	ort.SetSharedLibraryPath(path)
}

// Runtime runs a PSPNet ONNX model through ONNX Runtime.  It owns a
// session with preallocated input and output tensors sized for the
// fixed network input, so a Runtime must not be shared between
// goroutines, use a Pool instead.
type Runtime struct {
	cfg     ModelConfig
	session *ort.AdvancedSession
	// input is a batch of 1 NHWC float32 tensor
	input *ort.Tensor[float32]
	// output receives the batch of 1 class score tensor.  outHalf is
	// used in its place for models emitting float16.
	output  *ort.Tensor[float32]
	outHalf *ort.Tensor[uint16]
}

// NewRuntime loads the configured ONNX serialized model and weights
// and returns a runtime ready for prediction
func NewRuntime(cfg ModelConfig) (*Runtime, error) {

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// check file exists before handing the path to the ONNX session
	info, err := os.Stat(cfg.ModelFile)

	if err != nil {
		return nil, fmt.Errorf("model file does not exist at %s, error: %w",
			cfg.ModelFile, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("model file %s is a directory", cfg.ModelFile)
	}

	var initErr error
	ortEnv.Do(func() {
		initErr = ort.InitializeEnvironment()
	})

	if initErr != nil {
		return nil, fmt.Errorf("error initializing ONNX runtime environment: %w", initErr)
	}

	r := &Runtime{cfg: cfg}

	h := int64(cfg.InputSize.Y)
	w := int64(cfg.InputSize.X)

	r.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, h, w, 3))

	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outShape := ort.NewShape(1, h, w, int64(cfg.Classes))
	var outTensor ort.ArbitraryTensor

	if cfg.HalfPrecision {
		r.outHalf, err = ort.NewEmptyTensor[uint16](outShape)
		outTensor = r.outHalf
	} else {
		r.output, err = ort.NewEmptyTensor[float32](outShape)
		outTensor = r.output
	}

	if err != nil {
		r.input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	r.session, err = ort.NewAdvancedSession(cfg.ModelFile,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.ArbitraryTensor{r.input}, []ort.ArbitraryTensor{outTensor},
		nil)

	if err != nil {
		r.destroyTensors()
		return nil, fmt.Errorf("error creating ONNX session: %w", err)
	}

	return r, nil
}

// Predict runs the network over an 8 bit 3 channel RGB Mat matching
// the network input size and returns the per pixel class scores
func (r *Runtime) Predict(img gocv.Mat) (*ProbMap, error) {

	if img.Cols() != r.cfg.InputSize.X || img.Rows() != r.cfg.InputSize.Y {
		return nil, fmt.Errorf("input %dx%d does not match network size %dx%d",
			img.Cols(), img.Rows(), r.cfg.InputSize.X, r.cfg.InputSize.Y)
	}

	if img.Channels() != 3 || img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("input must be an 8 bit 3 channel RGB Mat")
	}

	// make mat continuous
	if !img.IsContinuous() {
		img = img.Clone()
		defer img.Close()
	}

	data, err := img.DataPtrUint8()

	if err != nil {
		return nil, fmt.Errorf("error getting data pointer to Mat: %w", err)
	}

	r.preprocess(data)

	if err := r.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	pm := NewProbMap(r.cfg.InputSize.Y, r.cfg.InputSize.X, r.cfg.Classes)

	if r.cfg.HalfPrecision {
		halfToFloat32(r.outHalf.GetData(), pm.Data)
	} else {
		copy(pm.Data, r.output.GetData())
	}

	return pm, nil
}

// preprocess fills the input tensor from raw RGB pixel data by
// converting to float32, subtracting the dataset channel means and
// reversing channel order to the BGR ordering the network was trained
// with.  The leading batch dimension is implicit in the tensor shape.
func (r *Runtime) preprocess(rgb []uint8) {

	dst := r.input.GetData()
	mean := r.cfg.Mean

	for i := 0; i < len(rgb); i += 3 {
		dst[i+0] = float32(rgb[i+2]) - mean[2]
		dst[i+1] = float32(rgb[i+1]) - mean[1]
		dst[i+2] = float32(rgb[i+0]) - mean[0]
	}
}

// InputSize returns the fixed network input dimensions
func (r *Runtime) InputSize() image.Point {
	return r.cfg.InputSize
}

// Classes returns the number of output class channels
func (r *Runtime) Classes() int {
	return r.cfg.Classes
}

// Config returns the model configuration the runtime was created with
func (r *Runtime) Config() ModelConfig {
	return r.cfg
}

// Close destroys the session and releases tensor memory
func (r *Runtime) Close() error {

	var err error

	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}

	r.destroyTensors()
	return err
}

func (r *Runtime) destroyTensors() {

	if r.input != nil {
		r.input.Destroy()
		r.input = nil
	}

	if r.output != nil {
		r.output.Destroy()
		r.output = nil
	}

	if r.outHalf != nil {
		r.outHalf.Destroy()
		r.outHalf = nil
	}
}

// halfToFloat32 converts a float16 output buffer to float32 as Go has
// no native FP16 support
func halfToFloat32(src []uint16, dst []float32) {

	for i, val := range src {
		dst[i] = float16.Frombits(val).Float32()
	}
}
