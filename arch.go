package pspnet

import (
	"fmt"
	"image"
	"path/filepath"
)

// DataMean is the per channel mean of the ImageNet pretrained ResNet
// backbone in RGB order.  It is subtracted from the input during
// preprocessing.
var DataMean = [3]float32{123.68, 116.779, 103.939}

// ModelConfig describes a PSPNet variant, the class count, backbone
// depth and fixed input size the network was trained with, and where
// its ONNX model and label table live on disk
type ModelConfig struct {
	// Name of the pretrained variant, eg: pspnet50_ade20k
	Name string
	// Classes is the number of output channels C
	Classes int
	// BackboneDepth is the number of ResNet layers, 50 or 101
	BackboneDepth int
	// InputSize is the fixed width and height of the network input
	InputSize image.Point
	// Mean is the RGB channel mean subtracted during preprocessing
	Mean [3]float32
	// ModelFile is the path to the ONNX serialized model and weights
	ModelFile string
	// LabelFile is the path to the YAML dataset label table
	LabelFile string
	// InputName and OutputName are the ONNX graph tensor names
	InputName  string
	OutputName string
	// HalfPrecision indicates the model emits a float16 output tensor
	HalfPrecision bool
}

// variants are the known pretrained model configurations.  New
// variants are a configuration entry, not a new type.
var variants = map[string]ModelConfig{
	"pspnet50_ade20k": {
		Name:          "pspnet50_ade20k",
		Classes:       150,
		BackboneDepth: 50,
		InputSize:     image.Pt(473, 473),
	},
	"pspnet101_cityscapes": {
		Name:          "pspnet101_cityscapes",
		Classes:       19,
		BackboneDepth: 101,
		InputSize:     image.Pt(713, 713),
	},
	"pspnet101_voc2012": {
		Name:          "pspnet101_voc2012",
		Classes:       21,
		BackboneDepth: 101,
		InputSize:     image.Pt(473, 473),
	},
}

// ConfigFor returns the ModelConfig of a named pretrained variant with
// model and label files resolved relative to weightsDir.  An unknown
// name is an error and no prediction should be attempted.
func ConfigFor(name, weightsDir string) (ModelConfig, error) {

	cfg, ok := variants[name]

	if !ok {
		return ModelConfig{}, fmt.Errorf("network architecture %q not implemented", name)
	}

	cfg.Mean = DataMean
	cfg.ModelFile = filepath.Join(weightsDir, name+".onnx")
	cfg.LabelFile = filepath.Join(weightsDir, name+"-labels.yaml")
	cfg.InputName = defaultInputName
	cfg.OutputName = defaultOutputName

	return cfg, nil
}

// Variants returns the names of all known pretrained variants
func Variants() []string {

	names := make([]string, 0, len(variants))

	for name := range variants {
		names = append(names, name)
	}

	return names
}

const (
	defaultInputName  = "input"
	defaultOutputName = "output"
)

// applyDefaults fills zero valued optional fields of a caller supplied
// configuration
func (c *ModelConfig) applyDefaults() {

	if c.Mean == ([3]float32{}) {
		c.Mean = DataMean
	}

	if c.InputName == "" {
		c.InputName = defaultInputName
	}

	if c.OutputName == "" {
		c.OutputName = defaultOutputName
	}
}

// validate checks the configuration describes a loadable model
func (c *ModelConfig) validate() error {

	if c.Classes < 1 {
		return fmt.Errorf("model config requires a positive class count, got %d", c.Classes)
	}

	if c.InputSize.X < 1 || c.InputSize.Y < 1 {
		return fmt.Errorf("model config requires a positive input size, got %v", c.InputSize)
	}

	if c.ModelFile == "" {
		return fmt.Errorf("model config requires a model file")
	}

	return nil
}
