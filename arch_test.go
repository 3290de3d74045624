package pspnet

import (
	"image"
	"path/filepath"
	"testing"
)

func TestConfigFor(t *testing.T) {

	tests := []struct {
		name      string
		classes   int
		depth     int
		inputSize image.Point
	}{
		{"pspnet50_ade20k", 150, 50, image.Pt(473, 473)},
		{"pspnet101_cityscapes", 19, 101, image.Pt(713, 713)},
		{"pspnet101_voc2012", 21, 101, image.Pt(473, 473)},
	}

	for _, tc := range tests {
		cfg, err := ConfigFor(tc.name, "weights")

		if err != nil {
			t.Fatalf("ConfigFor(%q): %v", tc.name, err)
		}

		if cfg.Classes != tc.classes {
			t.Errorf("%s: expected %d classes, got %d", tc.name, tc.classes, cfg.Classes)
		}

		if cfg.BackboneDepth != tc.depth {
			t.Errorf("%s: expected backbone depth %d, got %d", tc.name, tc.depth, cfg.BackboneDepth)
		}

		if cfg.InputSize != tc.inputSize {
			t.Errorf("%s: expected input size %v, got %v", tc.name, tc.inputSize, cfg.InputSize)
		}

		if cfg.Mean != DataMean {
			t.Errorf("%s: mean not applied", tc.name)
		}

		if want := filepath.Join("weights", tc.name+".onnx"); cfg.ModelFile != want {
			t.Errorf("%s: expected model file %s, got %s", tc.name, want, cfg.ModelFile)
		}

		if err := cfg.validate(); err != nil {
			t.Errorf("%s: resolved config does not validate: %v", tc.name, err)
		}
	}
}

func TestConfigForUnknown(t *testing.T) {

	if _, err := ConfigFor("pspnet18_coco", "weights"); err == nil {
		t.Error("expected error for unknown variant name")
	}
}

func TestVariants(t *testing.T) {

	names := Variants()

	if len(names) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(names))
	}

	seen := make(map[string]bool)

	for _, name := range names {
		seen[name] = true
	}

	if !seen["pspnet50_ade20k"] {
		t.Error("pspnet50_ade20k missing from variant list")
	}
}

func TestModelConfigDefaults(t *testing.T) {

	cfg := ModelConfig{
		Classes:   10,
		InputSize: image.Pt(64, 64),
		ModelFile: "model.onnx",
	}
	cfg.applyDefaults()

	if cfg.Mean != DataMean {
		t.Errorf("expected default mean, got %v", cfg.Mean)
	}

	if cfg.InputName != "input" || cfg.OutputName != "output" {
		t.Errorf("expected default tensor names, got %q/%q", cfg.InputName, cfg.OutputName)
	}
}

func TestModelConfigValidate(t *testing.T) {

	tests := []struct {
		name string
		cfg  ModelConfig
	}{
		{"no classes", ModelConfig{InputSize: image.Pt(64, 64), ModelFile: "m.onnx"}},
		{"no input size", ModelConfig{Classes: 10, ModelFile: "m.onnx"}},
		{"no model file", ModelConfig{Classes: 10, InputSize: image.Pt(64, 64)}},
	}

	for _, tc := range tests {
		if err := tc.cfg.validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}
