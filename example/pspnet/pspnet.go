/*
Example code showing how to perform semantic segmentation with a
pretrained PSPNet model, optionally with sliding window tiling, flip
augmentation and multi scale evaluation.
*/
package main

import (
	"flag"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/segkit/go-pspnet"
	"github.com/segkit/go-pspnet/eval"
	"github.com/segkit/go-pspnet/render"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	modelName := flag.String("m", "pspnet50_ade20k",
		"Model/Weights to use [pspnet50_ade20k|pspnet101_cityscapes|pspnet101_voc2012]")
	weightsDir := flag.String("d", "../data/weights", "Directory containing ONNX models and label tables")
	imgFile := flag.String("i", "../data/ade20k.jpg", "Path to the input image")
	saveFile := flag.String("o", "../data/ade20k-out.jpg", "Path to output, suffixes _seg, _probs and _seg_blended are appended")
	ortLib := flag.String("lib", "", "Path to the ONNX Runtime shared library, empty uses the default search path")
	sliding := flag.Bool("s", false, "Whether the network should be slided over the original image for prediction")
	flip := flag.Bool("f", false, "Whether the network should predict on both image and flipped image")
	multiScale := flag.Bool("ms", false, "Whether the network should predict on multiple scales")
	scalesArg := flag.String("scales", "", "Comma separated scale factors for multi scale prediction, empty uses the default set")
	heatMap := flag.String("hm", "", "Class name to save a score heatmap for")
	workers := flag.Int("w", 1, "Number of runtimes to predict scales concurrently with")
	gtFile := flag.String("gt", "", "Ground truth class image to evaluate the prediction against")
	fontFile := flag.String("font", "", "TTF font used to render a class legend, empty skips the legend")
	stats := flag.Bool("stats", false, "Print system resource statistics after prediction")

	flag.Parse()

	if *ortLib != "" {
		pspnet.SetSharedLibraryPath(*ortLib)
	}

	cfg, err := pspnet.ConfigFor(*modelName, *weightsDir)

	if err != nil {
		log.Fatal("Error resolving model: ", err)
	}

	// label lookup is only needed for visualization, a missing table
	// falls back to the palette colors
	table, err := pspnet.LoadLabelTable(cfg.LabelFile)

	if err != nil {
		log.Printf("Warning: no label table loaded: %v", err)
		table = nil
	}

	// load image
	img := gocv.IMRead(*imgFile, gocv.IMReadColor)

	if img.Empty() {
		log.Fatal("Error reading image from: ", *imgFile)
	}

	defer img.Close()

	log.Printf("Source image dimensions %dx%d", img.Cols(), img.Rows())

	// the network is trained on RGB ordered input, IMRead loads BGR
	rgbImg := gocv.NewMat()
	defer rgbImg.Close()
	gocv.CvtColor(img, &rgbImg, gocv.ColorBGRToRGB)

	scales := []float64{1.0}

	if *multiScale {
		scales = pspnet.EvaluationScales

		if *scalesArg != "" {
			scales, err = parseScales(*scalesArg)

			if err != nil {
				log.Fatal("Error parsing scales: ", err)
			}
		}
	}

	start := time.Now()

	probs, err := predict(cfg, rgbImg, scales, *sliding, *flip, *workers)

	if err != nil {
		log.Fatal("Prediction failed: ", err)
	}

	log.Printf("Prediction speed=%s, scales=%d", time.Since(start).String(), len(scales))

	classMap := probs.ClassMap()

	log.Println("Writing results...")

	writeView(img, classMap, table, render.ViewPredictions, render.OutputPath(*saveFile, "_seg"))
	writeView(img, classMap, table, render.ViewOverlay, render.OutputPath(*saveFile, "_seg_blended"))

	// per pixel max probability as a grayscale confidence image
	probsImg, err := render.ConfidenceMap(probs, render.GrayscaleMap)

	if err != nil {
		log.Printf("Warning: could not render confidence map: %v", err)
	} else {
		saveImage(render.OutputPath(*saveFile, "_probs"), probsImg)
		probsImg.Close()
	}

	if *heatMap != "" {
		writeHeatmap(probs, table, *heatMap, *saveFile)
	}

	if *fontFile != "" && table != nil {
		writeLegend(table, *fontFile, *saveFile)
	}

	if *gtFile != "" {
		evaluate(classMap, table, *gtFile, cfg.Classes)
	}

	if *stats {
		printStats()
	}

	log.Println("done")
}

// predict runs the configured prediction strategy.  Every run goes
// through the multi scale path, a plain prediction is the degenerate
// single scale of 1.0.
func predict(cfg pspnet.ModelConfig, rgbImg gocv.Mat, scales []float64,
	sliding, flip bool, workers int) (*pspnet.ProbMap, error) {

	if workers > 1 && len(scales) > 1 {
		pool, err := pspnet.NewPool(workers, cfg)

		if err != nil {
			return nil, err
		}

		defer pool.Close()
		return pspnet.PredictMultiScalePool(pool, rgbImg, scales, sliding, flip)
	}

	rt, err := pspnet.NewRuntime(cfg)

	if err != nil {
		return nil, err
	}

	defer rt.Close()
	return pspnet.PredictMultiScale(rt, rgbImg, scales, sliding, flip)
}

// writeView renders and saves one view style, unknown styles and
// render failures are reported as warnings and skipped
func writeView(src gocv.Mat, classMap []uint8, table *pspnet.LabelTable,
	style render.ViewStyle, file string) {

	view, err := render.View(src, classMap, table, style)

	if err != nil {
		log.Printf("Warning: skipping %s view: %v", style, err)
		return
	}

	defer view.Close()
	saveImage(file, view)
}

// writeHeatmap saves the score heatmap of a named class.  A name
// missing from the label table skips the heatmap, the run continues.
func writeHeatmap(probs *pspnet.ProbMap, table *pspnet.LabelTable,
	name, saveFile string) {

	if table == nil {
		log.Printf("Warning: heatmap for %q needs a label table, skipping", name)
		return
	}

	label, err := table.ByName(name)

	if err != nil {
		log.Printf("Warning: could not find index for %q: %v", name, err)
		return
	}

	hm, err := render.ClassHeatmap(probs, label.ID, gocv.ColormapJet)

	if err != nil {
		log.Printf("Warning: could not render heatmap for %q: %v", name, err)
		return
	}

	defer hm.Close()
	saveImage(render.OutputPath(saveFile, "_heatmap_"+name), hm)
}

// writeLegend saves a class legend image next to the other outputs
func writeLegend(table *pspnet.LabelTable, fontFile, saveFile string) {

	legend, err := render.NewLegend(fontFile, 14)

	if err != nil {
		log.Printf("Warning: could not load legend font: %v", err)
		return
	}

	defer legend.Close()

	img, err := legend.Render(table.Labels())

	if err != nil {
		log.Printf("Warning: could not render legend: %v", err)
		return
	}

	defer img.Close()
	saveImage(render.OutputPath(saveFile, "_legend"), img)
}

// evaluate scores the prediction against a ground truth class image
func evaluate(classMap []uint8, table *pspnet.LabelTable, gtFile string, classes int) {

	log.Println("Evaluating results...")

	gt := gocv.IMRead(gtFile, gocv.IMReadGrayScale)

	if gt.Empty() {
		log.Printf("Warning: could not read ground truth from %s", gtFile)
		return
	}

	defer gt.Close()

	gtData := gt.ToBytes()

	if len(gtData) != len(classMap) {
		log.Printf("Warning: ground truth size %d does not match prediction size %d",
			len(gtData), len(classMap))
		return
	}

	result, err := eval.Evaluate(classMap, gtData, classes)

	if err != nil {
		log.Printf("Warning: evaluation failed: %v", err)
		return
	}

	log.Printf("Pixel accuracy: %.4f", result.PixelAccuracy)
	log.Printf("Mean IoU: %.4f", result.MeanIoU)

	for id, iou := range result.ClassIoU {
		if !result.Present[id] {
			continue
		}

		name := strconv.Itoa(id)

		if table != nil {
			if l, err := table.ByID(id); err == nil {
				name = l.Name
			}
		}

		log.Printf("  %-20s IoU %.4f", name, iou)
	}
}

// printStats reports system resource usage after the run
func printStats() {

	if v, err := mem.VirtualMemory(); err == nil {
		log.Printf("Memory: used=%.1f%%, total=%d MB",
			v.UsedPercent, v.Total/1024/1024)
	}

	if c, err := cpu.Percent(0, false); err == nil && len(c) > 0 {
		log.Printf("CPU: used=%.1f%%", c[0])
	}
}

// parseScales parses a comma separated list of scale factors
func parseScales(arg string) ([]float64, error) {

	parts := strings.Split(arg, ",")
	scales := make([]float64, 0, len(parts))

	for _, part := range parts {
		s, err := strconv.ParseFloat(strings.TrimSpace(part), 64)

		if err != nil {
			return nil, err
		}

		scales = append(scales, s)
	}

	return scales, nil
}

// saveImage writes the Mat to file
func saveImage(file string, img gocv.Mat) {

	if ok := gocv.IMWrite(file, img); !ok {
		log.Printf("Warning: failed to save image to %s", file)
		return
	}

	log.Printf("Saved %s", file)
}
