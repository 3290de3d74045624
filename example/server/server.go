/*
Example code showing how to serve PSPNet segmentation over HTTP.  The
server keeps a pool of runtimes so uploads are segmented concurrently.
*/
package main

import (
	"flag"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/segkit/go-pspnet"
	"github.com/segkit/go-pspnet/render"
	"gocv.io/x/gocv"
)

type server struct {
	pool  *pspnet.Pool
	table *pspnet.LabelTable
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	modelName := flag.String("m", "pspnet50_ade20k",
		"Model/Weights to use [pspnet50_ade20k|pspnet101_cityscapes|pspnet101_voc2012]")
	weightsDir := flag.String("d", "../data/weights", "Directory containing ONNX models and label tables")
	ortLib := flag.String("lib", "", "Path to the ONNX Runtime shared library, empty uses the default search path")
	poolSize := flag.Int("s", 2, "Size of the runtime pool")
	addr := flag.String("a", ":8080", "Address to listen on")

	flag.Parse()

	if *ortLib != "" {
		pspnet.SetSharedLibraryPath(*ortLib)
	}

	cfg, err := pspnet.ConfigFor(*modelName, *weightsDir)

	if err != nil {
		log.Fatal("Error resolving model: ", err)
	}

	pool, err := pspnet.NewPool(*poolSize, cfg)

	if err != nil {
		log.Fatal("Error creating runtime pool: ", err)
	}

	defer pool.Close()

	table, err := pspnet.LoadLabelTable(cfg.LabelFile)

	if err != nil {
		log.Printf("Warning: no label table loaded: %v", err)
		table = nil
	}

	s := &server{
		pool:  pool,
		table: table,
	}

	router := gin.Default()
	router.GET("/health", s.health)
	router.POST("/segment", s.segment)

	log.Printf("Serving %s on %s", cfg.Name, *addr)

	if err := router.Run(*addr); err != nil {
		log.Fatal("Server failed: ", err)
	}
}

// health reports the service is up
func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// segment accepts an image upload and responds with the segmentation
// overlay as JPEG.  Query parameters sliding and flip toggle the
// prediction strategy, view selects the output style.
func (s *server) segment(c *gin.Context) {

	data, err := readUpload(c)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)

	if err != nil || img.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not decode image"})
		return
	}

	defer img.Close()

	rgbImg := gocv.NewMat()
	defer rgbImg.Close()
	gocv.CvtColor(img, &rgbImg, gocv.ColorBGRToRGB)

	sliding := c.Query("sliding") == "true"
	flip := c.Query("flip") == "true"

	style := render.ViewStyle(c.DefaultQuery("view", string(render.ViewOverlay)))

	rt := s.pool.Get()
	defer s.pool.Return(rt)

	var probs *pspnet.ProbMap

	if sliding {
		probs, err = pspnet.PredictSliding(rt, rgbImg, pspnet.DefaultOverlap, flip)
	} else {
		probs, err = pspnet.PredictAugmented(rt, rgbImg, flip)
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	view, err := render.View(img, probs.ClassMap(), s.table, style)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	defer view.Close()

	buf, err := gocv.IMEncode(".jpg", view)

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	defer buf.Close()

	c.Data(http.StatusOK, "image/jpeg", buf.GetBytes())
}

// readUpload returns the uploaded image bytes from either a multipart
// form file named image or the raw request body
func readUpload(c *gin.Context) ([]byte, error) {

	file, err := c.FormFile("image")

	if err == nil {
		f, err := file.Open()

		if err != nil {
			return nil, err
		}

		defer f.Close()
		return io.ReadAll(f)
	}

	return io.ReadAll(c.Request.Body)
}
