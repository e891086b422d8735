// Command browse-dataset draws the annotated instances of each image in a
// dataset and saves the results for visual inspection.
package main

import (
	"log"
	"path/filepath"

	arg "github.com/alexflint/go-arg"
	"github.com/spf13/afero"
	_ "github.com/swdee/go-dsdl"
	"github.com/swdee/go-dsdl/dataset"
	"github.com/swdee/go-dsdl/render"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	args := struct {
		Config    string `arg:"required" help:"dataset YAML config file"`
		OutDir    string `arg:"-o,--out-dir" help:"directory to save rendered images to"`
		Limit     int    `arg:"-n" help:"maximum number of images to render, 0 for all"`
		Thickness int    `arg:"-t" help:"polygon line thickness"`
	}{
		OutDir:    "browse-out",
		Thickness: 2,
	}
	arg.MustParse(&args)

	logger, err := zap.NewDevelopment()

	if err != nil {
		log.Fatal("Error creating logger: ", err)
	}

	defer logger.Sync()

	fs := afero.NewOsFs()

	cfg, err := dataset.LoadConfig(fs, args.Config)

	if err != nil {
		logger.Fatal("error loading config", zap.Error(err))
	}

	d, err := dataset.New(cfg, dataset.WithFs(fs), dataset.WithLogger(logger))

	if err != nil {
		logger.Fatal("error loading dataset", zap.Error(err))
	}

	if err := fs.MkdirAll(args.OutDir, 0755); err != nil {
		logger.Fatal("error creating output directory", zap.Error(err))
	}

	font := render.DefaultFont()
	classes := d.Classes()

	// loads the data list when the config sets lazy_init
	list, err := d.DataList()

	if err != nil {
		logger.Fatal("error reading data list", zap.Error(err))
	}

	if args.Limit > 0 && args.Limit < len(list) {
		list = list[:args.Limit]
	}

	for _, info := range list {

		img := gocv.IMRead(info.ImgPath, gocv.IMReadColor)

		if img.Empty() {
			logger.Warn("skipping unreadable image", zap.String("path", info.ImgPath))
			img.Close()
			continue
		}

		render.Instances(&img, info.Instances, classes, font, args.Thickness)

		outFile := filepath.Join(args.OutDir, filepath.Base(info.ImgPath))

		if ok := gocv.IMWrite(outFile, img); !ok {
			logger.Warn("failed to save image", zap.String("file", outFile))
		} else {
			logger.Debug("rendered image",
				zap.String("file", outFile),
				zap.Int("instances", len(info.Instances)),
			)
		}

		img.Close()
	}

	logger.Info("done", zap.Int("images", len(list)), zap.String("out", args.OutDir))
}
