package dsdl

import (
	"image"
	// decoders for image formats whose headers can be probed
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/swdee/go-dsdl/annotation"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// probeShape reads the dimensions of the image at location from its header
// without decoding the pixel data
func probeShape(fs afero.Fs, mediaDir, location string) (*annotation.ImageShape, error) {

	file := location

	if !filepath.IsAbs(location) {
		file = filepath.Join(mediaDir, location)
	}

	f, err := fs.Open(file)

	if err != nil {
		return nil, errors.Wrap(err, "error opening image to read its shape")
	}

	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)

	if err != nil {
		return nil, errors.Wrapf(err, "error reading image header of %s", file)
	}

	return &annotation.ImageShape{Width: cfg.Width, Height: cfg.Height}, nil
}
