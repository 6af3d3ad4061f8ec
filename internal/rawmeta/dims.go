package rawmeta

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strconv"

	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"metapick/internal/mediatypes"
)

// Keys under which probed pixel dimensions are reported.
const (
	KeyImageWidth  = "ImageWidth"
	KeyImageHeight = "ImageHeight"
)

// probeDimensions reads only the image header to find its pixel size.
func probeDimensions(container mediatypes.Container, data []byte) (image.Config, bool) {
	r := bytes.NewReader(data)

	var (
		cfg image.Config
		err error
	)
	switch container {
	case mediatypes.ContainerPNG:
		cfg, err = png.DecodeConfig(r)
	case mediatypes.ContainerJPEG:
		cfg, err = jpeg.DecodeConfig(r)
	case mediatypes.ContainerTIFF:
		cfg, err = tiff.DecodeConfig(r)
	case mediatypes.ContainerWebP:
		cfg, err = webp.DecodeConfig(r)
	default:
		return image.Config{}, false
	}
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return image.Config{}, false
	}
	return cfg, true
}

func addDimensions(out RawMetadata, container mediatypes.Container, data []byte) {
	cfg, ok := probeDimensions(container, data)
	if !ok {
		return
	}
	out.SetText(KeyImageWidth, strconv.Itoa(cfg.Width))
	out.SetText(KeyImageHeight, strconv.Itoa(cfg.Height))
}
