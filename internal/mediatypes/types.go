package mediatypes

import (
	"path/filepath"
	"strings"
)

// Container identifies the image container format that carries metadata.
type Container string

const (
	// ContainerPNG is a PNG file with tEXt/iTXt/zTXt/eXIf chunks.
	ContainerPNG Container = "png"
	// ContainerJPEG is a JPEG file with an EXIF APP1 segment.
	ContainerJPEG Container = "jpeg"
	// ContainerTIFF is a TIFF file whose IFDs hold EXIF fields.
	ContainerTIFF Container = "tiff"
	// ContainerWebP is a RIFF/WebP file with EXIF/XMP/ICCP chunks.
	ContainerWebP Container = "webp"
	// ContainerUnknown is any extension without a metadata reader.
	ContainerUnknown Container = "unknown"
)

// ContainerExtensions maps lowercase file extensions to their container.
var ContainerExtensions = map[string]Container{
	".png":  ContainerPNG,
	".jpg":  ContainerJPEG,
	".jpeg": ContainerJPEG,
	".tif":  ContainerTIFF,
	".tiff": ContainerTIFF,
	".webp": ContainerWebP,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
}

// ContainerFor returns the container for a file path based on its
// extension, compared case-insensitively.
func ContainerFor(path string) Container {
	ext := strings.ToLower(filepath.Ext(path))
	if c, ok := ContainerExtensions[ext]; ok {
		return c
	}
	return ContainerUnknown
}

// IsSupported reports whether path has an extension metapick can read
// metadata from.
func IsSupported(path string) bool {
	return ContainerFor(path) != ContainerUnknown
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[strings.ToLower(ext)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// String returns the container name.
func (c Container) String() string {
	return string(c)
}
