package rawmeta

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// exifMode selects which EXIF fields are collected.
type exifMode int

const (
	// exifKeepComments keeps the fields generators write prompts into.
	exifKeepComments exifMode = iota
	// exifKeepAll keeps every named field.
	exifKeepAll
)

const (
	tagXPComment = 0x9C9C

	fieldXPComment = "XPComment"
)

// commentFields are the EXIF fields read from JPEG, WebP and PNG eXIf data.
var commentFields = map[exif.FieldName]bool{
	exif.UserComment:      true,
	exif.ImageDescription: true,
}

// embeddedPrefixes maps the "Key: value" prefixes some ComfyUI savers put
// into ASCII EXIF fields to the raw key they stand for.
var embeddedPrefixes = []struct {
	prefix string
	key    string
}{
	{"Workflow:", "workflow"},
	{"Prompt:", "prompt"},
}

var exifHeader = []byte("Exif\x00\x00")

// decodeEXIF decodes an EXIF block (a JPEG file, or a bare TIFF structure
// optionally prefixed by "Exif\0\0") and returns the selected fields.
func decodeEXIF(data []byte, mode exifMode) (out RawMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("exif decoder panic: %v", r)
		}
	}()

	data = bytes.TrimPrefix(data, exifHeader)

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return nil, fmt.Errorf("failed to decode exif: %w", err)
	}
	if x == nil {
		return nil, errors.New("no exif data")
	}

	out = make(RawMetadata)
	collector := &fieldCollector{out: out, mode: mode}
	if err := x.Walk(collector); err != nil {
		return nil, fmt.Errorf("failed to walk exif fields: %w", err)
	}

	if x.Tiff != nil {
		for _, dir := range x.Tiff.Dirs {
			for _, tag := range dir.Tags {
				if tag.Id == tagXPComment {
					if s := strings.TrimSpace(decodeUTF16(tag.Val, true)); s != "" {
						out.SetText(fieldXPComment, s)
					}
				}
			}
		}
	}

	return out, nil
}

// fieldCollector implements exif.Walker.
type fieldCollector struct {
	out  RawMetadata
	mode exifMode
}

func (c *fieldCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	key := string(name)

	if name == exif.UserComment {
		if s := decodeUserComment(tag.Val); s != "" {
			c.out.SetText(key, s)
		}
		return nil
	}

	if tag.Type == tiff.DTAscii {
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		s = strings.TrimSpace(stripNUL(s))
		if s == "" {
			return nil
		}
		for _, p := range embeddedPrefixes {
			if strings.HasPrefix(s, p.prefix) {
				c.out.SetText(p.key, strings.TrimSpace(strings.TrimPrefix(s, p.prefix)))
			}
		}
		if c.mode == exifKeepAll || commentFields[name] {
			c.out.SetText(key, s)
		}
		return nil
	}

	if c.mode != exifKeepAll {
		return nil
	}

	if tag.Type == tiff.DTUndefined {
		c.out.Set(key, BytesValue(tag.Val))
		return nil
	}
	c.out.SetText(key, tag.String())
	return nil
}
