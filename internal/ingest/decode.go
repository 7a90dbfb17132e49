// decode.go: image decoding and re-encoding for storage
package ingest

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register webp decoder

	"github.com/wildwatch/wildwatch-go/internal/errors"
)

const jpegQuality = 90

// DecodeImage decodes raw upload bytes into an image. All formats on the
// ingest allow-list are registered.
func DecodeImage(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryImageDecode).
			Build()
	}
	return img, nil
}

// EncodeForStorage re-encodes the decoded image in the format matching the
// upload's extension so the stored blob keeps the uploaded name as its key.
// WebP has no encoder available, those uploads are stored byte-identical.
func EncodeForStorage(img image.Image, raw []byte, filename string) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(&buf, img)
	case ".bmp":
		err = bmp.Encode(&buf, img)
	case ".tiff":
		err = tiff.Encode(&buf, img, nil)
	case ".webp":
		return raw, nil
	default: // .jpg, .jpeg
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryImageDecode).
			Context("image_name", filename).
			Build()
	}
	return buf.Bytes(), nil
}
