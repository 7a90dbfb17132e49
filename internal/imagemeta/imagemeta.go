// Package imagemeta extracts descriptive EXIF tags from raw image bytes.
// Extraction is strictly best-effort: corrupt or absent tag blocks yield an
// empty map, never an error, so ingestion is never aborted by metadata.
package imagemeta

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// CameraKey is the normalized metadata key holding the camera identifier.
// The analytics dashboard groups detections on it.
const CameraKey = "camera"

type tagCollector struct {
	tags map[string]string
}

func (tc *tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if value, err := tag.StringVal(); err == nil {
		tc.tags[string(name)] = value
		return nil
	}
	tc.tags[string(name)] = tag.String()
	return nil
}

// Extract decodes embedded EXIF tags from raw image bytes into a flat string
// map. The EXIF Model tag, when present, is additionally exposed under the
// normalized "camera" key.
func Extract(raw []byte) map[string]string {
	metadata := map[string]string{}

	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return metadata
	}

	collector := &tagCollector{tags: metadata}
	if err := x.Walk(collector); err != nil {
		return map[string]string{}
	}

	if model, ok := metadata[string(exif.Model)]; ok {
		metadata[CameraKey] = model
	}

	return metadata
}
