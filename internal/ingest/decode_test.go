package ingest

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildwatch/wildwatch-go/internal/errors"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]byte("trail camera frame"))
	b := Fingerprint([]byte("trail camera frame"))
	c := Fingerprint([]byte("different frame"))

	assert.Equal(t, a, b, "identical content hashes identically")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Fingerprint(nil))
}

func TestDecodeImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	decoded, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Bounds().Dx())

	_, err = DecodeImage([]byte("not an image"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageDecode))
}

func TestEncodeForStorage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))

	for _, ext := range []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"} {
		t.Run(ext, func(t *testing.T) {
			out, err := EncodeForStorage(img, nil, "frame"+ext)
			require.NoError(t, err)

			decoded, err := DecodeImage(out)
			require.NoError(t, err)
			assert.Equal(t, 16, decoded.Bounds().Dx())
		})
	}

	t.Run(".webp passthrough", func(t *testing.T) {
		raw := []byte{0x52, 0x49, 0x46, 0x46}
		out, err := EncodeForStorage(img, raw, "frame.webp")
		require.NoError(t, err)
		assert.Equal(t, raw, out, "webp uploads are stored byte-identical")
	})
}
