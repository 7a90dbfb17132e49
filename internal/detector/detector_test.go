package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildwatch/wildwatch-go/internal/errors"
)

type fakeModel struct {
	predictions []Prediction
	err         error
	labels      []string
}

func (f *fakeModel) Predict(img image.Image) ([]Prediction, error) {
	return f.predictions, f.err
}

func (f *fakeModel) Labels() []string {
	return f.labels
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 640, 480))
}

func TestDetect_NoModelLoaded(t *testing.T) {
	adapter := New(nil, 0.25, nil)

	_, err := adapter.Detect(testImage())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryModelInit))
}

func TestDetect_NormalizesOutput(t *testing.T) {
	model := &fakeModel{
		labels: []string{"deer", "fox"},
		predictions: []Prediction{
			// swapped corners, confidence above 1
			{ClassIndex: 0, Confidence: 1.2, X1: 300, Y1: 200, X2: 100, Y2: 50},
			// out of image bounds
			{ClassIndex: 1, Confidence: 0.8, X1: -40, Y1: 10, X2: 700, Y2: 470},
			// unknown class index
			{ClassIndex: 7, Confidence: 0.5, X1: 1, Y1: 1, X2: 2, Y2: 2},
		},
	}
	adapter := New(model, 0.25, nil)

	detections, err := adapter.Detect(testImage())
	require.NoError(t, err)
	require.Len(t, detections, 3)

	assert.Equal(t, "deer", detections[0].Class)
	assert.InDelta(t, 1.0, detections[0].Confidence, 1e-9)
	assert.Equal(t, [4]int{100, 50, 300, 200}, detections[0].BBox)

	assert.Equal(t, "fox", detections[1].Class)
	assert.Equal(t, [4]int{0, 10, 640, 470}, detections[1].BBox)

	assert.Equal(t, "7", detections[2].Class, "unknown index falls back to numeric label")
}

func TestDetect_BoxInvariant(t *testing.T) {
	model := &fakeModel{
		labels: []string{"deer"},
		predictions: []Prediction{
			{ClassIndex: 0, Confidence: 0.9, X1: 620.7, Y1: 12.2, X2: 33.1, Y2: 401.9},
			{ClassIndex: 0, Confidence: 0.9, X1: 0, Y1: 0, X2: 640, Y2: 480},
		},
	}
	adapter := New(model, 0.25, nil)

	detections, err := adapter.Detect(testImage())
	require.NoError(t, err)
	for _, d := range detections {
		assert.Less(t, d.BBox[0], d.BBox[2], "x1 < x2")
		assert.Less(t, d.BBox[1], d.BBox[3], "y1 < y2")
	}
}

func TestDetect_DropsDegenerateAndLowConfidence(t *testing.T) {
	model := &fakeModel{
		labels: []string{"deer"},
		predictions: []Prediction{
			{ClassIndex: 0, Confidence: 0.9, X1: 10, Y1: 10, X2: 10, Y2: 50}, // zero width
			{ClassIndex: 0, Confidence: 0.1, X1: 1, Y1: 1, X2: 50, Y2: 50},  // below threshold
		},
	}
	adapter := New(model, 0.25, nil)

	detections, err := adapter.Detect(testImage())
	require.NoError(t, err)
	assert.Empty(t, detections)
}

func TestDetect_InferenceError(t *testing.T) {
	model := &fakeModel{err: errors.NewStd("invoke failed")}
	adapter := New(model, 0.25, nil)

	_, err := adapter.Detect(testImage())
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryModelInfer))
}

func TestDetect_EmptyPredictions(t *testing.T) {
	adapter := New(&fakeModel{labels: []string{"deer"}}, 0.25, nil)

	detections, err := adapter.Detect(testImage())
	require.NoError(t, err)
	assert.Empty(t, detections)
}
