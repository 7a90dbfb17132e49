// Package detector wraps the black-box inference model and normalizes its raw
// output into canonical detection records.
package detector

import (
	"image"
	"log/slog"
	"math"
	"strconv"

	"github.com/wildwatch/wildwatch-go/internal/errors"
)

// Prediction is the raw output of a detection model for one object: a class
// index, a confidence score and a bounding box in pixel coordinates of the
// analyzed image. Coordinate order and bounds are not guaranteed.
type Prediction struct {
	ClassIndex int
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
}

// Model is the black-box inference capability.
type Model interface {
	Predict(img image.Image) ([]Prediction, error)
	Labels() []string
}

// Detection is one normalized detection record: class label, confidence in
// [0,1], and an integer bounding box satisfying x1 < x2 and y1 < y2.
type Detection struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"conf"`
	BBox       [4]int  `json:"bbox"`
}

// Adapter normalizes raw model predictions into canonical detections.
type Adapter struct {
	model     Model
	threshold float64
	logger    *slog.Logger
}

// New creates a detection adapter around the given model. The model may be
// nil when loading failed at startup, Detect then fails on every call.
func New(model Model, threshold float64, logger *slog.Logger) *Adapter {
	return &Adapter{
		model:     model,
		threshold: threshold,
		logger:    logger,
	}
}

// Loaded reports whether an inference model is available.
func (a *Adapter) Loaded() bool {
	return a != nil && a.model != nil
}

// Detect runs inference on the decoded image and returns zero or more
// normalized detections. It fails when no model is loaded or inference errors.
func (a *Adapter) Detect(img image.Image) ([]Detection, error) {
	if !a.Loaded() {
		return nil, errors.Newf("detection model is not loaded").
			Component("detector").
			Category(errors.CategoryModelInit).
			Build()
	}

	predictions, err := a.model.Predict(img)
	if err != nil {
		return nil, errors.New(err).
			Component("detector").
			Category(errors.CategoryModelInfer).
			Build()
	}

	bounds := img.Bounds()
	labels := a.model.Labels()

	detections := make([]Detection, 0, len(predictions))
	for _, pred := range predictions {
		if pred.Confidence < a.threshold {
			continue
		}

		box, ok := normalizeBox(pred, bounds)
		if !ok {
			// Degenerate box, nothing to record
			if a.logger != nil {
				a.logger.Debug("dropping degenerate bounding box",
					"class_index", pred.ClassIndex,
					"confidence", pred.Confidence)
			}
			continue
		}

		detections = append(detections, Detection{
			Class:      classLabel(labels, pred.ClassIndex),
			Confidence: clampConfidence(pred.Confidence),
			BBox:       box,
		})
	}

	return detections, nil
}

// normalizeBox orders the corner coordinates, clamps them to the image bounds
// and rounds to integers. It reports false for boxes with no area left.
func normalizeBox(pred Prediction, bounds image.Rectangle) ([4]int, bool) {
	x1, x2 := pred.X1, pred.X2
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	y1, y2 := pred.Y1, pred.Y2
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	xi1 := clampInt(int(math.Round(x1)), bounds.Min.X, bounds.Max.X)
	yi1 := clampInt(int(math.Round(y1)), bounds.Min.Y, bounds.Max.Y)
	xi2 := clampInt(int(math.Round(x2)), bounds.Min.X, bounds.Max.X)
	yi2 := clampInt(int(math.Round(y2)), bounds.Min.Y, bounds.Max.Y)

	if xi1 >= xi2 || yi1 >= yi2 {
		return [4]int{}, false
	}
	return [4]int{xi1, yi1, xi2, yi2}, true
}

func clampInt(v, minValue, maxValue int) int {
	if v < minValue {
		return minValue
	}
	if v > maxValue {
		return maxValue
	}
	return v
}

func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// classLabel maps a class index to its label, falling back to the numeric
// index when the label table does not cover it.
func classLabel(labels []string, index int) string {
	if index >= 0 && index < len(labels) {
		return labels[index]
	}
	return strconv.Itoa(index)
}
