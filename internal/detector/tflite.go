// tflite.go: TFLite backed detection model (SSD style post-processed outputs)
package detector

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"runtime"
	"strings"

	"github.com/tphakala/go-tflite"
	"golang.org/x/image/draw"

	"github.com/wildwatch/wildwatch-go/internal/errors"
)

// TFLiteModel implements Model using a TensorFlow Lite detection model with
// the standard post-processed detection outputs: four output tensors holding
// normalized boxes, class indices, scores and the valid detection count.
type TFLiteModel struct {
	interpreter *tflite.Interpreter
	labels      []string
	inputWidth  int
	inputHeight int
}

// LoadModel loads a TFLite detection model and its class labels from disk.
func LoadModel(modelPath, labelsPath string) (*TFLiteModel, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, errors.Newf("cannot load model from %s", modelPath).
			Component("detector").
			Category(errors.CategoryModelInit).
			Context("model_path", modelPath).
			Build()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter").
			Component("detector").
			Category(errors.CategoryModelInit).
			Build()
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("tensor allocation failed").
			Component("detector").
			Category(errors.CategoryModelInit).
			Build()
	}

	input := interpreter.GetInputTensor(0)
	if input == nil || input.NumDims() != 4 {
		return nil, errors.Newf("unexpected input tensor shape").
			Component("detector").
			Category(errors.CategoryModelInit).
			Build()
	}

	labels, err := loadLabels(labelsPath)
	if err != nil {
		return nil, err
	}

	return &TFLiteModel{
		interpreter: interpreter,
		labels:      labels,
		inputHeight: input.Dim(1),
		inputWidth:  input.Dim(2),
	}, nil
}

// loadLabels reads one class label per line.
func loadLabels(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("detector").
			Category(errors.CategoryFileIO).
			Context("labels_path", path).
			Build()
	}
	defer func() { _ = file.Close() }()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading labels from %s: %w", path, err)
	}
	return labels, nil
}

// Labels returns the class label table.
func (m *TFLiteModel) Labels() []string {
	return m.labels
}

// Predict runs the image through the interpreter and converts the normalized
// output boxes into pixel coordinates of the original image.
func (m *TFLiteModel) Predict(img image.Image) ([]Prediction, error) {
	input := m.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}

	m.fillInput(input, img)

	if status := m.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed")
	}

	boxes := m.interpreter.GetOutputTensor(0).Float32s()
	classes := m.interpreter.GetOutputTensor(1).Float32s()
	scores := m.interpreter.GetOutputTensor(2).Float32s()
	count := int(m.interpreter.GetOutputTensor(3).Float32s()[0])

	if count > len(scores) {
		count = len(scores)
	}

	bounds := img.Bounds()
	width := float64(bounds.Dx())
	height := float64(bounds.Dy())

	predictions := make([]Prediction, 0, count)
	for i := 0; i < count; i++ {
		// Output box order is [ymin, xmin, ymax, xmax], normalized to [0,1]
		yMin := float64(boxes[i*4+0])
		xMin := float64(boxes[i*4+1])
		yMax := float64(boxes[i*4+2])
		xMax := float64(boxes[i*4+3])

		predictions = append(predictions, Prediction{
			ClassIndex: int(classes[i]),
			Confidence: float64(scores[i]),
			X1:         float64(bounds.Min.X) + xMin*width,
			Y1:         float64(bounds.Min.Y) + yMin*height,
			X2:         float64(bounds.Min.X) + xMax*width,
			Y2:         float64(bounds.Min.Y) + yMax*height,
		})
	}

	return predictions, nil
}

// fillInput resizes the image to the model's input resolution and copies the
// pixel data into the input tensor, quantized or float depending on the model.
func (m *TFLiteModel) fillInput(input *tflite.Tensor, img image.Image) {
	resized := image.NewRGBA(image.Rect(0, 0, m.inputWidth, m.inputHeight))
	draw.ApproxBiLinear.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	switch input.Type() {
	case tflite.UInt8:
		data := input.UInt8s()
		for i, j := 0, 0; i < len(resized.Pix); i += 4 {
			data[j+0] = resized.Pix[i+0]
			data[j+1] = resized.Pix[i+1]
			data[j+2] = resized.Pix[i+2]
			j += 3
		}
	default:
		data := input.Float32s()
		for i, j := 0, 0; i < len(resized.Pix); i += 4 {
			data[j+0] = float32(resized.Pix[i+0])/127.5 - 1.0
			data[j+1] = float32(resized.Pix[i+1])/127.5 - 1.0
			data[j+2] = float32(resized.Pix[i+2])/127.5 - 1.0
			j += 3
		}
	}
}
