// Package ingest implements the batch image ingestion pipeline: content
// dedup, inference, detection persistence and blob storage, coordinated as a
// single transactional unit per batch.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wildwatch/wildwatch-go/internal/conf"
	"github.com/wildwatch/wildwatch-go/internal/datastore"
	"github.com/wildwatch/wildwatch-go/internal/detector"
	"github.com/wildwatch/wildwatch-go/internal/errors"
	"github.com/wildwatch/wildwatch-go/internal/imagemeta"
	"github.com/wildwatch/wildwatch-go/internal/imagestore"
	"github.com/wildwatch/wildwatch-go/internal/observability"
)

// Detector is the inference capability the orchestrator invokes per image.
type Detector interface {
	Detect(img image.Image) ([]detector.Detection, error)
}

// UploadFile is one file of an ingestion batch, in submission order.
type UploadFile struct {
	Filename string
	Data     []byte
}

// DetectionResult is one detection in the response payload.
type DetectionResult struct {
	Class string  `json:"class"`
	Conf  float64 `json:"conf"`
	BBox  [4]int  `json:"bbox"`
}

// ImageResult is the per-image entry of the response payload.
type ImageResult struct {
	ImageName string            `json:"image_name"`
	ImageURL  string            `json:"image_url"`
	Timestamp string            `json:"timestamp"`
	Objects   []DetectionResult `json:"objects"`
	Metadata  map[string]string `json:"metadata"`
}

// BatchResult is the outcome of one ingestion call.
type BatchResult struct {
	Status          string        `json:"status"`
	Message         string        `json:"message,omitempty"`
	UserID          string        `json:"user_id"`
	ImagesProcessed int           `json:"images_processed"`
	TotalDetections int           `json:"total_detections"`
	Duplicates      []string      `json:"duplicates"`
	Results         []ImageResult `json:"results"`
}

type pendingBlob struct {
	name        string
	data        []byte
	contentType string
}

// Orchestrator coordinates the ingestion pipeline. All collaborators are
// injected at construction, the orchestrator holds no ambient state.
type Orchestrator struct {
	store       datastore.Interface
	blobStore   imagestore.Store
	detector    Detector
	metrics     *observability.Metrics
	logger      *slog.Logger
	maxBatch    int
	allowedExts map[string]bool
}

// New creates an ingestion orchestrator from the injected collaborators and
// the ingest settings.
func New(store datastore.Interface, blobStore imagestore.Store, det Detector,
	settings *conf.IngestSettings, metrics *observability.Metrics, logger *slog.Logger) *Orchestrator {

	allowed := make(map[string]bool, len(settings.AllowedExtensions))
	for _, ext := range settings.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &Orchestrator{
		store:       store,
		blobStore:   blobStore,
		detector:    det,
		metrics:     metrics,
		logger:      logger,
		maxBatch:    settings.MaxBatchSize,
		allowedExts: allowed,
	}
}

// Ingest processes an upload batch in submission order. Duplicate content is
// skipped per file, a disallowed extension aborts the whole batch, and every
// detection row plus every stored blob of the batch becomes durable together
// or not at all.
func (o *Orchestrator) Ingest(ctx context.Context, userID string, files []UploadFile) (*BatchResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.Newf("user_id is required").
			Component("ingest").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(files) == 0 {
		return nil, errors.Newf("no images provided").
			Component("ingest").
			Category(errors.CategoryValidation).
			Build()
	}
	if len(files) > o.maxBatch {
		return nil, errors.Newf("upload between 1 and %d images", o.maxBatch).
			Component("ingest").
			Category(errors.CategoryValidation).
			Context("batch_size", len(files)).
			Build()
	}

	log := o.log().With("batch_id", uuid.NewString(), "user_id", userID, "batch_size", len(files))

	var (
		rows            []datastore.Detection
		blobs           []pendingBlob
		results         []ImageResult
		duplicates      []string
		totalDetections int
	)

	// Fingerprints accepted earlier in this batch. Only files that actually
	// made it through processing count, a file skipped for other reasons
	// does not shadow an identical later one.
	seen := make(map[string]bool)

	for _, file := range files {
		fileHash := Fingerprint(file.Data)

		if seen[fileHash] {
			duplicates = append(duplicates, file.Filename)
			continue
		}
		exists, err := o.store.HasFileHash(userID, fileHash)
		if err != nil {
			o.countFailure()
			return nil, err
		}
		if exists {
			duplicates = append(duplicates, file.Filename)
			continue
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !o.allowedExts[ext] {
			// Whole-batch failure, unlike the per-file duplicate skip
			return nil, errors.Newf("unsupported file type %q", ext).
				Component("ingest").
				Category(errors.CategoryValidation).
				Context("image_name", file.Filename).
				Build()
		}

		img, err := DecodeImage(file.Data)
		if err != nil {
			o.countFailure()
			return nil, err
		}

		metadata := imagemeta.Extract(file.Data)
		metadata["file_hash"] = fileHash

		detections, err := o.detector.Detect(img)
		if err != nil {
			o.countFailure()
			return nil, err
		}

		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			o.countFailure()
			return nil, errors.New(err).
				Component("ingest").
				Category(errors.CategoryGeneric).
				Context("image_name", file.Filename).
				Build()
		}

		timestamp := time.Now().UTC()
		objects := make([]DetectionResult, 0, len(detections))
		for _, det := range detections {
			bboxJSON, _ := json.Marshal(det.BBox)
			rows = append(rows, datastore.Detection{
				UserID:        userID,
				ImageName:     file.Filename,
				DetectedClass: det.Class,
				Confidence:    det.Confidence,
				BBox:          string(bboxJSON),
				Metadata:      string(metadataJSON),
				FileHash:      fileHash,
				Timestamp:     timestamp,
			})
			objects = append(objects, DetectionResult{
				Class: det.Class,
				Conf:  round4(det.Confidence),
				BBox:  det.BBox,
			})
		}
		totalDetections += len(detections)

		blobName := filepath.Base(file.Filename)
		encoded, err := EncodeForStorage(img, file.Data, blobName)
		if err != nil {
			o.countFailure()
			return nil, err
		}
		blobs = append(blobs, pendingBlob{
			name:        blobName,
			data:        encoded,
			contentType: imagestore.ContentType(blobName),
		})

		results = append(results, ImageResult{
			ImageName: file.Filename,
			ImageURL:  o.blobStore.URL(blobName),
			Timestamp: timestamp.Format(time.RFC3339),
			Objects:   objects,
			Metadata:  metadata,
		})
		seen[fileHash] = true
	}

	// Rows and blobs become durable together: blob persistence runs inside
	// the batch transaction, before its commit.
	if err := o.store.SaveBatch(rows, func() error {
		return o.flushBlobs(ctx, blobs)
	}); err != nil {
		o.countFailure()
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.ImagesProcessed.Add(float64(len(results)))
		o.metrics.DetectionsRecorded.Add(float64(totalDetections))
		o.metrics.DuplicatesSkipped.Add(float64(len(duplicates)))
	}
	log.Info("batch ingested",
		"images_processed", len(results),
		"total_detections", totalDetections,
		"duplicates", len(duplicates))

	// Skipped duplicates are a success with an advisory message
	message := ""
	if len(duplicates) > 0 {
		message = fmt.Sprintf("Skipped %d duplicate file(s)", len(duplicates))
	}

	return &BatchResult{
		Status:          "success",
		Message:         message,
		UserID:          userID,
		ImagesProcessed: len(results),
		TotalDetections: totalDetections,
		Duplicates:      duplicates,
		Results:         results,
	}, nil
}

// flushBlobs persists every staged blob. On failure the blobs already written
// are removed best-effort so an aborted batch leaves no stray files behind.
func (o *Orchestrator) flushBlobs(ctx context.Context, blobs []pendingBlob) error {
	written := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		if _, err := o.blobStore.Save(ctx, blob.name, blob.data, blob.contentType); err != nil {
			for _, name := range written {
				if _, delErr := o.blobStore.Delete(ctx, name); delErr != nil {
					o.log().Warn("failed to remove blob of aborted batch",
						"image_name", name, "error", delErr)
				}
			}
			return err
		}
		written = append(written, blob.name)
	}
	return nil
}

func (o *Orchestrator) countFailure() {
	if o.metrics != nil {
		o.metrics.IngestFailures.Inc()
	}
}

func (o *Orchestrator) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
