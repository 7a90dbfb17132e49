package ingest

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildwatch/wildwatch-go/internal/conf"
	"github.com/wildwatch/wildwatch-go/internal/datastore"
	"github.com/wildwatch/wildwatch-go/internal/detector"
	"github.com/wildwatch/wildwatch-go/internal/errors"
	"github.com/wildwatch/wildwatch-go/internal/imagestore"
)

type fakeModel struct {
	predictions []detector.Prediction
	err         error
}

func (f *fakeModel) Predict(img image.Image) ([]detector.Prediction, error) {
	return f.predictions, f.err
}

func (f *fakeModel) Labels() []string {
	return []string{"deer", "fox"}
}

func singleDeer() []detector.Prediction {
	return []detector.Prediction{
		{ClassIndex: 0, Confidence: 0.92, X1: 4, Y1: 4, X2: 40, Y2: 30},
	}
}

type testEnv struct {
	orchestrator *Orchestrator
	store        *datastore.SQLiteStore
	blobDir      string
}

func newTestEnv(t *testing.T, model detector.Model) *testEnv {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	blobDir := t.TempDir()
	blobStore, err := imagestore.NewLocalStore(blobDir)
	require.NoError(t, err)

	ingestSettings := &conf.IngestSettings{
		MaxBatchSize:      32,
		AllowedExtensions: []string{".jpg", ".jpeg", ".png"},
	}

	return &testEnv{
		orchestrator: New(store, blobStore, detector.New(model, 0.25, nil), ingestSettings, nil, nil),
		store:        store,
		blobDir:      blobDir,
	}
}

func (env *testEnv) rowCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.store.DB.Model(&datastore.Detection{}).Count(&count).Error)
	return count
}

func (env *testEnv) blobCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(env.blobDir)
	require.NoError(t, err)
	return len(entries)
}

// jpegBytes produces deterministic, seed-distinct image content.
func jpegBytes(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = seed + uint8(i%17)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestIngest_Validation(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})
	ctx := context.Background()
	file := UploadFile{Filename: "a.jpg", Data: jpegBytes(t, 1)}

	tests := []struct {
		name   string
		userID string
		files  []UploadFile
	}{
		{"missing user id", "", []UploadFile{file}},
		{"blank user id", "   ", []UploadFile{file}},
		{"no files", "user1", nil},
		{"too many files", "user1", make([]UploadFile, 33)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orchestrator.Ingest(ctx, tt.userID, tt.files)
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
		})
	}
	assert.Zero(t, env.rowCount(t))
	assert.Zero(t, env.blobCount(t))
}

func TestIngest_HappyPath(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})

	files := []UploadFile{
		{Filename: "north.jpg", Data: jpegBytes(t, 1)},
		{Filename: "south.jpg", Data: jpegBytes(t, 2)},
	}
	result, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Empty(t, result.Message)
	assert.Equal(t, 2, result.ImagesProcessed)
	assert.Equal(t, 2, result.TotalDetections)
	assert.Empty(t, result.Duplicates)
	require.Len(t, result.Results, 2)

	first := result.Results[0]
	assert.Equal(t, "north.jpg", first.ImageName)
	assert.Equal(t, imagestore.ServePath+"/north.jpg", first.ImageURL)
	assert.NotEmpty(t, first.Timestamp)
	require.Len(t, first.Objects, 1)
	assert.Equal(t, "deer", first.Objects[0].Class)
	assert.InDelta(t, 0.92, first.Objects[0].Conf, 1e-9)
	assert.NotEmpty(t, first.Metadata["file_hash"])

	assert.Equal(t, int64(2), env.rowCount(t))
	assert.Equal(t, 2, env.blobCount(t))

	rows, err := env.store.TaggedImages("user1", "", 50, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, rows[0].Metadata, "file_hash")
	assert.NotEmpty(t, rows[0].FileHash)
}

func TestIngest_AccountingInvariant(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})

	shared := jpegBytes(t, 7)
	files := []UploadFile{
		{Filename: "a.jpg", Data: jpegBytes(t, 1)},
		{Filename: "b.jpg", Data: shared},
		{Filename: "c.jpg", Data: shared}, // in-batch duplicate of b
	}
	result, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.NoError(t, err)

	assert.Equal(t, len(files), result.ImagesProcessed+len(result.Duplicates))
	assert.Equal(t, []string{"c.jpg"}, result.Duplicates)
	assert.Equal(t, 2, result.TotalDetections)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, "Skipped 1 duplicate file(s)", result.Message)
}

func TestIngest_DuplicateAcrossCalls(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})
	ctx := context.Background()
	data := jpegBytes(t, 3)

	_, err := env.orchestrator.Ingest(ctx, "user1", []UploadFile{{Filename: "cam1.jpg", Data: data}})
	require.NoError(t, err)
	rowsBefore := env.rowCount(t)
	blobsBefore := env.blobCount(t)

	// Same bytes again, different name: skipped, nothing new written
	result, err := env.orchestrator.Ingest(ctx, "user1", []UploadFile{{Filename: "cam1-copy.jpg", Data: data}})
	require.NoError(t, err)
	assert.Zero(t, result.ImagesProcessed)
	assert.Equal(t, []string{"cam1-copy.jpg"}, result.Duplicates)
	assert.Equal(t, rowsBefore, env.rowCount(t))
	assert.Equal(t, blobsBefore, env.blobCount(t))

	// A different user uploading the same bytes is not a duplicate
	result, err = env.orchestrator.Ingest(ctx, "user2", []UploadFile{{Filename: "cam1.jpg", Data: data}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImagesProcessed)
}

func TestIngest_InBatchTriplicate(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})
	data := jpegBytes(t, 4)

	files := []UploadFile{
		{Filename: "one.jpg", Data: data},
		{Filename: "two.jpg", Data: data},
		{Filename: "three.jpg", Data: data},
	}
	result, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImagesProcessed)
	assert.Equal(t, []string{"two.jpg", "three.jpg"}, result.Duplicates)
	assert.Equal(t, "Skipped 2 duplicate file(s)", result.Message)
	assert.Equal(t, 1, env.blobCount(t))
}

func TestIngest_BadExtensionAbortsWholeBatch(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})

	files := []UploadFile{
		{Filename: "ok1.jpg", Data: jpegBytes(t, 1)},
		{Filename: "notes.txt", Data: []byte("not an image")},
		{Filename: "ok2.jpg", Data: jpegBytes(t, 2)},
	}
	_, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))

	// Nothing from the batch is durable, including the valid first file
	assert.Zero(t, env.rowCount(t))
	assert.Zero(t, env.blobCount(t))
}

func TestIngest_DecodeFailure(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})

	files := []UploadFile{{Filename: "broken.jpg", Data: []byte("garbage")}}
	_, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageDecode))
	assert.Zero(t, env.rowCount(t))
	assert.Zero(t, env.blobCount(t))
}

func TestIngest_DetectorUnavailable(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})
	env.orchestrator.detector = detector.New(nil, 0.25, nil)

	files := []UploadFile{{Filename: "a.jpg", Data: jpegBytes(t, 1)}}
	_, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryModelInit))
	assert.Zero(t, env.rowCount(t))
	assert.Zero(t, env.blobCount(t))
}

func TestIngest_ZeroDetections(t *testing.T) {
	env := newTestEnv(t, &fakeModel{})

	files := []UploadFile{{Filename: "empty-field.jpg", Data: jpegBytes(t, 5)}}
	result, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ImagesProcessed)
	assert.Zero(t, result.TotalDetections)
	assert.Empty(t, result.Results[0].Objects)
	// The blob is stored even when nothing was detected
	assert.Equal(t, 1, env.blobCount(t))
	assert.Zero(t, env.rowCount(t))
}

// failingBlobStore fails every save to exercise the rollback path.
type failingBlobStore struct{}

func (f *failingBlobStore) Name() string { return "failing" }
func (f *failingBlobStore) Save(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	return "", errors.NewStd("disk full")
}
func (f *failingBlobStore) Delete(ctx context.Context, name string) (bool, error) { return false, nil }
func (f *failingBlobStore) URL(name string) string                                { return "/api/detection/uploads/" + name }

func TestIngest_BlobFailureRollsBackRows(t *testing.T) {
	env := newTestEnv(t, &fakeModel{predictions: singleDeer()})
	env.orchestrator.blobStore = &failingBlobStore{}

	files := []UploadFile{{Filename: "a.jpg", Data: jpegBytes(t, 1)}}
	_, err := env.orchestrator.Ingest(context.Background(), "user1", files)
	require.Error(t, err)

	assert.Zero(t, env.rowCount(t), "detection rows of the failed batch are not durable")
}
