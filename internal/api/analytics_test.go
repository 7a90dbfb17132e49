package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildwatch/wildwatch-go/internal/datastore"
)

func getDashboard(t *testing.T, s *testServer, userID string) *datastore.Dashboard {
	t.Helper()
	rec := s.do(httptest.NewRequest(http.MethodGet,
		"/api/analytics/user/"+userID+"/dashboard", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	d := decodeJSON[datastore.Dashboard](t, rec)
	return &d
}

func TestUserDashboard(t *testing.T) {
	s := newTestServer(t)

	rec := s.uploadImages(t, "user1", map[string][]byte{
		"a.jpg": jpegBytes(t, 1),
		"b.jpg": jpegBytes(t, 2),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	dashboard := getDashboard(t, s, "user1")
	assert.Equal(t, int64(2), dashboard.TotalImages)
	assert.Equal(t, int64(2), dashboard.TotalDetections)
	require.Len(t, dashboard.DetectionDistribution, 1)
	assert.Equal(t, "deer", dashboard.DetectionDistribution[0].DetectedClass)
	assert.Equal(t, int64(2), dashboard.DetectionDistribution[0].Count)
}

func TestUserDashboard_Empty(t *testing.T) {
	s := newTestServer(t)

	dashboard := getDashboard(t, s, "nobody")
	assert.Zero(t, dashboard.TotalImages)
	assert.Zero(t, dashboard.TotalDetections)
	assert.Empty(t, dashboard.DetectionDistribution)
}

func TestUserDashboard_CacheInvalidatedByIngest(t *testing.T) {
	s := newTestServer(t)

	rec := s.uploadImages(t, "user1", map[string][]byte{"a.jpg": jpegBytes(t, 1)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), getDashboard(t, s, "user1").TotalImages)

	// A second upload evicts the cached entry, the next read is fresh
	rec = s.uploadImages(t, "user1", map[string][]byte{"b.jpg": jpegBytes(t, 2)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), getDashboard(t, s, "user1").TotalImages)
}

func TestUserDashboard_CacheInvalidatedByDelete(t *testing.T) {
	s := newTestServer(t)

	rec := s.uploadImages(t, "user1", map[string][]byte{"a.jpg": jpegBytes(t, 1)})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), getDashboard(t, s, "user1").TotalImages)

	rec = s.do(httptest.NewRequest(http.MethodDelete,
		"/api/detection/user/user1/delete-image?image_name=a.jpg", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Zero(t, getDashboard(t, s, "user1").TotalImages)
}
