package api

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/wildwatch/wildwatch-go/internal/datastore"
	"github.com/wildwatch/wildwatch-go/internal/errors"
	"github.com/wildwatch/wildwatch-go/internal/imagestore"
	"github.com/wildwatch/wildwatch-go/internal/ingest"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// initDetectionRoutes registers detection-related API endpoints.
func (c *Controller) initDetectionRoutes() {
	c.Group.POST("/detection/process-images", c.ProcessImages)
	c.Group.GET("/detection/uploads/:filename", c.ServeUpload)
	c.Group.GET("/detection/user/:user_id/tagged-images", c.TaggedImages)
	c.Group.PATCH("/detection/user/:user_id/update-detection", c.UpdateDetection)
	c.Group.DELETE("/detection/user/:user_id/delete-image", c.DeleteImage)
}

// ProcessImages accepts a multipart batch of images and runs it through the
// ingestion pipeline. Files are read fully into memory in submission order
// before the pipeline starts.
func (c *Controller) ProcessImages(ctx echo.Context) error {
	userID := ctx.FormValue("user_id")

	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "Invalid multipart form", http.StatusBadRequest)
	}
	headers := form.File["images_batch"]

	files := make([]ingest.UploadFile, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return c.HandleError(ctx, err, "Failed to open uploaded file", http.StatusBadRequest)
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			return c.HandleError(ctx, err, "Failed to read uploaded file", http.StatusBadRequest)
		}
		files = append(files, ingest.UploadFile{
			Filename: filepath.Base(fh.Filename),
			Data:     data,
		})
	}

	result, err := c.Ingestor.Ingest(ctx.Request().Context(), userID, files)
	if err != nil {
		return c.HandleError(ctx, err, "Image processing failed", statusFor(err))
	}

	c.invalidateDashboard(result.UserID)
	return ctx.JSON(http.StatusOK, result)
}

// TaggedImage is one image group in the tagged-images response.
type TaggedImage struct {
	ImageName string                   `json:"image_name"`
	ImageURL  string                   `json:"image_url"`
	Timestamp string                   `json:"timestamp"`
	Objects   []ingest.DetectionResult `json:"objects"`
	Metadata  map[string]string        `json:"metadata"`
}

// TaggedImagesResponse is the paginated tagged-images payload.
type TaggedImagesResponse struct {
	UserID string        `json:"user_id"`
	Page   int           `json:"page"`
	Limit  int           `json:"limit"`
	Images []TaggedImage `json:"images"`
}

// TaggedImages lists a user's detections grouped per image, newest first.
// Pagination windows detection rows before grouping, so a page boundary can
// split a multi-detection image across pages.
func (c *Controller) TaggedImages(ctx echo.Context) error {
	userID := ctx.Param("user_id")
	class := ctx.QueryParam("class")

	page := queryInt(ctx, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(ctx, "limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	rows, err := c.DS.TaggedImages(userID, class, limit, (page-1)*limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to query detections", statusFor(err))
	}

	resp := TaggedImagesResponse{
		UserID: userID,
		Page:   page,
		Limit:  limit,
		Images: c.groupByImage(rows),
	}
	return ctx.JSON(http.StatusOK, resp)
}

// groupByImage folds detection rows into per-image groups, preserving the
// row order of the query.
func (c *Controller) groupByImage(rows []datastore.Detection) []TaggedImage {
	images := make([]TaggedImage, 0)
	index := make(map[string]int)

	for i := range rows {
		row := &rows[i]
		pos, ok := index[row.ImageName]
		if !ok {
			metadata := map[string]string{}
			if row.Metadata != "" {
				if err := json.Unmarshal([]byte(row.Metadata), &metadata); err != nil {
					c.Debug("invalid metadata JSON for image %s: %v", row.ImageName, err)
				}
			}
			images = append(images, TaggedImage{
				ImageName: row.ImageName,
				ImageURL:  c.BlobStore.URL(row.ImageName),
				Timestamp: row.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
				Objects:   []ingest.DetectionResult{},
				Metadata:  metadata,
			})
			pos = len(images) - 1
			index[row.ImageName] = pos
		}

		var bbox [4]int
		if row.BBox != "" {
			if err := json.Unmarshal([]byte(row.BBox), &bbox); err != nil {
				c.Debug("invalid bbox JSON for image %s: %v", row.ImageName, err)
			}
		}
		images[pos].Objects = append(images[pos].Objects, ingest.DetectionResult{
			Class: row.DetectedClass,
			Conf:  row.Confidence,
			BBox:  bbox,
		})
	}
	return images
}

// DetectionEdit is one reclassification of an update-detection request.
// NewClass defaults to OldClass so a bbox-only edit is valid.
type DetectionEdit struct {
	OldClass string  `json:"old_class"`
	NewClass string  `json:"new_class"`
	BBox     *[4]int `json:"bbox"`
}

// UpdateDetectionRequest is the update-detection request body.
type UpdateDetectionRequest struct {
	ImageName  string          `json:"image_name"`
	Detections []DetectionEdit `json:"detections"`
}

// UpdateDetection applies a list of detection edits to an image group in one
// request: each edit reclassifies the rows matching its old class and
// optionally rewrites the bounding box.
func (c *Controller) UpdateDetection(ctx echo.Context) error {
	userID := ctx.Param("user_id")

	var req UpdateDetectionRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	if req.ImageName == "" || len(req.Detections) == 0 {
		return c.HandleError(ctx, errors.NewStd("image_name and detections are required"),
			"Missing required fields", http.StatusBadRequest)
	}
	for i := range req.Detections {
		if req.Detections[i].OldClass == "" {
			return c.HandleError(ctx, errors.NewStd("old_class is required for every detection"),
				"Missing required fields", http.StatusBadRequest)
		}
		if req.Detections[i].NewClass == "" {
			req.Detections[i].NewClass = req.Detections[i].OldClass
		}
	}

	exists, err := c.DS.ImageExists(userID, req.ImageName)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to look up image", statusFor(err))
	}
	if !exists {
		return c.HandleError(ctx, errors.NewStd("image not found"),
			"Image not found", http.StatusNotFound)
	}

	var updated int64
	for _, edit := range req.Detections {
		bbox := ""
		if edit.BBox != nil {
			raw, err := json.Marshal(edit.BBox)
			if err != nil {
				return c.HandleError(ctx, err, "Invalid bounding box", http.StatusBadRequest)
			}
			bbox = string(raw)
		}

		n, err := c.DS.UpdateDetections(userID, req.ImageName, edit.OldClass, edit.NewClass, bbox)
		if err != nil {
			return c.HandleError(ctx, err, "Failed to update detections", statusFor(err))
		}
		updated += n
	}

	c.invalidateDashboard(userID)
	return ctx.JSON(http.StatusOK, map[string]any{
		"status":     "success",
		"user_id":    userID,
		"image_name": req.ImageName,
		"updated":    updated,
	})
}

// DeleteImageRequest is the delete-image request body.
type DeleteImageRequest struct {
	ImageName string `json:"image_name"`
}

// DeleteImage removes every detection row of an image group and, on the
// local backend, the stored blob. Remote blobs are left in place. The image
// name comes from the JSON body, with the query parameter as a fallback.
func (c *Controller) DeleteImage(ctx echo.Context) error {
	userID := ctx.Param("user_id")

	var req DeleteImageRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid request body", http.StatusBadRequest)
	}
	imageName := req.ImageName
	if imageName == "" {
		imageName = ctx.QueryParam("image_name")
	}
	if imageName == "" {
		return c.HandleError(ctx, errors.NewStd("image_name is required"),
			"Missing image_name", http.StatusBadRequest)
	}

	exists, err := c.DS.ImageExists(userID, imageName)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to look up image", statusFor(err))
	}
	if !exists {
		return c.HandleError(ctx, errors.NewStd("image not found"),
			"Image not found", http.StatusNotFound)
	}

	deleted, err := c.DS.DeleteImageGroup(userID, imageName)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to delete detections", statusFor(err))
	}

	// Blob removal is best effort, rows are the source of truth
	removed, err := c.BlobStore.Delete(ctx.Request().Context(), imageName)
	if err != nil {
		c.logger.Printf("Failed to delete blob for image %s: %v", imageName, err)
	}

	c.invalidateDashboard(userID)
	return ctx.JSON(http.StatusOK, map[string]any{
		"user_id":      userID,
		"image_name":   imageName,
		"deleted":      deleted,
		"blob_removed": removed,
	})
}

// ServeUpload serves a stored blob when the local backend is active. Remote
// backends expose provider URLs instead.
func (c *Controller) ServeUpload(ctx echo.Context) error {
	local, ok := c.BlobStore.(*imagestore.LocalStore)
	if !ok {
		return c.HandleError(ctx, errors.NewStd("uploads are not served by this backend"),
			"Not found", http.StatusNotFound)
	}

	name := filepath.Base(ctx.Param("filename"))
	path := filepath.Join(local.Dir(), name)
	if _, err := os.Stat(path); err != nil {
		return c.HandleError(ctx, err, "Image not found", http.StatusNotFound)
	}
	return ctx.File(path)
}

func queryInt(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
