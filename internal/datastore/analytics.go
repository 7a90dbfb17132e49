// analytics.go: per-user detection analytics queries
package datastore

import (
	"github.com/wildwatch/wildwatch-go/internal/errors"
)

const topListLimit = 5

// cameraLocationExpr returns the database-specific SQL fragment extracting
// the camera identifier from the metadata JSON column.
func (ds *DataStore) cameraLocationExpr() string {
	switch ds.DB.Dialector.Name() {
	case "mysql":
		return "JSON_UNQUOTE(JSON_EXTRACT(metadata, '$.camera'))"
	default: // sqlite
		return "json_extract(metadata, '$.camera')"
	}
}

// UserDashboard aggregates detection analytics for one user: totals, the
// per-class distribution, the top detected classes and the top camera
// locations found in the stored metadata.
func (ds *DataStore) UserDashboard(userID string) (*Dashboard, error) {
	dashboard := &Dashboard{}

	var totals struct {
		TotalImages     int64
		TotalDetections int64
	}
	err := ds.DB.Model(&Detection{}).
		Select("COUNT(DISTINCT image_name) AS total_images, COUNT(*) AS total_detections").
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "dashboard_totals").
			Build()
	}
	dashboard.TotalImages = totals.TotalImages
	dashboard.TotalDetections = totals.TotalDetections

	err = ds.DB.Model(&Detection{}).
		Select("detected_class, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("detected_class").
		Order("count DESC").
		Scan(&dashboard.DetectionDistribution).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "dashboard_distribution").
			Build()
	}

	err = ds.DB.Model(&Detection{}).
		Select("detected_class, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("detected_class").
		Order("count DESC").
		Limit(topListLimit).
		Scan(&dashboard.TopClasses).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "dashboard_top_classes").
			Build()
	}

	locationExpr := ds.cameraLocationExpr()
	err = ds.DB.Model(&Detection{}).
		Select(locationExpr+" AS location, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Where(locationExpr + " IS NOT NULL").
		Group("location").
		Order("count DESC").
		Limit(topListLimit).
		Scan(&dashboard.TopLocations).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "dashboard_top_locations").
			Build()
	}

	return dashboard, nil
}
