// model.go this code defines the data model for the application
package datastore

import "time"

// Detection represents a single detected object within one uploaded image.
// All detections sharing a (UserID, ImageName) pair form one image group.
type Detection struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        string `gorm:"index:idx_detections_user_image;index:idx_detections_user_hash"`
	ImageName     string `gorm:"index:idx_detections_user_image"`
	DetectedClass string `gorm:"index:idx_detections_class"`
	Confidence    float64
	BBox          string `gorm:"column:bbox;type:text"` // JSON array [x1, y1, x2, y2]
	Metadata      string `gorm:"type:text"` // JSON map of extracted tags, includes file_hash
	// FileHash duplicates the file_hash metadata entry as an indexed column,
	// it is the dedup key together with UserID.
	FileHash  string    `gorm:"index:idx_detections_user_hash"`
	Timestamp time.Time `gorm:"index:idx_detections_timestamp"`
}

// Customer represents a synced store customer, upserted by the customer webhook.
type Customer struct {
	ID        uint  `gorm:"primaryKey"`
	ShopifyID int64 `gorm:"uniqueIndex"`
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClassCount is one row of a per-class detection aggregate.
type ClassCount struct {
	DetectedClass string `json:"detected_class"`
	Count         int64  `json:"count"`
}

// LocationCount is one row of a per-camera-location detection aggregate.
type LocationCount struct {
	Location string `json:"location"`
	Count    int64  `json:"count"`
}

// Dashboard aggregates per-user detection analytics.
type Dashboard struct {
	TotalImages           int64           `json:"total_images"`
	TotalDetections       int64           `json:"total_detections"`
	DetectionDistribution []ClassCount    `json:"detection_distribution"`
	TopClasses            []ClassCount    `json:"top_classes"`
	TopLocations          []LocationCount `json:"top_locations"`
}
