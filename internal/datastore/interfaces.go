// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wildwatch/wildwatch-go/internal/conf"
	"github.com/wildwatch/wildwatch-go/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations available on the detection store.
type Interface interface {
	Open() error
	Close() error

	// ingestion
	HasFileHash(userID, fileHash string) (bool, error)
	SaveBatch(detections []Detection, beforeCommit func() error) error

	// queries and mutations
	TaggedImages(userID, class string, limit, offset int) ([]Detection, error)
	ImageExists(userID, imageName string) (bool, error)
	UpdateDetections(userID, imageName, oldClass, newClass, bbox string) (int64, error)
	DeleteImageGroup(userID, imageName string) (int64, error)

	// analytics
	UserDashboard(userID string) (*Dashboard, error)

	// customer sync
	UpsertCustomer(customer *Customer) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// HasFileHash reports whether a detection row with the given content hash
// already exists for the user. This is the dedup probe used during ingestion.
func (ds *DataStore) HasFileHash(userID, fileHash string) (bool, error) {
	var count int64
	err := ds.DB.Model(&Detection{}).
		Where("user_id = ? AND file_hash = ?", userID, fileHash).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "has_file_hash").
			Build()
	}
	return count > 0, nil
}

// SaveBatch stores every detection row of one ingestion batch inside a single
// transaction. The beforeCommit hook runs after all inserts and before the
// commit; returning an error from it rolls back every row, which ties blob
// persistence into the batch's all-or-nothing durability guarantee.
func (ds *DataStore) SaveBatch(detections []Detection, beforeCommit func() error) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}

	// Roll back the transaction if a panic occurs
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	for i := range detections {
		if err := tx.Create(&detections[i]).Error; err != nil {
			tx.Rollback()
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "save_batch").
				Context("image_name", detections[i].ImageName).
				Build()
		}
	}

	if beforeCommit != nil {
		if err := beforeCommit(); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_batch_commit").
			Build()
	}
	return nil
}

// TaggedImages retrieves detection rows for a user ordered by descending
// timestamp, optionally filtered by detected class. Pagination windows the
// rows, grouping into per-image entries is left to the caller.
func (ds *DataStore) TaggedImages(userID, class string, limit, offset int) ([]Detection, error) {
	query := ds.DB.Where("user_id = ?", userID)
	if class != "" {
		query = query.Where("detected_class = ?", class)
	}

	var detections []Detection
	err := query.Order("timestamp DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&detections).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "tagged_images").
			Build()
	}
	return detections, nil
}

// ImageExists reports whether any detection rows exist for the image group.
func (ds *DataStore) ImageExists(userID, imageName string) (bool, error) {
	var count int64
	err := ds.DB.Model(&Detection{}).
		Where("user_id = ? AND image_name = ?", userID, imageName).
		Count(&count).Error
	if err != nil {
		return false, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "image_exists").
			Build()
	}
	return count > 0, nil
}

// UpdateDetections rewrites class and bounding box for every row of the image
// group whose detected class matches oldClass. A zero row count is not an
// error, edits whose old class matches nothing are silent no-ops.
func (ds *DataStore) UpdateDetections(userID, imageName, oldClass, newClass, bbox string) (int64, error) {
	result := ds.DB.Model(&Detection{}).
		Where("user_id = ? AND image_name = ? AND detected_class = ?", userID, imageName, oldClass).
		Updates(map[string]any{
			"detected_class": newClass,
			"bbox":           bbox,
		})
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update_detections").
			Context("image_name", imageName).
			Build()
	}
	return result.RowsAffected, nil
}

// DeleteImageGroup removes every detection row for the (userID, imageName)
// group and returns the number of rows removed.
func (ds *DataStore) DeleteImageGroup(userID, imageName string) (int64, error) {
	result := ds.DB.
		Where("user_id = ? AND image_name = ?", userID, imageName).
		Delete(&Detection{})
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "delete_image_group").
			Context("image_name", imageName).
			Build()
	}
	return result.RowsAffected, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Detection{}, &Customer{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
