// customers.go: customer sync for the store webhook
package datastore

import (
	"gorm.io/gorm/clause"

	"github.com/wildwatch/wildwatch-go/internal/errors"
)

// UpsertCustomer inserts a customer row or, when a row with the same external
// shopify ID already exists, updates its name and email fields.
func (ds *DataStore) UpsertCustomer(customer *Customer) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "shopify_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "first_name", "last_name", "updated_at",
		}),
	}).Create(customer).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "upsert_customer").
			Build()
	}
	return nil
}
