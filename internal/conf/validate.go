// conf/validate.go settings validation
package conf

import (
	"fmt"
	"strings"
)

// ValidateSettings checks the loaded settings for configuration errors that
// would prevent the service from starting.
func ValidateSettings(settings *Settings) error {
	if err := validateOutput(&settings.Output); err != nil {
		return err
	}
	if err := validateIngest(&settings.Ingest); err != nil {
		return err
	}
	return validateStorage(&settings.Storage)
}

func validateOutput(output *OutputSettings) error {
	if !output.SQLite.Enabled && !output.MySQL.Enabled {
		return fmt.Errorf("no database output enabled, enable either sqlite or mysql")
	}
	if output.SQLite.Enabled && output.SQLite.Path == "" {
		return fmt.Errorf("sqlite output enabled but path is empty")
	}
	if output.MySQL.Enabled {
		if output.MySQL.Host == "" || output.MySQL.Database == "" {
			return fmt.Errorf("mysql output enabled but host or database is empty")
		}
	}
	return nil
}

func validateIngest(ingest *IngestSettings) error {
	if ingest.MaxBatchSize < 1 {
		return fmt.Errorf("ingest.maxbatchsize must be at least 1, got %d", ingest.MaxBatchSize)
	}
	if len(ingest.AllowedExtensions) == 0 {
		return fmt.Errorf("ingest.allowedextensions must not be empty")
	}
	for _, ext := range ingest.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("ingest.allowedextensions entries must start with a dot, got %q", ext)
		}
	}
	return nil
}

func validateStorage(storage *StorageSettings) error {
	switch strings.ToLower(storage.Backend) {
	case "local", "gcs":
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q, expected \"local\" or \"gcs\"", storage.Backend)
	}
}
