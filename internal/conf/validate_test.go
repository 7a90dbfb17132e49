package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Output.SQLite.Enabled = true
	s.Output.SQLite.Path = "test.db"
	s.Ingest.MaxBatchSize = 32
	s.Ingest.AllowedExtensions = []string{".jpg", ".png"}
	s.Storage.Backend = "local"
	s.Storage.Local.Path = "uploads/"
	return s
}

func TestValidateSettings_Valid(t *testing.T) {
	require.NoError(t, ValidateSettings(validSettings()))
}

func TestValidateSettings_NoDatabase(t *testing.T) {
	s := validSettings()
	s.Output.SQLite.Enabled = false
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database output enabled")
}

func TestValidateSettings_BadBatchSize(t *testing.T) {
	s := validSettings()
	s.Ingest.MaxBatchSize = 0
	require.Error(t, ValidateSettings(s))
}

func TestValidateSettings_BadExtension(t *testing.T) {
	s := validSettings()
	s.Ingest.AllowedExtensions = []string{"jpg"}
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with a dot")
}

func TestValidateSettings_UnknownBackend(t *testing.T) {
	s := validSettings()
	s.Storage.Backend = "s3"
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}

func TestValidateSettings_MySQLMissingHost(t *testing.T) {
	s := validSettings()
	s.Output.SQLite.Enabled = false
	s.Output.MySQL.Enabled = true
	s.Output.MySQL.Database = "wildwatch"
	err := ValidateSettings(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql output enabled")
}
