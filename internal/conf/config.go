// config.go: settings struct and functions to load the application configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// LogConfig contains settings for a service log file.
type LogConfig struct {
	Enabled bool   // true to enable file logging
	Path    string // path to log file
}

// MainSettings contains general application settings.
type MainSettings struct {
	Name string    // name of the node/instance
	Log  LogConfig // main log settings
}

// WebServerSettings contains settings for the HTTP server.
type WebServerSettings struct {
	Enabled bool   // true to enable the web server
	Port    string // port to listen on
	Debug   bool   // true to enable debug logging for the server
}

// SQLiteSettings contains settings for the SQLite database output.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite output
	Path    string // path to the SQLite database file
}

// MySQLSettings contains settings for the MySQL database output.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL output
	Username string // MySQL username
	Password string // MySQL password
	Database string // database name
	Host     string // database host
	Port     string // database port
}

// OutputSettings contains the database output settings. Only one of the
// variants is expected to be enabled at a time.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// IngestSettings bounds and constrains the image ingestion pipeline.
type IngestSettings struct {
	MaxBatchSize      int      // maximum number of images per upload batch
	AllowedExtensions []string // file extensions accepted for upload
}

// LocalStorageSettings contains settings for the local filesystem image store.
type LocalStorageSettings struct {
	Path string // directory for stored images
}

// GCSStorageSettings contains settings for the Google Cloud Storage image store.
type GCSStorageSettings struct {
	Bucket          string // bucket name
	Prefix          string // object key prefix, e.g. "uploaded_images/"
	CredentialsPath string // path to a service account JSON key, optional
}

// StorageSettings selects and configures the image storage backend.
type StorageSettings struct {
	Backend string // "local" or "gcs"
	Local   LocalStorageSettings
	GCS     GCSStorageSettings
}

// ModelSettings contains settings for the object detection model.
type ModelSettings struct {
	Path       string  // path to the TFLite detection model
	LabelsPath string  // path to the class labels file
	Threshold  float64 // minimum confidence for reported detections
}

// ShopifySettings contains settings for the customer sync webhook.
type ShopifySettings struct {
	Store         string // shop domain
	AccessToken   string // admin API access token
	WebhookSecret string // shared secret for webhook signature verification
}

// Settings contains all configuration options for the service.
type Settings struct {
	Debug bool // true to enable debug mode

	Main      MainSettings
	WebServer WebServerSettings
	Output    OutputSettings
	Ingest    IngestSettings
	Storage   StorageSettings
	Model     ModelSettings
	Shopify   ShopifySettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings
// struct and stores it as the process-wide instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	for _, path := range configPaths() {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("wildwatch")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file, run on defaults and environment
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// configPaths returns the list of directories searched for config.yaml.
func configPaths() []string {
	paths := []string{"."}
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".config", "wildwatch"))
	}
	paths = append(paths, "/etc/wildwatch")
	return paths
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
