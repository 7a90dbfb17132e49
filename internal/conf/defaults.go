// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "WildWatch")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "wildwatch.log")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "5000")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "wildwatch.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "wildwatch")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "wildwatch")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("ingest.maxbatchsize", 32)
	viper.SetDefault("ingest.allowedextensions", []string{
		".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".webp",
	})

	viper.SetDefault("storage.backend", "local")
	viper.SetDefault("storage.local.path", "uploaded_images/")
	viper.SetDefault("storage.gcs.bucket", "")
	viper.SetDefault("storage.gcs.prefix", "uploaded_images/")
	viper.SetDefault("storage.gcs.credentialspath", "")

	viper.SetDefault("model.path", "models/wildlife_detection.tflite")
	viper.SetDefault("model.labelspath", "models/labels.txt")
	viper.SetDefault("model.threshold", 0.25)

	viper.SetDefault("shopify.store", "")
	viper.SetDefault("shopify.accesstoken", "")
	viper.SetDefault("shopify.webhooksecret", "")
}
