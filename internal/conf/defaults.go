package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets the default configuration values in viper.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "edna-go")
	viper.SetDefault("main.logfile", "")

	viper.SetDefault("storage.uploadpath", "data/uploads")
	viper.SetDefault("storage.processedpath", "data/processed")

	viper.SetDefault("converter.command", "python3")
	viper.SetDefault("converter.script", "scripts/convert_files.py")
	viper.SetDefault("converter.timeout", 5*time.Minute)

	viper.SetDefault("matcher.confidencefloor", 0.6)
	viper.SetDefault("matcher.seed", 0)

	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("pipeline.keepuploads", false)

	viper.SetDefault("species.seedfile", "data/species.yaml")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "data/edna.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "edna")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "edna")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "edna")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
}
