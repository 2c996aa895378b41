package conf

import (
	"github.com/oceansense/edna-go/internal/errors"
)

// ValidateSettings checks the loaded settings for values the pipeline
// cannot run with.
func ValidateSettings(settings *Settings) error {
	if settings.Matcher.ConfidenceFloor < 0 || settings.Matcher.ConfidenceFloor >= 1 {
		return errors.Newf("matcher confidence floor must be in [0,1): %f", settings.Matcher.ConfidenceFloor).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("confidence_floor", settings.Matcher.ConfidenceFloor).
			Build()
	}

	if settings.Pipeline.Workers < 1 {
		return errors.Newf("pipeline workers must be at least 1: %d", settings.Pipeline.Workers).
			Component("conf").
			Category(errors.CategoryValidation).
			Context("workers", settings.Pipeline.Workers).
			Build()
	}

	if settings.Converter.Timeout <= 0 {
		return errors.Newf("converter timeout must be positive: %s", settings.Converter.Timeout).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return errors.Newf("no datastore backend enabled, enable output.sqlite or output.mysql").
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return errors.Newf("output.sqlite.path must be set when SQLite is enabled").
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	if settings.MQTT.Enabled && settings.MQTT.Broker == "" {
		return errors.Newf("mqtt.broker must be set when MQTT is enabled").
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	return nil
}
