// Package alerting decides which conservation alerts a detection raises
// based on the matched species' conservation flags.
package alerting

import (
	"fmt"

	"github.com/oceansense/edna-go/internal/datastore"
)

// Location is the sample location attached to raised alerts. The zero
// value is the sentinel used when a sample carries no location.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Evaluate returns the alerts a detection of the given species raises.
// An endangered species raises a high-severity endangered alert, an
// invasive species a medium-severity invasive alert; both flags raise
// both alerts, neither raises none.
func Evaluate(detection *datastore.Detection, species *datastore.Species, loc Location) []datastore.Alert {
	var alerts []datastore.Alert

	if species.Endangered {
		alerts = append(alerts, datastore.Alert{
			DetectionID: detection.ID,
			Type:        datastore.AlertTypeEndangered,
			Severity:    datastore.AlertSeverityHigh,
			Message:     fmt.Sprintf("Endangered species detected: %s", species.ScientificName),
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
		})
	}

	if species.Invasive {
		alerts = append(alerts, datastore.Alert{
			DetectionID: detection.ID,
			Type:        datastore.AlertTypeInvasive,
			Severity:    datastore.AlertSeverityMedium,
			Message:     fmt.Sprintf("Invasive species detected: %s", species.ScientificName),
			Latitude:    loc.Latitude,
			Longitude:   loc.Longitude,
		})
	}

	return alerts
}
