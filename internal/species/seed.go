// Package species loads species catalog seed files.
package species

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oceansense/edna-go/internal/datastore"
	"github.com/oceansense/edna-go/internal/errors"
)

// seedEntry is one catalog entry in the YAML seed file.
type seedEntry struct {
	ScientificName     string `yaml:"scientific_name"`
	CommonName         string `yaml:"common_name"`
	Category           string `yaml:"category"`
	ConservationStatus string `yaml:"conservation_status"`
	Endangered         bool   `yaml:"endangered"`
	Invasive           bool   `yaml:"invasive"`
	Description        string `yaml:"description"`
	ImageURL           string `yaml:"image_url"`
}

// seedFile is the root structure of the YAML seed file.
type seedFile struct {
	Species []seedEntry `yaml:"species"`
}

// LoadSeedFile parses a YAML catalog file into species records, validating
// that every entry has a scientific name and a known category.
func LoadSeedFile(path string) ([]datastore.Species, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading seed file: %w", err)).
			Component("species").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, errors.New(fmt.Errorf("parsing seed file: %w", err)).
			Component("species").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	records := make([]datastore.Species, 0, len(parsed.Species))
	for i, entry := range parsed.Species {
		if entry.ScientificName == "" {
			return nil, errors.Newf("seed entry %d is missing a scientific name", i).
				Component("species").
				Category(errors.CategoryValidation).
				Build()
		}
		if !datastore.ValidCategory(entry.Category) {
			return nil, errors.Newf("seed entry %q has unknown category %q", entry.ScientificName, entry.Category).
				Component("species").
				Category(errors.CategoryValidation).
				Build()
		}
		records = append(records, datastore.Species{
			ScientificName:     entry.ScientificName,
			CommonName:         entry.CommonName,
			Category:           entry.Category,
			ConservationStatus: entry.ConservationStatus,
			Endangered:         entry.Endangered,
			Invasive:           entry.Invasive,
			Description:        entry.Description,
			ImageURL:           entry.ImageURL,
		})
	}

	return records, nil
}
