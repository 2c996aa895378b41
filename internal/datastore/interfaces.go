// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/errors"
)

// speciesCacheKey is the go-cache key holding the full catalog. The
// catalog is read-only to the pipeline so a short TTL is safe.
const (
	speciesCacheKey = "species:all"
	speciesCacheTTL = 5 * time.Minute
)

// Interface abstracts the underlying database implementation and defines
// the operations the pipeline and API consume.
type Interface interface {
	Open() error
	Close() error

	// Sample store
	CreateSample(sample *Sample) error
	GetSample(id uint) (Sample, error)
	UpdateSampleStatus(id uint, status, processedFormat string) error

	// Species store
	ListSpecies() ([]Species, error)
	GetSpeciesByScientificName(name string) (Species, error)
	SeedSpecies(species []Species) (int, error)

	// Detection store
	CreateDetection(detection *Detection) error
	GetDetectionsBySample(sampleID uint) ([]Detection, error)

	// Alert store
	CreateAlert(alert *Alert) error
	ListAlerts(unreadOnly bool, limit int) ([]Alert, error)
	MarkAlertRead(id uint) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB           *gorm.DB
	speciesCache *cache.Cache
}

// New creates a new datastore instance based on the enabled backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			DataStore: DataStore{speciesCache: cache.New(speciesCacheTTL, 2*speciesCacheTTL)},
			Settings:  settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			DataStore: DataStore{speciesCache: cache.New(speciesCacheTTL, 2*speciesCacheTTL)},
			Settings:  settings,
		}
	default:
		return nil
	}
}

// CreateSample inserts a new sample record, defaulting status and upload
// time when the caller left them unset.
func (ds *DataStore) CreateSample(sample *Sample) error {
	if sample.Status == "" {
		sample.Status = SampleStatusUploaded
	}
	if sample.UploadedAt.IsZero() {
		sample.UploadedAt = time.Now()
	}
	if err := ds.DB.Create(sample).Error; err != nil {
		return errors.New(fmt.Errorf("creating sample: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("original_name", sample.OriginalName).
			Build()
	}
	return nil
}

// GetSample retrieves a sample by its ID.
func (ds *DataStore) GetSample(id uint) (Sample, error) {
	var sample Sample
	if err := ds.DB.First(&sample, id).Error; err != nil {
		category := errors.CategoryDatabase
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category = errors.CategoryNotFound
		}
		return Sample{}, errors.New(fmt.Errorf("getting sample %d: %w", id, err)).
			Component("datastore").
			Category(category).
			Context("sample_id", id).
			Build()
	}
	return sample, nil
}

// UpdateSampleStatus transitions a sample to the given status. The
// processed timestamp is stamped on terminal transitions and the
// processed format is recorded when non-empty.
func (ds *DataStore) UpdateSampleStatus(id uint, status, processedFormat string) error {
	updates := map[string]any{"status": status}
	if Terminal(status) {
		now := time.Now()
		updates["processed_at"] = &now
	}
	if processedFormat != "" {
		updates["processed_format"] = processedFormat
	}

	result := ds.DB.Model(&Sample{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return errors.New(fmt.Errorf("updating sample %d status to %s: %w", id, status, result.Error)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("sample_id", id).
			Context("status", status).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("sample %d not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("sample_id", id).
			Build()
	}
	return nil
}

// ListSpecies returns the full species catalog, served from cache when
// fresh.
func (ds *DataStore) ListSpecies() ([]Species, error) {
	if cached, found := ds.speciesCache.Get(speciesCacheKey); found {
		if species, ok := cached.([]Species); ok {
			return species, nil
		}
	}

	var species []Species
	if err := ds.DB.Order("id").Find(&species).Error; err != nil {
		return nil, errors.New(fmt.Errorf("listing species: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	ds.speciesCache.Set(speciesCacheKey, species, cache.DefaultExpiration)
	return species, nil
}

// GetSpeciesByScientificName retrieves one catalog entry by its unique
// scientific name.
func (ds *DataStore) GetSpeciesByScientificName(name string) (Species, error) {
	var species Species
	if err := ds.DB.Where("scientific_name = ?", name).First(&species).Error; err != nil {
		category := errors.CategoryDatabase
		if errors.Is(err, gorm.ErrRecordNotFound) {
			category = errors.CategoryNotFound
		}
		return Species{}, errors.New(fmt.Errorf("getting species %q: %w", name, err)).
			Component("datastore").
			Category(category).
			Context("scientific_name", name).
			Build()
	}
	return species, nil
}

// SeedSpecies upserts catalog entries keyed by scientific name and
// returns the number of newly created entries.
func (ds *DataStore) SeedSpecies(species []Species) (int, error) {
	created := 0
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range species {
			var existing Species
			err := tx.Where("scientific_name = ?", species[i].ScientificName).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&species[i]).Error; err != nil {
					return fmt.Errorf("creating species %q: %w", species[i].ScientificName, err)
				}
				created++
			case err != nil:
				return fmt.Errorf("looking up species %q: %w", species[i].ScientificName, err)
			default:
				species[i].ID = existing.ID
				if err := tx.Model(&existing).Updates(&species[i]).Error; err != nil {
					return fmt.Errorf("updating species %q: %w", species[i].ScientificName, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	ds.speciesCache.Delete(speciesCacheKey)
	return created, nil
}

// CreateDetection inserts a new detection record.
func (ds *DataStore) CreateDetection(detection *Detection) error {
	if detection.DetectedAt.IsZero() {
		detection.DetectedAt = time.Now()
	}
	if err := ds.DB.Create(detection).Error; err != nil {
		return errors.New(fmt.Errorf("creating detection: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("sample_id", detection.SampleID).
			Context("species_id", detection.SpeciesID).
			Build()
	}
	return nil
}

// GetDetectionsBySample returns all detections recorded for a sample,
// with the matched species preloaded.
func (ds *DataStore) GetDetectionsBySample(sampleID uint) ([]Detection, error) {
	var detections []Detection
	if err := ds.DB.Preload("Species").Where("sample_id = ?", sampleID).Order("id").Find(&detections).Error; err != nil {
		return nil, errors.New(fmt.Errorf("listing detections for sample %d: %w", sampleID, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("sample_id", sampleID).
			Build()
	}
	return detections, nil
}

// CreateAlert inserts a new alert record.
func (ds *DataStore) CreateAlert(alert *Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	if err := ds.DB.Create(alert).Error; err != nil {
		return errors.New(fmt.Errorf("creating alert: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("detection_id", alert.DetectionID).
			Context("alert_type", alert.Type).
			Build()
	}
	return nil
}

// ListAlerts returns alerts newest first, optionally unread only.
func (ds *DataStore) ListAlerts(unreadOnly bool, limit int) ([]Alert, error) {
	query := ds.DB.Order("created_at DESC")
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var alerts []Alert
	if err := query.Find(&alerts).Error; err != nil {
		return nil, errors.New(fmt.Errorf("listing alerts: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return alerts, nil
}

// MarkAlertRead flags an alert as read.
func (ds *DataStore) MarkAlertRead(id uint) error {
	result := ds.DB.Model(&Alert{}).Where("id = ?", id).Update("read", true)
	if result.Error != nil {
		return errors.New(fmt.Errorf("marking alert %d read: %w", id, result.Error)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("alert_id", id).
			Build()
	}
	if result.RowsAffected == 0 {
		return errors.Newf("alert %d not found", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("alert_id", id).
			Build()
	}
	return nil
}
