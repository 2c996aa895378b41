// model.go this code defines the data model for the application
package datastore

import "time"

// Sample statuses, the only valid trajectory is
// uploaded -> processing -> completed | failed.
const (
	SampleStatusUploaded   = "uploaded"
	SampleStatusProcessing = "processing"
	SampleStatusCompleted  = "completed"
	SampleStatusFailed     = "failed"
)

// Species categories, fixed taxonomy used by the matcher's GC reference
// bands.
const (
	CategoryFish         = "fish"
	CategoryCoral        = "coral"
	CategoryAlgae        = "algae"
	CategoryInvertebrate = "invertebrate"
	CategoryReptile      = "reptile"
	CategoryMammal       = "mammal"
)

// Alert types and severities.
const (
	AlertTypeEndangered         = "endangered"
	AlertTypeInvasive           = "invasive"
	AlertTypeBiodiversityChange = "biodiversity_change"
	AlertTypeEnvironmental      = "environmental"

	AlertSeverityLow      = "low"
	AlertSeverityMedium   = "medium"
	AlertSeverityHigh     = "high"
	AlertSeverityCritical = "critical"
)

// Sample represents one uploaded genomic sample archive and its
// processing state.
type Sample struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          uint   `gorm:"index:idx_samples_user"`
	OriginalName    string // filename as uploaded
	OriginalFormat  string // format tag derived from the filename, e.g. "tar.gz"
	ProcessedFormat string // set on completion, e.g. "fasta"
	Latitude        float64
	Longitude       float64
	LocationName    string

	// Environmental metadata recorded at collection time, all optional.
	Temperature    *float64
	Salinity       *float64
	PH             *float64
	CollectionDate *time.Time
	Collector      string
	Equipment      string
	Notes          string `gorm:"type:text"`

	Status      string    `gorm:"index:idx_samples_status;type:varchar(20)"`
	UploadedAt  time.Time `gorm:"index"`
	ProcessedAt *time.Time // set when the sample reaches a terminal status

	Detections []Detection `gorm:"foreignKey:SampleID;constraint:OnDelete:CASCADE"`
}

// Species represents one catalog entry. The catalog is read-only to the
// pipeline, populated by seeding or external lookup.
type Species struct {
	ID                 uint   `gorm:"primaryKey"`
	ScientificName     string `gorm:"uniqueIndex;not null"`
	CommonName         string `gorm:"index:idx_species_comname"`
	Category           string `gorm:"type:varchar(20)"`
	ConservationStatus string `gorm:"type:varchar(10)"` // IUCN code, e.g. "EN", "CR"
	Endangered         bool
	Invasive           bool
	Description        string `gorm:"type:text"`
	ImageURL           string
}

// Detection represents a recorded match between a sequence read and a
// catalog species. Immutable once created.
type Detection struct {
	ID         uint    `gorm:"primaryKey"`
	SampleID   uint    `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:SampleID;references:ID"`
	SpeciesID  uint    `gorm:"index;not null"`
	Confidence float64 `gorm:"index:idx_detections_confidence"`
	Abundance  *int
	DetectedAt time.Time `gorm:"index"`

	Species Species `gorm:"foreignKey:SpeciesID"`
}

// Alert represents a conservation alert raised from a detection. Only
// the Read flag is mutated after creation.
type Alert struct {
	ID          uint   `gorm:"primaryKey"`
	DetectionID uint   `gorm:"index;not null"`
	Type        string `gorm:"index:idx_alerts_type;type:varchar(30)"`
	Severity    string `gorm:"type:varchar(10)"`
	Message     string `gorm:"type:text"`
	Latitude    float64
	Longitude   float64
	Read        bool      `gorm:"default:false;index:idx_alerts_read"`
	CreatedAt   time.Time `gorm:"index"`
}

// Terminal reports whether the status is one of the terminal sample
// states.
func Terminal(status string) bool {
	return status == SampleStatusCompleted || status == SampleStatusFailed
}

// ValidCategory reports whether the category belongs to the fixed
// taxonomy.
func ValidCategory(category string) bool {
	switch category {
	case CategoryFish, CategoryCoral, CategoryAlgae, CategoryInvertebrate, CategoryReptile, CategoryMammal:
		return true
	}
	return false
}
