package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/errors"
)

func openTestStore(t *testing.T) Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "edna.db")

	store := New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSampleLifecycle(t *testing.T) {
	store := openTestStore(t)

	sample := &Sample{
		OriginalName:   "sample1.tar.gz",
		OriginalFormat: "tar.gz",
		Latitude:       59.9,
		Longitude:      10.7,
		LocationName:   "Oslofjord",
	}
	require.NoError(t, store.CreateSample(sample))
	require.NotZero(t, sample.ID)

	got, err := store.GetSample(sample.ID)
	require.NoError(t, err)
	assert.Equal(t, SampleStatusUploaded, got.Status)
	assert.False(t, got.UploadedAt.IsZero())
	assert.Nil(t, got.ProcessedAt)

	require.NoError(t, store.UpdateSampleStatus(sample.ID, SampleStatusProcessing, ""))
	got, err = store.GetSample(sample.ID)
	require.NoError(t, err)
	assert.Equal(t, SampleStatusProcessing, got.Status)
	assert.Nil(t, got.ProcessedAt, "non-terminal transition must not stamp processed time")

	require.NoError(t, store.UpdateSampleStatus(sample.ID, SampleStatusCompleted, "fasta"))
	got, err = store.GetSample(sample.ID)
	require.NoError(t, err)
	assert.Equal(t, SampleStatusCompleted, got.Status)
	assert.Equal(t, "fasta", got.ProcessedFormat)
	require.NotNil(t, got.ProcessedAt)
	assert.WithinDuration(t, time.Now(), *got.ProcessedAt, time.Minute)
}

func TestGetSampleNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSample(42)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))

	err = store.UpdateSampleStatus(42, SampleStatusFailed, "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestSeedSpeciesUpserts(t *testing.T) {
	store := openTestStore(t)

	created, err := store.SeedSpecies([]Species{
		{ScientificName: "Thunnus thynnus", CommonName: "Atlantic bluefin tuna", Category: CategoryFish, Endangered: true},
		{ScientificName: "Pterois volitans", CommonName: "Red lionfish", Category: CategoryFish, Invasive: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Reseeding the same names with changed fields updates in place.
	created, err = store.SeedSpecies([]Species{
		{ScientificName: "Thunnus thynnus", CommonName: "Bluefin tuna", Category: CategoryFish, Endangered: true},
		{ScientificName: "Caretta caretta", CommonName: "Loggerhead turtle", Category: CategoryReptile, Endangered: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	species, err := store.ListSpecies()
	require.NoError(t, err)
	assert.Len(t, species, 3)

	tuna, err := store.GetSpeciesByScientificName("Thunnus thynnus")
	require.NoError(t, err)
	assert.Equal(t, "Bluefin tuna", tuna.CommonName)
}

func TestListSpeciesCacheInvalidatedBySeed(t *testing.T) {
	store := openTestStore(t)

	_, err := store.SeedSpecies([]Species{
		{ScientificName: "Thunnus thynnus", Category: CategoryFish},
	})
	require.NoError(t, err)

	first, err := store.ListSpecies()
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second seed must invalidate the cached catalog.
	_, err = store.SeedSpecies([]Species{
		{ScientificName: "Caretta caretta", Category: CategoryReptile},
	})
	require.NoError(t, err)

	second, err := store.ListSpecies()
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestDetectionsAndAlerts(t *testing.T) {
	store := openTestStore(t)

	sample := &Sample{OriginalName: "sample1.fasta"}
	require.NoError(t, store.CreateSample(sample))

	_, err := store.SeedSpecies([]Species{
		{ScientificName: "Pterois volitans", Category: CategoryFish, Invasive: true},
	})
	require.NoError(t, err)
	lionfish, err := store.GetSpeciesByScientificName("Pterois volitans")
	require.NoError(t, err)

	detection := &Detection{SampleID: sample.ID, SpeciesID: lionfish.ID, Confidence: 0.72}
	require.NoError(t, store.CreateDetection(detection))
	require.NotZero(t, detection.ID)

	detections, err := store.GetDetectionsBySample(sample.ID)
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "Pterois volitans", detections[0].Species.ScientificName)
	assert.False(t, detections[0].DetectedAt.IsZero())

	alert := &Alert{
		DetectionID: detection.ID,
		Type:        AlertTypeInvasive,
		Severity:    AlertSeverityMedium,
		Message:     "Invasive species detected: Pterois volitans",
	}
	require.NoError(t, store.CreateAlert(alert))

	alerts, err := store.ListAlerts(true, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Read)

	require.NoError(t, store.MarkAlertRead(alert.ID))
	alerts, err = store.ListAlerts(true, 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	alerts, err = store.ListAlerts(false, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Read)
}

func TestMarkAlertReadNotFound(t *testing.T) {
	store := openTestStore(t)

	err := store.MarkAlertRead(99)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}
