package pipeline

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/datastore"
	"github.com/oceansense/edna-go/internal/errors"
	"github.com/oceansense/edna-go/internal/notification"
	"github.com/oceansense/edna-go/internal/observability"
)

// zeroSource pins the matcher base score to its minimum so scoring
// outcomes are fully determined by the sequence content.
type zeroSource struct{}

func (zeroSource) Int63() int64    { return 0 }
func (zeroSource) Seed(seed int64) {}

// fakeStore is an in-memory datastore recording every status transition.
type fakeStore struct {
	mu         sync.Mutex
	samples    map[uint]datastore.Sample
	statuses   map[uint][]string
	detections []datastore.Detection
	alerts     []datastore.Alert
	species    []datastore.Species

	alertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		samples:  make(map[uint]datastore.Sample),
		statuses: make(map[uint][]string),
	}
}

func (f *fakeStore) Open() error  { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) CreateSample(sample *datastore.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sample.ID == 0 {
		sample.ID = uint(len(f.samples) + 1)
	}
	if sample.Status == "" {
		sample.Status = datastore.SampleStatusUploaded
	}
	f.samples[sample.ID] = *sample
	return nil
}

func (f *fakeStore) GetSample(id uint) (datastore.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sample, ok := f.samples[id]
	if !ok {
		return datastore.Sample{}, errors.Newf("sample %d not found", id).
			Category(errors.CategoryNotFound).Build()
	}
	return sample, nil
}

func (f *fakeStore) UpdateSampleStatus(id uint, status, processedFormat string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sample, ok := f.samples[id]
	if !ok {
		return errors.Newf("sample %d not found", id).
			Category(errors.CategoryNotFound).Build()
	}
	sample.Status = status
	if processedFormat != "" {
		sample.ProcessedFormat = processedFormat
	}
	if datastore.Terminal(status) {
		now := time.Now()
		sample.ProcessedAt = &now
	}
	f.samples[id] = sample
	f.statuses[id] = append(f.statuses[id], status)
	return nil
}

func (f *fakeStore) ListSpecies() ([]datastore.Species, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.species, nil
}

func (f *fakeStore) GetSpeciesByScientificName(name string) (datastore.Species, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.species {
		if s.ScientificName == name {
			return s, nil
		}
	}
	return datastore.Species{}, errors.Newf("species %q not found", name).
		Category(errors.CategoryNotFound).Build()
}

func (f *fakeStore) SeedSpecies(species []datastore.Species) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.species = append(f.species, species...)
	return len(species), nil
}

func (f *fakeStore) CreateDetection(detection *datastore.Detection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	detection.ID = uint(len(f.detections) + 1)
	f.detections = append(f.detections, *detection)
	return nil
}

func (f *fakeStore) GetDetectionsBySample(sampleID uint) ([]datastore.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []datastore.Detection
	for _, d := range f.detections {
		if d.SampleID == sampleID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateAlert(alert *datastore.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alertErr != nil {
		return f.alertErr
	}
	alert.ID = uint(len(f.alerts) + 1)
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeStore) ListAlerts(unreadOnly bool, limit int) ([]datastore.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alerts, nil
}

func (f *fakeStore) MarkAlertRead(id uint) error { return nil }

func (f *fakeStore) statusHistory(id uint) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses[id]...)
}

func (f *fakeStore) detectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detections)
}

func (f *fakeStore) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

// fakeConverter returns a fixed processed path or a fixed error. An
// optional gate blocks conversion until released.
type fakeConverter struct {
	output string
	err    error
	gate   chan struct{}
}

func (f *fakeConverter) Convert(ctx context.Context, filePath, originalName string) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := &conf.Settings{}
	settings.Storage.UploadPath = t.TempDir()
	settings.Storage.ProcessedPath = t.TempDir()
	settings.Matcher.ConfidenceFloor = 0.6
	settings.Pipeline.Workers = 1
	return settings
}

// endangeredFishCatalog is a single endangered fish entry that the
// plausible record below matches with the zero source.
func endangeredFishCatalog() []datastore.Species {
	return []datastore.Species{
		{ID: 1, ScientificName: "Thunnus thynnus", Category: datastore.CategoryFish, Endangered: true},
	}
}

// writeFasta writes a processed file with one plausible fish record and
// one record too short and too AT-rich to score above the floor.
func writeFasta(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.fasta")
	content := ">read1\n" + strings.Repeat("AG", 150) + "\n>read2\n" + strings.Repeat("AT", 50) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeArtifact(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("archive bytes"), 0o644))
	return path
}

func newTestPipeline(t *testing.T, settings *conf.Settings, store datastore.Interface,
	conv *fakeConverter) (*Pipeline, *notification.Service, <-chan *notification.Event) {
	t.Helper()

	notifier := notification.NewService()
	t.Cleanup(notifier.Stop)

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	p := New(settings, store, conv, notifier, metrics)
	p.SetRandSource(func() rand.Source { return zeroSource{} })
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	events, _ := notifier.Subscribe()
	return p, notifier, events
}

// waitTerminal drains events until the terminal event for the sample
// arrives, returning every event seen for it along the way.
func waitTerminal(t *testing.T, events <-chan *notification.Event, sampleID uint) []*notification.Event {
	t.Helper()
	var seen []*notification.Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.SampleID != sampleID {
				continue
			}
			seen = append(seen, ev)
			if ev.Type == notification.TypeSampleProcessed || ev.Type == notification.TypeSampleError {
				return seen
			}
		case <-deadline:
			t.Fatalf("no terminal event for sample %d", sampleID)
		}
	}
}

func TestProcessSampleCompletes(t *testing.T) {
	settings := testSettings(t)
	store := newFakeStore()
	store.species = endangeredFishCatalog()

	artifact := writeArtifact(t, settings.Storage.UploadPath)
	conv := &fakeConverter{output: writeFasta(t)}
	p, _, events := newTestPipeline(t, settings, store, conv)

	sample := &datastore.Sample{OriginalName: "sample.tar.gz", Latitude: 59.9, Longitude: 10.7}
	require.NoError(t, store.CreateSample(sample))
	require.NoError(t, p.Enqueue(sample.ID, artifact, sample.OriginalName))

	seen := waitTerminal(t, events, sample.ID)
	last := seen[len(seen)-1]
	assert.Equal(t, notification.TypeSampleProcessed, last.Type)
	assert.Equal(t, datastore.SampleStatusCompleted, last.Status)

	assert.Equal(t, []string{datastore.SampleStatusProcessing, datastore.SampleStatusCompleted},
		store.statusHistory(sample.ID))

	// Only the plausible record clears the floor: base 0.5 + band 0.1 +
	// amplicon 0.05 = 0.65.
	require.Equal(t, 1, store.detectionCount())
	assert.Equal(t, uint(1), store.detections[0].SpeciesID)
	assert.InDelta(t, 0.65, store.detections[0].Confidence, 1e-9)

	require.Equal(t, 1, store.alertCount())
	assert.Equal(t, datastore.AlertTypeEndangered, store.alerts[0].Type)
	assert.Equal(t, datastore.AlertSeverityHigh, store.alerts[0].Severity)
	assert.Equal(t, 59.9, store.alerts[0].Latitude)

	// Alert event precedes the terminal event.
	require.Len(t, seen, 2)
	assert.Equal(t, notification.TypeAlertCreated, seen[0].Type)

	assert.NoFileExists(t, artifact)
}

func TestConverterFailureMarksSampleFailed(t *testing.T) {
	settings := testSettings(t)
	store := newFakeStore()
	store.species = endangeredFishCatalog()

	artifact := writeArtifact(t, settings.Storage.UploadPath)
	conv := &fakeConverter{err: errors.Newf("conversion tool exited 1").
		Category(errors.CategoryConversion).Build()}
	p, _, events := newTestPipeline(t, settings, store, conv)

	sample := &datastore.Sample{OriginalName: "sample.tar.gz"}
	require.NoError(t, store.CreateSample(sample))
	require.NoError(t, p.Enqueue(sample.ID, artifact, sample.OriginalName))

	seen := waitTerminal(t, events, sample.ID)
	last := seen[len(seen)-1]
	assert.Equal(t, notification.TypeSampleError, last.Type)
	assert.Contains(t, last.Error, "conversion tool exited 1")

	assert.Equal(t, []string{datastore.SampleStatusProcessing, datastore.SampleStatusFailed},
		store.statusHistory(sample.ID))
	assert.Zero(t, store.detectionCount())

	// Failed samples keep their uploaded artifact.
	assert.FileExists(t, artifact)
}

func TestEmptyFastaCompletesWithoutDetections(t *testing.T) {
	settings := testSettings(t)
	store := newFakeStore()
	store.species = endangeredFishCatalog()

	empty := filepath.Join(t.TempDir(), "empty.fasta")
	require.NoError(t, os.WriteFile(empty, []byte("# Converted from sample.tar.gz\n"), 0o644))

	artifact := writeArtifact(t, settings.Storage.UploadPath)
	conv := &fakeConverter{output: empty}
	p, _, events := newTestPipeline(t, settings, store, conv)

	sample := &datastore.Sample{OriginalName: "sample.tar.gz"}
	require.NoError(t, store.CreateSample(sample))
	require.NoError(t, p.Enqueue(sample.ID, artifact, sample.OriginalName))

	seen := waitTerminal(t, events, sample.ID)
	assert.Equal(t, notification.TypeSampleProcessed, seen[len(seen)-1].Type)
	assert.Zero(t, store.detectionCount())
	assert.Zero(t, store.alertCount())
}

func TestAlertPersistenceFailureKeepsDetections(t *testing.T) {
	settings := testSettings(t)
	store := newFakeStore()
	store.species = endangeredFishCatalog()
	store.alertErr = errors.Newf("disk full").Category(errors.CategoryDatabase).Build()

	artifact := writeArtifact(t, settings.Storage.UploadPath)
	conv := &fakeConverter{output: writeFasta(t)}
	p, _, events := newTestPipeline(t, settings, store, conv)

	sample := &datastore.Sample{OriginalName: "sample.tar.gz"}
	require.NoError(t, store.CreateSample(sample))
	require.NoError(t, p.Enqueue(sample.ID, artifact, sample.OriginalName))

	seen := waitTerminal(t, events, sample.ID)
	assert.Equal(t, notification.TypeSampleError, seen[len(seen)-1].Type)
	assert.Equal(t, []string{datastore.SampleStatusProcessing, datastore.SampleStatusFailed},
		store.statusHistory(sample.ID))

	// The detection written before the alert failure stays in place.
	assert.Equal(t, 1, store.detectionCount())
	assert.Zero(t, store.alertCount())
}

func TestEnqueueRejectsDuplicate(t *testing.T) {
	settings := testSettings(t)
	store := newFakeStore()
	store.species = endangeredFishCatalog()

	artifact := writeArtifact(t, settings.Storage.UploadPath)
	gate := make(chan struct{})
	conv := &fakeConverter{output: writeFasta(t), gate: gate}
	p, _, events := newTestPipeline(t, settings, store, conv)

	sample := &datastore.Sample{OriginalName: "sample.tar.gz"}
	require.NoError(t, store.CreateSample(sample))

	require.NoError(t, p.Enqueue(sample.ID, artifact, sample.OriginalName))

	// While the first pipeline holds the sample, a duplicate submission
	// must be rejected.
	err := p.Enqueue(sample.ID, artifact, sample.OriginalName)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))

	close(gate)
	waitTerminal(t, events, sample.ID)

	// After completion the status check rejects reprocessing.
	err = p.Enqueue(sample.ID, artifact, sample.OriginalName)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))
}

func TestEnqueueRejectsNonUploadedSample(t *testing.T) {
	settings := testSettings(t)
	store := newFakeStore()

	conv := &fakeConverter{}
	p, _, _ := newTestPipeline(t, settings, store, conv)

	sample := &datastore.Sample{OriginalName: "sample.tar.gz", Status: datastore.SampleStatusFailed}
	require.NoError(t, store.CreateSample(sample))

	err := p.Enqueue(sample.ID, "missing", sample.OriginalName)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryState))
}

func TestEnqueueRejectsUnknownSample(t *testing.T) {
	settings := testSettings(t)
	store := newFakeStore()

	p, _, _ := newTestPipeline(t, settings, store, &fakeConverter{})

	err := p.Enqueue(999, "missing", "sample.tar.gz")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryNotFound))
}

func TestKeepUploadsRetainsArtifact(t *testing.T) {
	settings := testSettings(t)
	settings.Pipeline.KeepUploads = true
	store := newFakeStore()
	store.species = endangeredFishCatalog()

	artifact := writeArtifact(t, settings.Storage.UploadPath)
	conv := &fakeConverter{output: writeFasta(t)}
	p, _, events := newTestPipeline(t, settings, store, conv)

	sample := &datastore.Sample{OriginalName: "sample.tar.gz"}
	require.NoError(t, store.CreateSample(sample))
	require.NoError(t, p.Enqueue(sample.ID, artifact, sample.OriginalName))

	waitTerminal(t, events, sample.ID)
	assert.FileExists(t, artifact)
}
