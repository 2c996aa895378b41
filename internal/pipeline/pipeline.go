// Package pipeline owns the per-sample processing state machine. Each
// sample moves uploaded -> processing -> completed | failed, driven by
// conversion, parsing, matching, persistence, alerting and a terminal
// notification.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/oceansense/edna-go/internal/alerting"
	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/converter"
	"github.com/oceansense/edna-go/internal/datastore"
	"github.com/oceansense/edna-go/internal/errors"
	"github.com/oceansense/edna-go/internal/fasta"
	"github.com/oceansense/edna-go/internal/logging"
	"github.com/oceansense/edna-go/internal/matcher"
	"github.com/oceansense/edna-go/internal/notification"
	"github.com/oceansense/edna-go/internal/observability"
)

// defaultQueueDepth bounds pending jobs beyond the worker admission
// limit before Enqueue starts rejecting.
const defaultQueueDepth = 256

// job is one unit of pipeline work, a single sample to process.
type job struct {
	sampleID     uint
	filePath     string
	originalName string
}

// Pipeline dispatches sample processing jobs to a bounded worker pool
// and runs each sample's state machine to a terminal state.
type Pipeline struct {
	settings  *conf.Settings
	store     datastore.Interface
	converter converter.Converter
	publisher notification.Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger

	// newSource provides the matcher's random source per sample run.
	// Injectable so tests can pin scoring outcomes.
	newSource func() rand.Source

	// inFlight tracks sample IDs with an active pipeline, enforcing
	// at-most-one-active-pipeline-per-sample.
	inFlight sync.Map

	jobs   chan job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a pipeline. Workers are not started until Start is called.
func New(settings *conf.Settings, store datastore.Interface, conv converter.Converter,
	publisher notification.Publisher, metrics *observability.Metrics) *Pipeline {

	newSource := func() rand.Source {
		if settings.Matcher.Seed != 0 {
			return rand.NewSource(settings.Matcher.Seed)
		}
		return rand.NewSource(time.Now().UnixNano())
	}

	return &Pipeline{
		settings:  settings,
		store:     store,
		converter: conv,
		publisher: publisher,
		metrics:   metrics,
		logger:    logging.ForService("pipeline"),
		newSource: newSource,
		jobs:      make(chan job, defaultQueueDepth),
	}
}

// SetRandSource overrides the matcher random source factory, used by
// tests that need deterministic scoring.
func (p *Pipeline) SetRandSource(f func() rand.Source) {
	p.newSource = f
}

// Start launches the worker pool. The pool size is the configured
// admission limit for concurrently processing samples.
func (p *Pipeline) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	workers := p.settings.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.logger.Info("pipeline started", "workers", workers)
}

// Stop drains the worker pool. Samples already processing run to their
// terminal state before workers exit.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	close(p.jobs)
	p.wg.Wait()
	p.logger.Info("pipeline stopped")
}

// Enqueue submits a sample for processing and returns immediately. A
// sample already queued or processing is rejected, as is a sample not in
// uploaded status.
func (p *Pipeline) Enqueue(sampleID uint, filePath, originalName string) error {
	sample, err := p.store.GetSample(sampleID)
	if err != nil {
		return err
	}
	if sample.Status != datastore.SampleStatusUploaded {
		return errors.Newf("sample %d is in status %s, only uploaded samples can be processed", sampleID, sample.Status).
			Component("pipeline").
			Category(errors.CategoryState).
			Context("sample_id", sampleID).
			Context("status", sample.Status).
			Build()
	}

	// Reserve the sample before queuing so a duplicate submission is
	// rejected even while the job is still waiting for a worker.
	if _, loaded := p.inFlight.LoadOrStore(sampleID, struct{}{}); loaded {
		return errors.Newf("sample %d already has an active pipeline", sampleID).
			Component("pipeline").
			Category(errors.CategoryState).
			Context("sample_id", sampleID).
			Build()
	}

	select {
	case p.jobs <- job{sampleID: sampleID, filePath: filePath, originalName: originalName}:
		return nil
	default:
		p.inFlight.Delete(sampleID)
		return errors.Newf("pipeline queue is full, sample %d rejected", sampleID).
			Component("pipeline").
			Category(errors.CategoryState).
			Context("sample_id", sampleID).
			Build()
	}
}

// worker consumes jobs until the queue closes.
func (p *Pipeline) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		p.run(j)
	}
}

// run executes the state machine for one sample. Whatever happens the
// sample ends in a terminal state and a terminal notification is
// emitted.
func (p *Pipeline) run(j job) {
	defer p.inFlight.Delete(j.sampleID)

	start := time.Now()
	p.metrics.ActivePipelines.Inc()
	defer func() {
		p.metrics.ActivePipelines.Dec()
		p.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}()

	logger := p.logger.With("sample_id", j.sampleID, "file", j.originalName)
	logger.Info("processing sample")

	sample, err := p.store.GetSample(j.sampleID)
	if err != nil {
		p.fail(j.sampleID, logger, err)
		return
	}

	if err := p.store.UpdateSampleStatus(j.sampleID, datastore.SampleStatusProcessing, ""); err != nil {
		p.fail(j.sampleID, logger, err)
		return
	}

	// Resolve the processed FASTA file, converting archives through the
	// external tool and copying flat formats.
	processedPath, err := p.converter.Convert(p.ctx, j.filePath, j.originalName)
	if err != nil {
		logger.Error("conversion failed", "error", err, "category", errors.CategoryOf(err))
		p.fail(j.sampleID, logger, err)
		return
	}

	records, err := fasta.ParseFile(processedPath)
	if err != nil {
		p.fail(j.sampleID, logger, errors.New(err).
			Component("pipeline").
			Category(errors.CategoryFileParsing).
			Context("path", processedPath).
			Build())
		return
	}
	p.metrics.SequencesParsed.Add(float64(len(records)))
	if len(records) == 0 {
		// Degraded parse is not an error, the sample simply yields no
		// detections.
		logger.Warn("no sequence records parsed from sample", "path", processedPath)
	}

	if err := p.matchRecords(&sample, records, logger); err != nil {
		p.fail(j.sampleID, logger, err)
		return
	}

	if err := p.store.UpdateSampleStatus(j.sampleID, datastore.SampleStatusCompleted, "fasta"); err != nil {
		p.fail(j.sampleID, logger, err)
		return
	}
	p.metrics.SamplesProcessed.WithLabelValues(datastore.SampleStatusCompleted).Inc()

	// Original artifact removal is best-effort, a leftover file is an
	// operational concern, not a pipeline failure.
	if !p.settings.Pipeline.KeepUploads {
		if err := os.Remove(j.filePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove uploaded artifact", "path", j.filePath, "error", err)
		}
	}

	logger.Info("sample processing completed",
		"records", len(records),
		"duration", time.Since(start))
	p.publisher.Publish(notification.NewSampleProcessed(j.sampleID, datastore.SampleStatusCompleted))
}

// matchRecords scores each record, persisting detections and any alerts
// they raise. A persistence failure aborts remaining records; detections
// and alerts already written stay in place.
func (p *Pipeline) matchRecords(sample *datastore.Sample, records []fasta.Record, logger *slog.Logger) error {
	catalog, err := p.store.ListSpecies()
	if err != nil {
		return err
	}
	if len(catalog) == 0 {
		logger.Warn("species catalog is empty, no detections possible")
		return nil
	}

	m := matcher.New(catalog, p.newSource(), p.settings.Matcher.ConfidenceFloor)
	loc := alerting.Location{Latitude: sample.Latitude, Longitude: sample.Longitude}

	for i := range records {
		match, ok := m.BestMatch(&records[i])
		if !ok {
			continue
		}

		detection := datastore.Detection{
			SampleID:   sample.ID,
			SpeciesID:  match.Species.ID,
			Confidence: match.Confidence,
			DetectedAt: time.Now(),
		}
		if err := p.store.CreateDetection(&detection); err != nil {
			return err
		}
		p.metrics.Detections.Inc()
		logger.Debug("detection recorded",
			"species", match.Species.ScientificName,
			"confidence", fmt.Sprintf("%.2f", match.Confidence))

		for _, alert := range alerting.Evaluate(&detection, &match.Species, loc) {
			if err := p.store.CreateAlert(&alert); err != nil {
				return err
			}
			p.metrics.Alerts.WithLabelValues(alert.Type).Inc()
			logger.Info("conservation alert raised",
				"type", alert.Type,
				"severity", alert.Severity,
				"species", match.Species.ScientificName)
			p.publisher.Publish(notification.NewAlertCreated(sample.ID, alert.Type))
		}
	}

	return nil
}

// fail transitions the sample to failed and emits the failure
// notification. Detections persisted before the failure are kept,
// partial progress stays visible.
func (p *Pipeline) fail(sampleID uint, logger *slog.Logger, cause error) {
	if err := p.store.UpdateSampleStatus(sampleID, datastore.SampleStatusFailed, ""); err != nil {
		logger.Error("failed to mark sample failed", "error", err)
	}
	p.metrics.SamplesProcessed.WithLabelValues(datastore.SampleStatusFailed).Inc()

	logger.Error("sample processing failed", "error", cause)
	p.publisher.Publish(notification.NewSampleError(sampleID, cause.Error()))
}
