// Package analysis wires the datastore, converter, pipeline,
// notification service and HTTP server together for the CLI commands.
package analysis

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/oceansense/edna-go/internal/conf"
	"github.com/oceansense/edna-go/internal/converter"
	"github.com/oceansense/edna-go/internal/datastore"
	"github.com/oceansense/edna-go/internal/httpserver"
	"github.com/oceansense/edna-go/internal/logging"
	"github.com/oceansense/edna-go/internal/notification"
	"github.com/oceansense/edna-go/internal/observability"
	"github.com/oceansense/edna-go/internal/pipeline"
	"github.com/oceansense/edna-go/internal/species"
)

// processWaitTimeout bounds how long the one-shot process command waits
// for its sample's terminal notification.
const processWaitTimeout = 15 * time.Minute

// components bundles the wired pipeline dependencies.
type components struct {
	store    datastore.Interface
	notifier *notification.Service
	metrics  *observability.Metrics
	pipeline *pipeline.Pipeline
	mqtt     *notification.MQTTPublisher
}

// setup opens the datastore and constructs the pipeline stack.
func setup(settings *conf.Settings) (*components, error) {
	store := datastore.New(settings)
	if store == nil {
		return nil, fmt.Errorf("no datastore backend enabled")
	}
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("opening datastore: %w", err)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		store.Close()
		return nil, err
	}

	notifier := notification.NewService()

	var mqttPublisher *notification.MQTTPublisher
	if settings.MQTT.Enabled {
		mqttPublisher, err = notification.NewMQTTPublisher(settings)
		if err != nil {
			// MQTT is an optional mirror, a broker outage should not
			// prevent processing.
			logging.ForService("analysis").Warn("MQTT mirror unavailable", "error", err)
		} else {
			notifier.AddMirror(mqttPublisher)
		}
	}

	conv := converter.NewCommandConverter(settings)
	pl := pipeline.New(settings, store, conv, notifier, metrics)

	return &components{
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		pipeline: pl,
		mqtt:     mqttPublisher,
	}, nil
}

// teardown stops everything setup started.
func (c *components) teardown() {
	c.pipeline.Stop()
	c.notifier.Stop()
	if c.mqtt != nil {
		c.mqtt.Close()
	}
	if err := c.store.Close(); err != nil {
		logging.ForService("analysis").Warn("failed to close datastore", "error", err)
	}
}

// RunServer starts the ingest API and runs until interrupted.
func RunServer(settings *conf.Settings) error {
	c, err := setup(settings)
	if err != nil {
		return err
	}
	defer c.teardown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c.pipeline.Start(ctx)

	server := httpserver.New(settings, c.store, c.pipeline, c.notifier, c.metrics)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logging.ForService("analysis").Info("shutting down")
		return server.Shutdown()
	}
}

// ProcessFile runs a single sample file through the pipeline and waits
// for its terminal notification. Used by the process command.
func ProcessFile(settings *conf.Settings, path string) error {
	name := filepath.Base(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input file not accessible: %w", err)
	}

	c, err := setup(settings)
	if err != nil {
		return err
	}
	defer c.teardown()

	sample := datastore.Sample{
		OriginalName:   name,
		OriginalFormat: converter.FormatFor(name),
		Status:         datastore.SampleStatusUploaded,
		UploadedAt:     time.Now(),
	}
	if err := c.store.CreateSample(&sample); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.pipeline.Start(ctx)

	events, _ := c.notifier.Subscribe()
	defer c.notifier.Unsubscribe(events)

	if err := c.pipeline.Enqueue(sample.ID, path, name); err != nil {
		return err
	}

	timeout := time.NewTimer(processWaitTimeout)
	defer timeout.Stop()

	for {
		select {
		case event := <-events:
			if event == nil || event.SampleID != sample.ID {
				continue
			}
			switch event.Type {
			case notification.TypeSampleProcessed:
				fmt.Printf("sample %d processed successfully\n", sample.ID)
				return nil
			case notification.TypeSampleError:
				return fmt.Errorf("sample %d failed: %s", sample.ID, event.Error)
			default:
				// Alert events for this sample, keep waiting for the
				// terminal one.
			}
		case <-timeout.C:
			return fmt.Errorf("timed out waiting for sample %d to finish", sample.ID)
		}
	}
}

// SeedSpecies loads the configured seed file into the species catalog.
func SeedSpecies(settings *conf.Settings) error {
	records, err := species.LoadSeedFile(settings.Species.SeedFile)
	if err != nil {
		return err
	}

	store := datastore.New(settings)
	if store == nil {
		return fmt.Errorf("no datastore backend enabled")
	}
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer store.Close()

	created, err := store.SeedSpecies(records)
	if err != nil {
		return err
	}

	fmt.Printf("seeded %d species (%d new)\n", len(records), created)
	return nil
}
