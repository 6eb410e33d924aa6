package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scour-io/scour/internal/archiver"
	"github.com/scour-io/scour/internal/config"
	"github.com/scour-io/scour/internal/discovery"
	"github.com/scour-io/scour/internal/features"
	"github.com/scour-io/scour/internal/housekeeping"
	"github.com/scour-io/scour/internal/logging"
	"github.com/scour-io/scour/internal/manifest"
	"github.com/scour-io/scour/internal/metadata"
	metadataoxia "github.com/scour-io/scour/internal/metadata/oxia"
	"github.com/scour-io/scour/internal/metrics"
	"github.com/scour-io/scour/internal/objectstore"
	"github.com/scour-io/scour/internal/objectstore/s3"
	"github.com/scour-io/scour/internal/remote"
	"github.com/scour-io/scour/internal/report"
	"github.com/scour-io/scour/internal/scrub"
	"github.com/scour-io/scour/internal/server"
)

// DaemonOptions holds daemon creation parameters.
type DaemonOptions struct {
	Config  *config.Config
	Logger  *logging.Logger
	Version string
}

// Daemon is the scour process: one scrubber per discovered partition, driven
// by a shared housekeeping manager under a per-epoch operation quota.
type Daemon struct {
	cfg    *config.Config
	logger *logging.Logger

	store      objectstore.Store
	metaStore  metadata.Store
	discoverer discovery.Discoverer
	emitter    *report.KafkaEmitter

	featureTable *features.Table
	manager      *housekeeping.Manager
	scrubbers    []*scrub.Scrubber
	metricsSrv   *metrics.Server
	healthSrv    *server.HealthServer

	// Live-reloadable scrub settings, shared by every partition scrubber.
	enabled  *config.Binding[bool]
	interval *config.Binding[time.Duration]
	jitter   *config.Binding[time.Duration]
}

// NewDaemon validates options and prepares an unstarted daemon.
func NewDaemon(opts DaemonOptions) (*Daemon, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("daemon: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	cfg := opts.Config
	return &Daemon{
		cfg:          cfg,
		logger:       logger.Scoped("daemon"),
		featureTable: features.NewTable(),
		enabled:      config.NewBinding(cfg.Scrub.Enabled),
		interval:     config.NewBinding(time.Duration(cfg.Scrub.IntervalMs) * time.Millisecond),
		jitter:       config.NewBinding(time.Duration(cfg.Scrub.JitterMs) * time.Millisecond),
	}, nil
}

// Start wires the daemon together, launches the housekeeping loop and blocks
// until ctx is cancelled. Call Shutdown afterwards to release resources.
func (d *Daemon) Start(ctx context.Context) error {
	cfg := d.cfg

	d.metricsSrv = metrics.NewServer(cfg.Observability.MetricsAddr)
	if err := d.metricsSrv.Start(); err != nil {
		return fmt.Errorf("daemon: start metrics server: %w", err)
	}
	d.logger.Infof("metrics server listening", map[string]any{"addr": d.metricsSrv.Addr()})

	storeMetrics := metrics.NewObjectStoreMetrics()
	scrubMetrics := metrics.NewScrubMetrics()

	s3Store, err := s3.New(ctx, s3.Config{
		Bucket:          cfg.ObjectStore.Bucket,
		Region:          cfg.ObjectStore.Region,
		Endpoint:        cfg.ObjectStore.Endpoint,
		AccessKeyID:     cfg.ObjectStore.AccessKey,
		SecretAccessKey: cfg.ObjectStore.SecretKey,
		UsePathStyle:    cfg.ObjectStore.UsePathStyle,
	})
	if err != nil {
		return fmt.Errorf("daemon: create object store: %w", err)
	}
	d.store = objectstore.NewInstrumentedStore(s3Store, storeMetrics)

	d.metaStore, err = metadataoxia.New(metadataoxia.Config{
		ServiceAddress: cfg.Metadata.OxiaEndpoint,
		Namespace:      cfg.Metadata.Namespace,
	})
	if err != nil {
		return fmt.Errorf("daemon: create metadata store: %w", err)
	}

	if cfg.Report.Enabled {
		d.emitter, err = report.NewKafkaEmitter(report.KafkaConfig{
			Brokers: cfg.Report.Brokers,
			Topic:   cfg.Report.Topic,
		}, d.logger)
		if err != nil {
			return fmt.Errorf("daemon: create report emitter: %w", err)
		}
	}

	if len(cfg.Discovery.Brokers) > 0 {
		d.discoverer, err = discovery.NewKafka(cfg.Discovery.Brokers, nil, d.logger)
		if err != nil {
			return fmt.Errorf("daemon: create discoverer: %w", err)
		}
	} else {
		// Without a cluster to ask, the object store's manifest layout is
		// the source of truth for which partitions are tiered.
		d.discoverer = &storeDiscoverer{store: d.store}
	}

	partitions, err := d.discoverer.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("daemon: discover partitions: %w", err)
	}
	partitions = filterByPrefix(partitions, cfg.Discovery.TopicPrefix)
	d.logger.Infof("partitions discovered", map[string]any{"count": len(partitions)})

	rem := remote.New(d.store, remote.DefaultBackoff(), d.logger)
	runTimeout := time.Duration(cfg.Scrub.RunTimeoutMs) * time.Millisecond

	for _, p := range partitions {
		revision, found, err := resolveRevision(ctx, d.store, p.Topic, p.Partition)
		if err != nil {
			return fmt.Errorf("daemon: resolve revision for %s/%d: %w", p.Topic, p.Partition, err)
		}
		if !found {
			// Nothing archived yet for this partition.
			d.logger.Debugf("no manifests in object store, skipping", map[string]any{
				"topic":     p.Topic,
				"partition": p.Partition,
			})
			continue
		}

		var emitter archiver.Emitter
		if d.emitter != nil {
			emitter = d.emitter
		}
		arch, err := archiver.New(ctx, d.metaStore, p.Topic, p.Partition, revision, emitter, d.logger)
		if err != nil {
			return fmt.Errorf("daemon: load scrub state for %s/%d: %w", p.Topic, p.Partition, err)
		}

		scrubber := scrub.NewScrubber(scrub.ScrubberConfig{
			Topic:      p.Topic,
			Partition:  p.Partition,
			Revision:   revision,
			Detector:   scrub.NewDetector(p.Topic, p.Partition, revision, rem, cfg.Scrub.DeepScrub, d.logger),
			Scheduler:  scrub.NewScheduler(arch.LastScrubTime, d.interval, d.jitter),
			Archiver:   arch,
			Features:   d.featureTable,
			Enabled:    d.enabled,
			RunTimeout: runTimeout,
			Observer:   scrubMetrics,
			Logger:     d.logger,
		})
		d.scrubbers = append(d.scrubbers, scrubber)
	}

	d.manager = housekeeping.NewManager(housekeeping.ManagerConfig{
		QuotaPerEpoch: cfg.Scrub.QuotaPerEpoch,
	}, d.logger)
	for _, s := range d.scrubbers {
		s.Start()
		d.manager.AddJob(s)
	}

	d.healthSrv = server.NewHealthServer(cfg.Observability.HealthAddr, d.logger)
	d.healthSrv.RegisterReadinessCheck(server.NewObjectStoreChecker(d.store))
	d.healthSrv.RegisterReadinessCheck(server.NewMetadataStoreChecker(d.metaStore))
	if err := d.healthSrv.Start(); err != nil {
		return fmt.Errorf("daemon: start health server: %w", err)
	}

	// A standalone scrubber has no cluster-wide feature negotiation to wait
	// out; the gate activates as soon as the process is wired.
	d.featureTable.Activate(features.TieredScrubbing)
	d.manager.Start()

	d.logger.Infof("scrubber started", map[string]any{
		"scrubbers": len(d.scrubbers),
		"bucket":    cfg.ObjectStore.Bucket,
	})

	<-ctx.Done()
	return nil
}

// Shutdown stops background work and releases all resources.
func (d *Daemon) Shutdown(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if d.healthSrv != nil {
		d.healthSrv.SetShuttingDown()
	}
	if d.manager != nil {
		d.manager.Stop()
	}
	for _, s := range d.scrubbers {
		s.Stop()
	}
	if d.discoverer != nil {
		record(d.discoverer.Close())
	}
	if d.emitter != nil {
		record(d.emitter.Close())
	}
	if d.metaStore != nil {
		record(d.metaStore.Close())
	}
	if d.store != nil {
		record(d.store.Close())
	}
	if d.metricsSrv != nil {
		record(d.metricsSrv.Close())
	}
	if d.healthSrv != nil {
		record(d.healthSrv.Close())
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return firstErr
}

// SetScrubEnabled toggles scrubbing across all partitions at runtime.
func (d *Daemon) SetScrubEnabled(enabled bool) {
	d.enabled.Set(enabled)
}

// storeDiscoverer derives scrub targets from the manifest layout in the
// object store instead of a Kafka admin API.
type storeDiscoverer struct {
	store objectstore.Store
}

func (d *storeDiscoverer) Partitions(ctx context.Context) ([]discovery.Partition, error) {
	metas, err := d.store.List(ctx, manifest.ManifestPrefix)
	if err != nil {
		return nil, fmt.Errorf("discover from object store: %w", err)
	}

	seen := make(map[discovery.Partition]struct{})
	for _, meta := range metas {
		rest := strings.TrimPrefix(meta.Key, manifest.ManifestPrefix)
		parts := strings.SplitN(rest, "/", 3)
		if len(parts) < 3 {
			continue
		}
		partition, _, ok := parsePartitionDir(parts[1])
		if !ok {
			continue
		}
		seen[discovery.Partition{Topic: parts[0], Partition: partition}] = struct{}{}
	}

	out := make([]discovery.Partition, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out, nil
}

func (d *storeDiscoverer) Close() error { return nil }

// resolveRevision finds the highest archived revision of a partition by
// listing its manifest keys. Revisions change when a partition is recreated;
// only the newest incarnation is scrubbed.
func resolveRevision(ctx context.Context, store objectstore.Store, topic string, partition int32) (int64, bool, error) {
	metas, err := store.List(ctx, manifest.TopicManifestPrefix(topic))
	if err != nil {
		return 0, false, err
	}

	var (
		revision int64
		found    bool
	)
	for _, meta := range metas {
		rest := strings.TrimPrefix(meta.Key, manifest.TopicManifestPrefix(topic))
		dir, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		p, rev, ok := parsePartitionDir(dir)
		if !ok || p != partition {
			continue
		}
		if !found || rev > revision {
			revision = rev
			found = true
		}
	}
	return revision, found, nil
}

// parsePartitionDir parses a "{partition}_{revision}" manifest directory
// component.
func parsePartitionDir(dir string) (int32, int64, bool) {
	partStr, revStr, ok := strings.Cut(dir, "_")
	if !ok {
		return 0, 0, false
	}
	partition, err := strconv.ParseInt(partStr, 10, 32)
	if err != nil {
		return 0, 0, false
	}
	revision, err := strconv.ParseInt(revStr, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return int32(partition), revision, true
}

func filterByPrefix(partitions []discovery.Partition, prefix string) []discovery.Partition {
	if prefix == "" {
		return partitions
	}
	out := partitions[:0]
	for _, p := range partitions {
		if strings.HasPrefix(p.Topic, prefix) {
			out = append(out, p)
		}
	}
	return out
}
