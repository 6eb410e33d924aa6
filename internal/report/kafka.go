// Package report publishes scrub reports to a Kafka topic, where operators
// can consume them for alerting or audit trails.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/scour-io/scour/internal/archiver"
	"github.com/scour-io/scour/internal/logging"
)

const flushTimeout = 10 * time.Second

// KafkaConfig configures the report emitter.
type KafkaConfig struct {
	// Brokers are the seed broker addresses.
	Brokers []string

	// Topic is the topic reports are produced to.
	Topic string
}

// KafkaEmitter publishes reports as JSON records keyed by
// "topic/partition", so reports for one partition land in order on one
// partition of the report topic.
type KafkaEmitter struct {
	client *kgo.Client
	topic  string
	logger *logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewKafkaEmitter creates an emitter. The client connects lazily; a broker
// that is down at startup only fails the first emission.
func NewKafkaEmitter(cfg KafkaConfig, logger *logging.Logger) (*KafkaEmitter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("report: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("report: topic is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.AllowAutoTopicCreation(),
		kgo.DefaultProduceTopic(cfg.Topic),
	)
	if err != nil {
		return nil, fmt.Errorf("report: create client: %w", err)
	}

	return &KafkaEmitter{
		client: client,
		topic:  cfg.Topic,
		logger: logger.Scoped("report"),
	}, nil
}

// EmitReport produces one report and waits for the broker ack.
func (e *KafkaEmitter) EmitReport(ctx context.Context, report archiver.Report) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("report: emitter closed")
	}
	e.mu.Unlock()

	value, err := json.Marshal(&report)
	if err != nil {
		return fmt.Errorf("report: encode report: %w", err)
	}

	record := &kgo.Record{
		Topic: e.topic,
		Key:   []byte(fmt.Sprintf("%s/%d", report.Topic, report.Partition)),
		Value: value,
	}
	if err := e.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("report: produce: %w", err)
	}

	e.logger.Debugf("report emitted", map[string]any{
		"runId":     report.RunID,
		"topic":     report.Topic,
		"partition": report.Partition,
	})
	return nil
}

// Close flushes pending records and releases the client.
func (e *KafkaEmitter) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	err := e.client.Flush(ctx)
	e.client.Close()
	return err
}

var _ archiver.Emitter = (*KafkaEmitter)(nil)
