// Package discovery enumerates the partitions whose tiered storage should
// be scrubbed. The Kafka implementation asks the cluster's admin API; a
// static implementation serves fixed deployments and tests.
package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/scour-io/scour/internal/logging"
)

// Partition identifies one partition of a topic.
type Partition struct {
	Topic     string
	Partition int32
}

// Discoverer enumerates scrub targets.
type Discoverer interface {
	Partitions(ctx context.Context) ([]Partition, error)
	Close() error
}

// StaticDiscoverer returns a fixed partition list.
type StaticDiscoverer struct {
	partitions []Partition
}

// NewStatic creates a discoverer over a fixed list.
func NewStatic(partitions []Partition) *StaticDiscoverer {
	return &StaticDiscoverer{partitions: partitions}
}

func (d *StaticDiscoverer) Partitions(context.Context) ([]Partition, error) {
	out := make([]Partition, len(d.partitions))
	copy(out, d.partitions)
	return out, nil
}

func (d *StaticDiscoverer) Close() error { return nil }

// KafkaDiscoverer enumerates partitions through the Kafka admin API.
type KafkaDiscoverer struct {
	client *kgo.Client
	admin  *kadm.Client
	topics []string
	logger *logging.Logger
}

// NewKafka creates a discoverer against the given brokers. With an empty
// topics list every non-internal topic is scrubbed.
func NewKafka(brokers, topics []string, logger *logging.Logger) (*KafkaDiscoverer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("discovery: at least one broker is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("discovery: create client: %w", err)
	}

	return &KafkaDiscoverer{
		client: client,
		admin:  kadm.NewClient(client),
		topics: topics,
		logger: logger.Scoped("discovery"),
	}, nil
}

// Partitions lists the current scrub targets, sorted by topic then
// partition so scrubber allocation is stable across refreshes.
func (d *KafkaDiscoverer) Partitions(ctx context.Context) ([]Partition, error) {
	details, err := d.admin.ListTopics(ctx, d.topics...)
	if err != nil {
		return nil, fmt.Errorf("discovery: list topics: %w", err)
	}

	var out []Partition
	for topic, detail := range details {
		if detail.Err != nil {
			d.logger.Warnf("topic listing failed", map[string]any{
				"topic": topic,
				"error": detail.Err.Error(),
			})
			continue
		}
		if detail.IsInternal {
			continue
		}
		for id := range detail.Partitions {
			out = append(out, Partition{Topic: topic, Partition: id})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Partition < out[j].Partition
	})
	return out, nil
}

func (d *KafkaDiscoverer) Close() error {
	d.client.Close()
	return nil
}

var (
	_ Discoverer = (*StaticDiscoverer)(nil)
	_ Discoverer = (*KafkaDiscoverer)(nil)
)
