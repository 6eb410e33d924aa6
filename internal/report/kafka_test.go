package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKafkaEmitterValidatesConfig(t *testing.T) {
	_, err := NewKafkaEmitter(KafkaConfig{Topic: "scrub-reports"}, nil)
	assert.Error(t, err)

	_, err = NewKafkaEmitter(KafkaConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}

func TestKafkaEmitterCloseIsIdempotent(t *testing.T) {
	e, err := NewKafkaEmitter(KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "scrub-reports",
	}, nil)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}
