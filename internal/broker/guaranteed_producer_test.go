package broker

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"changeprop/internal/constants"
)

func TestProduceRejectsEmptyKey(t *testing.T) {
	p := &GuaranteedProducer{}
	err := p.Produce(context.Background(), "change-prop.retry.r1", "", map[string]string{"x": "y"})
	require.Error(t, err)
	var emptyKey *EmptyKeyError
	assert.ErrorAs(t, err, &emptyKey)
}

func TestReserveRejectsDuplicateKey(t *testing.T) {
	p := &GuaranteedProducer{pending: make(map[string]*pendingProduce)}

	entry, ok := p.reserve("topic\x00key1")
	require.True(t, ok)
	require.NotNil(t, entry)

	_, ok = p.reserve("topic\x00key1")
	assert.False(t, ok)

	assert.Equal(t, 1, p.pendingCount())
}

func TestResolveDeliversToWaitingFutureAndClearsEntry(t *testing.T) {
	p := &GuaranteedProducer{pending: make(map[string]*pendingProduce)}

	entry, ok := p.reserve("topic\x00key1")
	require.True(t, ok)

	p.resolve("topic\x00key1", nil)

	select {
	case err := <-entry.resolved:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("resolve did not deliver to the waiting future")
	}
	assert.Equal(t, 0, p.pendingCount())
}

func TestResolveIsANoOpForAnAlreadyClearedKey(t *testing.T) {
	p := &GuaranteedProducer{pending: make(map[string]*pendingProduce)}

	p.reserve("topic\x00key1")
	p.resolve("topic\x00key1", nil)

	assert.NotPanics(t, func() {
		p.resolve("topic\x00key1", nil)
	})
}

func TestOnDeliveryReportResolvesByTopicAndKey(t *testing.T) {
	p := &GuaranteedProducer{pending: make(map[string]*pendingProduce)}

	entry, ok := p.reserve("change-prop.retry.r1\x00key1")
	require.True(t, ok)

	p.onDeliveryReport([]kafka.Message{
		{Topic: "change-prop.retry.r1", Key: []byte("key1")},
	}, nil)

	select {
	case err := <-entry.resolved:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("delivery report did not resolve the pending entry")
	}
}

func TestReapStaleResolvesTimedOutEntriesWithAnError(t *testing.T) {
	p := &GuaranteedProducer{pending: make(map[string]*pendingProduce)}

	stale := &pendingProduce{
		resolved:  make(chan error, 1),
		createdAt: time.Now().Add(-2 * constants.KafkaWriteTimeout),
	}
	p.pending["topic\x00stale-key"] = stale

	fresh, ok := p.reserve("topic\x00fresh-key")
	require.True(t, ok)

	p.reapStale()

	select {
	case err := <-stale.resolved:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("reapStale did not resolve the stale entry")
	}

	select {
	case <-fresh.resolved:
		t.Fatal("reapStale resolved a fresh entry")
	default:
	}
	assert.Equal(t, 1, p.pendingCount())
}

func TestDuplicateKeyErrorMessage(t *testing.T) {
	err := &DuplicateKeyError{Topic: "change-prop.retry.r1", Key: "req-1"}
	assert.Contains(t, err.Error(), "change-prop.retry.r1")
	assert.Contains(t, err.Error(), "req-1")
}

func TestEmptyKeyErrorMessage(t *testing.T) {
	err := &EmptyKeyError{Topic: "change-prop.retry.r1"}
	assert.Contains(t, err.Error(), "change-prop.retry.r1")
}
