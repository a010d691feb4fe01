package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aescanero/swarmcore/pkg/adapters/events/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogMessages(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := logMessages(zap.New(core))

	err := handler(context.Background(), redis.RelayedMessage{
		StreamID: "1-0",
		ID:       "abc",
		Type:     "BATCH_COMPLETED",
		Data:     json.RawMessage(`{"tasks":3}`),
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("swarm message").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "BATCH_COMPLETED", fields["type"])
	assert.Equal(t, `{"tasks":3}`, fields["data"])
}
