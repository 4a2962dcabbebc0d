package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBootstrapTokenStaysOutOfLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var out bytes.Buffer
	expires := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	announceBootstrapToken(&out, zap.New(core), "staff-1", "header.payload.signature", expires)

	assert.Contains(t, out.String(), "header.payload.signature")
	assert.Contains(t, out.String(), "2024-03-04T10:00:00Z")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "bootstrap admin token issued", entry.Message)
	for key, value := range entry.ContextMap() {
		assert.NotEqual(t, "token", key)
		assert.NotContains(t, fmt.Sprint(value), "signature")
	}
}
