package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledWritesJSONLogs(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()

	p, err := Init(ctx, Config{Enabled: false, LogOutput: &buf})
	require.NoError(t, err)
	require.NotNil(t, p.Tracer)
	require.NotNil(t, p.Meter)
	require.NotNil(t, p.Logs)

	p.Logger.InfoContext(ctx, "rolled over week", "user_id", "alice", "to_week", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "rolled over week", record["msg"])
	assert.Equal(t, "alice", record["user_id"])
	assert.EqualValues(t, 7, record["to_week"])

	require.NoError(t, p.Shutdown(ctx))
}

func TestProviders_ShutdownEmpty(t *testing.T) {
	p := &Providers{}
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestConfig_ServiceName(t *testing.T) {
	assert.Equal(t, DefaultServiceName, Config{}.serviceName())
	assert.Equal(t, "weekplan-worker", Config{ServiceName: "weekplan-worker"}.serviceName())
}
