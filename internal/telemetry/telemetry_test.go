package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{}, "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_MissingEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{Enabled: true}, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
	assert.NoError(t, shutdown(context.Background()))
}

// Not parallel: installs global providers.
func TestSetup_Enabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{
		Enabled:        true,
		Endpoint:       "127.0.0.1:4317",
		Insecure:       true,
		MetricInterval: time.Hour,
	}, "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Nothing listens on the endpoint; the final export may fail but
	// shutdown must return once the deadline passes.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = shutdown(ctx)
}
