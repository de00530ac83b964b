package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/conf"
)

func TestInit_NoDSNIsNoop(t *testing.T) {
	flush, err := Init(conf.SentrySettings{}, "test")
	require.NoError(t, err)
	require.NotNil(t, flush)
	assert.NotPanics(t, flush)
	assert.False(t, Enabled())

	assert.NotPanics(t, func() {
		CaptureError(errors.New("boom"), "test", map[string]string{"host": "x"})
		CapturePanic("boom", "test")
	})
}

func TestInit_InvalidDSN(t *testing.T) {
	_, err := Init(conf.SentrySettings{DSN: "::not a dsn::"}, "test")
	require.Error(t, err)
}
