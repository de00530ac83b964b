//go:build integration

package hostprobe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/hostprobe"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/testutil/containers"
)

func TestSSHProbe_SampleAgainstContainer(t *testing.T) {
	sshd, err := containers.NewSSHContainer(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, sshd.Terminate()) })

	dir := hostprobe.NewDirectory([]conf.HostSettings{sshd.HostSettings("sshd")})
	host, err := dir.Lookup("sshd")
	require.NoError(t, err)

	probe := hostprobe.NewSSHProbe(logger.NewNop())

	// The user account is created by the init scripts shortly after the
	// port opens.
	var reading hostprobe.Reading
	err = containers.RetryWithBackoff(t.Context(), 6, 500*time.Millisecond, 4*time.Second, func() error {
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
		defer cancel()
		reading, err = probe.Sample(ctx, host)
		return err
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, reading.CPUPercent, 0.0)
	assert.LessOrEqual(t, reading.CPUPercent, 100.0)
	assert.Greater(t, reading.MemoryPercent, 0.0)
	assert.Greater(t, reading.DiskPercent, 0.0)
	assert.GreaterOrEqual(t, reading.Load1m, 0.0)
}

func TestSSHProbe_WrongUserFails(t *testing.T) {
	sshd, err := containers.NewSSHContainer(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, sshd.Terminate()) })

	settings := sshd.HostSettings("sshd")
	settings.User = "intruder"
	host, err := hostprobe.NewDirectory([]conf.HostSettings{settings}).Lookup("sshd")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	_, err = hostprobe.NewSSHProbe(logger.NewNop()).Sample(ctx, host)
	require.Error(t, err)
}
