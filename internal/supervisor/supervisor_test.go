package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectedProcessName(t *testing.T) {
	assert.Equal(t, "loginctl", expectedProcessName("loginctl lock-session"))
	assert.Equal(t, "brightnessctl", expectedProcessName("/usr/bin/brightnessctl -s set 10%-"))
	assert.Equal(t, "", expectedProcessName("   "))
}

func TestSpawnDetachedAndIsAlive(t *testing.T) {
	info, err := SpawnDetached("sleep 0.2")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, info.PID, info.PGID)

	assert.True(t, IsAlive(info))
	time.Sleep(400 * time.Millisecond)
	assert.False(t, IsAlive(info))
}

func TestIsAliveNilIsFalse(t *testing.T) {
	assert.False(t, IsAlive(nil))
}

func TestSpawnBlockingSucceeds(t *testing.T) {
	err := SpawnBlocking(context.Background(), "true", time.Second)
	assert.NoError(t, err)
}

func TestSpawnBlockingExitErrorOnFailure(t *testing.T) {
	err := SpawnBlocking(context.Background(), "false", time.Second)
	require.Error(t, err)
	var exitErr *ExitError
	assert.ErrorAs(t, err, &exitErr)
}

func TestSpawnBlockingTimeout(t *testing.T) {
	err := SpawnBlocking(context.Background(), "sleep 1", 50*time.Millisecond)
	require.Error(t, err)
	var timeoutErr *TimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}

func TestRunBackgroundRespectsPoolCap(t *testing.T) {
	s := New(nil, "")
	ctx := context.Background()
	for i := 0; i < backgroundSlots+5; i++ {
		s.RunBackground(ctx, "sleep 0.3")
	}
	// TryAcquire silently drops work past the cap rather than blocking
	// the caller; every slot is still held by a running sleep.
	assert.False(t, s.sem.TryAcquire(1), "all background slots should be in use")
}

func TestIsSessionLockedViaLogindNoConnReturnsNotOk(t *testing.T) {
	s := New(nil, "")
	_, ok := s.IsSessionLockedViaLogind()
	assert.False(t, ok)
}
