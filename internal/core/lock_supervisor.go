package core

import (
	"context"
	"time"

	"github.com/stasis-project/stasis/internal/log"
	"github.com/stasis-project/stasis/internal/supervisor"
)

// lockPollInterval is how often the lock supervisor checks whether a
// supervised lock process has exited once the session is locked.
// lockGracePeriod is the delay after a lock transition before the
// first poll, giving logind a moment to update LockedHint.
const (
	lockPollInterval = 500 * time.Millisecond
	lockGracePeriod  = 500 * time.Millisecond
)

// RunLockSupervisor waits for the session to become locked, then polls
// until it's released (either the supervised process exits, or logind
// reports LockedHint cleared for a lock this daemon didn't spawn
// itself), and advances the manager past the lock on release.
func RunLockSupervisor(ctx context.Context, m *Manager, super *supervisor.Supervisor) {
	for {
		if !m.waitForLock(ctx) {
			return
		}

		// Grace period: logind doesn't update LockedHint the instant
		// the lock is requested, so an immediate poll can read a false
		// "unlocked" for a lock that only just started.
		select {
		case <-time.After(lockGracePeriod):
		case <-m.Shutdown.Wait():
			return
		case <-ctx.Done():
			return
		}

		if !m.waitForUnlock(ctx, super) {
			return
		}
		m.Lock()
		log.Debug("session unlocked, resuming staged timeline")
		m.AdvancePastLock(ctx)
		m.Unlock()
	}
}

// waitForLock blocks until the session is locked, returning false only
// if the context was cancelled first.
func (m *Manager) waitForLock(ctx context.Context) bool {
	for {
		m.Lock()
		locked := m.State.Lock.IsLocked
		wait := m.LockNotify.Wait()
		m.Unlock()

		if locked {
			return true
		}

		select {
		case <-wait:
		case <-m.Shutdown.Wait():
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// waitForUnlock polls at lockPollInterval until the lock clears,
// returning false only if the context was cancelled first. Per spec
// §4.5 step 3, each poll tries logind first, then a known supervised
// process, then a process-name probe, and only assumes still-locked
// once none of those can answer.
func (m *Manager) waitForUnlock(ctx context.Context, super *supervisor.Supervisor) bool {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if locked, ok := super.IsSessionLockedViaLogind(); ok {
				if !locked {
					return true
				}
				continue
			}

			m.Lock()
			info := m.State.Lock.Process
			probeCmd := m.State.Lock.Command
			m.Unlock()

			if info != nil {
				if !supervisor.IsAlive(info) {
					return true
				}
				continue
			}

			if probeCmd != "" {
				if !supervisor.IsProcessNameRunning(probeCmd) {
					return true
				}
				continue
			}

			// Neither logind, a known process, nor a probe command
			// could answer: assume still locked.
		case <-m.Shutdown.Wait():
			return false
		case <-ctx.Done():
			return false
		}
	}
}
