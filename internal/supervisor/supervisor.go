// Package supervisor spawns and tracks the external processes Stasis
// hands actions off to: detached lock screens, blocking one-shot
// commands (the notify-send pre-warning), and the best-effort
// fire-and-wait pool used for everything else. It follows the same exec.Command/SysProcAttr
// plumbing fancylock's internal/lock.go uses to launch a locker and
// its children as a killable group.
package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"
)

// ProcessInfo identifies a process group spawned on the manager's
// behalf, enough to probe liveness and to kill it later without racing
// a recycled PID.
type ProcessInfo struct {
	PID                 int
	PGID                int
	Command             string
	ExpectedProcessName string
}

// backgroundSlots bounds the fire-and-wait pool RunBackground uses for
// non-blocking, non-lock action commands (spec §5: best-effort tasks,
// never queued, never allowed to pile up unbounded).
const backgroundSlots = 10

// Supervisor owns the process-spawning primitives and the logind
// D-Bus session handle used to corroborate lock state.
type Supervisor struct {
	sem *semaphore.Weighted

	mu          sync.Mutex
	sysBus      DbusConn
	sessionPath string
}

// DbusConn is the minimal surface Supervisor needs from *dbus.Conn,
// narrowed so tests can substitute a fake bus without pulling in the
// real one.
type DbusConn interface {
	Object(dest string, path string) BusObject
}

// BusObject is the minimal surface of dbus.BusObject Supervisor calls.
type BusObject interface {
	GetProperty(p string) (Variant, error)
}

// Variant mirrors the single field of dbus.Variant callers need.
type Variant struct {
	Value interface{}
}

// New constructs a Supervisor. conn may be nil; IsSessionLockedViaLogind
// then always returns ok=false and callers fall back to process-liveness
// checks only.
func New(conn DbusConn, sessionPath string) *Supervisor {
	return &Supervisor{
		sem:         semaphore.NewWeighted(backgroundSlots),
		sysBus:      conn,
		sessionPath: sessionPath,
	}
}

func expectedProcessName(cmdLine string) string {
	fields := strings.Fields(cmdLine)
	if len(fields) == 0 {
		return ""
	}
	return filepath.Base(fields[0])
}

func buildCmd(cmdLine string) *exec.Cmd {
	cmd := exec.Command("sh", "-c", cmdLine)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// SpawnDetached starts cmdLine in its own process group and returns
// immediately without waiting on it, the way fancylock launches the
// locker binary. Stdio is left unset, which connects the child to
// /dev/null exactly like a systemd-spawned unit with no controlling
// terminal.
func SpawnDetached(cmdLine string) (*ProcessInfo, error) {
	cmd := buildCmd(cmdLine)
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: cmdLine, Err: err}
	}
	pid := cmd.Process.Pid
	go cmd.Wait() // reap; caller tracks liveness via /proc, not via cmd.Wait's return

	return &ProcessInfo{
		PID:                 pid,
		PGID:                pid, // Setpgid with pgid 0 makes the new group's id equal to pid
		Command:             cmdLine,
		ExpectedProcessName: expectedProcessName(cmdLine),
	}, nil
}

// SpawnBlocking runs cmdLine to completion, failing with a TimeoutError
// if ctx is cancelled or the deadline elapses first, and an ExitError
// if the command runs but exits non-zero. The scheduler uses it for the
// notify-send pre-warning; action commands, pre_suspend_command
// included, go through RunBackground.
func SpawnBlocking(ctx context.Context, cmdLine string, timeout time.Duration) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", cmdLine)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() != nil {
		return &TimeoutError{Command: cmdLine, Timeout: timeout.String()}
	}
	if err != nil {
		return &ExitError{Command: cmdLine, Err: fmt.Errorf("%w: %s", err, stderr.String())}
	}
	return nil
}

// RunBackground runs cmdLine to completion on a pooled goroutine,
// dropping the result once log-worthy. It never blocks the caller
// beyond acquiring a pool slot, and silently skips the command if the
// pool is saturated rather than letting fire-and-wait work queue
// without bound.
func (s *Supervisor) RunBackground(ctx context.Context, cmdLine string) {
	if !s.sem.TryAcquire(1) {
		return
	}
	go func() {
		defer s.sem.Release(1)
		cmd := buildCmd(cmdLine)
		_ = cmd.Run()
	}()
}

// IsAlive reports whether info's process is still running in its
// process group, corroborated against ExpectedProcessName (when set)
// to avoid a false positive on a recycled PID, or, once that process
// is gone, whether any other process is still in group info.PGID.
func IsAlive(info *ProcessInfo) bool {
	if info == nil {
		return false
	}
	pgid, err := pgidOf(info.PID)
	if err != nil || (info.PGID != 0 && pgid != info.PGID) {
		if info.PGID <= 0 {
			return false
		}
		entries, _ := os.ReadDir("/proc")
		for _, e := range entries {
			if pid, err := strconv.Atoi(e.Name()); err == nil {
				if g, err := pgidOf(pid); err == nil && g == info.PGID {
					return true
				}
			}
		}
		return false
	}
	if info.ExpectedProcessName == "" {
		return true
	}
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", info.PID))
	if err != nil {
		return false
	}
	name := strings.TrimSpace(string(comm))
	return name == info.ExpectedProcessName || strings.HasPrefix(info.ExpectedProcessName, name)
}

// IsProcessNameRunning scans /proc for any process whose comm matches
// name, used as the lock probe's process-name fallback (§4.5 step 2c)
// when no ProcessInfo is known for the current lock, e.g. a lock
// detected via logind rather than spawned by Stasis itself.
func IsProcessNameRunning(name string) bool {
	if name == "" {
		return false
	}
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return false
	}
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		data, err := os.ReadFile("/proc/" + e.Name() + "/comm")
		if err != nil {
			continue
		}
		comm := strings.TrimSpace(string(data))
		if comm == name || strings.HasPrefix(name, comm) {
			return true
		}
	}
	return false
}

// KillGroup sends SIGTERM to info's process group, waits briefly, and
// escalates to SIGKILL if anything in the group is still alive.
func KillGroup(info *ProcessInfo) {
	if info == nil || info.PGID <= 0 {
		return
	}
	_ = unix.Kill(-info.PGID, syscall.SIGTERM)
	time.Sleep(500 * time.Millisecond)
	if IsAlive(info) {
		_ = unix.Kill(-info.PGID, syscall.SIGKILL)
	}
}

// pgidOf reads field 5 (pgrp) of /proc/<pid>/stat.
func pgidOf(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	// Fields after the comm field (which may contain spaces inside
	// parens) start right after the closing ')'.
	idx := bytes.LastIndexByte(data, ')')
	if idx < 0 || idx+2 >= len(data) {
		return 0, fmt.Errorf("unexpected /proc/%d/stat format", pid)
	}
	fields := strings.Fields(string(data[idx+2:]))
	if len(fields) < 3 {
		return 0, fmt.Errorf("unexpected /proc/%d/stat format", pid)
	}
	return strconv.Atoi(fields[2])
}
