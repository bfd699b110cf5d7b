package relay

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// StartDaemon re-executes the current binary with args, detached in its
// own session, stdout/stderr appended to the gateway log. The pid is
// written to the pid file.
func StartDaemon(paths Paths, args []string) (int, error) {
	if err := EnsureLayout(paths); err != nil {
		return 0, err
	}

	pid, running, stale := PIDState(paths.PIDFile)
	if running {
		return pid, fmt.Errorf("gateway already running (pid=%d)", pid)
	}
	if stale {
		_ = os.Remove(paths.PIDFile)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}
	logHandle, err := os.OpenFile(paths.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open gateway log: %w", err)
	}
	defer logHandle.Close()

	cmd := exec.Command(exe, args...)
	cmd.Stdout = logHandle
	cmd.Stderr = logHandle
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start gateway daemon: %w", err)
	}
	pid = cmd.Process.Pid
	if err := os.WriteFile(paths.PIDFile, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return 0, fmt.Errorf("write gateway pid file: %w", err)
	}
	_ = cmd.Process.Release()
	return pid, nil
}

// StopDaemon terminates the daemon recorded in the pid file: SIGTERM,
// then SIGKILL after a grace period. Missing or stale pid files are
// cleaned up quietly.
func StopDaemon(paths Paths) (string, error) {
	pid, running, stale := PIDState(paths.PIDFile)
	if !running {
		_ = os.Remove(paths.PIDFile)
		if stale {
			return fmt.Sprintf("gateway stopped (stale pid removed: %d)", pid), nil
		}
		return "gateway is not running", nil
	}

	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Signal(syscall.SIGTERM)
	}
	for i := 0; i < 30; i++ {
		if !pidRunning(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if pidRunning(pid) {
		if proc, err := os.FindProcess(pid); err == nil {
			_ = proc.Signal(syscall.SIGKILL)
		}
	}
	_ = os.Remove(paths.PIDFile)
	return fmt.Sprintf("gateway stopped (pid=%d)", pid), nil
}

// PIDState reads the pid file and reports (pid, running, stale).
func PIDState(pidFile string) (int, bool, bool) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, false, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false, true
	}
	if pidRunning(pid) {
		return pid, true, false
	}
	return pid, false, true
}

func pidRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
