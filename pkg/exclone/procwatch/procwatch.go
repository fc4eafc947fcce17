// Package procwatch snapshots host processes so that processes spawned during
// a build can be terminated after a timeout.
package procwatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Snapshot maps process ids to executable names.
type Snapshot map[int32]string

// Watcher lists and terminates host processes.
type Watcher interface {
	Snapshot() (Snapshot, error)
	Terminate(pid int32, wait time.Duration) error
}

// HostWatcher watches processes whose executable name starts with Name,
// compared case-insensitively. An empty Name matches nothing.
type HostWatcher struct {
	Name string
}

// Snapshot lists matching processes.
func (w HostWatcher) Snapshot() (Snapshot, error) {
	snap := make(Snapshot)
	if strings.TrimSpace(w.Name) == "" {
		return snap, nil
	}
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if w.matches(name) {
			snap[p.Pid] = name
		}
	}
	return snap, nil
}

func (w HostWatcher) matches(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), strings.ToLower(strings.TrimSpace(w.Name)))
}

// Terminate kills pid and waits up to wait for it to exit.
func (w HostWatcher) Terminate(pid int32, wait time.Duration) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	if wait <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	for {
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("process %d still running after %s", pid, wait)
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// NewSince returns the ids in after that are absent from before, ascending.
func NewSince(before, after Snapshot) []int32 {
	var pids []int32
	for pid := range after {
		if _, ok := before[pid]; !ok {
			pids = append(pids, pid)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// TerminateNew terminates processes that appeared since before. Failures are
// logged and do not stop the sweep. It returns the ids that were terminated.
func TerminateNew(w Watcher, before Snapshot, wait time.Duration, logger *zap.Logger) ([]int32, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	after, err := w.Snapshot()
	if err != nil {
		return nil, err
	}
	var killed []int32
	for _, pid := range NewSince(before, after) {
		if err := w.Terminate(pid, wait); err != nil {
			logger.Warn("procwatch.terminate_failed", zap.Int32("pid", pid), zap.String("name", after[pid]), zap.Error(err))
			continue
		}
		logger.Info("procwatch.terminated", zap.Int32("pid", pid), zap.String("name", after[pid]))
		killed = append(killed, pid)
	}
	return killed, nil
}
