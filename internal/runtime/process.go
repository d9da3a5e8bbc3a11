package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
)

// ProcessRuntime runs worker processes on the local host. It implements
// the capacity-provider interface the pool controller drives: count,
// launch, terminate.
type ProcessRuntime struct {
	logger  zerolog.Logger
	command string
	args    []string

	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

func NewProcessRuntime(logger zerolog.Logger, command string, args []string) *ProcessRuntime {
	return &ProcessRuntime{
		logger:  logger.With().Str("component", "process-runtime").Logger(),
		command: command,
		args:    args,
		procs:   make(map[int]*exec.Cmd),
	}
}

// RunningCount returns how many workers are still alive. Exited workers
// are removed from the set by their reaper goroutines, so the map size is
// the live count.
func (r *ProcessRuntime) RunningCount(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs), nil
}

// LaunchWorkers starts n worker processes. A failure to start one worker
// stops the batch; already-started workers keep running.
func (r *ProcessRuntime) LaunchWorkers(ctx context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < n; i++ {
		cmd := exec.Command(r.command, r.args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("start worker %d of %d: %w", i+1, n, err)
		}

		pid := cmd.Process.Pid
		r.procs[pid] = cmd
		r.logger.Info().Int("pid", pid).Msg("worker launched")

		// The reaper goroutine is the only writer after Start: it waits for
		// the process and removes it from the set under the lock.
		go func() {
			err := cmd.Wait()
			r.mu.Lock()
			delete(r.procs, pid)
			r.mu.Unlock()
			if err != nil {
				r.logger.Warn().Int("pid", pid).Err(err).Msg("worker exited")
			} else {
				r.logger.Info().Int("pid", pid).Msg("worker exited")
			}
		}()
	}
	return nil
}

// TerminateWorkers sends SIGTERM to n workers. Workers finish their
// current transfer and exit; the claim queue never loses work either way.
func (r *ProcessRuntime) TerminateWorkers(ctx context.Context, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	terminated := 0
	for pid, cmd := range r.procs {
		if terminated >= n {
			break
		}
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			// Exited since launch; its reaper goroutine removes it.
			if errors.Is(err, os.ErrProcessDone) {
				continue
			}
			return fmt.Errorf("signal worker %d: %w", pid, err)
		}
		r.logger.Info().Int("pid", pid).Msg("worker termination requested")
		terminated++
	}
	return nil
}
