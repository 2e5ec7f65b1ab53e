// Package lifecycle owns a single run's temp directory and the process tree
// spawned against it: every cut/encode/score subprocess is started through
// this package so cancellation reaches the whole group and the temp dir is
// removed on every exit path (§4.9, §5 "Cancellation").
package lifecycle

import (
	"context"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/finchav/crfscout/internal/util"
)

// killGracePeriod is how long a subprocess gets to exit after SIGTERM
// before its process group is sent SIGKILL.
const killGracePeriod = 5 * time.Second

// Handle owns a run-scoped temp directory. It is the single owner the run's
// cut clips, encoded probe outputs, and parsed logs live under; Close is
// safe to call on every exit path, including after cancellation.
type Handle struct {
	Temp *util.TempDir
	keep bool
}

// NewHandle creates a run-scoped temp directory under baseDir, named with a
// leading dot per §3's "Temp files are rooted under a run-scoped directory
// whose name begins with `.`". keep suppresses Close's removal, for the
// CLI's --keep flag.
func NewHandle(baseDir string, keep bool) (*Handle, error) {
	temp, err := util.CreateTempDir(baseDir, ".crfscout")
	if err != nil {
		return nil, err
	}
	return &Handle{Temp: temp, keep: keep}, nil
}

// Close removes the run's temp directory unless the handle was created with
// keep=true. Idempotent.
func (h *Handle) Close() error {
	if h == nil || h.keep {
		return nil
	}
	return h.Temp.Cleanup()
}

// Command builds an *exec.Cmd for name/args that runs in its own process
// group and is torn down on ctx cancellation: a SIGTERM to the whole group,
// followed by a SIGKILL to the group after killGracePeriod if it hasn't
// exited. Every subprocess the search core spawns (cutter, encoder driver,
// scorer, probe) should go through this constructor rather than
// exec.CommandContext directly, so a single cancellation signal reaches
// every child regardless of which stage it's in.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		pgid := cmd.Process.Pid
		_ = unix.Kill(-pgid, unix.SIGTERM)
		go func() {
			time.Sleep(killGracePeriod)
			_ = unix.Kill(-pgid, unix.SIGKILL)
		}()
		return nil
	}
	return cmd
}
