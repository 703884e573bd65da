package build

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/AcaciaLinux/libpkgbuild/errdefs"
)

// chrootBin is the isolation primitive used to enter the build root.
const chrootBin = "/usr/bin/chroot"

// runScript writes the phase script into the build root and executes it
// there, returning the script's exit status.
func (c *Context) runScript(script []string, scriptName string) (int, error) {
	path := filepath.Join(c.config.BuildrootBuildDir(c.pkgbuild), scriptName)

	if err := writeScript(path, script); err != nil {
		return -1, err
	}

	wrapper := buildWrapper(c.pkgbuild.Name, c.pkgbuild.Version, scriptName)
	return c.exec(c.config.BuildDir(c.pkgbuild), wrapper)
}

// writeScript writes the script lines to path, one per line, overwriting
// any previous script of the same name.
func writeScript(path string, script []string) error {
	out, err := os.Create(path)
	if err != nil {
		return errdefs.Prepend("when creating build script", err)
	}
	defer out.Close()

	for _, line := range script {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return errdefs.Prepend("when populating build script", err)
		}
	}
	return nil
}

// buildWrapper renders the shell command the isolation primitive executes:
// it exports the package environment, enters /build, and hands off to the
// phase script.
func buildWrapper(name, version, scriptName string) string {
	return fmt.Sprintf("set -e && "+
		"export PKG_NAME=%s && "+
		"export PKG_VERSION=%s && "+
		"export PKG_ROOT=/target && "+
		"export PKG_INSTALL_DIR=$PKG_ROOT/data && "+
		"cd build && "+
		"/bin/sh /build/%s", name, version, scriptName)
}

// childHandle shares the spawned child between the waiting parent and the
// signal handler. kill is safe to call concurrently with the parent's wait
// and any number of times; once the child is reaped it is a no-op.
type childHandle struct {
	mu   sync.Mutex
	proc *os.Process
}

func (h *childHandle) kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.proc != nil {
		h.proc.Kill()
	}
}

func (h *childHandle) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.proc = nil
}

// chrootExec runs the wrapper inside buildDir via chroot, inheriting the
// parent's stdio. Interactive termination signals delivered to the parent
// are forwarded to the child; the parent then reaps it and returns its exit
// status. A non-zero exit is not an error here.
func chrootExec(buildDir, wrapper string) (int, error) {
	cmd := exec.Command(chrootBin, buildDir, "/bin/sh", "-c", wrapper)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return -1, errdefs.Wrap(errdefs.KindIO, err, "spawning build script")
	}

	handle := &childHandle{proc: cmd.Process}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				handle.kill()
			case <-done:
				return
			}
		}
	}()

	err := cmd.Wait()
	close(done)
	signal.Stop(sigCh)
	handle.clear()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return exitErr.ExitCode(), nil
		}
		return -1, errdefs.Wrap(errdefs.KindIO, err, "waiting for build script")
	}
	return 0, nil
}
