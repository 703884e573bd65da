// Package mount assembles the layered build root: an overlayfs stack, the
// virtual kernel filesystems a build script needs inside a changed root,
// and bind mounts.
//
// Every operation returns scoped handles. A handle exists iff its mount is
// live; releasing it unmounts. The overlay detaches lazily so descendants
// still held by a shutting-down script runner do not wedge teardown; VKFS
// and bind handles unmount with force.
package mount

import (
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/AcaciaLinux/libpkgbuild/errdefs"
)

// Mount is a scoped handle to one live mount point.
type Mount struct {
	target  string
	flags   int
	mu      sync.Mutex
	done    bool
	unmount func() error
}

// Target returns the path the handle is mounted at.
func (m *Mount) Target() string {
	return m.target
}

// Unmount releases the mount. It is idempotent: the first call performs the
// unmount, later calls are no-ops.
func (m *Mount) Unmount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return nil
	}
	m.done = true

	if m.unmount != nil {
		return m.unmount()
	}
	if err := unix.Unmount(m.target, m.flags); err != nil {
		return errdefs.Wrap(errdefs.KindMount, err, "unmounting "+m.target)
	}
	return nil
}

// NewHandle builds a handle around a custom unmount function. Tests use it
// to observe teardown ordering without touching the kernel.
func NewHandle(target string, unmount func() error) *Mount {
	return &Mount{target: target, unmount: unmount}
}

// mountSpec describes one mount to perform.
type mountSpec struct {
	source      string
	target      string
	fstype      string
	flags       uintptr
	data        string
	unmountWith int
}

// overlayData renders the overlayfs mount data string.
func overlayData(lower, work, upper string) string {
	return "lowerdir=" + lower + ",workdir=" + work + ",upperdir=" + upper
}

// Overlay mounts an overlayfs at merged, composed of the read-only lower
// layer, the writable upper layer, and the kernel work directory. All four
// directories are created if absent. The handle detaches lazily on release,
// and no handle is returned on failure, so there is never partial state to
// clean up.
func Overlay(lower, work, upper, merged string) (*Mount, error) {
	for _, dir := range []string{lower, upper, work, merged} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errdefs.Wrap(errdefs.KindMount, err, "creating overlay directory")
		}
	}

	data := overlayData(lower, work, upper)
	if err := unix.Mount("overlay", merged, "overlay", 0, data); err != nil {
		return nil, errdefs.Wrap(errdefs.KindMount, err, "mounting overlay at "+merged)
	}

	return &Mount{target: merged, flags: unix.MNT_DETACH}, nil
}

// vkfsPlan lists the virtual kernel filesystems mounted into a build root,
// in mount order. The order is load bearing: devpts lands inside the dev
// bind, and reversing the list yields a safe teardown.
func vkfsPlan(source, destination string) []mountSpec {
	return []mountSpec{
		{
			source:      filepath.Join(source, "dev"),
			target:      filepath.Join(destination, "dev"),
			flags:       unix.MS_BIND,
			unmountWith: unix.MNT_FORCE,
		},
		{
			source:      "devpts",
			target:      filepath.Join(destination, "dev", "pts"),
			fstype:      "devpts",
			unmountWith: unix.MNT_FORCE,
		},
		{
			source:      "proc",
			target:      filepath.Join(destination, "proc"),
			fstype:      "proc",
			unmountWith: unix.MNT_FORCE,
		},
		{
			source:      "sysfs",
			target:      filepath.Join(destination, "sys"),
			fstype:      "sysfs",
			unmountWith: unix.MNT_FORCE,
		},
		{
			source:      "tmpfs",
			target:      filepath.Join(destination, "tmp"),
			fstype:      "tmpfs",
			unmountWith: unix.MNT_FORCE,
		},
	}
}

// VKFS mounts the virtual kernel filesystems from source into destination:
// a bind of dev, then devpts, proc, sysfs, and a tmpfs at /tmp. Handles are
// returned in mount order so that dropping them in reverse tears down
// safely. If any mount fails, the ones already made are unmounted before
// the error returns.
func VKFS(source, destination string) ([]*Mount, error) {
	var mounts []*Mount

	for _, spec := range vkfsPlan(source, destination) {
		handle, err := perform(spec)
		if err != nil {
			for i := len(mounts) - 1; i >= 0; i-- {
				mounts[i].Unmount()
			}
			return nil, err
		}
		mounts = append(mounts, handle)
	}

	return mounts, nil
}

// Bind bind-mounts src onto dst, creating dst if absent. The handle
// unmounts with force on release.
func Bind(src, dst string) (*Mount, error) {
	return perform(mountSpec{
		source:      src,
		target:      dst,
		flags:       unix.MS_BIND,
		unmountWith: unix.MNT_FORCE,
	})
}

func perform(spec mountSpec) (*Mount, error) {
	if err := os.MkdirAll(spec.target, 0o755); err != nil {
		return nil, errdefs.Wrap(errdefs.KindMount, err, "creating mount point "+spec.target)
	}

	if err := unix.Mount(spec.source, spec.target, spec.fstype, spec.flags, spec.data); err != nil {
		return nil, errdefs.Wrap(errdefs.KindMount, err, "mounting "+spec.target)
	}

	return &Mount{target: spec.target, flags: spec.unmountWith}, nil
}
