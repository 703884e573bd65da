package build

import "github.com/AcaciaLinux/libpkgbuild/mount"

// Mounter is the seam between the build context and the kernel mount
// operations. The default implementation issues real mount syscalls; tests
// substitute a recording implementation so teardown ordering and directory
// state can be verified without privileges.
type Mounter interface {
	// Overlay stacks an overlayfs: read-only lower, writable upper,
	// kernel work directory, presented at merged.
	Overlay(lower, work, upper, merged string) (*mount.Mount, error)

	// VKFS mounts the virtual kernel filesystems from source into
	// destination, returning handles in mount order.
	VKFS(source, destination string) ([]*mount.Mount, error)

	// Bind bind-mounts src onto dst.
	Bind(src, dst string) (*mount.Mount, error)
}

// kernelMounter issues real mount syscalls through the mount package.
type kernelMounter struct{}

func (kernelMounter) Overlay(lower, work, upper, merged string) (*mount.Mount, error) {
	return mount.Overlay(lower, work, upper, merged)
}

func (kernelMounter) VKFS(source, destination string) ([]*mount.Mount, error) {
	return mount.VKFS(source, destination)
}

func (kernelMounter) Bind(src, dst string) (*mount.Mount, error) {
	return mount.Bind(src, dst)
}
