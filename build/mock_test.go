package build

import (
	"sync"

	"github.com/AcaciaLinux/libpkgbuild/mount"
)

// mockMounter records mount and unmount events instead of touching the
// kernel. Handles it returns append "unmount <target>" to the shared event
// log when released, so tests can assert teardown ordering.
type mockMounter struct {
	mu     sync.Mutex
	events []string

	overlayErr error
	vkfsErr    error
	bindErr    error

	// Optional hooks observing filesystem state at mount time.
	onOverlay func(lower, work, upper, merged string)
	onBind    func(src, dst string)
}

func newMockMounter() *mockMounter {
	return &mockMounter{}
}

func (m *mockMounter) record(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockMounter) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	copy(out, m.events)
	return out
}

func (m *mockMounter) handle(target string) *mount.Mount {
	return mount.NewHandle(target, func() error {
		m.record("unmount " + target)
		return nil
	})
}

func (m *mockMounter) Overlay(lower, work, upper, merged string) (*mount.Mount, error) {
	if m.overlayErr != nil {
		return nil, m.overlayErr
	}
	if m.onOverlay != nil {
		m.onOverlay(lower, work, upper, merged)
	}
	m.record("mount overlay " + merged)
	return m.handle(merged), nil
}

func (m *mockMounter) VKFS(source, destination string) ([]*mount.Mount, error) {
	if m.vkfsErr != nil {
		return nil, m.vkfsErr
	}
	var handles []*mount.Mount
	for _, sub := range []string{"/dev", "/dev/pts", "/proc", "/sys", "/tmp"} {
		target := destination + sub
		m.record("mount vkfs " + target)
		handles = append(handles, m.handle(target))
	}
	return handles, nil
}

func (m *mockMounter) Bind(src, dst string) (*mount.Mount, error) {
	if m.bindErr != nil {
		return nil, m.bindErr
	}
	if m.onBind != nil {
		m.onBind(src, dst)
	}
	m.record("mount bind " + dst)
	return m.handle(dst), nil
}
