// Package build orchestrates one package build: it assembles the layered
// build root, stages sources into it, and runs the recipe phases inside it
// through the chroot isolation primitive.
package build

import (
	"errors"

	"github.com/AcaciaLinux/libpkgbuild/config"
	"github.com/AcaciaLinux/libpkgbuild/errdefs"
	"github.com/AcaciaLinux/libpkgbuild/installer"
	"github.com/AcaciaLinux/libpkgbuild/log"
	"github.com/AcaciaLinux/libpkgbuild/mount"
	"github.com/AcaciaLinux/libpkgbuild/pkgbuild"
	"github.com/AcaciaLinux/libpkgbuild/util"
)

// Context is a build context with valid mounts, config and recipe.
//
// It exclusively owns the mount handles it acquired; Close releases them in
// reverse acquisition order. The recipe and configuration are shared-read
// references held only for the context's lifetime. A context must not be
// shared between builds, and two contexts over the same root race on the
// overlay directories.
type Context struct {
	pkgbuild  *pkgbuild.PackageBuild
	config    *config.BuilderConfig
	installer installer.Installer
	logger    log.LibraryLogger

	mounts []*mount.Mount
	closed bool

	// exec runs a wrapper command inside the build root and reports the
	// exit code. Overridden in tests.
	exec func(buildDir, wrapper string) (int, error)
}

// New provisions a build context for the recipe: it cleans the writable
// directories, populates the environment root through the installer, stacks
// the overlay, mounts the virtual kernel filesystems, binds the artifact
// directory into the root, and installs the recipe's build dependencies
// into the assembled root.
//
// On success the returned context carries every mount handle; the caller
// must Close it. On error, everything mounted so far has been released.
func New(pb *pkgbuild.PackageBuild, cfg *config.BuilderConfig, inst installer.Installer, logger log.LibraryLogger) (*Context, error) {
	return NewWithMounter(pb, cfg, inst, logger, kernelMounter{})
}

// NewWithMounter is New with the mount seam substituted.
func NewWithMounter(pb *pkgbuild.PackageBuild, cfg *config.BuilderConfig, inst installer.Installer, logger log.LibraryLogger, m Mounter) (*Context, error) {
	if logger == nil {
		logger = log.NoOpLogger{}
	}

	c := &Context{
		pkgbuild:  pb,
		config:    cfg,
		installer: inst,
		logger:    logger,
		exec:      chrootExec,
	}

	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	logger.Info("Ensuring directories...")
	if err := util.CleanDir(cfg.OverlayUpperDir()); err != nil {
		return nil, errdefs.Prepend("cleaning overlay upper directory", err)
	}
	if err := util.CleanDir(cfg.BuildDir(pb)); err != nil {
		return nil, errdefs.Prepend("cleaning build directory", err)
	}
	if err := util.CleanDir(cfg.TargetDir(pb)); err != nil {
		return nil, errdefs.Prepend("cleaning target directory", err)
	}

	logger.Info("Installing '%s' environment packages to %s",
		cfg.Environment.Name, cfg.EnvironmentRootDir())
	inst.SetRoot(cfg.EnvironmentRootDir())
	if errs := inst.Update(); len(errs) > 0 {
		return nil, errdefs.Prepend("updating package index",
			errdefs.Wrap(errdefs.KindInstaller, errs[0], ""))
	}
	if err := inst.Install(cfg.Environment.Packages); err != nil {
		return nil, errdefs.Prepend("installing environment packages",
			errdefs.Wrap(errdefs.KindInstaller, err, ""))
	}

	logger.Info("Mounting overlay")
	overlay, err := m.Overlay(cfg.EnvironmentRootDir(), cfg.OverlayWorkDir(),
		cfg.OverlayUpperDir(), cfg.BuildDir(pb))
	if err != nil {
		return nil, errdefs.Prepend("when mounting overlay", err)
	}
	c.mounts = append(c.mounts, overlay)

	logger.Info("Mounting virtual kernel filesystems...")
	vkfs, err := m.VKFS("/", cfg.BuildDir(pb))
	if err != nil {
		return nil, errdefs.Prepend("when mounting virtual kernel filesystems", err)
	}
	c.mounts = append(c.mounts, vkfs...)

	logger.Info("Ensuring buildroot directories...")
	if err := util.CleanDir(cfg.BuildrootTargetDir(pb)); err != nil {
		return nil, errdefs.Prepend("when creating buildroot target directory", err)
	}
	if err := util.CleanDir(cfg.BuildrootBuildDir(pb)); err != nil {
		return nil, errdefs.Prepend("when creating buildroot build directory", err)
	}

	logger.Info("Mounting target...")
	bind, err := m.Bind(cfg.TargetDir(pb), cfg.BuildrootTargetDir(pb))
	if err != nil {
		return nil, errdefs.Prepend("when mounting target directory", err)
	}
	c.mounts = append(c.mounts, bind)

	logger.Info("Installing build dependencies")
	inst.SetRoot(cfg.BuildDir(pb))
	if len(pb.BuildDependencies) > 0 {
		if err := inst.Install(pb.BuildDependencies); err != nil {
			return nil, errdefs.Prepend("installing build dependencies",
				errdefs.Wrap(errdefs.KindInstaller, err, ""))
		}
	}

	ok = true
	return c, nil
}

// Close releases every mount the context holds, in reverse of acquisition
// order: the target bind first, then the virtual kernel filesystems, then
// the overlay. It is idempotent and runs on every exit path, so a context
// abandoned by a failing constructor or an aborted build leaves no mounts
// behind. Unmount errors are coalesced, not short-circuited: each handle is
// released regardless of what the ones before it reported.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	for i := len(c.mounts) - 1; i >= 0; i-- {
		if err := c.mounts[i].Unmount(); err != nil {
			errs = append(errs, err)
		}
	}
	c.mounts = nil
	return errors.Join(errs...)
}

// BuildPackage drives the build: sources are staged into the root, then
// each phase defined by the recipe runs in order. A phase that exits
// non-zero aborts the build unless the configuration opts into the lax
// behavior of running the remaining phases anyway.
func (c *Context) BuildPackage() error {
	if err := c.PrepareSources(); err != nil {
		return errdefs.Prepend("preparing sources", err)
	}

	for _, phase := range pkgbuild.Phases {
		script := c.pkgbuild.PhaseScript(phase)
		if len(script) == 0 {
			c.logger.Info("%s script does not exist, skipping", phase)
			continue
		}

		c.logger.Info("%s script exists, running...", phase)
		status, err := c.runScript(script, string(phase)+".sh")
		if err != nil {
			return errdefs.Prepend("running "+string(phase)+" script", err)
		}

		success := status == 0
		c.logger.Info("%s script is done: SUCCESS: %v", phase, success)

		if !success {
			if c.config.LaxPhases {
				c.logger.Error("%s script failed with exit status %d, continuing", phase, status)
				continue
			}
			return errdefs.Newf(errdefs.KindIO,
				"%s script failed with exit status %d", phase, status)
		}
	}

	return nil
}
