// Package config holds the builder configuration and derives every
// filesystem path a build uses from it.
//
// Path accessors are pure string concatenation. There is no normalization
// and no check that the result stays under Root; callers hand the builder a
// root they intend to be authoritative.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/AcaciaLinux/libpkgbuild/pkgbuild"
)

// BuildEnvironment names a preinstalled environment and the packages that
// make it up.
type BuildEnvironment struct {
	Name     string
	Packages []string
}

// BuilderConfig is the core configuration for a builder instance.
type BuilderConfig struct {
	// Root is the operation root. Nothing a build creates escapes it.
	Root string

	// Environment is installed into the overlay lower layer before
	// every build.
	Environment BuildEnvironment

	// MirrorURL is handed to the package installer.
	MirrorURL string

	// LaxPhases keeps the historical behavior of running the remaining
	// phases after one fails. Off by default: a failing phase aborts.
	LaxPhases bool
}

// Load reads a builder configuration from an INI file. A missing file
// yields the defaults.
func Load(path string) (*BuilderConfig, error) {
	cfg := &BuilderConfig{
		Root: "/var/lib/pkgbuild",
		Environment: BuildEnvironment{
			Name: "base",
		},
	}

	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	builder := file.Section("builder")
	if k := builder.Key("root").String(); k != "" {
		cfg.Root = k
	}
	if k := builder.Key("mirror").String(); k != "" {
		cfg.MirrorURL = k
	}
	cfg.LaxPhases = builder.Key("lax_phases").MustBool(false)

	env := file.Section("environment")
	if k := env.Key("name").String(); k != "" {
		cfg.Environment.Name = k
	}
	if k := env.Key("packages").String(); k != "" {
		for _, p := range strings.Split(k, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Environment.Packages = append(cfg.Environment.Packages, p)
			}
		}
	}

	return cfg, nil
}

// EnvironmentsDir is `<root>/environments`.
func (c *BuilderConfig) EnvironmentsDir() string {
	return filepath.Join(c.Root, "environments")
}

// CacheDir is `<root>/cache`.
func (c *BuilderConfig) CacheDir() string {
	return filepath.Join(c.Root, "cache")
}

// BuildsDir is `<root>/build`.
func (c *BuilderConfig) BuildsDir() string {
	return filepath.Join(c.Root, "build")
}

// TargetsDir is `<root>/target`, the home of build artifacts.
func (c *BuilderConfig) TargetsDir() string {
	return filepath.Join(c.Root, "target")
}

// EnvironmentRootDir is the root of the configured environment.
func (c *BuilderConfig) EnvironmentRootDir() string {
	return filepath.Join(c.EnvironmentsDir(), c.Environment.Name)
}

// OverlayWorkDir is the overlayfs `work` directory.
func (c *BuilderConfig) OverlayWorkDir() string {
	return filepath.Join(c.CacheDir(), "overlay_work")
}

// OverlayUpperDir is the overlayfs `upper` directory.
func (c *BuilderConfig) OverlayUpperDir() string {
	return filepath.Join(c.CacheDir(), "overlay_upper")
}

// BuildDir is the merged overlay root the build runs in.
func (c *BuilderConfig) BuildDir(pb *pkgbuild.PackageBuild) string {
	return filepath.Join(c.BuildsDir(),
		fmt.Sprintf("%s-%s-%d", pb.Name, pb.Version, pb.RealVersion))
}

// TargetDir is where the packaged artifact tree lands.
func (c *BuilderConfig) TargetDir(pb *pkgbuild.PackageBuild) string {
	return filepath.Join(c.TargetsDir(),
		fmt.Sprintf("%s-%s-%d", pb.Name, pb.Version, pb.RealVersion), "package")
}

// BuildrootTargetDir is the `target` directory within the build root.
func (c *BuilderConfig) BuildrootTargetDir(pb *pkgbuild.PackageBuild) string {
	return filepath.Join(c.BuildDir(pb), "target")
}

// BuildrootBuildDir is the `build` directory within the build root.
func (c *BuilderConfig) BuildrootBuildDir(pb *pkgbuild.PackageBuild) string {
	return filepath.Join(c.BuildDir(pb), "build")
}
