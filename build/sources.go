package build

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/AcaciaLinux/libpkgbuild/archive"
	"github.com/AcaciaLinux/libpkgbuild/errdefs"
)

// PrepareSources fetches the recipe's source archive into the build root
// and extracts it when the format is recognized. A recipe without a source
// is a no-op.
func (c *Context) PrepareSources() error {
	if c.pkgbuild.Source == "" {
		return nil
	}
	return c.prepareMainSource(c.pkgbuild.Source)
}

// substitutePlaceholders expands the two well-known placeholders in a
// source URL. Unknown placeholders pass through unchanged.
func substitutePlaceholders(url, name, version string) string {
	url = strings.ReplaceAll(url, "$PKG_NAME", name)
	url = strings.ReplaceAll(url, "$PKG_VERSION", version)
	return url
}

// sourceFileName derives the local file name from a URL: the text after
// the final slash.
func sourceFileName(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}

// prepareMainSource downloads the main source, sniffs its magic bytes, and
// routes it to the matching extractor. Files of unrecognized format are
// left in place for the recipe scripts to deal with.
func (c *Context) prepareMainSource(sourceURL string) error {
	url := substitutePlaceholders(sourceURL, c.pkgbuild.Name, c.pkgbuild.Version)
	name := sourceFileName(url)

	buildDir := c.config.BuildrootBuildDir(c.pkgbuild)
	dstPath := filepath.Join(buildDir, name)

	c.logger.Info("Fetching source from %s to %s", url, dstPath)

	sourceFile, err := os.OpenFile(dstPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return errdefs.Prepend("open main source file handle at "+dstPath, err)
	}
	defer sourceFile.Close()

	err = c.installer.Download(url, "Downloading source file "+name, true,
		func(data []byte) bool {
			// Short writes are tolerated; the producer treats the
			// callback as best effort.
			sourceFile.Write(data)
			return true
		})
	if err != nil {
		return errdefs.Prepend("when fetching source from "+url, err)
	}

	format, err := archive.Sniff(sourceFile)
	if err != nil {
		return errdefs.Prepend("when reading magic bytes of source file "+dstPath, err)
	}

	switch format {
	case archive.FormatXz:
		c.logger.Info("Source is a XZ archive, extracting...")
		if err := archive.UnpackTarXz(sourceFile, buildDir); err != nil {
			return errdefs.Prepend("when extracting "+dstPath, err)
		}

	case archive.FormatGzip:
		c.logger.Info("Source is a GZ archive, extracting...")
		if err := archive.UnpackTarGz(sourceFile, buildDir); err != nil {
			return errdefs.Prepend("when extracting "+dstPath, err)
		}

	case archive.FormatZip:
		c.logger.Info("Source is a ZIP archive, extracting...")
		info, err := sourceFile.Stat()
		if err != nil {
			return errdefs.Prepend("when sizing source file "+dstPath, err)
		}
		if err := archive.UnpackZip(sourceFile, info.Size(), buildDir); err != nil {
			return errdefs.Prepend("when extracting "+dstPath, err)
		}

	default:
		c.logger.Info("Source format not recognized, leaving %s as-is", name)
	}

	return nil
}
