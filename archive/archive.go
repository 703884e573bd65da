// Package archive identifies source archives by their magic bytes and
// extracts them.
//
// Identification looks at the first 8 bytes only. Extraction overwrites
// existing files of the same name. Tar extraction gives regular files the
// permission bits and modification time the archive records; zip
// extraction creates files with the recorded permission bits and does not
// restore timestamps. Entry paths are joined through securejoin so a
// hostile archive cannot write outside the destination.
package archive

import (
	"archive/tar"
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/h2non/filetype"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/AcaciaLinux/libpkgbuild/errdefs"
)

// Format is a recognized archive container format.
type Format int

const (
	// FormatUnknown means the magic matched no known container.
	FormatUnknown Format = iota

	// FormatXz is an XZ stream, assumed to carry a tar archive.
	FormatXz

	// FormatGzip is a gzip stream, assumed to carry a tar archive.
	FormatGzip

	// FormatZip is a zip archive.
	FormatZip
)

// MagicLen is how many leading bytes Detect looks at.
const MagicLen = 8

// Detect classifies the archive format from the leading bytes of a file.
func Detect(head []byte) Format {
	switch {
	case filetype.Is(head, "xz"):
		return FormatXz
	case filetype.Is(head, "gz"):
		return FormatGzip
	case filetype.Is(head, "zip"):
		return FormatZip
	default:
		return FormatUnknown
	}
}

// Sniff reads the magic bytes from the start of f and rewinds it.
func Sniff(f *os.File) (Format, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, errdefs.Wrap(errdefs.KindIO, err, "seeking to start of file")
	}

	head := make([]byte, MagicLen)
	if _, err := io.ReadFull(f, head); err != nil {
		return FormatUnknown, errdefs.Wrap(errdefs.KindIO, err, "reading magic bytes")
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return FormatUnknown, errdefs.Wrap(errdefs.KindIO, err, "seeking to start of file")
	}

	return Detect(head), nil
}

// UnpackTarXz extracts the tar archive inside an XZ stream into dst.
func UnpackTarXz(r io.Reader, dst string) error {
	xzr, err := xz.NewReader(r)
	if err != nil {
		return errdefs.Wrap(errdefs.KindArchive, err, "opening xz stream")
	}
	return unpackTar(tar.NewReader(xzr), dst)
}

// UnpackTarGz extracts the tar archive inside a gzip stream into dst.
func UnpackTarGz(r io.Reader, dst string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return errdefs.Wrap(errdefs.KindArchive, err, "opening gzip stream")
	}
	defer gzr.Close()
	return unpackTar(tar.NewReader(gzr), dst)
}

// UnpackZip extracts a zip archive into dst.
func UnpackZip(ra io.ReaderAt, size int64, dst string) error {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return errdefs.Wrap(errdefs.KindArchive, err, "opening zip archive")
	}

	for _, entry := range zr.File {
		if err := extractZipEntry(entry, dst); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(entry *zip.File, dst string) error {
	path, err := securejoin.SecureJoin(dst, entry.Name)
	if err != nil {
		return errdefs.Wrap(errdefs.KindArchive, err, "resolving zip entry "+entry.Name)
	}

	info := entry.FileInfo()
	if info.IsDir() {
		if err := os.MkdirAll(path, info.Mode().Perm()); err != nil {
			return errdefs.Wrap(errdefs.KindIO, err, "creating directory "+path)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errdefs.Wrap(errdefs.KindIO, err, "creating parent of "+path)
	}

	src, err := entry.Open()
	if err != nil {
		return errdefs.Wrap(errdefs.KindArchive, err, "opening zip entry "+entry.Name)
	}
	defer src.Close()

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errdefs.Wrap(errdefs.KindIO, err, "creating "+path)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return errdefs.Wrap(errdefs.KindArchive, err, "extracting "+entry.Name)
	}
	return nil
}

// unpackTar walks a tar stream and materializes every entry under dst,
// overwriting on conflict.
func unpackTar(tr *tar.Reader, dst string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errdefs.Wrap(errdefs.KindArchive, err, "reading tar entry")
		}

		path, err := securejoin.SecureJoin(dst, header.Name)
		if err != nil {
			return errdefs.Wrap(errdefs.KindArchive, err, "resolving tar entry "+header.Name)
		}

		if err := extractTarEntry(tr, header, dst, path); err != nil {
			return err
		}
	}
}

func extractTarEntry(tr *tar.Reader, header *tar.Header, dst, path string) error {
	mode := header.FileInfo().Mode()

	switch header.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(path, mode.Perm()); err != nil {
			return errdefs.Wrap(errdefs.KindIO, err, "creating directory "+path)
		}

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errdefs.Wrap(errdefs.KindIO, err, "creating parent of "+path)
		}
		out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
		if err != nil {
			return errdefs.Wrap(errdefs.KindIO, err, "creating "+path)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return errdefs.Wrap(errdefs.KindArchive, err, "extracting "+header.Name)
		}
		out.Close()
		if err := os.Chmod(path, mode.Perm()); err != nil {
			return errdefs.Wrap(errdefs.KindIO, err, "setting mode of "+path)
		}
		if !header.ModTime.IsZero() {
			os.Chtimes(path, header.ModTime, header.ModTime)
		}

	case tar.TypeSymlink:
		os.Remove(path)
		if err := os.Symlink(header.Linkname, path); err != nil {
			return errdefs.Wrap(errdefs.KindIO, err, "creating symlink "+path)
		}

	case tar.TypeLink:
		// Hardlink targets are archive-relative.
		target, err := securejoin.SecureJoin(dst, header.Linkname)
		if err != nil {
			return errdefs.Wrap(errdefs.KindArchive, err, "resolving hardlink "+header.Name)
		}
		os.Remove(path)
		if err := os.Link(target, path); err != nil {
			return errdefs.Wrap(errdefs.KindIO, err, "creating hardlink "+path)
		}

	default:
		// Character/block devices and FIFOs do not belong in source
		// archives; skip them.
	}

	return nil
}
