package installer

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AcaciaLinux/libpkgbuild/archive"
	"github.com/AcaciaLinux/libpkgbuild/errdefs"
	"github.com/AcaciaLinux/libpkgbuild/log"
)

// Leaf talks to a leaf package mirror over HTTP and installs packages into
// a root directory.
type Leaf struct {
	mirror string
	root   string
	client *http.Client
	logger log.LibraryLogger
}

// NewLeaf creates a client for the given mirror base URL.
func NewLeaf(mirror string, logger log.LibraryLogger) *Leaf {
	if logger == nil {
		logger = log.NoOpLogger{}
	}
	return &Leaf{
		mirror: strings.TrimRight(mirror, "/"),
		client: &http.Client{Timeout: 10 * time.Minute},
		logger: logger,
	}
}

// SetRoot points subsequent Update and Install calls at path.
func (l *Leaf) SetRoot(path string) {
	l.root = path
}

// Update refreshes the package index for the current root. The index is
// stored under <root>/etc/leaf so tools inside the root can see it.
func (l *Leaf) Update() []error {
	indexDir := filepath.Join(l.root, "etc", "leaf")
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return []error{errdefs.Wrap(errdefs.KindInstaller, err, "creating index directory")}
	}

	indexPath := filepath.Join(indexDir, "index")
	out, err := os.Create(indexPath)
	if err != nil {
		return []error{errdefs.Wrap(errdefs.KindInstaller, err, "creating index file")}
	}
	defer out.Close()

	var errs []error
	err = l.Download(l.mirror+"/index", "package index", false, func(data []byte) bool {
		if _, err := out.Write(data); err != nil {
			errs = append(errs, errdefs.Wrap(errdefs.KindInstaller, err, "writing index"))
			return false
		}
		return true
	})
	if err != nil {
		errs = append(errs, errdefs.Prepend("updating package index", err))
	}
	return errs
}

// Install fetches each named package from the mirror and unpacks it into
// the current root.
func (l *Leaf) Install(packages []string) error {
	for _, pkg := range packages {
		if err := l.installOne(pkg); err != nil {
			return errdefs.Prepend("installing "+pkg, err)
		}
	}
	return nil
}

func (l *Leaf) installOne(pkg string) error {
	tmp, err := os.CreateTemp("", "leaf-*.lfpkg")
	if err != nil {
		return errdefs.Wrap(errdefs.KindInstaller, err, "creating staging file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	url := fmt.Sprintf("%s/packages/%s.tar.xz", l.mirror, pkg)
	err = l.Download(url, "package "+pkg, false, func(data []byte) bool {
		tmp.Write(data)
		return true
	})
	if err != nil {
		return err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return errdefs.Wrap(errdefs.KindInstaller, err, "rewinding staging file")
	}

	l.logger.Debug("Unpacking %s into %s", pkg, l.root)
	if err := archive.UnpackTarXz(tmp, l.root); err != nil {
		return err
	}
	return nil
}

// Download streams the resource at url into cb. Connection establishment is
// retried with exponential backoff; once the body is streaming, failures
// surface immediately. The callback returning false aborts the transfer
// without error, per the producer contract.
func (l *Leaf) Download(url, label string, progress bool, cb ChunkFunc) error {
	resp, err := backoff.RetryWithData(func() (*http.Response, error) {
		resp, err := l.client.Get(url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("server returned %s", resp.Status)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, backoff.Permanent(fmt.Errorf("fetching %s: %s", url, resp.Status))
		}
		return resp, nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4))
	if err != nil {
		return errdefs.Wrap(errdefs.KindInstaller, err, "downloading "+url)
	}
	defer resp.Body.Close()

	if progress {
		l.logger.Info("Downloading %s (%s)", label, url)
	}

	buf := make([]byte, 32*1024)
	var transferred int64
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			transferred += int64(n)
			if !cb(buf[:n]) {
				return nil
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errdefs.Wrap(errdefs.KindInstaller, err, "reading response body")
		}
	}

	if progress {
		l.logger.Info("Finished %s: %d bytes", label, transferred)
	}
	return nil
}
