// Package artifact stores batch output files on the local filesystem.
package artifact

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"ArticlesClassifier/internal/domain"
	"ArticlesClassifier/internal/ports"
)

const bufSize = 64 * 1024

// FS writes artifacts into one flat directory. Writes are atomic: content goes to a temp
// file in the same directory, is synced and then renamed over the destination, so readers
// never observe a partial file.
type FS struct {
	root  string
	permF os.FileMode
	permD os.FileMode
}

var _ ports.ArtifactStore = (*FS)(nil)

// NewFS creates the store rooted at dir.
func NewFS(dir string) (*FS, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, domain.NewValidationError("artifact directory is required")
	}
	return &FS{root: dir, permF: 0o644, permD: 0o755}, nil
}

// Root is the output directory.
func (s *FS) Root() string {
	return s.root
}

// Write publishes name with whatever write produces.
func (s *FS) Write(ctx context.Context, name string, write func(w io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := s.mapPath(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, s.permD); err != nil {
		return errors.Wrap(err, "create artifact dir")
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, s.permF)

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriterSize(tmp, bufSize)
	if err := write(bw); err != nil {
		return fail(errors.Wrap(err, "write artifact"))
	}
	if err := bw.Flush(); err != nil {
		return fail(errors.Wrap(err, "flush artifact"))
	}
	if err := tmp.Sync(); err != nil {
		return fail(errors.Wrap(err, "sync artifact"))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "close artifact")
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrap(err, "publish artifact")
	}
	_ = syncDir(s.root)
	return nil
}

// Open returns a read-only handle to a published artifact.
func (s *FS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.mapPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.NewNotFoundError("artifact %s not found", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open artifact")
	}
	return f, nil
}

// mapPath rejects names that would leave the output directory or address temp files.
func (s *FS) mapPath(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) ||
		filepath.IsAbs(name) || filepath.VolumeName(name) != "" ||
		strings.HasPrefix(name, ".") {
		return "", domain.NewValidationError("invalid artifact name %q", name)
	}
	return filepath.Join(s.root, name), nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
