package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"neurolink/internal/media"
	"neurolink/internal/utils"
)

// DiskStager stages uploads under a local directory as file:// URIs.
type DiskStager struct {
	root string
}

var _ Stager = (*DiskStager)(nil)

// NewDiskStager uses dir, or a neurolink directory under the OS temp dir
// when dir is empty.
func NewDiskStager(dir string) (*DiskStager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "neurolink-uploads")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &DiskStager{root: abs}, nil
}

func (d *DiskStager) Scheme() string {
	return "file"
}

func (d *DiskStager) Stage(_ context.Context, prefix, fileName, _ string, body io.Reader) (string, error) {
	rel := filepath.Join(filepath.FromSlash(utils.KeyedNanoID(prefix)), filepath.Base(fileName))
	full := filepath.Join(d.root, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("write staged file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}

	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(full)}).String(), nil
}

func (d *DiskStager) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if _, err := d.within(uri); err != nil {
		return nil, err
	}
	return media.FileOpener{}.Open(ctx, uri)
}

func (d *DiskStager) Remove(_ context.Context, uri string) error {
	p, err := d.within(uri)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove staged file: %w", err)
	}

	// the per-upload directory is empty now
	_ = os.Remove(filepath.Dir(p))

	return nil
}

func (d *DiskStager) within(uri string) (string, error) {
	p, err := media.LocalPath(uri)
	if err != nil {
		return "", err
	}

	p = filepath.Clean(p)
	if !strings.HasPrefix(p, d.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the upload directory", uri)
	}

	return p, nil
}
