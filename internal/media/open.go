package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Opener resolves an attachment URI to its bytes. Transports call Open once
// per upload attempt.
type Opener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// FileOpener reads file:// URIs and bare paths.
type FileOpener struct{}

func (FileOpener) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	p, err := LocalPath(uri)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, nil
}

// SchemeOpener dispatches on the URI scheme. URIs without a scheme go to
// the "file" entry, or FileOpener when none is registered.
type SchemeOpener map[string]Opener

func (s SchemeOpener) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	scheme := "file"
	if u, err := url.Parse(uri); err == nil && len(u.Scheme) > 1 {
		scheme = strings.ToLower(u.Scheme)
	}

	if o, ok := s[scheme]; ok {
		return o.Open(ctx, uri)
	}

	if scheme == "file" {
		return FileOpener{}.Open(ctx, uri)
	}

	return nil, fmt.Errorf("no opener registered for %s attachments", scheme)
}

// LocalPath strips a file:// prefix. Single letter schemes are treated as
// Windows drive letters.
func LocalPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || len(u.Scheme) <= 1 {
		return uri, nil
	}

	if !strings.EqualFold(u.Scheme, "file") {
		return "", fmt.Errorf("%s is not a local file uri", uri)
	}

	return filepath.FromSlash(u.Path), nil
}

// Sniff detects a MIME type from content.
func Sniff(r io.Reader) (string, error) {
	m, err := mimetype.DetectReader(r)
	if err != nil {
		return "", fmt.Errorf("detect mime type: %w", err)
	}
	return normalizeMime(m.String()), nil
}

// SelectFile builds a selection for a local file the way a picker would,
// reporting size and a sniffed type. Duration stays unknown.
func SelectFile(path string) (SelectedMedia, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SelectedMedia{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return SelectedMedia{}, fmt.Errorf("%s is a directory", path)
	}

	m, err := mimetype.DetectFile(path)
	if err != nil {
		return SelectedMedia{}, fmt.Errorf("detect mime type of %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return SelectedMedia{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	return SelectedMedia{
		URI:       (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(),
		MimeType:  normalizeMime(m.String()),
		FileName:  filepath.Base(path),
		SizeBytes: info.Size(),
	}, nil
}
