// Package media reads image attachments from disk for new posts.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"habithub/internal/config"
	"habithub/internal/hub"
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
)

// Loader validates and reads image files.
type Loader struct {
	maxBytes   int64
	extensions []string
}

// NewLoader creates a Loader from configuration. Extensions are compared
// case-insensitively, with or without a leading dot.
func NewLoader(cfg config.MediaConfig) *Loader {
	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxImageBytes
	}
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = config.DefaultImageExtensions
	}
	normalized := make([]string, len(exts))
	for i, e := range exts {
		normalized[i] = normalizeExt(e)
	}
	return &Loader{maxBytes: maxBytes, extensions: normalized}
}

// Load resolves rawPath and returns its contents as an attachment. Only
// regular files with an allowed extension are accepted; symlinks, devices,
// pipes and sockets are rejected.
func (l *Loader) Load(rawPath string) (*hub.Attachment, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	ext := normalizeExt(filepath.Ext(absPath))
	if !slices.Contains(l.extensions, ext) {
		return nil, fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedType, filepath.Ext(absPath), strings.Join(l.extensions, ", "))
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlinks not supported: %s", absPath)
	case mode&os.ModeDevice != 0:
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	case mode&os.ModeNamedPipe != 0:
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	case mode&os.ModeSocket != 0:
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	case info.IsDir():
		return nil, fmt.Errorf("cannot attach a directory: %s", absPath)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, info.Size(), l.maxBytes)
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	// The file may have grown since Lstat.
	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, l.maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image file is empty: %s", absPath)
	}

	return &hub.Attachment{Data: data, Ext: ext}, nil
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
