package media

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"habithub/internal/config"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

	l := NewLoader(config.MediaConfig{MaxImageBytes: 16})

	tests := []struct {
		name    string
		path    string
		wantExt string
		wantErr error
	}{
		{"png", writeFile(t, dir, "a.png", png), "png", nil},
		{"uppercase extension", writeFile(t, dir, "b.JPG", png), "jpg", nil},
		{"unsupported extension", writeFile(t, dir, "c.txt", png), "", ErrUnsupportedType},
		{"no extension", writeFile(t, dir, "d", png), "", ErrUnsupportedType},
		{"too large", writeFile(t, dir, "e.gif", bytes.Repeat([]byte{1}, 17)), "", ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Load(tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !bytes.Equal(got.Data, png) {
				t.Errorf("Data = %v, want %v", got.Data, png)
			}
			if got.Ext != tt.wantExt {
				t.Errorf("Ext = %q, want %q", got.Ext, tt.wantExt)
			}
		})
	}
}

func TestLoader_RejectsSpecialFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l := NewLoader(config.MediaConfig{})

	target := writeFile(t, dir, "real.png", []byte("img"))
	link := filepath.Join(dir, "link.png")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	subdir := filepath.Join(dir, "folder.png")
	if err := os.Mkdir(subdir, 0755); err != nil {
		t.Fatalf("Mkdir() error = %v", err)
	}

	for _, p := range []string{link, subdir, filepath.Join(dir, "missing.png"), writeFile(t, dir, "empty.png", nil)} {
		if _, err := l.Load(p); err == nil {
			t.Errorf("Load(%s) expected error", filepath.Base(p))
		}
	}
}

func TestNewLoader_Defaults(t *testing.T) {
	t.Parallel()
	l := NewLoader(config.MediaConfig{AllowedExtensions: []string{".PNG"}})

	if l.maxBytes != config.DefaultMaxImageBytes {
		t.Errorf("maxBytes = %d, want %d", l.maxBytes, config.DefaultMaxImageBytes)
	}
	if len(l.extensions) != 1 || l.extensions[0] != "png" {
		t.Errorf("extensions = %v, want [png]", l.extensions)
	}
}
