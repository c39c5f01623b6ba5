package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"habithub/internal/hub"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// Archives live in one directory per instance:
//
//	<root>/
//	  archives/
//	    <instanceID>/
//	      <name>.age       (encrypted archive)
//	      <name>.version   (decimal version number)
type FileSystemVault struct {
	name       string
	root       string
	archiveDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	archiveDir := filepath.Join(root, "archives")

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &FileSystemVault{
		name:       name,
		root:       root,
		archiveDir: archiveDir,
	}, nil
}

// PutArchive stores a named archive for an instance along with a version marker.
// The version file is written only after the archive is in place.
func (v *FileSystemVault) PutArchive(instanceID string, name string, r io.Reader, size int64, version int64) error {
	dir, err := v.instanceDir(instanceID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create instance directory: %w", err)
	}

	if err := writeFile(filepath.Join(dir, name+".age"), r, size); err != nil {
		return err
	}

	versionData := strconv.FormatInt(version, 10)
	return writeFile(filepath.Join(dir, name+".version"), strings.NewReader(versionData), int64(len(versionData)))
}

// ArchiveVersion returns the archive version for an instance.
// Returns 0 if no version file exists.
func (v *FileSystemVault) ArchiveVersion(instanceID string, name string) (int64, error) {
	dir, err := v.instanceDir(instanceID)
	if err != nil {
		return 0, err
	}
	data, err := os.ReadFile(filepath.Join(dir, name+".version"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// GetArchive retrieves a named archive for an instance and writes it to w.
func (v *FileSystemVault) GetArchive(instanceID string, name string, w io.Writer) error {
	dir, err := v.instanceDir(instanceID)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(dir, name+".age"))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("archive %q not found for instance: %s", name, instanceID)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.archiveDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// instanceDir rejects IDs that would escape the archive directory.
func (v *FileSystemVault) instanceDir(instanceID string) (string, error) {
	if instanceID == "" || instanceID != filepath.Base(instanceID) || instanceID == ".." || instanceID == "." {
		return "", fmt.Errorf("invalid instance id: %q", instanceID)
	}
	return filepath.Join(v.archiveDir, instanceID), nil
}

// writeFile writes data from r to destPath using atomic write (temp file + rename).
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ hub.Vault = (*FileSystemVault)(nil)
