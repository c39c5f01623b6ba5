package vault

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"habithub/internal/hub"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It keeps every archive in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	name     string
	archives map[string][]byte // "instanceID/name" -> archive
	versions map[string]int64  // "instanceID/name" -> version
	mu       sync.RWMutex
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:     name,
		archives: make(map[string][]byte),
		versions: make(map[string]int64),
	}
}

func archiveKey(instanceID, name string) string {
	return instanceID + "/" + name
}

// PutArchive stores a named archive for an instance.
func (m *MemoryVault) PutArchive(instanceID string, name string, r io.Reader, size int64, version int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := archiveKey(instanceID, name)
	m.archives[key] = data
	m.versions[key] = version
	return nil
}

// ArchiveVersion returns the version of a named archive.
// Returns 0 if nothing has been stored for this instance/name.
func (m *MemoryVault) ArchiveVersion(instanceID string, name string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.versions[archiveKey(instanceID, name)], nil
}

// GetArchive retrieves a named archive for an instance.
func (m *MemoryVault) GetArchive(instanceID string, name string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.archives[archiveKey(instanceID, name)]
	if !ok {
		return fmt.Errorf("archive %q not found for instance: %s", name, instanceID)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

var _ hub.Vault = (*MemoryVault)(nil)
