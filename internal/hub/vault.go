package hub

import "io"

// Vault is an off-machine destination for encrypted store archives.
// Archives are namespaced by instance ID so several installations can share
// one vault.
type Vault interface {
	// PutArchive stores a named archive for an instance.
	// size is the number of bytes that will be read from r.
	// version is stored alongside the archive for consistency checks.
	PutArchive(instanceID string, name string, r io.Reader, size int64, version int64) error

	// GetArchive retrieves a named archive and writes it to w.
	GetArchive(instanceID string, name string, w io.Writer) error

	// ArchiveVersion returns the version of a named archive.
	// Returns 0 if nothing has been stored under that name.
	ArchiveVersion(instanceID string, name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible.
	ValidateSetup() error
}
