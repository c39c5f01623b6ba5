package hub

import (
	"bytes"
	"fmt"
)

// ArchiveName is the vault name under which store snapshots are kept.
const ArchiveName = "snapshot"

// Archiver takes encrypted, versioned copies of the whole store off the
// machine and brings them back.
type Archiver struct {
	store      *Store
	vault      Vault
	encryptor  Encryptor
	codec      SnapshotCodec
	instanceID string
	logger     Logger
}

// NewArchiver creates an Archiver. instanceID namespaces archives in the vault.
func NewArchiver(store *Store, vault Vault, encryptor Encryptor, codec SnapshotCodec, instanceID string, logger Logger) *Archiver {
	return &Archiver{
		store:      store,
		vault:      vault,
		encryptor:  encryptor,
		codec:      codec,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Backup encrypts the current snapshot and uploads it as the next archive
// version. It returns the version written.
func (a *Archiver) Backup() (int64, error) {
	if !a.encryptor.IsConfigured() {
		return 0, fmt.Errorf("encryption keys are not configured")
	}

	accounts := a.store.Snapshot()

	var plain bytes.Buffer
	if err := a.codec.Encode(&plain, accounts); err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}

	var sealed bytes.Buffer
	if err := a.encryptor.Encrypt(&plain, &sealed); err != nil {
		return 0, fmt.Errorf("encrypting snapshot: %w", err)
	}

	current, err := a.vault.ArchiveVersion(a.instanceID, ArchiveName)
	if err != nil {
		return 0, fmt.Errorf("checking archive version: %w", err)
	}
	version := current + 1

	size := int64(sealed.Len())
	if err := a.vault.PutArchive(a.instanceID, ArchiveName, &sealed, size, version); err != nil {
		return 0, fmt.Errorf("uploading archive: %w", err)
	}

	a.logger.Info("backup uploaded", "version", version, "accounts", len(accounts), "bytes", size)
	return version, nil
}

// Restore downloads the latest archive, decrypts it with the key unlocked by
// passphrase and replaces the whole store with it. It returns the number of
// accounts restored.
func (a *Archiver) Restore(passphrase string) (int, error) {
	version, err := a.vault.ArchiveVersion(a.instanceID, ArchiveName)
	if err != nil {
		return 0, fmt.Errorf("checking archive version: %w", err)
	}
	if version == 0 {
		return 0, fmt.Errorf("no archive found for instance %s", a.instanceID)
	}

	dc, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking key: %w", err)
	}

	var sealed bytes.Buffer
	if err := a.vault.GetArchive(a.instanceID, ArchiveName, &sealed); err != nil {
		return 0, fmt.Errorf("downloading archive: %w", err)
	}

	var plain bytes.Buffer
	if err := dc.Decrypt(&sealed, &plain); err != nil {
		return 0, fmt.Errorf("decrypting archive: %w", err)
	}

	accounts, err := a.codec.Decode(&plain)
	if err != nil {
		return 0, fmt.Errorf("decoding archive: %w", err)
	}

	if err := a.store.Replace(accounts); err != nil {
		return 0, err
	}

	n := a.store.Len()
	a.logger.Info("backup restored", "version", version, "accounts", n)
	return n, nil
}
