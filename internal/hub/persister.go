package hub

import "io"

// Persister is the durable-storage collaborator of the UserStore.
//
// The contract is whole-store snapshot: Save overwrites everything on every
// mutation, there are no incremental writes and no rollback if a write fails
// halfway. Account order is significant and must round-trip.
type Persister interface {
	// Load returns every stored account in stored order. It returns an empty
	// slice when there is no prior state.
	Load() ([]*Account, error)

	// Save replaces the stored snapshot with accounts.
	Save(accounts []*Account) error

	// Close releases any resources held by the persister.
	Close() error
}

// SnapshotCodec serializes a whole snapshot to a byte stream. Image payloads
// must round-trip byte for byte.
type SnapshotCodec interface {
	Encode(w io.Writer, accounts []*Account) error
	Decode(r io.Reader) ([]*Account, error)
}
