package testutil

import (
	"habithub/internal/encryption"
	"habithub/internal/hub"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() hub.Encryptor {
	return encryption.NewTestEncryptor()
}
