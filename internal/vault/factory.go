package vault

import (
	"fmt"
	"os"

	"habithub/internal/config"
	"habithub/internal/hub"
)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
// S3 static credentials are taken from HABITHUB_S3_ACCESS_KEY_ID and
// HABITHUB_S3_SECRET_ACCESS_KEY when set.
func NewVaultFromConfig(cfg config.VaultConfig) (hub.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		v, err := NewS3Vault(cfg.Name, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     os.Getenv("HABITHUB_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("HABITHUB_S3_SECRET_ACCESS_KEY"),
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		v, err := NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
