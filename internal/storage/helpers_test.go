package storage_test

import "habithub/internal/config"

func configFor(typ, path string) config.StoreConfig {
	return config.StoreConfig{Type: typ, Path: path}
}
