package config

import (
	"os"
	"path/filepath"
)

// defaultCachePath places the SQLite cache under the user config
// directory, falling back to the working directory when it cannot be
// resolved.
func defaultCachePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "organiza.db")
	}
	return filepath.Join(dir, "organiza", "cache.db")
}
