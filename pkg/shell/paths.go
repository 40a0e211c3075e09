package shell

import (
	"os"
	"path/filepath"
)

// rcPath returns the default path of the rc file.
func rcPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "marsh", "rc.yaml")
}

// dbPath returns the default path of the history database.
func dbPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "marsh", "db.bolt")
}
