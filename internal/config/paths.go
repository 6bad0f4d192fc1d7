// ABOUTME: Default locations of the config file and the data directory
// ABOUTME: Follows ASSISTANT_CONFIG and the XDG base directory variables

package config

import (
	"os"
	"path/filepath"
)

// appDir is the directory name used under the XDG config and data homes.
const appDir = "assistant"

// DefaultPath returns the path to the config file of the named binary.
// Priority: ASSISTANT_CONFIG env var > XDG_CONFIG_HOME/assistant/<binary>.yaml > ~/.config/assistant/<binary>.yaml
func DefaultPath(binary string) string {
	if envPath := os.Getenv("ASSISTANT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return binary + ".yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, appDir, binary+".yaml")
}

// DataDir returns the directory holding the database.
// Priority: XDG_DATA_HOME/assistant > ~/.local/share/assistant
func DataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, appDir)
}
