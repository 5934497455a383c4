package config

import (
	"os"
	"path/filepath"
)

// DataDirName is the workspace-relative directory holding all codelens state.
const DataDirName = ".codelens"

// ConfigFileName is the persisted configuration file inside the data directory.
const ConfigFileName = "config.json"

// OverlayFileNames are project-level YAML overlays checked in precedence order.
var OverlayFileNames = []string{".codelens.yaml", ".codelens.yml"}

// DataDir returns the workspace data directory for a given workspace root.
func DataDir(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, DataDirName)
}

// ConfigPath returns the path to the persisted config.json for a workspace.
func ConfigPath(workspaceRoot string) string {
	return filepath.Join(DataDir(workspaceRoot), ConfigFileName)
}

// FindProjectRoot walks up from startDir looking for a .git directory or an
// existing .codelens data directory, falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		if dirExists(filepath.Join(current, DataDirName)) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
