package host

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// pythonEntryNames are entry point candidates for python projects, in
// preference order.
var pythonEntryNames = []string{"main.py", "app.py", "run.py", "server.py", "__main__.py"}

// nodeEntryNames are entry point candidates for node projects, in
// preference order.
var nodeEntryNames = []string{"index.js", "main.js", "app.js", "server.js", "start.js"}

// dataDirNames are directory names treated as bundled data.
var dataDirNames = map[string]bool{
	"data":      true,
	"assets":    true,
	"static":    true,
	"templates": true,
	"resources": true,
}

// skipDirNames are directories never descended into during a scan.
var skipDirNames = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"dist":         true,
	"build":        true,
}

// ProjectStructure summarizes an uploaded project's layout for the wizard.
type ProjectStructure struct {
	// Root is the scanned directory.
	Root string `json:"root"`

	// Track is the detected toolchain track: python, node or unknown.
	Track string `json:"track"`

	// Packages are root-relative python package directories.
	Packages []string `json:"packages,omitempty"`

	// DataDirs are root-relative data directories worth bundling.
	DataDirs []string `json:"data_dirs,omitempty"`

	// EntryCandidates are root-relative entry point candidates, best first.
	EntryCandidates []string `json:"entry_candidates,omitempty"`

	// HasRequirements reports a requirements.txt at the root.
	HasRequirements bool `json:"has_requirements"`

	// HasPackageJSON reports a package.json at the root.
	HasPackageJSON bool `json:"has_package_json"`

	// EnvFiles are root-relative env files found in the project.
	EnvFiles []string `json:"env_files,omitempty"`

	// EnvKeys are the variable names declared across all env files.
	EnvKeys []string `json:"env_keys,omitempty"`

	// HasFrontend reports a nested package.json under a python project,
	// indicating a bundled web frontend.
	HasFrontend bool `json:"has_frontend"`
}

// ScanProjectStructure walks an uploaded project and summarizes its layout.
func ScanProjectStructure(root string) (*ProjectStructure, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root is not a directory: %s", root)
	}

	ps := &ProjectStructure{Root: root}

	var pythonEntries, nodeEntries []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if skipDirNames[d.Name()] {
				return filepath.SkipDir
			}
			if dataDirNames[d.Name()] {
				ps.DataDirs = append(ps.DataDirs, filepath.ToSlash(rel))
			}
			if FileExists(filepath.Join(path, "__init__.py")) {
				ps.Packages = append(ps.Packages, filepath.ToSlash(rel))
			}
			return nil
		}

		name := d.Name()
		relSlash := filepath.ToSlash(rel)

		switch {
		case containsName(pythonEntryNames, name):
			pythonEntries = append(pythonEntries, relSlash)
		case containsName(nodeEntryNames, name):
			nodeEntries = append(nodeEntries, relSlash)
		}

		if rel == "requirements.txt" {
			ps.HasRequirements = true
		}
		if rel == "package.json" {
			ps.HasPackageJSON = true
		}
		if name == "package.json" && rel != "package.json" {
			ps.HasFrontend = true
		}
		if strings.HasPrefix(name, ".env") {
			ps.EnvFiles = append(ps.EnvFiles, relSlash)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	sortEntriesByPreference(pythonEntries, pythonEntryNames)
	sortEntriesByPreference(nodeEntries, nodeEntryNames)

	switch {
	case len(pythonEntries) > 0 || ps.HasRequirements:
		ps.Track = "python"
		ps.EntryCandidates = append(pythonEntries, nodeEntries...)
	case len(nodeEntries) > 0 || ps.HasPackageJSON:
		ps.Track = "node"
		ps.EntryCandidates = append(nodeEntries, pythonEntries...)
		ps.HasFrontend = false
	default:
		ps.Track = "unknown"
	}

	for _, envFile := range ps.EnvFiles {
		values, err := ReadEnvFileValues(filepath.Join(root, filepath.FromSlash(envFile)))
		if err != nil {
			continue
		}
		for key := range values {
			ps.EnvKeys = append(ps.EnvKeys, key)
		}
	}
	sort.Strings(ps.EnvKeys)

	return ps, nil
}

// containsName reports whether name is in the candidate list.
func containsName(candidates []string, name string) bool {
	for _, c := range candidates {
		if c == name {
			return true
		}
	}
	return false
}

// sortEntriesByPreference orders entries by candidate rank first, then by
// path depth so root-level entries win over nested ones.
func sortEntriesByPreference(entries []string, order []string) {
	rank := func(entry string) int {
		base := filepath.Base(entry)
		for i, name := range order {
			if name == base {
				return i
			}
		}
		return len(order)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		di := strings.Count(entries[i], "/")
		dj := strings.Count(entries[j], "/")
		if di != dj {
			return di < dj
		}
		return rank(entries[i]) < rank(entries[j])
	})
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
