// Package pathresolve reconciles a logical, server-recorded entry-file path
// with a project folder the user selected on their own machine.
//
// The entry file is recorded relative to the uploaded project root (for
// example "test_project/src/main.py"), but the locally selected folder may
// itself already be a sub-path of that logical path (the user selected
// ".../test_project/src" directly). Resolve strips the overlapping prefix so
// the compiler toolchain receives a path relative to the selected folder.
package pathresolve

import "strings"

// Resolve returns entryFile rewritten to be relative to selectedFolder.
//
// Both inputs are normalized to forward-slash separators. Candidate suffixes
// of selectedFolder are tried from the shortest (final segment) to the
// longest (the whole path); the first suffix that prefixes entryFile wins and
// is stripped. If no suffix matches, entryFile is returned unchanged and is
// assumed to already be relative to the selected folder.
//
// Shortest-suffix-first is deliberate and pinned by tests: with a repeated
// folder name at multiple depths the shallowest overlap wins. Changing this
// to deepest-match needs product confirmation.
func Resolve(entryFile, selectedFolder string) string {
	entry := normalize(entryFile)
	folder := strings.Trim(normalize(selectedFolder), "/")
	if entry == "" || folder == "" {
		return entry
	}

	segments := strings.Split(folder, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		suffix := strings.Join(segments[i:], "/")
		if suffix == "" {
			continue
		}
		if strings.HasPrefix(entry, suffix+"/") {
			return strings.TrimPrefix(entry, suffix+"/")
		}
	}

	return entry
}

// normalize converts backslash separators to forward slashes.
func normalize(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
