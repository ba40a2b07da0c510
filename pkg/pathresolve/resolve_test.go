package pathresolve

import "testing"

// TestResolve covers the suffix-overlap matching between the logical entry
// path and the locally selected folder.
func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		folder   string
		expected string
	}{
		{
			name:     "two segment overlap",
			entry:    "test_project/src/main.js",
			folder:   "/u/test_project/src",
			expected: "main.js",
		},
		{
			name:     "single segment overlap",
			entry:    "test_project/main.py",
			folder:   "/home/user/test_project",
			expected: "main.py",
		},
		{
			name:     "no overlap returns entry unchanged",
			entry:    "main.js",
			folder:   "/u/anything",
			expected: "main.js",
		},
		{
			name:     "nested entry without overlap",
			entry:    "src/app/main.py",
			folder:   "/home/user/projects/demo",
			expected: "src/app/main.py",
		},
		{
			name:     "windows separators in selected folder",
			entry:    "test_project/src/main.py",
			folder:   `C:\Users\dev\test_project\src`,
			expected: "main.py",
		},
		{
			name:     "windows separators in entry file",
			entry:    `test_project\src\main.py`,
			folder:   "/u/test_project/src",
			expected: "main.py",
		},
		{
			name:     "trailing slash on folder",
			entry:    "demo/run.py",
			folder:   "/srv/demo/",
			expected: "run.py",
		},
		{
			name:     "empty entry",
			entry:    "",
			folder:   "/u/test_project",
			expected: "",
		},
		{
			name:     "empty folder",
			entry:    "main.py",
			folder:   "",
			expected: "main.py",
		},
		{
			// Pins the shortest-suffix-first behavior: the final "src"
			// segment matches before the longer "src/src" suffix does,
			// so only one level is stripped.
			name:     "repeated segment strips shallowest overlap",
			entry:    "src/app/main.py",
			folder:   "/work/src/src",
			expected: "app/main.py",
		},
		{
			name:     "partial segment name does not match",
			entry:    "srcmore/main.py",
			folder:   "/work/src",
			expected: "srcmore/main.py",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.entry, tt.folder)
			if got != tt.expected {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.entry, tt.folder, got, tt.expected)
			}
		})
	}
}
