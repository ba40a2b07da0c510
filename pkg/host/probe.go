package host

import (
	"context"
	"strings"
)

// ToolInfo is the outcome of probing one toolchain component.
type ToolInfo struct {
	// Name is the canonical tool name (python, nuitka, node, packager, installer).
	Name string `json:"name"`

	// Found reports whether the tool answered its version probe.
	Found bool `json:"found"`

	// Version is the first line of the tool's version output, if found.
	Version string `json:"version,omitempty"`
}

// Prober probes the local toolchain.
type Prober struct {
	runner CommandRunner
}

// NewProber creates a prober backed by the given runner.
func NewProber(runner CommandRunner) *Prober {
	return &Prober{runner: runner}
}

// DetectPython probes for a Python interpreter, preferring "python" and
// falling back to "python3".
func (p *Prober) DetectPython(ctx context.Context) ToolInfo {
	for _, name := range []string{"python", "python3"} {
		if out, err := p.runner.Run(ctx, name, "--version"); err == nil {
			return ToolInfo{Name: "python", Found: true, Version: firstLine(out)}
		}
	}
	return ToolInfo{Name: "python"}
}

// DetectNuitka probes for the Nuitka compiler through the Python module
// entry point, so it reflects the interpreter actually on PATH.
func (p *Prober) DetectNuitka(ctx context.Context) ToolInfo {
	for _, name := range []string{"python", "python3"} {
		if out, err := p.runner.Run(ctx, name, "-m", "nuitka", "--version"); err == nil {
			return ToolInfo{Name: "nuitka", Found: true, Version: firstLine(out)}
		}
	}
	return ToolInfo{Name: "nuitka"}
}

// DetectNode probes for the Node.js runtime.
func (p *Prober) DetectNode(ctx context.Context) ToolInfo {
	if out, err := p.runner.Run(ctx, "node", "--version"); err == nil {
		return ToolInfo{Name: "node", Found: true, Version: firstLine(out)}
	}
	return ToolInfo{Name: "node"}
}

// DetectPackager probes for the Node package runner used to drive the
// executable packager.
func (p *Prober) DetectPackager(ctx context.Context) ToolInfo {
	if out, err := p.runner.Run(ctx, "npx", "--version"); err == nil {
		return ToolInfo{Name: "packager", Found: true, Version: firstLine(out)}
	}
	return ToolInfo{Name: "packager"}
}

// DetectInstallerTool probes for the NSIS installer compiler. Its absence is
// not blocking; it only disables installer distributions.
func (p *Prober) DetectInstallerTool(ctx context.Context) ToolInfo {
	if out, err := p.runner.Run(ctx, "makensis", "-VERSION"); err == nil {
		return ToolInfo{Name: "installer", Found: true, Version: firstLine(out)}
	}
	return ToolInfo{Name: "installer"}
}

// firstLine trims the output to the leading line, which carries the version.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
