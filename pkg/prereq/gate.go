// Package prereq verifies that the external toolchain a build depends on is
// actually installed before a build is allowed to start. Probes run
// concurrently and are re-runnable at any time via Recheck.
package prereq

import (
	"context"
	"sync"
	"time"

	"github.com/vaultbuild/vaultbuild/pkg/host"
	"github.com/vaultbuild/vaultbuild/pkg/telemetry"
)

// Track selects which toolchain a project builds with.
type Track string

const (
	// TrackPython builds through the Python interpreter and the native
	// code compiler.
	TrackPython Track = "python"

	// TrackNode builds through the Node.js runtime and its bundled
	// package runner.
	TrackNode Track = "node"
)

// Tool names as reported in Status entries.
const (
	ToolPython    = "python"
	ToolCompiler  = "nuitka"
	ToolNode      = "node"
	ToolPackager  = "packager"
	ToolInstaller = "installer"
)

// Status is the readiness of one probed tool.
type Status struct {
	// Name is the canonical tool name.
	Name string `json:"name"`

	// Installed reports whether the tool answered its probe.
	Installed bool `json:"installed"`

	// Version is the probed version string, when installed.
	Version string `json:"version,omitempty"`

	// Loading is true while a recheck for this tool is in flight. Readers
	// must not treat Installed as current while Loading is set.
	Loading bool `json:"loading"`
}

// Prober is the subset of host probing the gate needs.
type Prober interface {
	DetectPython(ctx context.Context) host.ToolInfo
	DetectNuitka(ctx context.Context) host.ToolInfo
	DetectNode(ctx context.Context) host.ToolInfo
	DetectPackager(ctx context.Context) host.ToolInfo
	DetectInstallerTool(ctx context.Context) host.ToolInfo
}

// Gate probes the local toolchain and answers readiness queries per track.
type Gate struct {
	prober  Prober
	logger  *telemetry.Logger
	metrics *telemetry.Metrics

	mu       sync.RWMutex
	statuses map[string]Status
}

// NewGate creates a gate with every tool in the loading state. Call Recheck
// to populate it.
func NewGate(prober Prober, logger *telemetry.Logger, metrics *telemetry.Metrics) *Gate {
	g := &Gate{
		prober:   prober,
		logger:   logger,
		metrics:  metrics,
		statuses: make(map[string]Status),
	}
	for _, name := range []string{ToolPython, ToolCompiler, ToolNode, ToolPackager, ToolInstaller} {
		g.statuses[name] = Status{Name: name, Loading: true}
	}
	return g
}

// Recheck re-runs every probe. All entries flip to loading before any probe
// result lands, so a reader never sees a stale verdict presented as current.
// Recheck blocks until every probe has finished.
func (g *Gate) Recheck(ctx context.Context) {
	g.mu.Lock()
	for name, st := range g.statuses {
		st.Loading = true
		g.statuses[name] = st
	}
	g.mu.Unlock()

	probes := []struct {
		name   string
		detect func(context.Context) host.ToolInfo
	}{
		{ToolPython, g.prober.DetectPython},
		{ToolCompiler, g.prober.DetectNuitka},
		{ToolNode, g.prober.DetectNode},
		{ToolPackager, g.prober.DetectPackager},
		{ToolInstaller, g.prober.DetectInstallerTool},
	}

	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func(name string, detect func(context.Context) host.ToolInfo) {
			defer wg.Done()

			start := time.Now()
			info := detect(ctx)
			outcome := "missing"
			if info.Found {
				outcome = "found"
			}
			if g.metrics != nil {
				g.metrics.RecordProbe(name, outcome, time.Since(start))
			}
			if g.logger != nil {
				g.logger.WithTool(name, info.Version).Debugf("probe finished: %s", outcome)
			}

			g.mu.Lock()
			g.statuses[name] = Status{
				Name:      name,
				Installed: info.Found,
				Version:   info.Version,
				Loading:   false,
			}
			g.mu.Unlock()
		}(p.name, p.detect)
	}
	wg.Wait()
}

// Statuses returns a snapshot of every tool's readiness.
func (g *Gate) Statuses() []Status {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Status, 0, len(g.statuses))
	for _, name := range []string{ToolPython, ToolCompiler, ToolNode, ToolPackager, ToolInstaller} {
		out = append(out, g.statuses[name])
	}
	return out
}

// Status returns one tool's readiness.
func (g *Gate) Status(name string) (Status, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st, ok := g.statuses[name]
	return st, ok
}

// AllReady reports whether the given track can build. The Python track needs
// both the interpreter and the compiler. The Node track needs only the
// runtime: the packager is invoked through the runtime's bundled tool runner,
// so its readiness is implied. The installer tool never gates readiness.
// A tool still loading counts as not ready.
func (g *Gate) AllReady(track Track) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := func(name string) bool {
		st := g.statuses[name]
		return st.Installed && !st.Loading
	}

	switch track {
	case TrackPython:
		return ready(ToolPython) && ready(ToolCompiler)
	case TrackNode:
		return ready(ToolNode)
	default:
		return false
	}
}

// MissingTools lists the tools blocking the given track, for error messages
// and doctor output.
func (g *Gate) MissingTools(track Track) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	required := map[Track][]string{
		TrackPython: {ToolPython, ToolCompiler},
		TrackNode:   {ToolNode},
	}[track]

	var missing []string
	for _, name := range required {
		st := g.statuses[name]
		if !st.Installed || st.Loading {
			missing = append(missing, name)
		}
	}
	return missing
}

// InstallerAvailable reports whether installer distributions can be produced.
// When false the portable distribution still works.
func (g *Gate) InstallerAvailable() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	st := g.statuses[ToolInstaller]
	return st.Installed && !st.Loading
}

// installCommands maps each tool to the command line that installs it.
var installCommands = map[string]string{
	ToolPython:    "https://www.python.org/downloads/",
	ToolCompiler:  "python -m pip install nuitka --upgrade",
	ToolNode:      "https://nodejs.org/en/download",
	ToolPackager:  "npm install -g npx",
	ToolInstaller: "https://nsis.sourceforge.io/Download",
}

// InstallCommand returns the remediation command or download location for a
// missing tool, or an empty string for unknown tools.
func InstallCommand(tool string) string {
	return installCommands[tool]
}
