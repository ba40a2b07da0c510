package prereq

import (
	"context"
	"testing"

	"github.com/vaultbuild/vaultbuild/pkg/host"
)

// fakeProber returns canned probe results per tool name.
type fakeProber struct {
	found map[string]string // tool name -> version; absent means missing
}

func (f *fakeProber) info(name string) host.ToolInfo {
	version, ok := f.found[name]
	return host.ToolInfo{Name: name, Found: ok, Version: version}
}

func (f *fakeProber) DetectPython(ctx context.Context) host.ToolInfo {
	return f.info(ToolPython)
}

func (f *fakeProber) DetectNuitka(ctx context.Context) host.ToolInfo {
	return f.info(ToolCompiler)
}

func (f *fakeProber) DetectNode(ctx context.Context) host.ToolInfo {
	return f.info(ToolNode)
}

func (f *fakeProber) DetectPackager(ctx context.Context) host.ToolInfo {
	return f.info(ToolPackager)
}

func (f *fakeProber) DetectInstallerTool(ctx context.Context) host.ToolInfo {
	return f.info(ToolInstaller)
}

func newTestGate(t *testing.T, found map[string]string) *Gate {
	t.Helper()
	g := NewGate(&fakeProber{found: found}, nil, nil)
	g.Recheck(context.Background())
	return g
}

func TestAllReadyPythonTrack(t *testing.T) {
	tests := []struct {
		name  string
		found map[string]string
		want  bool
	}{
		{
			name:  "both installed",
			found: map[string]string{ToolPython: "Python 3.12.1", ToolCompiler: "2.4.8"},
			want:  true,
		},
		{
			name:  "compiler missing",
			found: map[string]string{ToolPython: "Python 3.12.1"},
			want:  false,
		},
		{
			name:  "runtime missing",
			found: map[string]string{ToolCompiler: "2.4.8"},
			want:  false,
		},
		{
			name:  "nothing installed",
			found: map[string]string{},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGate(t, tt.found)
			if got := g.AllReady(TrackPython); got != tt.want {
				t.Errorf("AllReady(python) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllReadyNodeTrackImpliesPackager(t *testing.T) {
	// Runtime alone is enough: the packager rides on the runtime's tool
	// runner.
	g := newTestGate(t, map[string]string{ToolNode: "v20.11.0"})

	if !g.AllReady(TrackNode) {
		t.Error("AllReady(node) = false with node installed")
	}
	if g.AllReady(TrackPython) {
		t.Error("AllReady(python) = true without python")
	}
}

func TestAllReadyUnknownTrack(t *testing.T) {
	g := newTestGate(t, map[string]string{
		ToolPython: "3", ToolCompiler: "2", ToolNode: "20",
	})
	if g.AllReady(Track("rust")) {
		t.Error("AllReady(rust) = true, want false for unknown track")
	}
}

func TestInstallerNeverGates(t *testing.T) {
	g := newTestGate(t, map[string]string{ToolPython: "3.12", ToolCompiler: "2.4"})

	if !g.AllReady(TrackPython) {
		t.Error("installer absence must not block readiness")
	}
	if g.InstallerAvailable() {
		t.Error("InstallerAvailable() = true, want false")
	}
}

func TestLoadingBeforeFirstRecheck(t *testing.T) {
	g := NewGate(&fakeProber{found: map[string]string{
		ToolPython: "3.12", ToolCompiler: "2.4",
	}}, nil, nil)

	// Every tool starts loading, so nothing is ready yet.
	if g.AllReady(TrackPython) {
		t.Error("AllReady = true before first recheck")
	}
	for _, st := range g.Statuses() {
		if !st.Loading {
			t.Errorf("%s not loading before first recheck", st.Name)
		}
	}

	g.Recheck(context.Background())

	if !g.AllReady(TrackPython) {
		t.Error("AllReady = false after recheck with tools installed")
	}
	for _, st := range g.Statuses() {
		if st.Loading {
			t.Errorf("%s still loading after recheck", st.Name)
		}
	}
}

func TestRecheckPicksUpInstalledTool(t *testing.T) {
	prober := &fakeProber{found: map[string]string{ToolPython: "3.12"}}
	g := NewGate(prober, nil, nil)
	g.Recheck(context.Background())

	if g.AllReady(TrackPython) {
		t.Fatal("AllReady = true with compiler missing")
	}

	prober.found[ToolCompiler] = "2.4.8"
	g.Recheck(context.Background())

	if !g.AllReady(TrackPython) {
		t.Error("AllReady = false after compiler installed and rechecked")
	}
	st, ok := g.Status(ToolCompiler)
	if !ok || st.Version != "2.4.8" {
		t.Errorf("Status(compiler) = %+v, %v", st, ok)
	}
}

func TestMissingTools(t *testing.T) {
	g := newTestGate(t, map[string]string{ToolPython: "3.12"})

	missing := g.MissingTools(TrackPython)
	if len(missing) != 1 || missing[0] != ToolCompiler {
		t.Errorf("MissingTools(python) = %v, want [%s]", missing, ToolCompiler)
	}
	if missing := g.MissingTools(TrackNode); len(missing) != 1 || missing[0] != ToolNode {
		t.Errorf("MissingTools(node) = %v, want [%s]", missing, ToolNode)
	}
}

func TestInstallCommand(t *testing.T) {
	if got := InstallCommand(ToolCompiler); got == "" {
		t.Error("InstallCommand(compiler) is empty")
	}
	if got := InstallCommand("unknown"); got != "" {
		t.Errorf("InstallCommand(unknown) = %q, want empty", got)
	}
}
