package commands

import (
	"context"
	"fmt"

	"github.com/vaultbuild/vaultbuild/pkg/buildstate"
	"github.com/vaultbuild/vaultbuild/pkg/compiler/client"
	"github.com/vaultbuild/vaultbuild/pkg/config"
	"github.com/vaultbuild/vaultbuild/pkg/events"
	"github.com/vaultbuild/vaultbuild/pkg/host"
	"github.com/vaultbuild/vaultbuild/pkg/orchestrator"
	"github.com/vaultbuild/vaultbuild/pkg/prereq"
	"github.com/vaultbuild/vaultbuild/pkg/stores"
	"github.com/vaultbuild/vaultbuild/pkg/telemetry"
	"github.com/vaultbuild/vaultbuild/pkg/wizard"
)

// app wires the engine together for one command invocation.
type app struct {
	cfg     *config.Config
	tel     *telemetry.Telemetry
	logger  *telemetry.Logger
	durable stores.Store
	state   *buildstate.Store
	gate    *prereq.Gate
	bridge  *events.Bridge
	machine *wizard.Machine

	// Set by startCompiler; nil for commands that never touch the
	// compiler service.
	client     *client.Client
	controller *orchestrator.Controller
	pool       *orchestrator.Pool
}

// newApp loads configuration and brings up everything except the compiler
// subprocess.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(&cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	durable, err := stores.NewSQLiteStore(stores.Config{Path: cfg.DatabasePath()})
	if err != nil {
		return nil, err
	}
	if err := durable.Init(ctx); err != nil {
		return nil, err
	}
	if err := durable.Migrate(ctx); err != nil {
		return nil, err
	}

	prober := host.NewProber(&host.ExecRunner{Timeout: cfg.Compiler.ProbeTimeout})
	gate := prereq.NewGate(prober, tel.Logger.NewComponentLogger("prereq"), tel.Metrics)

	state := buildstate.NewStore()
	bridge := events.NewBridge(state, durable, tel.Logger.NewComponentLogger("events"), tel.Metrics)
	machine := wizard.NewMachine(state, durable, tel.Logger.NewComponentLogger("wizard"), tel.Metrics,
		wizard.WithTTL(cfg.SessionTTL), wizard.WithUploadDir(cfg.UploadDir))

	return &app{
		cfg:     cfg,
		tel:     tel,
		logger:  tel.Logger,
		durable: durable,
		state:   state,
		gate:    gate,
		bridge:  bridge,
		machine: machine,
	}, nil
}

// startCompiler launches the compiler service subprocess and the event
// bridge loop, then wires the build controller.
func (a *app) startCompiler(ctx context.Context) error {
	clientCfg := &client.Config{
		Transport: &client.ExecTransport{
			Command: a.cfg.Compiler.Command,
			Args:    a.cfg.Compiler.Args,
		},
		StartupTimeout: a.cfg.Compiler.StartupTimeout,
	}

	c, err := client.NewClient(clientCfg)
	if err != nil {
		return err
	}
	if err := c.Start(ctx, clientCfg); err != nil {
		return fmt.Errorf("failed to start compiler service: %w", err)
	}

	go a.bridge.Run(ctx, c.Events(), c.Results())

	a.client = c
	a.pool = orchestrator.NewPool(a.cfg.Compiler.MaxConcurrent, a.tel.Metrics)
	a.controller = orchestrator.NewController(
		a.gate, a.state, a.bridge, c, a.pool, a.durable,
		a.logger.NewComponentLogger("orchestrator"), a.tel.Metrics)
	return nil
}

// Close shuts the app down in reverse order of construction.
func (a *app) Close(ctx context.Context) {
	if a.client != nil {
		if err := a.client.Close(ctx); err != nil {
			a.logger.WithError(err).Warn("failed to stop compiler service")
		}
	}
	if err := a.durable.Close(); err != nil {
		a.logger.WithError(err).Warn("failed to close store")
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("failed to shut down telemetry")
	}
}

// trackFor maps a scanned project layout onto a toolchain track, defaulting
// to python for unrecognized layouts.
func trackFor(folder string) prereq.Track {
	ps, err := host.ScanProjectStructure(folder)
	if err != nil || ps.Track != "node" {
		return prereq.TrackPython
	}
	return prereq.TrackNode
}
