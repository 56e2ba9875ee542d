// Command l1ne is the composition root for the L1NE single-node service
// orchestrator. It does not parse its own flags or config file format —
// those are external collaborators (spec.md §1) — it only exposes the
// two entrypoints a CLI front-end calls once a config.Config or
// config.ScenarioConfig has been parsed and validated.
package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/l1ne-systems/l1ne/internal/clock"
	"github.com/l1ne-systems/l1ne/internal/config"
	"github.com/l1ne-systems/l1ne/internal/logging"
	"github.com/l1ne-systems/l1ne/internal/proxy"
	"github.com/l1ne-systems/l1ne/internal/scenario"
	"github.com/l1ne-systems/l1ne/internal/supervisor"
	"github.com/l1ne-systems/l1ne/internal/supervisor/procstat"
	"github.com/l1ne-systems/l1ne/internal/wal"
)

func main() {
	logger := logging.New(os.Stderr)
	initRuntimeLimits(logger)

	fmt.Fprintln(os.Stderr, "l1ne: no CLI collaborator wired; see RunSupervisor/RunScenario")
	os.Exit(2)
}

// initRuntimeLimits sets GOMAXPROCS/GOMEMLIMIT from the surrounding
// cgroup, underneath RuntimeLimits' own application-level static
// allocation budget (spec.md §3). Best-effort: a container without
// cgroup limits leaves both untouched.
func initRuntimeLimits(logger logging.Logger) {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Info().Log(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warning().Err(err).Log("failed to set GOMAXPROCS from cgroup quota")
	}

	if _, err := memlimit.SetGoMemLimitWithOpts(
		memlimit.WithRatio(0.9),
		memlimit.WithProvider(memlimit.FromCgroup),
	); err != nil {
		logger.Warning().Err(err).Log("failed to set GOMEMLIMIT from cgroup limit")
	}
}

// RunSupervisor deploys cfg's services, binds a listener at cfg.BindAddr,
// and serves the bidirectional splice until ctx is canceled.
func RunSupervisor(ctx context.Context, cfg config.Config, process supervisor.ProcessSupervisor, stateDir string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("l1ne: invalid config: %w", err)
	}

	logger := logging.New(os.Stderr)
	initRuntimeLimits(logger)

	clk := clock.NewReal()

	walDir := stateDir
	if walDir == "" {
		walDir = "."
	}
	writer, err := wal.NewWriter(walDir, "l1ne", wal.WriterConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("l1ne: open WAL: %w", err)
	}
	defer writer.Close(ctx)

	sup := supervisor.New(cfg.Limits, process, clk, writer, logger, procstat.NewProcReader())
	sup.SetStateDir(stateDir)

	if err := sup.Deploy(ctx, cfg); err != nil {
		return fmt.Errorf("l1ne: deploy: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("l1ne: listen %s: %w", cfg.BindAddr, err)
	}
	defer ln.Close()

	splicer := proxy.NewSplicer(sup, logger)
	return splicer.Serve(ctx, ln)
}

// RunScenario runs a single scripted scenario to completion in-memory
// (spec.md §4.9) and returns its result; no filesystem or network I/O.
func RunScenario(cfg config.ScenarioConfig) (scenario.Result, error) {
	runner, err := scenario.NewRunner(cfg)
	if err != nil {
		return scenario.Result{}, fmt.Errorf("l1ne: invalid scenario config: %w", err)
	}
	return runner.Run(), nil
}
