package main

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/l1ne-systems/l1ne/internal/config"
	"github.com/l1ne-systems/l1ne/internal/supervisor"
)

func TestRunScenario_LifecycleTestSucceeds(t *testing.T) {
	cfg := config.ScenarioConfig{
		Name:         "smoke",
		ScenarioType: config.ScenarioLifecycleTest,
		Services: []config.ServiceSpec{
			{ServiceID: 1, Port: 9090, StartDelayUS: 0},
		},
		DurationUS: 500_000,
		Seed:       7,
	}
	result, err := RunScenario(cfg)
	require.NoError(t, err)
	require.True(t, result.Success, result.ErrorMessage)
}

func TestRunScenario_RejectsInvalidConfig(t *testing.T) {
	cfg := config.ScenarioConfig{Name: "bad", Seed: 0}
	_, err := RunScenario(cfg)
	require.Error(t, err)
}

type nopProcessSupervisor struct{}

func (nopProcessSupervisor) StartUnit(supervisor.UnitSpec) error { return nil }
func (nopProcessSupervisor) UnitStatus(string) (supervisor.UnitRuntimeState, error) {
	return supervisor.UnitActive, nil
}
func (nopProcessSupervisor) StopUnit(string) error { return nil }

func TestRunSupervisor_DeploysAndServesUntilCanceled(t *testing.T) {
	selfExec, err := os.Executable()
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	bindAddr := ln.Addr().String()
	ln.Close()

	limits, err := config.NewRuntimeLimits(config.RuntimeLimits{
		ServiceInstancesCount: 64,
		ProxyConnectionsMax:   4096,
		ProxyBufferSize:       64 * 1024,
		CgroupMonitorsCount:   64,
		SystemdBufferSize:     16 * 1024,
	})
	require.NoError(t, err)

	cfg := config.Config{
		Limits:   limits,
		BindAddr: bindAddr,
		Services: []config.ServiceDescriptor{
			{Name: "svc", ExecPath: selfExec, Port: 18080},
		},
	}

	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = RunSupervisor(ctx, cfg, nopProcessSupervisor{}, dir)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
