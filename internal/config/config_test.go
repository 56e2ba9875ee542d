package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validLimits() RuntimeLimits {
	return RuntimeLimits{
		ServiceInstancesCount: 64,
		ProxyConnectionsMax:   4096,
		ProxyBufferSize:       64 * 1024,
		CgroupMonitorsCount:   64,
		SystemdBufferSize:     16 * 1024,
	}
}

func TestNewRuntimeLimits_AcceptsInBoundValues(t *testing.T) {
	_, err := NewRuntimeLimits(validLimits())
	require.NoError(t, err)
}

func TestNewRuntimeLimits_RejectsZero(t *testing.T) {
	l := validLimits()
	l.ServiceInstancesCount = 0
	_, err := NewRuntimeLimits(l)
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestNewRuntimeLimits_RejectsAboveCap(t *testing.T) {
	l := validLimits()
	l.ProxyBufferSize = MaxProxyBufferSize + 1
	_, err := NewRuntimeLimits(l)
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestServiceDescriptor_ValidateRejectsRelativePath(t *testing.T) {
	s := ServiceDescriptor{Name: "api", ExecPath: "relative/path", Port: 8080}
	err := s.Validate()
	require.ErrorIs(t, err, ErrIncompleteServiceConfig)
}

func TestServiceDescriptor_ValidateRejectsLowPort(t *testing.T) {
	s := ServiceDescriptor{Name: "api", ExecPath: "/usr/bin/api", Port: 80}
	err := s.Validate()
	require.ErrorIs(t, err, ErrIncompleteServiceConfig)
}

func TestServiceDescriptor_ValidateAcceptsWellFormed(t *testing.T) {
	s := ServiceDescriptor{Name: "api", ExecPath: "/usr/bin/api", Port: 8080}
	require.NoError(t, s.Validate())
}

func TestConfig_ValidateRejectsDuplicateNames(t *testing.T) {
	c := Config{
		Limits: validLimits(),
		Services: []ServiceDescriptor{
			{Name: "api", ExecPath: "/usr/bin/api", Port: 8080},
			{Name: "api", ExecPath: "/usr/bin/api2", Port: 8081},
		},
	}
	err := c.Validate()
	require.ErrorIs(t, err, ErrIncompleteServiceConfig)
}

func TestConfig_ValidateRejectsTooManyServicesForLimit(t *testing.T) {
	limits := validLimits()
	limits.ServiceInstancesCount = 1
	c := Config{
		Limits: limits,
		Services: []ServiceDescriptor{
			{Name: "a", ExecPath: "/usr/bin/a", Port: 8080},
			{Name: "b", ExecPath: "/usr/bin/b", Port: 8081},
		},
	}
	err := c.Validate()
	require.ErrorIs(t, err, ErrLimitExceeded)
}

func TestFaultConfig_ValidateRejectsOutOfRangeProbability(t *testing.T) {
	f := FaultConfig{CrashProbability: 1.5}
	require.Error(t, f.Validate())
}

func TestFaultConfig_ValidateRejectsInvertedDelayBounds(t *testing.T) {
	f := FaultConfig{DelayMinUS: 100, DelayMaxUS: 50}
	require.Error(t, f.Validate())
}

func TestScenarioConfig_ValidateRejectsEmptyName(t *testing.T) {
	c := ScenarioConfig{ScenarioType: ScenarioLoadTest, DurationUS: 1000, Seed: 1}
	require.Error(t, c.Validate())
}

func TestScenarioConfig_ValidateRejectsUnknownType(t *testing.T) {
	c := ScenarioConfig{Name: "x", ScenarioType: ScenarioType(99), DurationUS: 1000, Seed: 1}
	require.ErrorIs(t, c.Validate(), ErrUnknownScenarioType)
}
