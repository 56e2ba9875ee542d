package config

import (
	"errors"
	"fmt"
)

// ScenarioType enumerates the closed set of simulator scenario kinds.
type ScenarioType uint8

const (
	ScenarioLoadTest ScenarioType = iota + 1
	ScenarioChaosTest
	ScenarioTransactionStress
	ScenarioLifecycleTest
	ScenarioCustom
)

func (t ScenarioType) String() string {
	switch t {
	case ScenarioLoadTest:
		return "LoadTest"
	case ScenarioChaosTest:
		return "ChaosTest"
	case ScenarioTransactionStress:
		return "TransactionStress"
	case ScenarioLifecycleTest:
		return "LifecycleTest"
	case ScenarioCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// ErrUnknownScenarioType is returned when a ScenarioConfig names a
// scenario_type outside the closed enumeration.
var ErrUnknownScenarioType = errors.New("config: unknown scenario type")

const maxScenarioServices = 64

// ServiceSpec describes one service participating in a simulated scenario.
type ServiceSpec struct {
	ServiceID     uint32
	Port          uint16
	StartDelayUS  uint64
}

// FaultConfig configures the probability and timing of injected faults.
// Probabilities are in [0, 1]; DelayMinUS <= DelayMaxUS.
type FaultConfig struct {
	CrashProbability       float64
	DelayProbability       float64
	ResourceExhaustionProb float64
	ConnectionFailureProb  float64
	DelayMinUS             uint64
	DelayMaxUS             uint64
}

// Validate checks FaultConfig's invariants.
func (f FaultConfig) Validate() error {
	for _, p := range []float64{f.CrashProbability, f.DelayProbability, f.ResourceExhaustionProb, f.ConnectionFailureProb} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%w: probability %v out of [0,1]", ErrIncompleteServiceConfig, p)
		}
	}
	if f.DelayMinUS > f.DelayMaxUS {
		return fmt.Errorf("%w: delay_min_us %d > delay_max_us %d", ErrIncompleteServiceConfig, f.DelayMinUS, f.DelayMaxUS)
	}
	return nil
}

// ScenarioConfig is the typed input to the scenario engine.
type ScenarioConfig struct {
	Name         string
	ScenarioType ScenarioType
	Services     []ServiceSpec
	DurationUS   uint64
	Seed         uint64
	Fault        FaultConfig
}

// Validate checks every ScenarioConfig invariant from spec.md §3.
func (c ScenarioConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name must be non-empty", ErrIncompleteServiceConfig)
	}
	if c.ScenarioType < ScenarioLoadTest || c.ScenarioType > ScenarioCustom {
		return fmt.Errorf("%w: %d", ErrUnknownScenarioType, c.ScenarioType)
	}
	if len(c.Services) > maxScenarioServices {
		return fmt.Errorf("%w: %d services exceeds cap %d", ErrLimitExceeded, len(c.Services), maxScenarioServices)
	}
	if c.DurationUS == 0 {
		return fmt.Errorf("%w: duration_us must be > 0", ErrIncompleteServiceConfig)
	}
	if c.Seed == 0 {
		return fmt.Errorf("%w: seed must be > 0", ErrIncompleteServiceConfig)
	}
	return c.Fault.Validate()
}
