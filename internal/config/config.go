// Package config defines the typed configuration surface L1NE's core
// consumes. The declarative file format that produces these values, and
// the CLI flags that select a config path, are external collaborators
// (see spec.md §1) — this package only defines and validates the values.
package config

import (
	"errors"
	"fmt"
)

// Bounds on RuntimeLimits fields, per spec.md §3.
const (
	MaxServiceInstances  = 64
	MaxProxyConnections  = 4096
	MaxProxyBufferSize   = 64 * 1024
	MaxCgroupMonitors    = 64
	MaxSystemdBufferSize = 16 * 1024
)

// ErrLimitExceeded is returned when a RuntimeLimits field is zero,
// negative, or above its documented cap.
var ErrLimitExceeded = errors.New("config: limit exceeded")

// ErrIncompleteServiceConfig is returned when a ServiceDescriptor is
// missing a required field.
var ErrIncompleteServiceConfig = errors.New("config: incomplete service config")

// RuntimeLimits is a validated, immutable-after-construction value object
// bounding every statically-allocated resource in the process.
type RuntimeLimits struct {
	ServiceInstancesCount uint32
	ProxyConnectionsMax   uint32
	ProxyBufferSize       uint32
	CgroupMonitorsCount   uint32
	SystemdBufferSize     uint32
}

// NewRuntimeLimits validates and returns l, or ErrLimitExceeded.
func NewRuntimeLimits(l RuntimeLimits) (RuntimeLimits, error) {
	type bound struct {
		name string
		val  uint32
		max  uint32
	}
	for _, b := range []bound{
		{"service_instances_count", l.ServiceInstancesCount, MaxServiceInstances},
		{"proxy_connections_max", l.ProxyConnectionsMax, MaxProxyConnections},
		{"proxy_buffer_size", l.ProxyBufferSize, MaxProxyBufferSize},
		{"cgroup_monitors_count", l.CgroupMonitorsCount, MaxCgroupMonitors},
		{"systemd_buffer_size", l.SystemdBufferSize, MaxSystemdBufferSize},
	} {
		if b.val == 0 || b.val > b.max {
			return RuntimeLimits{}, fmt.Errorf("%w: %s=%d (must be in (0, %d])", ErrLimitExceeded, b.name, b.val, b.max)
		}
	}
	return l, nil
}

// ServiceDescriptor describes one workload process to deploy.
type ServiceDescriptor struct {
	Name        string
	ExecPath    string // must be absolute
	Port        uint16 // must be in [1024, 65535]
	MemoryMB    uint32
	CPUPercent  uint32
	UID         uint32
	GID         uint32
}

const maxServiceNameLen = 128

// Validate checks the invariants spec.md §3 places on ServiceDescriptor.
func (s ServiceDescriptor) Validate() error {
	if s.Name == "" || len(s.Name) > maxServiceNameLen {
		return fmt.Errorf("%w: name empty or too long", ErrIncompleteServiceConfig)
	}
	if s.ExecPath == "" {
		return fmt.Errorf("%w: exec_path empty", ErrIncompleteServiceConfig)
	}
	if s.ExecPath[0] != '/' {
		return fmt.Errorf("%w: exec_path %q must be absolute", ErrIncompleteServiceConfig, s.ExecPath)
	}
	if s.Port < 1024 {
		return fmt.Errorf("%w: port %d out of [1024, 65535]", ErrIncompleteServiceConfig, s.Port)
	}
	return nil
}

// Config is the core's top-level input: resource limits plus the services
// to deploy.
type Config struct {
	Limits   RuntimeLimits
	Services []ServiceDescriptor
	BindAddr string
}

// Validate checks limits, every service descriptor, and that the service
// count fits within Limits.ServiceInstancesCount.
func (c Config) Validate() error {
	if _, err := NewRuntimeLimits(c.Limits); err != nil {
		return err
	}
	if uint32(len(c.Services)) > c.Limits.ServiceInstancesCount {
		return fmt.Errorf("%w: %d services exceeds service_instances_count=%d", ErrLimitExceeded, len(c.Services), c.Limits.ServiceInstancesCount)
	}
	seen := make(map[string]struct{}, len(c.Services))
	for _, s := range c.Services {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate service name %q", ErrIncompleteServiceConfig, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
