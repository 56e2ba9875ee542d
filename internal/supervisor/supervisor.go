package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/l1ne-systems/l1ne/internal/clock"
	"github.com/l1ne-systems/l1ne/internal/config"
	"github.com/l1ne-systems/l1ne/internal/contract"
	"github.com/l1ne-systems/l1ne/internal/logging"
	"github.com/l1ne-systems/l1ne/internal/substrate"
	"github.com/l1ne-systems/l1ne/internal/supervisor/procstat"
	"github.com/l1ne-systems/l1ne/internal/wal"
)

const (
	// maxInstances is the BoundedArray<ServiceInstance, 64> cap spec.md
	// §4.6 names directly.
	maxInstances = 64

	// connectionPoolCapacity and bufferPoolCapacity resolve the tension
	// between SlotPool(T, N<=64)'s structural cap and a connection
	// needing two buffer slots: the buffer pool is double the
	// connection pool's capacity so both stay within the 64-slot bound
	// (see SPEC_FULL.md / DESIGN.md's Open Question decision).
	connectionPoolCapacity = 32
	bufferPoolCapacity     = connectionPoolCapacity * 2

	proxyBufferSize    = 4096
	readinessWindow    = 1 * time.Second
	readinessPollEvery = 50 * time.Millisecond
)

// ProxyConnection is one slot-pool-tracked connection's bookkeeping.
type ProxyConnection struct {
	ConnectionID uint64
	InstanceName string
	ServiceID    uint32
}

// ProxyBuffer is one direction's forwarding buffer.
type ProxyBuffer struct {
	Data [proxyBufferSize]byte
}

// ErrResourceExhausted is returned when a connection or buffer slot
// cannot be acquired — this is the proxy's sole backpressure mechanism
// (explicit refusal, no queueing).
var ErrResourceExhausted = errors.New("supervisor: resource exhausted")

// Supervisor owns the deployed-instance table and the two pools the
// proxy acquires from. One Supervisor is constructed per `start`
// invocation.
type Supervisor struct {
	limits   config.RuntimeLimits
	process  ProcessSupervisor
	clk      *clock.Clock
	writer   *wal.Writer
	logger   logging.Logger
	usageRdr procstat.Reader

	instances *substrate.BoundedArray[*ServiceInstance]
	connPool  *substrate.SlotPool[ProxyConnection]
	bufPool   *substrate.SlotPool[ProxyBuffer]

	stateDir string
}

// New constructs a Supervisor. process is the external collaborator
// that actually starts/stops/queries units; writer is the orchestrator's
// exclusively-owned WAL writer.
func New(limits config.RuntimeLimits, process ProcessSupervisor, clk *clock.Clock, writer *wal.Writer, logger logging.Logger, usageRdr procstat.Reader) *Supervisor {
	if logger == nil {
		logger = logging.Nop()
	}
	if usageRdr == nil {
		usageRdr = procstat.NopReader{}
	}
	return &Supervisor{
		limits:    limits,
		process:   process,
		clk:       clk,
		writer:    writer,
		logger:    logger,
		usageRdr:  usageRdr,
		instances: substrate.NewBoundedArray[*ServiceInstance](maxInstances),
		connPool:  substrate.NewSlotPool[ProxyConnection](connectionPoolCapacity),
		bufPool:   substrate.NewSlotPool[ProxyBuffer](bufferPoolCapacity),
	}
}

// Instances returns a read-only view of the deployed instance table, in
// deployment order.
func (s *Supervisor) Instances() []*ServiceInstance { return s.instances.Slice() }

// SetStateDir configures where WriteCheckpoint persists its file. Unset
// (the default) disables checkpointing.
func (s *Supervisor) SetStateDir(dir string) { s.stateDir = dir }

// WriteCheckpoint atomically replaces <stateDir>/checkpoint with a
// human-readable summary of every deployed instance, via renameio so a
// crash mid-write never leaves a torn file. A no-op if SetStateDir was
// never called.
func (s *Supervisor) WriteCheckpoint() error {
	if s.stateDir == "" {
		return nil
	}
	var b strings.Builder
	for _, inst := range s.instances.Slice() {
		fmt.Fprintf(&b, "%s\tservice_id=%d\tport=%d\tstate=%s\n", inst.Name, inst.ServiceID, inst.Port, inst.State)
	}
	path := filepath.Join(s.stateDir, "checkpoint")
	return renameio.WriteFile(path, []byte(b.String()), 0o644)
}

// Deploy runs the deployment pipeline for every service in cfg, in
// order, per spec.md §4.6. A failure for any one service fails the
// whole command (no partial orchestrator).
func (s *Supervisor) Deploy(ctx context.Context, cfg config.Config) error {
	baseMemory, err := procstat.TotalMemoryBytes()
	if err != nil {
		s.logger.Warning().Err(err).Log("could not read host memory total, using 0 base")
		baseMemory = 0
	}
	baseCPU := procstat.TotalCPUQuotaUS()

	for _, svc := range cfg.Services {
		if err := s.deployOne(ctx, svc, baseMemory, baseCPU); err != nil {
			return fmt.Errorf("supervisor: deploy %s: %w", svc.Name, err)
		}
	}
	if err := s.WriteCheckpoint(); err != nil {
		s.logger.Warning().Err(err).Log("failed to write deployment checkpoint")
	}
	return nil
}

func (s *Supervisor) deployOne(ctx context.Context, svc config.ServiceDescriptor, baseMemory uint64, baseCPU uint64) error {
	name := fmt.Sprintf("l1ne-%s-%d", svc.Name, svc.Port)

	absPath, err := resolveExecutable(svc.ExecPath)
	if err != nil {
		return err
	}

	instance := &ServiceInstance{
		Name:      name,
		ServiceID: deriveServiceID(svc.Port),
		ExecPath:  absPath,
		Port:      svc.Port,
		State:     Starting,
	}
	if err := s.instances.Push(instance); err != nil {
		return fmt.Errorf("%w: too many services", err)
	}

	spec := UnitSpec{
		Name:      name,
		Exec:      absPath,
		UID:       svc.UID,
		GID:       svc.GID,
		MemoryMax: baseMemory * uint64(svc.MemoryMB) / 100,
		CPUQuota:  baseCPU * uint64(svc.CPUPercent) / 100,
		Env:       map[string]string{"PORT": fmt.Sprintf("%d", svc.Port)},
	}
	if err := s.process.StartUnit(spec); err != nil {
		instance.State = Failed
		return fmt.Errorf("start unit %s: %w", name, err)
	}

	s.awaitReadiness(ctx, instance)

	ts := uint64(s.clk.Now().UnixMicro())
	if s.writer != nil {
		entry, err := wal.CreateServiceStartEntry(ts, instance.ServiceID, instance.Port)
		if err != nil {
			return err
		}
		if err := s.writer.WriteEntry(ctx, entry); err != nil {
			return fmt.Errorf("write ServiceStart: %w", err)
		}
	}

	return nil
}

// awaitReadiness polls the collaborator for up to readinessWindow.
// Active/Activating are accepted; anything else logs a warning but the
// instance is still marked Running (spec.md §4.6 step 4).
func (s *Supervisor) awaitReadiness(ctx context.Context, instance *ServiceInstance) {
	deadline := time.Now().Add(readinessWindow)
readinessLoop:
	for {
		status, err := s.process.UnitStatus(instance.Name)
		if err == nil && (status == UnitActive || status == UnitActivating) {
			break
		}
		if err != nil {
			s.logger.Warning().Str("unit", instance.Name).Err(err).Log("status query failed")
		} else {
			s.logger.Warning().Str("unit", instance.Name).Int("status", int(status)).Log("unexpected status during readiness window")
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			break readinessLoop
		case <-time.After(readinessPollEvery):
		}
	}
	instance.State = Running
}

func resolveExecutable(execPath string) (string, error) {
	abs, err := filepath.Abs(execPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, execPath)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, abs)
	}
	if info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("%w: %s is not executable", ErrBinaryNotAccessible, abs)
	}
	return abs, nil
}

// deriveServiceID derives a stable, non-zero service_id from a port
// number, since config.ServiceDescriptor carries no explicit id (ports
// are already required to be unique within a deployment).
func deriveServiceID(port uint16) uint32 {
	contract.Assert(port > 0, "deriveServiceID called with port 0")
	return uint32(port)
}

// AcquireConnection acquires one connection slot and two distinct
// buffer slots (client->backend, backend->client) as a group. Any
// partial acquisition failure releases what was acquired and returns
// ErrResourceExhausted.
func (s *Supervisor) AcquireConnection() (conn *ProxyConnection, bufA, bufB *ProxyBuffer, err error) {
	conn, ok := s.connPool.Acquire()
	if !ok {
		return nil, nil, nil, ErrResourceExhausted
	}
	bufA, ok = s.bufPool.Acquire()
	if !ok {
		s.connPool.Release(conn)
		return nil, nil, nil, ErrResourceExhausted
	}
	bufB, ok = s.bufPool.Acquire()
	if !ok {
		s.bufPool.Release(bufA)
		s.connPool.Release(conn)
		return nil, nil, nil, ErrResourceExhausted
	}
	return conn, bufA, bufB, nil
}

// ReleaseConnection releases a connection slot and its two buffers,
// acquired together by AcquireConnection.
func (s *Supervisor) ReleaseConnection(conn *ProxyConnection, bufA, bufB *ProxyBuffer) {
	s.bufPool.Release(bufB)
	s.bufPool.Release(bufA)
	s.connPool.Release(conn)
}

// FirstRunning returns the first deployed instance (in deployment
// order) whose state is Running, for load balancing. ok is false if
// none are Running — the caller drops the inbound connection.
func (s *Supervisor) FirstRunning() (instance *ServiceInstance, ok bool) {
	for _, inst := range s.instances.Slice() {
		if inst.State == Running {
			return inst, true
		}
	}
	return nil, false
}

// Writer exposes the supervisor's WAL writer, for the proxy package to
// append ProxyAccept/ProxyClose records.
func (s *Supervisor) Writer() *wal.Writer { return s.writer }

// Clock exposes the supervisor's clock, for the proxy package to
// timestamp its WAL records.
func (s *Supervisor) Clock() *clock.Clock { return s.clk }
