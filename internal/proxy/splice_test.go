package proxy

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/l1ne-systems/l1ne/internal/clock"
	"github.com/l1ne-systems/l1ne/internal/config"
	"github.com/l1ne-systems/l1ne/internal/supervisor"
)

type fakeProcessSupervisor struct{}

func (fakeProcessSupervisor) StartUnit(supervisor.UnitSpec) error { return nil }
func (fakeProcessSupervisor) UnitStatus(string) (supervisor.UnitRuntimeState, error) {
	return supervisor.UnitActive, nil
}
func (fakeProcessSupervisor) StopUnit(string) error { return nil }

func testLimits(t *testing.T) config.RuntimeLimits {
	limits, err := config.NewRuntimeLimits(config.RuntimeLimits{
		ServiceInstancesCount: 64,
		ProxyConnectionsMax:   4096,
		ProxyBufferSize:       64 * 1024,
		CgroupMonitorsCount:   64,
		SystemdBufferSize:     16 * 1024,
	})
	require.NoError(t, err)
	return limits
}

// startEchoBackend listens on an ephemeral TCP port and echoes whatever
// it receives back to the client, closing the connection on EOF.
func startEchoBackend(t *testing.T) (port uint16, stop func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				buf := make([]byte, 4096)
				for {
					n, err := conn.Read(buf)
					if n > 0 {
						if _, werr := conn.Write(buf[:n]); werr != nil {
							return
						}
					}
					if err != nil {
						return
					}
				}
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return uint16(addr.Port), func() { ln.Close() }
}

func newTestSupervisorWithRunningInstance(t *testing.T, port uint16) *supervisor.Supervisor {
	clk := clock.NewSimulated(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sup := supervisor.New(testLimits(t), fakeProcessSupervisor{}, clk, nil, nil, nil)

	selfExec, err := os.Executable()
	require.NoError(t, err)

	cfg := config.Config{
		Limits: testLimits(t),
		Services: []config.ServiceDescriptor{
			{Name: "echo", ExecPath: selfExec, Port: port},
		},
	}
	require.NoError(t, sup.Deploy(context.Background(), cfg))
	return sup
}

func TestSplicer_ForwardsBytesRoundTrip(t *testing.T) {
	backendPort, stopBackend := startEchoBackend(t)
	defer stopBackend()

	sup := newTestSupervisorWithRunningInstance(t, backendPort)
	splicer := NewSplicer(sup, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go splicer.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	payload := []byte("hello l1ne")
	_, err = conn.Write(payload)
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf)
}

func TestSplicer_DropsConnectionWhenNoRunningInstance(t *testing.T) {
	clk := clock.NewSimulated(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sup := supervisor.New(testLimits(t), fakeProcessSupervisor{}, clk, nil, nil, nil)
	splicer := NewSplicer(sup, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go splicer.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 1)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	require.Error(t, err) // connection should be closed immediately, not hang
}

func TestClassifyDialError(t *testing.T) {
	_, err := net.Dial("tcp", "127.0.0.1:1") // privileged, near-certainly refused
	if err == nil {
		t.Skip("unexpected successful dial to port 1")
	}
	kind := ClassifyDialError(err)
	require.NotEqual(t, BackendFailureUnknown, kind)
}

func TestClassifyDialError_NilIsUnknown(t *testing.T) {
	require.Equal(t, BackendFailureUnknown, ClassifyDialError(nil))
}

func TestDialWithTimeout_ExpiresOnUnroutableAddress(t *testing.T) {
	dial := DialWithTimeout(50*time.Millisecond, DialTCP)
	_, err := dial(context.Background(), "10.255.255.1:81")
	require.Error(t, err)
}
