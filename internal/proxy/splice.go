// Package proxy implements L1NE's bidirectional TCP splice: accept an
// inbound connection, pick a running backend instance via the
// supervisor's load balancer, dial it, and forward bytes both ways
// until either side closes, bracketing the whole connection with WAL
// ProxyAccept/ProxyClose records (spec.md §4.6).
package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l1ne-systems/l1ne/internal/clock"
	"github.com/l1ne-systems/l1ne/internal/logging"
	"github.com/l1ne-systems/l1ne/internal/supervisor"
	"github.com/l1ne-systems/l1ne/internal/wal"
)

const dialTimeout = 5 * time.Second

// ErrResourceExhausted is returned when the connection/buffer slot group
// cannot be acquired; the caller drops the inbound connection.
var ErrResourceExhausted = supervisor.ErrResourceExhausted

// connectionIDSeq hands out monotonically increasing connection ids for
// WAL ProxyAccept/ProxyClose pairing, process-lifetime unique.
var connectionIDSeq atomic.Uint64

func nextConnectionID() uint64 {
	return connectionIDSeq.Add(1)
}

// Splicer owns a listening socket and forwards every accepted inbound
// connection to whichever backend instance the supervisor currently
// selects for load balancing.
type Splicer struct {
	sup    *supervisor.Supervisor
	clk    *clock.Clock
	writer *wal.Writer
	logger logging.Logger
	dial   ContextDialer
}

// NewSplicer constructs a Splicer bound to sup's instance table and
// connection/buffer pools.
func NewSplicer(sup *supervisor.Supervisor, logger logging.Logger) *Splicer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Splicer{
		sup:    sup,
		clk:    sup.Clock(),
		writer: sup.Writer(),
		logger: logger,
		dial:   DialWithTimeout(dialTimeout, DialTCP),
	}
}

// Serve accepts connections from ln until ctx is canceled or Accept
// returns a non-temporary error; a temporary Accept error is retried
// after a 10ms pause. Each accepted connection is handled in its own
// goroutine; Serve does not block on them.
func (s *Splicer) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if te, ok := err.(interface{ Temporary() bool }); ok && te.Temporary() {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}
		go s.handle(ctx, conn)
	}
}

// handle implements the full splice lifecycle for one inbound
// connection: load-balance selection, slot acquisition, dial, forward,
// release, WAL bracketing.
func (s *Splicer) handle(ctx context.Context, clientConn net.Conn) {
	defer clientConn.Close()

	instance, ok := s.sup.FirstRunning()
	if !ok {
		s.logger.Warning().Log("no running instance available, dropping inbound connection")
		return
	}

	conn, bufA, bufB, err := s.sup.AcquireConnection()
	if err != nil {
		s.logger.Warning().Err(err).Log("resource exhausted, dropping inbound connection")
		return
	}
	defer s.sup.ReleaseConnection(conn, bufA, bufB)

	connID := nextConnectionID()
	conn.ConnectionID = connID
	conn.InstanceName = instance.Name
	conn.ServiceID = instance.ServiceID

	clientPort := remotePort(clientConn)

	backendAddr := fmt.Sprintf("127.0.0.1:%d", instance.Port)
	backendConn, err := s.dial(ctx, backendAddr)
	if err != nil {
		kind := ClassifyDialError(err)
		s.logger.Warning().Str("backend", backendAddr).Str("kind", kind.String()).Err(err).Log("backend dial failed")
		return
	}
	defer backendConn.Close()

	s.writeProxyAccept(ctx, connID, instance.ServiceID, clientPort)

	bytesSent, bytesReceived := s.forward(clientConn, backendConn, bufA, bufB)

	s.writeProxyClose(ctx, connID, bytesSent, bytesReceived)
}

// forward runs both splice directions concurrently and returns the
// total bytes moved client->backend and backend->client.
func (s *Splicer) forward(clientConn, backendConn net.Conn, bufA, bufB *supervisor.ProxyBuffer) (bytesSent, bytesReceived uint64) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		bytesSent = copyDirection(backendConn, clientConn, bufA.Data[:])
	}()
	go func() {
		defer wg.Done()
		bytesReceived = copyDirection(clientConn, backendConn, bufB.Data[:])
	}()

	wg.Wait()
	return bytesSent, bytesReceived
}

// copyDirection reads from src into buf and writes to dst, repeatedly,
// until EOF or a terminal error, returning the total bytes moved.
func copyDirection(dst io.Writer, src io.Reader, buf []byte) uint64 {
	var total uint64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := dst.Write(buf[:n]); writeErr != nil {
				return total
			}
			total += uint64(n)
		}
		if readErr != nil {
			return total
		}
	}
}

func remotePort(conn net.Conn) uint16 {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return uint16(addr.Port)
}

func (s *Splicer) writeProxyAccept(ctx context.Context, connID uint64, serviceID uint32, clientPort uint16) {
	if s.writer == nil {
		return
	}
	ts := uint64(s.clk.Now().UnixMicro())
	entry, err := wal.CreateProxyAcceptEntry(ts, connID, serviceID, clientPort)
	if err != nil {
		s.logger.Warning().Err(err).Log("failed to build ProxyAccept entry")
		return
	}
	if err := s.writer.WriteEntry(ctx, entry); err != nil {
		s.logger.Warning().Err(err).Log("failed to write ProxyAccept entry")
	}
}

func (s *Splicer) writeProxyClose(ctx context.Context, connID, bytesSent, bytesReceived uint64) {
	if s.writer == nil {
		return
	}
	ts := uint64(s.clk.Now().UnixMicro())
	entry, err := wal.CreateProxyCloseEntry(ts, connID, bytesSent, bytesReceived)
	if err != nil {
		s.logger.Warning().Err(err).Log("failed to build ProxyClose entry")
		return
	}
	if err := s.writer.WriteEntry(ctx, entry); err != nil {
		s.logger.Warning().Err(err).Log("failed to write ProxyClose entry")
	}
}
