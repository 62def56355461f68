package tpiu

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/armhost/pkg/metrics"
	"github.com/runZeroInc/armhost/pkg/netconn"
)

// broadcastService is the TCP fan-out sink for an instance's ":<port>"
// output destination: every connected client receives every captured
// trace byte, in order; a write failure on one client is logged and does
// not affect the others.
type broadcastService struct {
	mu       sync.Mutex
	listener net.Listener
	conns    map[string]*netconn.Conn
	instance string
	metrics  *metrics.TpiuCollector
	log      *logrus.Entry
	closed   chan struct{}
}

func newBroadcastService(instance string, port int, metricsCollector *metrics.TpiuCollector, log *logrus.Entry) (*broadcastService, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("tpiu %s: listen on port %d: %w", instance, port, err)
	}
	svc := &broadcastService{
		listener: ln,
		conns:    make(map[string]*netconn.Conn),
		instance: instance,
		metrics:  metricsCollector,
		log:      log,
		closed:   make(chan struct{}),
	}
	go svc.acceptLoop()
	return svc, nil
}

func (s *broadcastService) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		wrapped := netconn.Wrap(conn, nil)
		s.mu.Lock()
		s.conns[wrapped.ID.String()] = wrapped
		s.setClientCountLocked()
		s.mu.Unlock()
		go s.drain(wrapped)
	}
}

// drain performs the "read a dummy buffer to check if the connection is
// still active" liveness check: a read error or EOF from a broadcast
// client means it has gone away and removes it; any bytes a client sends
// are discarded.
func (s *broadcastService) drain(conn *netconn.Conn) {
	buf := make([]byte, 8)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			s.removeConn(conn)
			return
		}
	}
}

func (s *broadcastService) removeConn(conn *netconn.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn.ID.String())
	s.setClientCountLocked()
}

func (s *broadcastService) setClientCountLocked() {
	if s.metrics != nil {
		s.metrics.SetBroadcastClients(s.instance, len(s.conns))
	}
}

// broadcast writes buf to every connected client.
func (s *broadcastService) broadcast(buf []byte) {
	s.mu.Lock()
	targets := make([]*netconn.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if n, err := c.Write(buf); err != nil || n != len(buf) {
			s.log.WithField("client", c.ID).Error("error writing to connection")
		}
	}
}

func (s *broadcastService) Close() error {
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = make(map[string]*netconn.Conn)
	s.mu.Unlock()
	return s.listener.Close()
}
