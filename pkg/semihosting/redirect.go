package semihosting

import (
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/armhost/pkg/netconn"
)

// RedirectService is the long-lived listener backing semihosting_redirect.
// At most one client is tracked as the active redirect sink; input_pending
// is set around a blocking read from that client so the service's own
// background drain does not steal bytes a dispatch is waiting on.
type RedirectService struct {
	mu           sync.Mutex
	listener     net.Listener
	active       *netconn.Conn
	inputPending bool
	log          *logrus.Entry
	closed       chan struct{}
}

func newRedirectService(port int, log *logrus.Entry) (*RedirectService, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("semihosting: redirect listen: %w", err)
	}
	svc := &RedirectService{listener: ln, log: log, closed: make(chan struct{})}
	go svc.acceptLoop()
	return svc, nil
}

func (r *RedirectService) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		wrapped := netconn.Wrap(conn, nil)
		r.mu.Lock()
		if r.active != nil {
			r.active.Close()
		}
		r.active = wrapped
		r.mu.Unlock()
		go r.drain(wrapped)
	}
}

// drain discards bytes arriving while nothing is blocked in a dispatch
// waiting for them, matching the original service_input liveness-check
// behaviour: it exists purely to notice the client going away.
func (r *RedirectService) drain(conn *netconn.Conn) {
	buf := make([]byte, 256)
	for {
		r.mu.Lock()
		pending := r.inputPending && r.active == conn
		r.mu.Unlock()
		if pending {
			return
		}
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			r.mu.Lock()
			if r.active == conn {
				r.active = nil
			}
			r.mu.Unlock()
			return
		}
	}
}

// client returns the currently attached redirect connection, or nil.
func (r *RedirectService) client() *netconn.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// beginRead marks a blocking read about to start against the active
// client so the background drain loop backs off.
func (r *RedirectService) beginRead() { r.setInputPending(true) }
func (r *RedirectService) endRead()   { r.setInputPending(false) }

func (r *RedirectService) setInputPending(v bool) {
	r.mu.Lock()
	r.inputPending = v
	r.mu.Unlock()
}

func (r *RedirectService) Close() error {
	return r.listener.Close()
}

// SetRedirect implements semihosting_redirect: disable | tcp <port> [mode].
func (s *State) SetRedirect(cfg RedirectConfig, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.redirectSvc != nil {
		s.redirectSvc.Close()
		s.redirectSvc = nil
		s.redirectConn = nil
	}

	s.RedirectCfg = cfg
	if cfg == RedirectNone {
		return nil
	}

	svc, err := newRedirectService(port, s.log)
	if err != nil {
		return err
	}
	s.redirectSvc = svc
	return nil
}

// redirectReadByte performs a guarded blocking read of one byte from the
// active redirect client, used by READC when redirection applies.
func (s *State) redirectReadByte() (byte, error) {
	svc := s.redirectSvc
	if svc == nil {
		return 0, fmt.Errorf("semihosting: no redirect client attached")
	}
	conn := svc.client()
	if conn == nil {
		return 0, fmt.Errorf("semihosting: no redirect client attached")
	}
	svc.beginRead()
	defer svc.endRead()
	buf := make([]byte, 1)
	if _, err := conn.Read(buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (s *State) redirectRead(buf []byte) (int, error) {
	svc := s.redirectSvc
	if svc == nil {
		return 0, fmt.Errorf("semihosting: no redirect client attached")
	}
	conn := svc.client()
	if conn == nil {
		return 0, fmt.Errorf("semihosting: no redirect client attached")
	}
	svc.beginRead()
	defer svc.endRead()
	return conn.Read(buf)
}

func (s *State) redirectWrite(buf []byte) (int, error) {
	svc := s.redirectSvc
	if svc == nil {
		return 0, fmt.Errorf("semihosting: no redirect client attached")
	}
	conn := svc.client()
	if conn == nil {
		return 0, fmt.Errorf("semihosting: no redirect client attached")
	}
	return conn.Write(buf)
}
