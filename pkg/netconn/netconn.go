// Package netconn wraps outbound/inbound TCP connections used by the
// semihosting redirect session and the TPIU/SWO broadcast service,
// tracking basic traffic counters and recovering the underlying file
// descriptor for diagnostic logging.
package netconn

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/higebu/netfd"
	"github.com/rs/xid"
)

// State is the open/closed lifecycle of a tracked connection.
type State int

const (
	Opened State = iota
	Closed
)

var stateNames = map[State]string{
	Opened: "open",
	Closed: "closed",
}

func (s State) String() string { return stateNames[s] }

// ReportFn is invoked on open and close events.
type ReportFn func(c *Conn, state State)

// Conn wraps a net.Conn, assigning it a short unique ID for labelling
// connections in logs and metrics and tracking byte counts sent/received.
type Conn struct {
	net.Conn
	ID       xid.ID
	report   ReportFn
	mu       sync.Mutex
	OpenedAt time.Time
	ClosedAt time.Time
	TxBytes  int64
	RxBytes  int64
	RxErr    error
	TxErr    error
}

// Wrap wraps conn, assigns it an ID, and fires an Opened report.
func Wrap(conn net.Conn, report ReportFn) *Conn {
	c := &Conn{
		Conn:     conn,
		ID:       xid.New(),
		report:   report,
		OpenedAt: time.Now(),
	}
	if c.report != nil {
		c.report(c, Opened)
	}
	return c
}

// FD recovers the raw file descriptor backing this connection, or -1 if
// it could not be determined (e.g. not a *net.TCPConn).
func (c *Conn) FD() int {
	return netfd.GetFdFromConn(c.Conn)
}

func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.mu.Lock()
	c.RxBytes += int64(n)
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.RxErr = err
		}
	}
	c.mu.Unlock()
	return n, err
}

func (c *Conn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.mu.Lock()
	c.TxBytes += int64(n)
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.TxErr = err
		}
	}
	c.mu.Unlock()
	return n, err
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.ClosedAt = time.Now()
	c.mu.Unlock()
	if c.report != nil {
		c.report(c, Closed)
	}
	return c.Conn.Close()
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s (fd=%d, rx=%d, tx=%d)", c.ID.String(), c.FD(), c.RxBytes, c.TxBytes)
}
