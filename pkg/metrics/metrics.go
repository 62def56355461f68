// Package metrics exposes Prometheus collectors for the semihosting
// dispatcher and the TPIU/SWO controller, using the same
// Describe/Collect shape as a standard Prometheus custom collector.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SemihostingCollector tracks per-opcode dispatch counts and the number
// of operations currently parked waiting on a fileio_end from the
// remote frontend.
type SemihostingCollector struct {
	mu             sync.Mutex
	dispatchTotal  map[string]uint64
	fileioPending  map[string]bool
	dispatchDesc   *prometheus.Desc
	fileioDesc     *prometheus.Desc
}

func NewSemihostingCollector(constLabels prometheus.Labels) *SemihostingCollector {
	c := &SemihostingCollector{
		dispatchTotal: make(map[string]uint64),
		fileioPending: make(map[string]bool),
		dispatchDesc: prometheus.NewDesc(
			"semihosting_dispatch_total",
			"Total semihosting operations dispatched, by opcode name.",
			[]string{"opcode"}, constLabels,
		),
		fileioDesc: prometheus.NewDesc(
			"semihosting_fileio_pending",
			"Whether a named semihosting session currently has a fileio request pending completion.",
			[]string{"session"}, constLabels,
		),
	}
	for _, label := range semihostingOpcodeLabels {
		c.dispatchTotal[label] = 0
	}
	return c
}

func (c *SemihostingCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.dispatchDesc
	descs <- c.fileioDesc
}

func (c *SemihostingCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for opcode, count := range c.dispatchTotal {
		ch <- prometheus.MustNewConstMetric(c.dispatchDesc, prometheus.CounterValue, float64(count), opcode)
	}
	for session, pending := range c.fileioPending {
		v := 0.0
		if pending {
			v = 1.0
		}
		ch <- prometheus.MustNewConstMetric(c.fileioDesc, prometheus.GaugeValue, v, session)
	}
}

// ObserveDispatch increments the dispatch counter for opcode.
func (c *SemihostingCollector) ObserveDispatch(opcode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchTotal[opcode]++
}

// SetFileioPending records whether session has an outstanding fileio
// request.
func (c *SemihostingCollector) SetFileioPending(session string, pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pending {
		c.fileioPending[session] = true
	} else {
		delete(c.fileioPending, session)
	}
}

// TpiuCollector tracks per-instance poll and broadcast byte counts.
type TpiuCollector struct {
	mu             sync.Mutex
	pollBytes      map[string]uint64
	broadcastConns map[string]int
	pollDesc       *prometheus.Desc
	broadcastDesc  *prometheus.Desc
}

func NewTpiuCollector(constLabels prometheus.Labels) *TpiuCollector {
	return &TpiuCollector{
		pollBytes:      make(map[string]uint64),
		broadcastConns: make(map[string]int),
		pollDesc: prometheus.NewDesc(
			"tpiu_swo_poll_bytes_total",
			"Total trace bytes captured by polling, by instance name.",
			[]string{"instance"}, constLabels,
		),
		broadcastDesc: prometheus.NewDesc(
			"tpiu_swo_broadcast_clients",
			"Number of live TCP broadcast clients, by instance name.",
			[]string{"instance"}, constLabels,
		),
	}
}

func (c *TpiuCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.pollDesc
	descs <- c.broadcastDesc
}

func (c *TpiuCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for instance, n := range c.pollBytes {
		ch <- prometheus.MustNewConstMetric(c.pollDesc, prometheus.CounterValue, float64(n), instance)
	}
	for instance, n := range c.broadcastConns {
		ch <- prometheus.MustNewConstMetric(c.broadcastDesc, prometheus.GaugeValue, float64(n), instance)
	}
}

// AddPollBytes accumulates n bytes captured for instance.
func (c *TpiuCollector) AddPollBytes(instance string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollBytes[instance] += uint64(n)
}

// SetBroadcastClients records the current broadcast client count for
// instance.
func (c *TpiuCollector) SetBroadcastClients(instance string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcastConns[instance] = n
}
