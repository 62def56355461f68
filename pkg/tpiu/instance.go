// Package tpiu implements the TPIU/SWO trace controller: named instance
// lifecycle, register programming, probe polling, and fan-out to file and
// TCP broadcast sinks.
package tpiu

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/armhost/pkg/accessport"
	"github.com/runZeroInc/armhost/pkg/metrics"
	"github.com/runZeroInc/armhost/pkg/probe"
	"github.com/runZeroInc/armhost/pkg/target"
)

// Config bundles the construction-time collaborators and fixed identity
// an Instance needs.
type Config struct {
	Name    string
	Spot    accessport.Spot
	Probe   probe.Trace
	Target  target.Target
	Runner  EventRunner
	Metrics *metrics.TpiuCollector
	Logger  *logrus.Logger
}

// Instance is one TPIU/SWO object, addressed by name within a Registry.
type Instance struct {
	mu sync.Mutex

	Name string
	spot accessport.Spot

	probeDriver probe.Trace
	target      target.Target
	runner      EventRunner
	metrics     *metrics.TpiuCollector
	log         *logrus.Entry

	PortWidth      uint32
	PinProtocol    probe.Protocol
	EnFormatter    bool
	TraceClkInHz   uint32
	SwoPinFreqHz   uint32
	OutFilename    string

	hooks *EventHooks

	deferredEnable bool
	enabled        bool
	enCapture      bool

	file *os.File
	svc  *broadcastService

	stopPoll chan struct{}
	pollDone chan struct{}
}

func newInstance(cfg Config) *Instance {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Instance{
		Name:        cfg.Name,
		spot:        cfg.Spot,
		probeDriver: cfg.Probe,
		target:      cfg.Target,
		runner:      cfg.Runner,
		metrics:     cfg.Metrics,
		log:         logger.WithField("tpiu", cfg.Name),
		PortWidth:   1,
		OutFilename: "external",
		hooks:       newEventHooks(),
	}
}

// Hooks exposes the instance's event-hook table for configuration.
func (i *Instance) Hooks() *EventHooks { return i.hooks }

// IsEnabled reports the current lifecycle state.
func (i *Instance) IsEnabled() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.enabled
}

// Configure applies opts, validated against the instance's current state.
// It is rejected while the instance is enabled, matching the "configure
// forbidden while enabled" rule.
func (i *Instance) Configure(opts Options) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.enabled {
		return fmt.Errorf("tpiu %s: cannot configure while enabled", i.Name)
	}

	if opts.PortWidth != nil {
		if *opts.PortWidth < 1 || *opts.PortWidth > 32 {
			return fmt.Errorf("tpiu %s: invalid port width %d", i.Name, *opts.PortWidth)
		}
		i.PortWidth = *opts.PortWidth
	}
	if opts.Protocol != nil {
		i.PinProtocol = *opts.Protocol
	}
	if opts.Formatter != nil {
		i.EnFormatter = *opts.Formatter
	}
	if opts.TraceClkInHz != nil {
		i.TraceClkInHz = *opts.TraceClkInHz
	}
	if opts.SwoPinFreqHz != nil {
		i.SwoPinFreqHz = *opts.SwoPinFreqHz
	}
	if opts.Output != nil {
		if err := validateOutput(*opts.Output); err != nil {
			return fmt.Errorf("tpiu %s: %w", i.Name, err)
		}
		i.OutFilename = *opts.Output
	}
	if opts.APNum != nil {
		i.spot.APNum = *opts.APNum
	}
	if opts.Base != nil {
		i.spot.Base = *opts.Base
	}
	if opts.DAP != nil {
		i.spot.DAP = opts.DAP
	}
	return nil
}

// Options is the exhaustive set of configure/create attributes, each a
// pointer so "unset" and "explicitly zero" are distinguishable.
type Options struct {
	PortWidth    *uint32
	Protocol     *probe.Protocol
	Formatter    *bool
	TraceClkInHz *uint32
	SwoPinFreqHz *uint32
	Output       *string
	APNum        *uint64
	Base         *uint64
	DAP          accessport.DAP
}

func validateOutput(s string) error {
	if s == "" {
		return fmt.Errorf("empty output destination")
	}
	if s[0] == ':' {
		return validateTCPPort(s[1:])
	}
	return nil
}

func validateTCPPort(s string) error {
	port, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid TCP port %q", s)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid TCP port %q", s)
	}
	return nil
}

// pollInterval is the periodic trace-poll cadence, matching the source's
// 1 ms timer callback.
const pollInterval = time.Millisecond
