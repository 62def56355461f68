package main

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/armhost/pkg/accessport"
	"github.com/runZeroInc/armhost/pkg/metrics"
	"github.com/runZeroInc/armhost/pkg/probe"
	"github.com/runZeroInc/armhost/pkg/target"
	"github.com/runZeroInc/armhost/pkg/tpiu"
)

// fakeAP is a single-register-file AP standing in for a real CoreSight
// access port, used only to demonstrate the Instance enable sequence.
// Each address is reduced to its offset within the TPIU's 4 KB block.
type fakeAP struct {
	regs map[uint64]uint32
}

func newFakeAP() *fakeAP {
	return &fakeAP{regs: map[uint64]uint32{
		0xFC8: 1<<10 | 1<<11, // DEVID: claim sync/manchester/uart support (bit 9 clear)
		0x000: 0xFFFFFFFF,    // SSPSR: claim every port width supported
	}}
}

func (a *fakeAP) ReadU32(addr uint64) (uint32, error)      { return a.regs[addr&0xFFF], nil }
func (a *fakeAP) WriteU32(addr uint64, value uint32) error { a.regs[addr&0xFFF] = value; return nil }
func (a *fakeAP) Number() uint64                           { return 0 }

type fakeDAP struct{ ap *fakeAP }

func (d *fakeDAP) AP(number uint64) (accessport.AP, error) { return d.ap, nil }

// fakeProbe stands in for a debug-probe driver's trace capture hardware,
// returning random bytes on each poll.
type fakeProbe struct{}

func (fakeProbe) ConfigTrace(enabled bool, cfg probe.TraceConfig) (probe.TraceResult, error) {
	if !enabled {
		return probe.TraceResult{}, nil
	}
	return probe.TraceResult{SwoPinFreqHz: cfg.TraceClockHz / 84, Prescaler: 84}, nil
}

func (fakeProbe) PollTrace(buf []byte) (int, error) {
	n := rand.Intn(len(buf))
	rand.Read(buf[:n])
	return n, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <uart|manchester|sync>\n", os.Args[0])
		os.Exit(1)
	}

	var protocol probe.Protocol
	switch os.Args[1] {
	case "uart":
		protocol = probe.ProtocolUART
	case "manchester":
		protocol = probe.ProtocolManchester
	case "sync":
		protocol = probe.ProtocolSync
	default:
		logrus.Fatalf("unknown protocol %q", os.Args[1])
	}

	dap := &fakeDAP{ap: newFakeAP()}
	registry := tpiu.NewRegistry()
	inst, err := registry.Create(tpiu.Config{
		Name:    "swo0",
		Spot:    accessport.Spot{DAP: dap, APNum: 0, Base: 0xE0040000},
		Probe:   fakeProbe{},
		Target:  target.NewMock(binary.LittleEndian, false),
		Metrics: metrics.NewTpiuCollector(nil),
		Logger:  logrus.StandardLogger(),
	})
	if err != nil {
		logrus.Fatalf("create: %v", err)
	}

	traceClk := uint32(84000000)
	swoPinFreq := uint32(1000000)
	output := ":5001"
	if err := inst.Configure(tpiu.Options{
		PortWidth:    uint32Ptr(1),
		Protocol:     &protocol,
		TraceClkInHz: &traceClk,
		SwoPinFreqHz: &swoPinFreq,
		Output:       &output,
	}); err != nil {
		logrus.Fatalf("configure: %v", err)
	}

	if err := inst.Enable(func(name string, data []byte) {
		logrus.Infof("%s: captured %d trace bytes", name, len(data))
	}); err != nil {
		logrus.Fatalf("enable: %v", err)
	}

	logrus.Infof("tpiu %s enabled, SWO pin freq %d Hz", "swo0", inst.SwoPinFreqHz)

	if err := registry.CleanupAll(); err != nil {
		logrus.Fatalf("cleanup: %v", err)
	}
}

func uint32Ptr(v uint32) *uint32 { return &v }
