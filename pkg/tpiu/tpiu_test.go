package tpiu

import (
	"encoding/binary"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/runZeroInc/armhost/pkg/accessport"
	"github.com/runZeroInc/armhost/pkg/probe"
	"github.com/runZeroInc/armhost/pkg/target"
)

// fakeAP is a flat register file standing in for a real CoreSight AP. It
// models a single 4 KB component block: each address is reduced to its
// offset within that block, so regs is keyed by register offset.
type fakeAP struct {
	regs map[uint64]uint32
}

func newFakeAP(devid uint32) *fakeAP {
	return &fakeAP{regs: map[uint64]uint32{
		0xFC8: devid,
		0x000: 0xFFFFFFFF, // SSPSR: every port width supported
	}}
}

func (a *fakeAP) ReadU32(addr uint64) (uint32, error)      { return a.regs[addr&0xFFF], nil }
func (a *fakeAP) WriteU32(addr uint64, value uint32) error { a.regs[addr&0xFFF] = value; return nil }
func (a *fakeAP) Number() uint64                           { return 0 }

type fakeDAP struct{ ap *fakeAP }

func (d *fakeDAP) AP(number uint64) (accessport.AP, error) { return d.ap, nil }

// fakeProbe reports back the same prescaler the host would have computed
// for an external capture, matching a well-behaved adapter.
type fakeProbe struct {
	nextBytes []byte
	configs   []probe.TraceConfig
	stopped   bool
}

func (p *fakeProbe) ConfigTrace(enabled bool, cfg probe.TraceConfig) (probe.TraceResult, error) {
	if !enabled {
		p.stopped = true
		return probe.TraceResult{}, nil
	}
	p.configs = append(p.configs, cfg)
	prescaler := computePrescaler(cfg.TraceClockHz, cfg.SwoPinFreqHz)
	return probe.TraceResult{SwoPinFreqHz: cfg.TraceClockHz / prescaler, Prescaler: prescaler}, nil
}

func (p *fakeProbe) PollTrace(buf []byte) (int, error) {
	n := copy(buf, p.nextBytes)
	p.nextBytes = nil
	return n, nil
}

func newTestRegistry(devid uint32) (*Registry, *fakeDAP) {
	dap := &fakeDAP{ap: newFakeAP(devid)}
	return NewRegistry(), dap
}

// S5: uart protocol, traceclk 168MHz, pin freq 2MHz, output "-" (no file,
// no TCP) programs CSPSR/ACPR/SPPR/FFCR exactly and opens no file.
func TestEnable_UartScenarioProgramsRegisters(t *testing.T) {
	pr := &fakeProbe{}
	registry, dap := newTestRegistry(devidSupportUART)

	inst, err := registry.Create(Config{
		Name:   "t",
		Spot:   accessport.Spot{DAP: dap, APNum: 0, Base: defaultBase},
		Probe:  pr,
		Target: target.NewMock(binary.LittleEndian, false),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	protocol := probe.ProtocolUART
	traceClk := uint32(168000000)
	pinFreq := uint32(2000000)
	output := "-"
	if err := inst.Configure(Options{
		Protocol:     &protocol,
		TraceClkInHz: &traceClk,
		SwoPinFreqHz: &pinFreq,
		Output:       &output,
	}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if err := inst.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer inst.Disable()

	ap := dap.ap
	if ap.regs[regCSPSR] != 1 {
		t.Errorf("CSPSR = %d, want 1", ap.regs[regCSPSR])
	}
	if ap.regs[regACPR] != 83 {
		t.Errorf("ACPR = %d, want 83", ap.regs[regACPR])
	}
	if ap.regs[regSPPR] != uint32(probe.ProtocolUART) {
		t.Errorf("SPPR = %d, want %d", ap.regs[regSPPR], probe.ProtocolUART)
	}
	if ap.regs[regFFCR]&(1<<1) != 0 {
		t.Errorf("FFCR formatter bit set, want cleared")
	}
	if !inst.IsEnabled() {
		t.Error("instance not enabled")
	}
	if inst.file != nil {
		t.Error("expected no file opened for output \"-\"")
	}
}

func TestEnable_RejectsUnsupportedProtocol(t *testing.T) {
	pr := &fakeProbe{}
	registry, dap := newTestRegistry(0) // DEVID claims nothing

	inst, err := registry.Create(Config{
		Name:   "t",
		Spot:   accessport.Spot{DAP: dap, APNum: 0, Base: defaultBase},
		Probe:  pr,
		Target: target.NewMock(binary.LittleEndian, false),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	protocol := probe.ProtocolUART
	traceClk := uint32(168000000)
	output := "-"
	if err := inst.Configure(Options{Protocol: &protocol, TraceClkInHz: &traceClk, Output: &output}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if err := inst.Enable(); err == nil {
		t.Fatal("expected Enable to fail for an unsupported protocol")
	}
	if inst.IsEnabled() {
		t.Fatal("instance must not be left enabled after a failed Enable")
	}
}

func TestComputePrescaler_MatchesWorkedExample(t *testing.T) {
	got := computePrescaler(168000000, 2000000)
	if got != 84 {
		t.Fatalf("computePrescaler(168MHz, 2MHz) = %d, want 84", got)
	}
}

func TestComputePrescaler_ClampsToMax(t *testing.T) {
	got := computePrescaler(1000000000, 1)
	if got != acprMaxPrescaler {
		t.Fatalf("computePrescaler huge ratio = %d, want clamp to %d", got, acprMaxPrescaler)
	}
}

// S6: two TCP clients attached to a broadcast output each receive the
// broadcast bytes in their original order.
func TestBroadcast_FanOutToTwoClients(t *testing.T) {
	pr := &fakeProbe{nextBytes: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	registry, dap := newTestRegistry(devidSupportUART)

	inst, err := registry.Create(Config{
		Name:   "t",
		Spot:   accessport.Spot{DAP: dap, APNum: 0, Base: defaultBase},
		Probe:  pr,
		Target: target.NewMock(binary.LittleEndian, false),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // free the port for newBroadcastService to rebind

	protocol := probe.ProtocolUART
	traceClk := uint32(168000000)
	pinFreq := uint32(2000000)
	output := ":" + strconv.Itoa(port)
	if err := inst.Configure(Options{
		Protocol:     &protocol,
		TraceClkInHz: &traceClk,
		SwoPinFreqHz: &pinFreq,
		Output:       &output,
	}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if err := inst.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	defer inst.Disable()

	addr := "127.0.0.1:" + strconv.Itoa(port)
	c1, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial 1: %v", err)
	}
	defer c1.Close()
	c2, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial 2: %v", err)
	}
	defer c2.Close()

	time.Sleep(20 * time.Millisecond) // let the accept loop register both clients

	inst.mu.Lock()
	inst.svc.broadcast([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	inst.mu.Unlock()

	for _, c := range []net.Conn{c1, c2} {
		c.SetReadDeadline(time.Now().Add(time.Second))
		got := make([]byte, 4)
		if _, err := c.Read(got); err != nil {
			t.Fatalf("read: %v", err)
		}
		want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("client got %v, want %v", got, want)
			}
		}
	}
}

func TestRegistry_CleanupAllIsIdempotent(t *testing.T) {
	pr := &fakeProbe{}
	registry, dap := newTestRegistry(devidSupportUART)

	inst, err := registry.Create(Config{
		Name:   "t",
		Spot:   accessport.Spot{DAP: dap, APNum: 0, Base: defaultBase},
		Probe:  pr,
		Target: target.NewMock(binary.LittleEndian, false),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	protocol := probe.ProtocolUART
	traceClk := uint32(168000000)
	pinFreq := uint32(2000000)
	output := "-"
	if err := inst.Configure(Options{Protocol: &protocol, TraceClkInHz: &traceClk, SwoPinFreqHz: &pinFreq, Output: &output}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := inst.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	if err := registry.CleanupAll(); err != nil {
		t.Fatalf("first CleanupAll: %v", err)
	}
	if inst.IsEnabled() {
		t.Fatal("instance still enabled after CleanupAll")
	}
	if err := registry.CleanupAll(); err != nil {
		t.Fatalf("second CleanupAll: %v", err)
	}
}

func TestEventHooks_FireNoopWithoutRunner(t *testing.T) {
	inst := newInstance(Config{Name: "t"})
	inst.Hooks().Set(EventPreEnable, "body")
	if err := inst.fire(EventPreEnable); err != nil {
		t.Fatalf("fire with nil runner should be a no-op, got %v", err)
	}
}

type recordingRunner struct {
	calls []EventKind
	err   error
}

func (r *recordingRunner) Run(instance string, event EventKind, body string) error {
	r.calls = append(r.calls, event)
	return r.err
}

func TestEventHooks_FireWrapsRunnerError(t *testing.T) {
	runner := &recordingRunner{err: errBoom}
	inst := newInstance(Config{Name: "t", Runner: runner})
	inst.Hooks().Set(EventPostEnable, "body")

	err := inst.fire(EventPostEnable)
	if err == nil {
		t.Fatal("expected wrapped hook error")
	}
	hookErr, ok := err.(*HookError)
	if !ok {
		t.Fatalf("error type = %T, want *HookError", err)
	}
	if hookErr.Event != EventPostEnable {
		t.Fatalf("HookError.Event = %v, want %v", hookErr.Event, EventPostEnable)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("runner called %d times, want 1", len(runner.calls))
	}
}

var errBoom = errors.New("boom")
