package tpiu

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/runZeroInc/armhost/pkg/probe"
	"github.com/runZeroInc/armhost/pkg/target"
)

// DeferEnable marks the instance for enabling during a later Init call,
// used while loading configuration rather than running interactively.
func (i *Instance) DeferEnable() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.deferredEnable = true
}

// Enable runs the TPIU/SWO enable state machine: precondition checks,
// protocol support verification, sink setup, probe start, register
// programming, and the post-enable hook. Any failure from step 6 onward
// tears down whatever was partially acquired and leaves the instance
// exactly as if Enable had not been called.
func (i *Instance) Enable(cb ...TraceCallback) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.enabled {
		return nil
	}

	if i.TraceClkInHz == 0 {
		return fmt.Errorf("tpiu %s: trace clock-in frequency not set", i.Name)
	}
	outputExternal := i.OutFilename == "external"
	needsPinFreq := i.PinProtocol == probe.ProtocolUART || i.PinProtocol == probe.ProtocolManchester
	if needsPinFreq && outputExternal && i.SwoPinFreqHz == 0 {
		return fmt.Errorf("tpiu %s: SWO pin frequency required when using external capturing", i.Name)
	}

	if _, err := i.spot.DAP.AP(i.spot.APNum); err != nil {
		return fmt.Errorf("tpiu %s: cannot get AP: %w", i.Name, err)
	}

	if err := i.fire(EventPreEnable); err != nil {
		return err
	}

	devid, err := i.spot.ReadU32(regDEVID)
	if err != nil {
		return fmt.Errorf("tpiu %s: unable to read DEVID: %w", i.Name, err)
	}
	if !protocolSupported(i.PinProtocol, devid) {
		return fmt.Errorf("tpiu %s does not support protocol %s", i.Name, protocolName(i.PinProtocol))
	}

	if i.PinProtocol == probe.ProtocolSync {
		sspsr, err := i.spot.ReadU32(regSSPSR)
		if err != nil {
			return fmt.Errorf("tpiu %s: cannot read TPIU register SSPSR: %w", i.Name, err)
		}
		if sspsr&(1<<(i.PortWidth-1)) == 0 {
			return fmt.Errorf("tpiu %s: TPIU does not support port-width of %d bits", i.Name, i.PortWidth)
		}
	}

	prescaler := uint32(1)
	swoPinFreq := i.SwoPinFreqHz

	if !outputExternal {
		if strings.HasPrefix(i.OutFilename, ":") {
			port, err := strconv.Atoi(i.OutFilename[1:])
			if err != nil {
				return fmt.Errorf("tpiu %s: invalid TCP port %q", i.Name, i.OutFilename[1:])
			}
			i.log.Infof("starting trace server for %s on port %d", i.Name, port)
			svc, err := newBroadcastService(i.Name, port, i.metrics, i.log)
			if err != nil {
				return fmt.Errorf("tpiu %s: can't configure trace TCP port %d: %w", i.Name, port, err)
			}
			i.svc = svc
		} else if i.OutFilename != "-" {
			f, err := os.OpenFile(i.OutFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
			if err != nil {
				i.closeOutput()
				return fmt.Errorf("tpiu %s: can't open trace destination file %q: %w", i.Name, i.OutFilename, err)
			}
			i.file = f
		}

		cfg := probe.TraceConfig{
			Protocol:     i.PinProtocol,
			PortWidth:    i.PortWidth,
			TraceClockHz: i.TraceClkInHz,
			SwoPinFreqHz: swoPinFreq,
		}
		result, err := i.probeDriver.ConfigTrace(true, cfg)
		if err != nil {
			i.closeOutput()
			return fmt.Errorf("tpiu %s: failed to start adapter's trace: %w", i.Name, err)
		}
		swoPinFreq = result.SwoPinFreqHz
		prescaler = result.Prescaler
		if prescaler == 0 {
			prescaler = 1
		}

		if needsPinFreq && swoPinFreq == 0 {
			i.closeOutput()
			if _, err := i.probeDriver.ConfigTrace(false, probe.TraceConfig{}); err != nil {
				i.log.WithError(err).Error("failed to stop adapter's trace")
			}
			if i.SwoPinFreqHz != 0 {
				return fmt.Errorf("tpiu %s: adapter rejected SWO pin frequency %d Hz", i.Name, i.SwoPinFreqHz)
			}
			return fmt.Errorf("tpiu %s: adapter does not support auto-detection of SWO pin frequency nor a default value", i.Name)
		}
		if i.SwoPinFreqHz != swoPinFreq {
			i.log.Infof("SWO pin data rate adjusted by adapter to %d Hz", swoPinFreq)
		}

		var pollCB TraceCallback
		if len(cb) > 0 {
			pollCB = cb[0]
		}
		i.startPolling(pollCB)
		i.enCapture = true
	} else if needsPinFreq {
		prescaler = computePrescaler(i.TraceClkInHz, i.SwoPinFreqHz)
		swoPinFreq = i.TraceClkInHz / prescaler
		if i.SwoPinFreqHz != swoPinFreq {
			i.log.Infof("SWO pin data rate adjusted to %d Hz", swoPinFreq)
		}
	}

	if err := i.spot.WriteU32(regCSPSR, 1<<(i.PortWidth-1)); err != nil {
		return i.enableErrorExit(err)
	}
	if err := i.spot.WriteU32(regACPR, prescaler-1); err != nil {
		return i.enableErrorExit(err)
	}
	if err := i.spot.WriteU32(regSPPR, uint32(i.PinProtocol)); err != nil {
		return i.enableErrorExit(err)
	}
	ffcr, err := i.spot.ReadU32(regFFCR)
	if err != nil {
		return i.enableErrorExit(err)
	}
	if i.EnFormatter {
		ffcr |= 1 << 1
	} else {
		ffcr &^= 1 << 1
	}
	if err := i.spot.WriteU32(regFFCR, ffcr); err != nil {
		return i.enableErrorExit(err)
	}

	if err := i.fire(EventPostEnable); err != nil {
		return i.enableErrorExit(err)
	}

	if i.target != nil {
		i.target.PublishEvent(target.EventTraceConfig, i.Name)
	}

	i.SwoPinFreqHz = swoPinFreq
	i.enabled = true
	return nil
}

// enableErrorExit tears down any capture state acquired before a
// register-programming or post-enable-hook failure, mirroring the
// original's error_exit label.
func (i *Instance) enableErrorExit(cause error) error {
	if i.enCapture {
		i.enCapture = false
		i.closeOutput()
		i.stopPolling()
		if _, err := i.probeDriver.ConfigTrace(false, probe.TraceConfig{}); err != nil {
			i.log.WithError(err).Error("failed to stop adapter's trace")
		}
	}
	return fmt.Errorf("tpiu %s: enable failed: %w", i.Name, cause)
}

func (i *Instance) closeOutput() {
	if i.file != nil {
		i.file.Close()
		i.file = nil
	}
	if i.svc != nil {
		i.svc.Close()
		i.svc = nil
	}
}

func protocolSupported(p probe.Protocol, devid uint32) bool {
	switch p {
	case probe.ProtocolSync:
		return devid&devidNoSyncBit == 0
	case probe.ProtocolUART:
		return devid&devidSupportUART != 0
	case probe.ProtocolManchester:
		return devid&devidSupportManchester != 0
	}
	return false
}

func protocolName(p probe.Protocol) string {
	switch p {
	case probe.ProtocolSync:
		return "sync"
	case probe.ProtocolUART:
		return "uart"
	case probe.ProtocolManchester:
		return "manchester"
	}
	return "unknown"
}

// computePrescaler divides traceclkin by the target pin frequency,
// rounding to nearest and clamping to the ACPR field width.
func computePrescaler(traceClkIn, swoPinFreq uint32) uint32 {
	if swoPinFreq == 0 {
		return 1
	}
	prescaler := (traceClkIn + swoPinFreq/2) / swoPinFreq
	if prescaler > acprMaxPrescaler {
		prescaler = acprMaxPrescaler
	}
	if prescaler == 0 {
		prescaler = 1
	}
	return prescaler
}
