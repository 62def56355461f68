package tpiu

import (
	"github.com/runZeroInc/armhost/pkg/probe"
	"github.com/runZeroInc/armhost/pkg/target"
)

// Disable tears down a running capture: pre-disable hook, stop capture
// (close sinks, stop polling, config_trace(false)), post-disable hook,
// publish a trace-config event. A no-op on an already-disabled instance.
// TPIU registers are never touched here — de-configuring the probe is
// sufficient.
func (i *Instance) Disable() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.enabled {
		return nil
	}
	return i.teardown()
}

// disableLocked tears down whatever resources are held regardless of the
// enabled flag, used by Registry.CleanupAll so a second cleanup call is a
// no-op against already-released state.
func (i *Instance) disableLocked(_ bool) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.enabled && !i.enCapture && i.file == nil && i.svc == nil {
		return nil
	}
	return i.teardown()
}

// teardown must be called with mu held.
func (i *Instance) teardown() error {
	wasEnabled := i.enabled

	if wasEnabled {
		if err := i.fire(EventPreDisable); err != nil {
			i.log.WithError(err).Error("pre-disable hook failed")
		}
	}

	i.enabled = false
	i.closeOutput()

	if i.enCapture {
		i.enCapture = false
		i.stopPolling()
		if _, err := i.probeDriver.ConfigTrace(false, probe.TraceConfig{}); err != nil {
			i.log.WithError(err).Error("failed to stop adapter's trace")
		}
	}

	if wasEnabled {
		if err := i.fire(EventPostDisable); err != nil {
			i.log.WithError(err).Error("post-disable hook failed")
		}
		if i.target != nil {
			i.target.PublishEvent(target.EventTraceConfig, i.Name)
		}
	}

	return nil
}
