package tpiu

import "time"

// pollBufSize matches the original's fixed on-stack capture buffer.
const pollBufSize = 4096

// TraceCallback receives raw trace bytes captured from the probe, the
// generic fan-out target for embedding applications (independent of any
// file or TCP sink).
type TraceCallback func(instance string, data []byte)

// startPolling launches the periodic poll loop. Must be called with mu
// held; the goroutine takes its own lock per tick.
func (i *Instance) startPolling(cb TraceCallback) {
	i.stopPoll = make(chan struct{})
	i.pollDone = make(chan struct{})
	stop := i.stopPoll
	done := i.pollDone

	go func() {
		defer close(done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				i.pollOnce(cb)
			}
		}
	}()
}

// stopPolling halts the poll loop and waits for it to exit. Must be
// called with mu held only on entry; it releases the lock while waiting
// so the goroutine's own pollOnce locking does not deadlock.
func (i *Instance) stopPolling() {
	if i.stopPoll == nil {
		return
	}
	close(i.stopPoll)
	done := i.pollDone
	i.mu.Unlock()
	<-done
	i.mu.Lock()
	i.stopPoll = nil
	i.pollDone = nil
}

// pollOnce performs one capture-and-fan-out cycle.
func (i *Instance) pollOnce(cb TraceCallback) {
	i.mu.Lock()
	probeDriver := i.probeDriver
	file := i.file
	svc := i.svc
	metricsCollector := i.metrics
	name := i.Name
	log := i.log
	i.mu.Unlock()

	if probeDriver == nil {
		return
	}

	buf := make([]byte, pollBufSize)
	n, err := probeDriver.PollTrace(buf)
	if err != nil || n == 0 {
		if err != nil {
			log.WithError(err).Error("probe poll_trace failed")
		}
		return
	}
	buf = buf[:n]

	if metricsCollector != nil {
		metricsCollector.AddPollBytes(name, n)
	}

	if cb != nil {
		cb(name, buf)
	}

	if file != nil {
		if _, err := file.Write(buf); err != nil {
			log.WithError(err).Error("error writing to the SWO trace destination file")
			return
		}
		file.Sync()
	}

	if svc != nil {
		svc.broadcast(buf)
	}
}
