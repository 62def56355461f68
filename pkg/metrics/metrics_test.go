package metrics

import "testing"

func TestSemihostingCollector_ObserveDispatch(t *testing.T) {
	c := NewSemihostingCollector(nil)
	c.ObserveDispatch("OPEN")
	c.ObserveDispatch("OPEN")
	c.ObserveDispatch("WRITE")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dispatchTotal["OPEN"] != 2 {
		t.Errorf("OPEN dispatch count = %d, want 2", c.dispatchTotal["OPEN"])
	}
	if c.dispatchTotal["WRITE"] != 1 {
		t.Errorf("WRITE dispatch count = %d, want 1", c.dispatchTotal["WRITE"])
	}
}

func TestSemihostingCollector_FileioPending(t *testing.T) {
	c := NewSemihostingCollector(nil)
	c.SetFileioPending("sess1", true)
	c.mu.Lock()
	if !c.fileioPending["sess1"] {
		t.Error("expected sess1 pending")
	}
	c.mu.Unlock()

	c.SetFileioPending("sess1", false)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fileioPending["sess1"] {
		t.Error("expected sess1 cleared")
	}
}

func TestTpiuCollector_AddPollBytes(t *testing.T) {
	c := NewTpiuCollector(nil)
	c.AddPollBytes("swo0", 100)
	c.AddPollBytes("swo0", 50)
	c.mu.Lock()
	got := c.pollBytes["swo0"]
	c.mu.Unlock()
	if got != 150 {
		t.Errorf("pollBytes = %d, want 150", got)
	}
}

func TestTpiuCollector_SetBroadcastClients(t *testing.T) {
	c := NewTpiuCollector(nil)
	c.SetBroadcastClients("swo0", 3)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broadcastConns["swo0"] != 3 {
		t.Errorf("broadcastConns = %d, want 3", c.broadcastConns["swo0"])
	}
}
