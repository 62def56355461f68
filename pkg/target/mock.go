package target

import (
	"encoding/binary"
	"fmt"
)

// Mock is an in-memory Target backed by a sparse byte map, standing in for
// a real DAP/AP memory session in tests.
type Mock struct {
	Mem        map[uint64]byte
	Order      binary.ByteOrder
	Is64Bit    bool
	TargetName string
	Events     []MockEvent

	// FailReads forces every ReadMemory call to fail, simulating a
	// transport-level failure in a debug session.
	FailReads bool
}

type MockEvent struct {
	Event   Event
	Payload any
}

func NewMock(order binary.ByteOrder, is64Bit bool) *Mock {
	return &Mock{
		Mem:        make(map[uint64]byte),
		Order:      order,
		Is64Bit:    is64Bit,
		TargetName: "mock0",
	}
}

func (m *Mock) ReadMemory(addr uint64, buf []byte) error {
	if m.FailReads {
		return fmt.Errorf("mock target: simulated transport failure")
	}
	for i := range buf {
		b, ok := m.Mem[addr+uint64(i)]
		if !ok {
			return fmt.Errorf("mock target: unmapped address 0x%x", addr+uint64(i))
		}
		buf[i] = b
	}
	return nil
}

func (m *Mock) WriteMemory(addr uint64, buf []byte) error {
	for i, b := range buf {
		m.Mem[addr+uint64(i)] = b
	}
	return nil
}

func (m *Mock) ByteOrder() binary.ByteOrder { return m.Order }

func (m *Mock) IsAddress64Bit() bool { return m.Is64Bit }

func (m *Mock) PublishEvent(event Event, payload any) {
	m.Events = append(m.Events, MockEvent{Event: event, Payload: payload})
}

func (m *Mock) Name() string { return m.TargetName }

// SeedString writes s followed by a NUL terminator at addr, a helper used
// by semihosting tests that need a target-resident filename or string.
func (m *Mock) SeedString(addr uint64, s string) {
	m.WriteMemory(addr, append([]byte(s), 0))
}
