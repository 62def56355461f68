// Package target describes the host-side view of a single debug target,
// the collaborator that actually owns the DAP/AP memory access session.
// Construction and lifetime of that session are out of scope here; this
// package only states the contract semihosting and TPIU/SWO depend on.
package target

import "encoding/binary"

// Event identifies a target lifecycle notification a core can publish
// for an external event hook (halt, resume, reset, user command, trace
// configuration change) to observe.
type Event int

const (
	EventHalted Event = iota
	EventResumed
	EventResetAssert
	EventResetDeassert
	EventUserCmd
	EventTraceConfig
)

// Target is the narrow memory-access and event surface that semihosting
// and TPIU/SWO are built against. A real implementation is backed by a
// DAP/AP session and an interpreter event dispatcher, neither of which
// this module implements.
type Target interface {
	// ReadMemory reads len(buf) bytes from target address addr.
	ReadMemory(addr uint64, buf []byte) error
	// WriteMemory writes buf to target address addr.
	WriteMemory(addr uint64, buf []byte) error
	// ByteOrder is the target's data byte order.
	ByteOrder() binary.ByteOrder
	// IsAddress64Bit reports whether the target's semihosting ABI uses
	// 8-byte fields (AArch64) rather than 4-byte fields (AArch32).
	IsAddress64Bit() bool
	// PublishEvent notifies the embedding application's event hook
	// mechanism that event occurred, carrying an implementation-defined
	// payload (e.g. the instance whose state changed).
	PublishEvent(event Event, payload any)
	// Name identifies the target for logging.
	Name() string
}
