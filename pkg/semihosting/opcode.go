package semihosting

// Opcode identifies an ARM semihosting operation, per the ARM Semihosting
// specification version 2.0.
type Opcode uint32

const (
	SysOpen          Opcode = 0x01
	SysClose         Opcode = 0x02
	SysWriteC        Opcode = 0x03
	SysWrite0        Opcode = 0x04
	SysWrite         Opcode = 0x05
	SysRead          Opcode = 0x06
	SysReadC         Opcode = 0x07
	SysIsError       Opcode = 0x08
	SysIsTTY         Opcode = 0x09
	SysSeek          Opcode = 0x0A
	SysFlen          Opcode = 0x0C
	SysTmpnam        Opcode = 0x0D
	SysRemove        Opcode = 0x0E
	SysRename        Opcode = 0x0F
	SysClock         Opcode = 0x10
	SysTime          Opcode = 0x11
	SysSystem        Opcode = 0x12
	SysErrno         Opcode = 0x13
	SysGetCmdline    Opcode = 0x15
	SysHeapinfo      Opcode = 0x16
	SysExit          Opcode = 0x18
	SysExitExtended  Opcode = 0x20
	SysElapsed       Opcode = 0x30
	SysTickfreq      Opcode = 0x31
	UserCmdFirst     Opcode = 0x100
	UserCmdLast      Opcode = 0x107
)

func (o Opcode) IsUserCmd() bool {
	return o >= UserCmdFirst && o <= UserCmdLast
}

var opcodeNames = map[Opcode]string{
	SysOpen:         "SYS_OPEN",
	SysClose:        "SYS_CLOSE",
	SysWriteC:       "SYS_WRITEC",
	SysWrite0:       "SYS_WRITE0",
	SysWrite:        "SYS_WRITE",
	SysRead:         "SYS_READ",
	SysReadC:        "SYS_READC",
	SysIsError:      "SYS_ISERROR",
	SysIsTTY:        "SYS_ISTTY",
	SysSeek:         "SYS_SEEK",
	SysFlen:         "SYS_FLEN",
	SysTmpnam:       "SYS_TMPNAM",
	SysRemove:       "SYS_REMOVE",
	SysRename:       "SYS_RENAME",
	SysClock:        "SYS_CLOCK",
	SysTime:         "SYS_TIME",
	SysSystem:       "SYS_SYSTEM",
	SysErrno:        "SYS_ERRNO",
	SysGetCmdline:   "SYS_GET_CMDLINE",
	SysHeapinfo:     "SYS_HEAPINFO",
	SysExit:         "SYS_EXIT",
	SysExitExtended: "SYS_EXIT_EXTENDED",
	SysElapsed:      "SYS_ELAPSED",
	SysTickfreq:     "SYS_TICKFREQ",
}

func (o Opcode) String() string {
	if o.IsUserCmd() {
		return "SYS_USER_CMD"
	}
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "SYS_UNKNOWN"
}

// ADP application-exit reason codes (ARM semihosting spec, Appendix).
const (
	ADPStoppedApplicationExit uint64 = 0x20026
)
