package tpiu

// Register offsets relative to an instance's access-port spot base,
// mirroring the CoreSight TPIU/SWO register block.
const (
	regSSPSR = 0x000
	regCSPSR = 0x004
	regACPR  = 0x010
	regSPPR  = 0x0F0
	regFFSR  = 0x300
	regFFCR  = 0x304
	regFSCR  = 0x308
	regDEVID = 0xFC8
)

const (
	devidNoSyncBit        = 1 << 9
	devidSupportManchester = 1 << 10
	devidSupportUART       = 1 << 11
)

// acprMaxPrescaler is the largest value the ACPR prescaler field can hold.
const acprMaxPrescaler = 0x1FFF

// defaultBase is the base address used by the Cortex-M3/M4 integrated TPIU.
const defaultBase = 0xE0040000
