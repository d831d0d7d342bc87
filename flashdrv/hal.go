package flashdrv

// Status is the result of a hardware capability call.
type Status uint8

// Hardware status codes.
const (
	StatusOK      Status = 0x00
	StatusError   Status = 0x01
	StatusBusy    Status = 0x02
	StatusTimeout Status = 0x03
)

// String returns a string representation of the hardware status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusBusy:
		return "busy"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProgramType selects the width of one program operation.
type ProgramType uint32

// Program widths.
const (
	ProgramByte       ProgramType = 0x00 // 8-bit
	ProgramHalfWord   ProgramType = 0x01 // 16-bit
	ProgramWord       ProgramType = 0x02 // 32-bit
	ProgramDoubleWord ProgramType = 0x03 // 64-bit
)

// Width returns the number of bytes written by one program operation.
func (t ProgramType) Width() int {
	switch t {
	case ProgramByte:
		return 1
	case ProgramHalfWord:
		return 2
	case ProgramWord:
		return 4
	case ProgramDoubleWord:
		return 8
	default:
		return 0
	}
}

// Erase descriptor values.
const (
	EraseSectors uint32 = 0x00
	EraseMass    uint32 = 0x01

	Bank1    uint32 = 1
	Bank2    uint32 = 2
	BankBoth uint32 = Bank1 | Bank2

	VoltageRange1 uint32 = 0x00 // 1.8V to 2.1V
	VoltageRange2 uint32 = 0x01 // 2.1V to 2.7V
	VoltageRange3 uint32 = 0x02 // 2.7V to 3.6V
	VoltageRange4 uint32 = 0x03 // 2.7V to 3.6V + external Vpp
)

// SectorErrorNone is the sector error value reported by a successful erase.
const SectorErrorNone uint32 = 0xFFFFFFFF

// EraseInit describes one erase request.
type EraseInit struct {
	TypeErase    uint32
	Banks        uint32
	Sector       uint32
	NbSectors    uint32
	VoltageRange uint32
}

// HAL is the set of synchronous flash controller capabilities the driver
// needs. Implementations return StatusBusy to ask the driver to retry.
type HAL interface {
	// Program writes one unit of the given width at addr.
	Program(typ ProgramType, addr uint32, data uint64) Status
	// Unlock enables erase and program operations.
	Unlock() Status
	// Lock disables erase and program operations.
	Lock() Status
	// EraseSector erases the sectors described by init. On success
	// sectorError is set to SectorErrorNone.
	EraseSector(init *EraseInit, sectorError *uint32) Status
	// SectorToAddress returns the first address of a physical sector.
	SectorToAddress(sector uint32) uint32
	// AddressToSector returns the physical sector holding addr, or a
	// negative value if addr is not mapped.
	AddressToSector(addr uint32) int32
	// SectorSize returns the erase-block size of a physical sector.
	SectorSize(sector uint32) uint32
}

// Capability function types, one per HAL method.
type (
	ProgramFunc         func(typ ProgramType, addr uint32, data uint64) Status
	UnlockFunc          func() Status
	LockFunc            func() Status
	EraseSectorFunc     func(init *EraseInit, sectorError *uint32) Status
	SectorToAddressFunc func(sector uint32) uint32
	AddressToSectorFunc func(addr uint32) int32
	SectorSizeFunc      func(sector uint32) uint32
)

// Callbacks is the closure form of HAL. Any field may be swapped for a
// wrapper, which is how callers observe or fake individual operations.
// A nil field is an absent capability and fails Init.
type Callbacks struct {
	Program         ProgramFunc
	Unlock          UnlockFunc
	Lock            LockFunc
	EraseSector     EraseSectorFunc
	SectorToAddress SectorToAddressFunc
	AddressToSector AddressToSectorFunc
	SectorSize      SectorSizeFunc
}

// FromHAL binds every capability of h.
func FromHAL(h HAL) Callbacks {
	if h == nil {
		return Callbacks{}
	}
	return Callbacks{
		Program:         h.Program,
		Unlock:          h.Unlock,
		Lock:            h.Lock,
		EraseSector:     h.EraseSector,
		SectorToAddress: h.SectorToAddress,
		AddressToSector: h.AddressToSector,
		SectorSize:      h.SectorSize,
	}
}

// missing returns the name of the first absent capability, or "".
func (c *Callbacks) missing() string {
	switch {
	case c.Program == nil:
		return "Program"
	case c.Unlock == nil:
		return "Unlock"
	case c.Lock == nil:
		return "Lock"
	case c.EraseSector == nil:
		return "EraseSector"
	case c.SectorToAddress == nil:
		return "SectorToAddress"
	case c.AddressToSector == nil:
		return "AddressToSector"
	case c.SectorSize == nil:
		return "SectorSize"
	}
	return ""
}
