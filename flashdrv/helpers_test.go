package flashdrv_test

import (
	"bytes"
	"sync/atomic"
	"testing"

	"nordisk/flashdrv"
	"nordisk/simflash"
)

// Geometry of the reference test disk: 128 bytes of flash split into four
// 32-byte erase sectors, used as eight 16-byte logical sectors.
const (
	testBase      = 0x08000000
	diskSize      = 128
	physSize      = 32
	logicalSize   = 16
	logicalCount  = diskSize / logicalSize
	physicalCount = diskSize / physSize
)

// fakeHW wraps a simulated flash with call counters and injectable
// statuses, and checks the arguments the driver passes.
type fakeHW struct {
	t     *testing.T
	flash *simflash.Flash

	programs atomic.Int32
	unlocks  atomic.Int32
	locks    atomic.Int32
	erases   atomic.Int32

	programStatus flashdrv.Status
	unlockStatus  flashdrv.Status
	lockStatus    flashdrv.Status
	eraseStatus   flashdrv.Status
}

func newFakeHW(t *testing.T, layout simflash.Layout) *fakeHW {
	t.Helper()
	return &fakeHW{t: t, flash: simflash.New(layout)}
}

func (h *fakeHW) callbacks() flashdrv.Callbacks {
	cb := flashdrv.FromHAL(h.flash)
	cb.Program = func(typ flashdrv.ProgramType, addr uint32, data uint64) flashdrv.Status {
		if typ != flashdrv.ProgramWord {
			h.t.Errorf("Program type = %d, want %d", typ, flashdrv.ProgramWord)
		}
		h.programs.Add(1)
		if h.programStatus != flashdrv.StatusOK {
			return h.programStatus
		}
		return h.flash.Program(typ, addr, data)
	}
	cb.Unlock = func() flashdrv.Status {
		h.unlocks.Add(1)
		if h.unlockStatus != flashdrv.StatusOK {
			return h.unlockStatus
		}
		return h.flash.Unlock()
	}
	cb.Lock = func() flashdrv.Status {
		h.locks.Add(1)
		st := h.flash.Lock()
		if h.lockStatus != flashdrv.StatusOK {
			return h.lockStatus
		}
		return st
	}
	cb.EraseSector = func(init *flashdrv.EraseInit, sectorError *uint32) flashdrv.Status {
		if init.TypeErase != flashdrv.EraseSectors || init.Banks != flashdrv.BankBoth ||
			init.VoltageRange != flashdrv.VoltageRange3 || init.NbSectors != 1 {
			h.t.Errorf("EraseSector init = %+v", *init)
		}
		h.erases.Add(1)
		if h.eraseStatus != flashdrv.StatusOK {
			return h.eraseStatus
		}
		return h.flash.EraseSector(init, sectorError)
	}
	return cb
}

func (h *fakeHW) config() flashdrv.Config {
	l := h.flash.Layout()
	return flashdrv.Config{
		Callbacks:         h.callbacks(),
		Memory:            h.flash,
		StartDiskAddress:  l.Base,
		EndDiskAddress:    l.End(),
		LogicalSectorSize: logicalSize,
	}
}

type counts struct {
	programs, unlocks, locks, erases int32
}

// take returns the counters and zeroes them.
func (h *fakeHW) take() counts {
	return counts{
		programs: h.programs.Swap(0),
		unlocks:  h.unlocks.Swap(0),
		locks:    h.locks.Swap(0),
		erases:   h.erases.Swap(0),
	}
}

func (h *fakeHW) expect(t *testing.T, want counts) {
	t.Helper()
	if got := h.take(); got != want {
		t.Errorf("calls = %+v, want %+v", got, want)
	}
}

// disk returns the flash bytes backing the logical disk.
func (h *fakeHW) disk() []byte {
	return h.flash.Bytes()
}

func newTestDriver(t *testing.T) (*flashdrv.Driver, *fakeHW) {
	t.Helper()
	hw := newFakeHW(t, simflash.Uniform(testBase, physSize, physicalCount))
	drv, err := flashdrv.New(hw.config())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return drv, hw
}

// pattern returns n bytes valued seed+j.
func pattern(seed, n int) []byte {
	b := make([]byte, n)
	for j := range b {
		b[j] = byte(seed + j)
	}
	return b
}

func checkDisk(t *testing.T, hw *fakeHW, off int, want []byte) {
	t.Helper()
	got := hw.disk()[off : off+len(want)]
	if !bytes.Equal(got, want) {
		t.Errorf("flash[%d:%d] = %v, want %v", off, off+len(want), got, want)
	}
}
