// Package simflash simulates a memory-mapped NOR flash controller.
//
// Flash implements flashdrv.HAL and io.ReaderAt over absolute addresses.
// Program can only clear bits, erase resets whole sectors to 0xFF, and
// both are refused while the controller is locked. Storage is a byte
// slice, or a memory-mapped image file opened with Open.
package simflash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"nordisk/flashdrv"
)

// Stats counts executed operations.
type Stats struct {
	Programs int
	Erases   int
	Unlocks  int
	Locks    int
	Busy     int // busy answers given instead of executing
}

// Flash is a simulated flash controller. It is safe for concurrent use.
type Flash struct {
	mu     sync.Mutex
	layout Layout
	mem    []byte
	locked bool

	busyEvery int
	busyLeft  int

	stats   Stats
	release func() error
}

var _ flashdrv.HAL = (*Flash)(nil)

// New returns an erased in-memory flash with the given layout.
func New(layout Layout) *Flash {
	if err := layout.Validate(); err != nil {
		panic(err)
	}
	f := newFlash(layout, make([]byte, layout.Size()))
	f.fill(0, len(f.mem))
	return f
}

func newFlash(layout Layout, mem []byte) *Flash {
	return &Flash{
		layout: Layout{Base: layout.Base, Sectors: append([]uint32(nil), layout.Sectors...)},
		mem:    mem,
		locked: true,
	}
}

// Open maps the image file at path as flash. A missing or empty file is
// created and erased; an existing image must match the layout size.
func Open(path string, layout Layout) (*Flash, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	size := int64(layout.Size())

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open flash image %q: %w", path, err)
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat flash image %q: %w", path, err)
	}
	fresh := st.Size() == 0
	switch {
	case fresh:
		if err := file.Truncate(size); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("truncate flash image %q to %d: %w", path, size, err)
		}
	case st.Size() != size:
		_ = file.Close()
		return nil, fmt.Errorf("flash image %q is %d bytes, layout needs %d", path, st.Size(), size)
	}

	mem, unmap, err := mapImage(file, int(size))
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	f := newFlash(layout, mem)
	f.release = func() error {
		errUnmap := unmap()
		errClose := file.Close()
		return errors.Join(errUnmap, errClose)
	}
	if fresh {
		f.fill(0, len(mem))
	}
	return f, nil
}

// Close flushes and releases a file-backed flash. It is a no-op for
// in-memory flash.
func (f *Flash) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.release == nil {
		return nil
	}
	err := f.release()
	f.release = nil
	f.mem = nil
	return err
}

// Layout returns the sector layout.
func (f *Flash) Layout() Layout {
	return f.layout
}

// SetBusy makes every following program and erase answer StatusBusy n
// times before executing.
func (f *Flash) SetBusy(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busyEvery = n
	f.busyLeft = n
}

// Stats returns the operation counters.
func (f *Flash) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// ResetStats zeroes the operation counters.
func (f *Flash) ResetStats() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = Stats{}
}

// Locked reports whether the controller is locked.
func (f *Flash) Locked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked
}

// Bytes returns a copy of the whole flash content.
func (f *Flash) Bytes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]byte(nil), f.mem...)
}

// ReadAt reads flash at the absolute address off.
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if off < int64(f.layout.Base) || off >= int64(f.layout.Base)+int64(len(f.mem)) {
		return 0, fmt.Errorf("simflash: read at 0x%08X: %w", off, os.ErrInvalid)
	}
	n := copy(p, f.mem[off-int64(f.layout.Base):])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Unlock enables program and erase.
func (f *Flash) Unlock() flashdrv.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Unlocks++
	f.locked = false
	return flashdrv.StatusOK
}

// Lock disables program and erase.
func (f *Flash) Lock() flashdrv.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Locks++
	f.locked = true
	return flashdrv.StatusOK
}

// Program writes one unit of data at addr, little-endian.
func (f *Flash) Program(typ flashdrv.ProgramType, addr uint32, data uint64) flashdrv.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy() {
		return flashdrv.StatusBusy
	}
	f.stats.Programs++

	width := typ.Width()
	if f.locked || width == 0 || addr%uint32(width) != 0 {
		return flashdrv.StatusError
	}
	off, ok := f.offset(addr, uint32(width))
	if !ok {
		return flashdrv.StatusError
	}
	for i := 0; i < width; i++ {
		b := byte(data >> (8 * i))
		if f.mem[off+i]&b != b {
			return flashdrv.StatusError
		}
	}
	for i := 0; i < width; i++ {
		f.mem[off+i] = byte(data >> (8 * i))
	}
	return flashdrv.StatusOK
}

// EraseSector erases the sectors described by init, or the whole flash
// for a mass erase.
func (f *Flash) EraseSector(init *flashdrv.EraseInit, sectorError *uint32) flashdrv.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy() {
		return flashdrv.StatusBusy
	}
	f.stats.Erases++

	if init == nil || sectorError == nil {
		return flashdrv.StatusError
	}
	if f.locked {
		*sectorError = init.Sector
		return flashdrv.StatusError
	}
	if init.TypeErase == flashdrv.EraseMass {
		f.fill(0, len(f.mem))
		*sectorError = flashdrv.SectorErrorNone
		return flashdrv.StatusOK
	}

	count := uint64(len(f.layout.Sectors))
	if init.NbSectors == 0 || uint64(init.Sector)+uint64(init.NbSectors) > count {
		*sectorError = init.Sector
		return flashdrv.StatusError
	}
	for s := init.Sector; s < init.Sector+init.NbSectors; s++ {
		start := f.layout.SectorStart(s) - f.layout.Base
		f.fill(int(start), int(f.layout.Sectors[s]))
	}
	*sectorError = flashdrv.SectorErrorNone
	return flashdrv.StatusOK
}

// SectorToAddress returns the first address of sector.
func (f *Flash) SectorToAddress(sector uint32) uint32 {
	return f.layout.SectorStart(sector)
}

// AddressToSector returns the sector holding addr, or -1.
func (f *Flash) AddressToSector(addr uint32) int32 {
	return f.layout.SectorAt(addr)
}

// SectorSize returns the erase-block size of sector, or 0 if it does not
// exist.
func (f *Flash) SectorSize(sector uint32) uint32 {
	if int(sector) >= len(f.layout.Sectors) {
		return 0
	}
	return f.layout.Sectors[sector]
}

// busy consumes one pending busy answer. Callers hold f.mu.
func (f *Flash) busy() bool {
	if f.busyLeft > 0 {
		f.busyLeft--
		f.stats.Busy++
		return true
	}
	f.busyLeft = f.busyEvery
	return false
}

func (f *Flash) offset(addr, n uint32) (int, bool) {
	if addr < f.layout.Base {
		return 0, false
	}
	off := uint64(addr - f.layout.Base)
	if off+uint64(n) > uint64(len(f.mem)) {
		return 0, false
	}
	return int(off), true
}

func (f *Flash) fill(off, n int) {
	b := f.mem[off : off+n]
	for i := range b {
		b[i] = 0xFF
	}
}
