package simflash

import (
	"errors"
	"fmt"
)

// Layout describes contiguous physical sectors starting at Base.
// Sectors holds the erase-block size of each sector in order.
type Layout struct {
	Base    uint32
	Sectors []uint32
}

// Uniform returns a layout of count sectors of sectorSize bytes.
func Uniform(base, sectorSize uint32, count int) Layout {
	l := Layout{Base: base, Sectors: make([]uint32, count)}
	for i := range l.Sectors {
		l.Sectors[i] = sectorSize
	}
	return l
}

// STM32F4 returns the 1 MiB single-bank STM32F4 sector map:
// four 16K sectors, one 64K sector and seven 128K sectors.
func STM32F4(base uint32) Layout {
	const k = 1024
	return Layout{
		Base: base,
		Sectors: []uint32{
			16 * k, 16 * k, 16 * k, 16 * k,
			64 * k,
			128 * k, 128 * k, 128 * k, 128 * k, 128 * k, 128 * k, 128 * k,
		},
	}
}

// Validate checks that the layout is usable.
func (l Layout) Validate() error {
	if len(l.Sectors) == 0 {
		return errors.New("simflash: layout has no sectors")
	}
	total := uint64(l.Base)
	for i, sz := range l.Sectors {
		if sz == 0 || sz%8 != 0 {
			return fmt.Errorf("simflash: sector %d size %d is not a positive multiple of 8", i, sz)
		}
		total += uint64(sz)
	}
	if total >= 1<<32 {
		return fmt.Errorf("simflash: layout does not end below the 32-bit address limit")
	}
	return nil
}

// Size returns the total number of bytes in the layout.
func (l Layout) Size() uint32 {
	var n uint32
	for _, sz := range l.Sectors {
		n += sz
	}
	return n
}

// End returns the first address past the layout.
func (l Layout) End() uint32 {
	return l.Base + l.Size()
}

// SectorStart returns the absolute address of sector i.
func (l Layout) SectorStart(i uint32) uint32 {
	addr := l.Base
	for j := uint32(0); j < i && int(j) < len(l.Sectors); j++ {
		addr += l.Sectors[j]
	}
	return addr
}

// SectorAt returns the sector holding addr, or -1.
func (l Layout) SectorAt(addr uint32) int32 {
	if addr < l.Base {
		return -1
	}
	off := addr - l.Base
	for i, sz := range l.Sectors {
		if off < sz {
			return int32(i)
		}
		off -= sz
	}
	return -1
}
