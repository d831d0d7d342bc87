package flashdrv

import (
	"encoding/binary"
	"fmt"
	"runtime"
)

const (
	wordSize   = 4
	erasedByte = 0xFF
	erasedWord = 0xFFFFFFFF
)

// writeSession is the state of one Write call.
type writeSession struct {
	src []byte

	// flash byte range being written
	start, stop uint32
	// physical sectors holding start and stop-1
	first, last uint32

	consumed int    // bytes of src merged so far
	cursor   uint32 // flash address being merged
}

// Write stores count logical sectors from buf starting at sector.
//
// Every physical sector touched by the request is rebuilt in a scratch
// buffer: bytes outside the request keep their current flash content,
// bytes inside it come from buf. The sector is erased only if some
// incoming byte differs from a flash byte that is not already erased, and
// only words that differ from flash (and are not all ones) are programmed.
//
// Physical sectors are processed in ascending order and a failure stops
// at the failing sector. Sectors completed before the failure stay
// written: Write is not atomic across physical sectors.
func (d *Driver) Write(buf []byte, sector, count uint32) error {
	cfg := d.config()
	if cfg == nil {
		return ErrNotReady
	}
	if !d.acquire() {
		return ErrWriteProtected
	}
	defer d.release()

	start, stop, err := checkRange(cfg, buf, sector, count)
	if err != nil {
		d.logError("write rejected", "sector", sector, "count", count, "err", err)
		return err
	}

	first := cfg.AddressToSector(start)
	last := cfg.AddressToSector(stop - 1)
	if first < 0 || last < 0 || int64(last)-int64(first)+1 <= 0 {
		d.logError("write range not mapped", "first", first, "last", last)
		return fmt.Errorf("%w: range 0x%08X-0x%08X maps to sectors %d..%d",
			ErrIO, start, stop, first, last)
	}

	s := &writeSession{
		src:   buf,
		start: start,
		stop:  stop,
		first: uint32(first),
		last:  uint32(last),
	}
	d.logDebug("write",
		"sector", sector, "count", count,
		"start", fmt.Sprintf("0x%08X", start),
		"stop", fmt.Sprintf("0x%08X", stop),
		"physical", fmt.Sprintf("%d..%d", first, last))

	for phys := s.first; phys <= s.last; phys++ {
		if err := d.writeSector(cfg, s, phys); err != nil {
			d.logError("write failed", "sector", phys, "err", err)
			return err
		}
	}
	return nil
}

// writeSector runs one read-modify-erase-program cycle on a physical
// sector. Lock is always called once Unlock has been attempted.
func (d *Driver) writeSector(cfg *Config, s *writeSession, phys uint32) error {
	size := cfg.SectorSize(phys)
	if size == 0 || size%wordSize != 0 {
		return fmt.Errorf("%w: sector %d has unusable erase size %d", ErrIO, phys, size)
	}
	base := cfg.SectorToAddress(phys)

	scratch := make([]byte, size)
	if err := readAt(cfg.Memory, scratch, base); err != nil {
		return fmt.Errorf("%w: read sector %d at 0x%08X: %v", ErrIO, phys, base, err)
	}
	needsErase, needsWrite := s.merge(scratch, base)
	d.logDebug("sector merged",
		"sector", phys, "size", size,
		"erase", needsErase, "write", needsWrite, "consumed", s.consumed)

	st := cfg.Unlock()
	defer d.lock(cfg, phys)
	if st != StatusOK {
		return fmt.Errorf("%w: unlock for sector %d: %s", ErrIO, phys, st)
	}

	if needsErase {
		if err := d.erase(cfg, phys); err != nil {
			return err
		}
	}
	if needsWrite {
		if err := d.program(cfg, phys, base, scratch); err != nil {
			return err
		}
	}
	return nil
}

// merge overlays the part of the request that falls in the sector at base
// onto scratch, which holds the sector's current content.
func (s *writeSession) merge(scratch []byte, base uint32) (needsErase, needsWrite bool) {
	s.cursor = base
	for i := range scratch {
		if s.cursor >= s.start && s.cursor < s.stop {
			in := s.src[s.cursor-s.start]
			if !needsErase && scratch[i] != erasedByte && scratch[i] != in {
				needsErase = true
			}
			needsWrite = true
			scratch[i] = in
			s.consumed++
		}
		s.cursor++
	}
	return needsErase, needsWrite
}

func (d *Driver) lock(cfg *Config, phys uint32) {
	if st := cfg.Lock(); st != StatusOK {
		d.logError("lock failed", "sector", phys, "status", st)
	}
}

func (d *Driver) erase(cfg *Config, phys uint32) error {
	init := EraseInit{
		TypeErase:    EraseSectors,
		Banks:        BankBoth,
		Sector:       phys,
		NbSectors:    1,
		VoltageRange: VoltageRange3,
	}
	var sectorError uint32
	st := retry(func() Status { return cfg.EraseSector(&init, &sectorError) })
	if st != StatusOK || sectorError != SectorErrorNone {
		return fmt.Errorf("%w: erase sector %d: status %s, sector error 0x%08X",
			ErrIO, phys, st, sectorError)
	}
	d.logDebug("sector erased", "sector", phys)
	return nil
}

// program writes scratch to the sector at base one word at a time.
func (d *Driver) program(cfg *Config, phys, base uint32, scratch []byte) error {
	var cur [wordSize]byte
	words := 0
	for off := 0; off < len(scratch); off += wordSize {
		word := binary.LittleEndian.Uint32(scratch[off:])
		if word == erasedWord {
			continue
		}
		addr := base + uint32(off)
		if err := readAt(cfg.Memory, cur[:], addr); err != nil {
			return fmt.Errorf("%w: read 0x%08X: %v", ErrIO, addr, err)
		}
		if binary.LittleEndian.Uint32(cur[:]) == word {
			continue
		}
		st := retry(func() Status { return cfg.Program(ProgramWord, addr, uint64(word)) })
		if st != StatusOK {
			return fmt.Errorf("%w: program 0x%08X in sector %d: %s", ErrIO, addr, phys, st)
		}
		words++
		d.logTrace("word programmed", "addr", fmt.Sprintf("0x%08X", addr), "data", fmt.Sprintf("0x%08X", word))
	}
	d.logDebug("sector programmed", "sector", phys, "words", words)
	return nil
}

// retry repeats op while the hardware reports busy.
func retry(op func() Status) Status {
	for {
		st := op()
		if st != StatusBusy {
			return st
		}
		runtime.Gosched()
	}
}
