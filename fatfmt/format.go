package fatfmt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrInterrupted is returned when Options.Stop asks Format to stop.
var ErrInterrupted = errors.New("fatfmt: interrupted")

// Phase names one step of Format.
type Phase string

// Format phases, in the order they run.
const (
	PhaseBoot   Phase = "boot"
	PhaseFSInfo Phase = "fsinfo"
	PhaseBackup Phase = "backup"
	PhaseFAT1   Phase = "fat1"
	PhaseFAT2   Phase = "fat2"
	PhaseRoot   Phase = "root"
	PhaseData   Phase = "data"
)

// Describe returns the status line shown while the phase runs.
func (p Phase) Describe() string {
	switch p {
	case PhaseBoot:
		return "Write boot sector"
	case PhaseFSInfo:
		return "Write FSInfo"
	case PhaseBackup:
		return "Backup boot sector"
	case PhaseFAT1:
		return "Initialize FAT #1"
	case PhaseFAT2:
		return "Duplicate FAT #2"
	case PhaseRoot:
		return "Clear root directory"
	case PhaseData:
		return "Full format: zeroing data area"
	default:
		return string(p)
	}
}

// Options configures Format.
type Options struct {
	Type       Type
	Size       int64  // volume size in bytes
	SectorSize uint16 // bytes per sector, 512 if zero
	Label      string // volume label, at most 11 characters
	OEM        string // OEM name, at most 8 characters
	Serial     uint32 // volume serial, DefaultSerial if zero

	// Full zeroes the data area as well.
	Full bool
	// Verify reads back every written chunk. The target must implement
	// io.ReaderAt.
	Verify bool
	// ChunkSize bounds a single WriteAt, 1 MiB if zero.
	ChunkSize int

	// Progress is called after each chunk with the absolute sectors it
	// covered.
	Progress func(phase Phase, first, count int64)
	// PhaseDone is called when a phase completes.
	PhaseDone func(phase Phase)
	// Stop is polled after each chunk; returning true aborts the format
	// with ErrInterrupted.
	Stop func() bool
}

// Result describes a planned or written volume.
type Result struct {
	Type     Type
	Size     int64
	Label    string
	OEM      string
	Geometry Geometry
	Layout   Layout
	Regions  Regions
}

// Plan computes the geometry and layout Format would write.
func Plan(opts Options) (Result, error) {
	ss := opts.SectorSize
	if ss == 0 {
		ss = 512
	}
	g, err := Preset(opts.Type, opts.Size, ss)
	if err != nil {
		return Result{}, err
	}
	l, err := ComputeLayout(opts.Type, &g)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Type:     opts.Type,
		Size:     opts.Size,
		Label:    opts.Label,
		OEM:      opts.OEM,
		Geometry: g,
		Layout:   l,
		Regions:  l.Regions(&g),
	}, nil
}

// Format writes a fresh volume to w. Sectors not belonging to the boot
// sector, FSInfo, FATs or root directory are left alone unless Full is
// set.
func Format(w io.WriterAt, opts Options) (Result, error) {
	res, err := Plan(opts)
	if err != nil {
		return Result{}, err
	}
	f := &formatter{w: w, opts: opts, bps: int64(res.Geometry.BytesPerSector)}
	f.chunk = int64(opts.ChunkSize)
	if f.chunk <= 0 {
		f.chunk = 1 << 20
	}
	f.chunk -= f.chunk % f.bps
	if f.chunk == 0 {
		f.chunk = f.bps
	}
	if opts.Verify {
		r, ok := w.(io.ReaderAt)
		if !ok {
			return Result{}, errors.New("fatfmt: verify needs a readable target")
		}
		f.r = r
	}
	if err := f.run(&res); err != nil {
		return res, err
	}
	if len(f.bad) > 0 {
		return res, fmt.Errorf("found %d bad sector(s): %v", len(f.bad), f.bad)
	}
	return res, nil
}

type formatter struct {
	w     io.WriterAt
	r     io.ReaderAt
	opts  Options
	bps   int64
	chunk int64
	bad   []int64
}

func (f *formatter) run(res *Result) error {
	g, l, reg := &res.Geometry, res.Layout, res.Regions
	serial := f.opts.Serial
	if serial == 0 {
		serial = DefaultSerial
	}

	boot := BootSector(res.Type, *g, f.opts.Label, f.opts.OEM, serial)
	if err := f.writeSpan(PhaseBoot, 0, boot); err != nil {
		return err
	}

	if res.Type == FAT32 {
		if err := f.writeSpan(PhaseFSInfo, int64(g.FSInfoSector), FSInfo(g.BytesPerSector)); err != nil {
			return err
		}
		if err := f.writeSpan(PhaseBackup, int64(g.BackupBootSector), boot); err != nil {
			return err
		}
	}

	fat := make([]byte, int64(l.FATSectors)*f.bps)
	InitFAT(res.Type, fat, g.Media)
	if err := f.writeSpan(PhaseFAT1, reg.FAT1.First, fat); err != nil {
		return err
	}
	if g.NumFATs > 1 {
		if err := f.writeSpan(PhaseFAT2, reg.FAT2.First, fat); err != nil {
			return err
		}
	}

	// The root directory is the fixed area on FAT12/16 and the first data
	// cluster on FAT32.
	rootFirst, rootLen := reg.Root.First, reg.Root.Sectors()
	if res.Type == FAT32 {
		rootFirst, rootLen = reg.Data.First, int64(g.SectorsPerCluster)
	}
	root := make([]byte, rootLen*f.bps)
	copy(root, LabelEntry(f.opts.Label))
	if err := f.writeSpan(PhaseRoot, rootFirst, root); err != nil {
		return err
	}

	if f.opts.Full {
		first := rootFirst + rootLen
		if res.Type != FAT32 {
			first = reg.Data.First
		}
		if n := reg.Data.Last - first + 1; n > 0 {
			if err := f.zeroSpan(PhaseData, first, n); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeSpan writes buf at absolute sector first in chunks.
func (f *formatter) writeSpan(phase Phase, first int64, buf []byte) error {
	for off := int64(0); off < int64(len(buf)); off += f.chunk {
		end := min(off+f.chunk, int64(len(buf)))
		if err := f.writeChunk(phase, first*f.bps+off, buf[off:end]); err != nil {
			return err
		}
	}
	if f.opts.PhaseDone != nil {
		f.opts.PhaseDone(phase)
	}
	return nil
}

// zeroSpan writes sectors zero sectors starting at absolute sector first.
func (f *formatter) zeroSpan(phase Phase, first, sectors int64) error {
	z := make([]byte, min(f.chunk, sectors*f.bps))
	total := sectors * f.bps
	for off := int64(0); off < total; off += int64(len(z)) {
		k := min(int64(len(z)), total-off)
		if err := f.writeChunk(phase, first*f.bps+off, z[:k]); err != nil {
			return err
		}
	}
	if f.opts.PhaseDone != nil {
		f.opts.PhaseDone(phase)
	}
	return nil
}

func (f *formatter) writeChunk(phase Phase, at int64, p []byte) error {
	if _, err := f.w.WriteAt(p, at); err != nil {
		return fmt.Errorf("%s at sector %d: %w", phase.Describe(), at/f.bps, err)
	}
	if f.r != nil {
		f.verify(at, p)
	}
	secs := int64(len(p)) / f.bps
	if secs <= 0 {
		secs = 1
	}
	if f.opts.Progress != nil {
		f.opts.Progress(phase, at/f.bps, secs)
	}
	if f.opts.Stop != nil && f.opts.Stop() {
		return ErrInterrupted
	}
	return nil
}

// verify reads p back and records every sector that differs.
func (f *formatter) verify(at int64, p []byte) {
	got := make([]byte, len(p))
	if _, err := f.r.ReadAt(got, at); err != nil {
		for s := int64(0); s < int64(len(p))/f.bps; s++ {
			f.bad = append(f.bad, at/f.bps+s)
		}
		return
	}
	for off := int64(0); off < int64(len(p)); off += f.bps {
		end := min(off+f.bps, int64(len(p)))
		if !bytes.Equal(got[off:end], p[off:end]) {
			f.bad = append(f.bad, (at+off)/f.bps)
		}
	}
}
