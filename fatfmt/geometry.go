// Package fatfmt builds FAT12/16/32 volumes on any io.WriterAt.
package fatfmt

import (
	"errors"
	"fmt"
	"strings"
)

/* ===================== FAT types and geometry ===================== */

// Type represents the type of FAT filesystem (12, 16, or 32-bit)
type Type int

// FAT filesystem types
const (
	FAT12 Type = 12
	FAT16 Type = 16
	FAT32 Type = 32
)

// String returns the name of the FAT type, e.g. "FAT12".
func (t Type) String() string {
	return fmt.Sprintf("FAT%d", int(t))
}

// ParseType parses "fat12", "fat16" or "fat32", in any case.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fat12":
		return FAT12, nil
	case "fat16":
		return FAT16, nil
	case "fat32":
		return FAT32, nil
	default:
		return 0, fmt.Errorf("unknown FAT type %q", s)
	}
}

// Geometry holds the BIOS parameter block fields of a volume.
type Geometry struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntries       uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT16   uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
	SectorsPerFAT32   uint32
	RootCluster       uint32
	FSInfoSector      uint16
	BackupBootSector  uint16
}

// TotalSectors returns the sector count from whichever BPB field holds it.
func (g *Geometry) TotalSectors() uint32 {
	if g.TotalSectors16 != 0 {
		return uint32(g.TotalSectors16)
	}
	return g.TotalSectors32
}

// SetTotalSectors stores n in the 16-bit field when it fits, else in the
// 32-bit one.
func (g *Geometry) SetTotalSectors(n uint32) {
	if n <= 0xFFFF {
		g.TotalSectors16 = uint16(n)
		g.TotalSectors32 = 0
	} else {
		g.TotalSectors16 = 0
		g.TotalSectors32 = n
	}
}

// ClusterBytes returns the cluster size in bytes.
func (g *Geometry) ClusterBytes() int {
	return int(g.SectorsPerCluster) * int(g.BytesPerSector)
}

// Preset returns a starting geometry for a volume of size bytes made of
// sectorSize-byte sectors. Floppy sizes get their classic layouts when
// sectorSize is 512. FAT sizes are refined by ComputeLayout.
func Preset(t Type, size int64, sectorSize uint16) (Geometry, error) {
	if sectorSize < 512 || sectorSize&(sectorSize-1) != 0 {
		return Geometry{}, fmt.Errorf("sector size %d is not a power of two >= 512", sectorSize)
	}
	if size <= 0 || size%int64(sectorSize) != 0 {
		return Geometry{}, fmt.Errorf("size %d is not a positive multiple of %d", size, sectorSize)
	}
	g := Geometry{BytesPerSector: sectorSize, ReservedSectors: 1, NumFATs: 2, Media: 0xF0, NumHeads: 2}
	ts := uint32(size / int64(sectorSize))

	if sectorSize == 512 && t != FAT32 {
		if ok := floppyPreset(t, size, &g); ok {
			g.SetTotalSectors(ts)
			return g, nil
		}
	}

	if t == FAT12 && size < 16*1024*1024 {
		g.Media = 0xF8
		g.SectorsPerTrack = 32
		g.RootEntries = 512
		g.SectorsPerCluster = 1
		g.SectorsPerFAT16 = 16
		// Small flash disks cannot afford a 16K root directory.
		if size <= 256*1024 {
			g.RootEntries = 64
			g.SectorsPerFAT16 = 1
		}
		g.SetTotalSectors(ts)
		return g, nil
	}
	if t == FAT16 && size <= 32*1024*1024 {
		g.Media = 0xF8
		g.SectorsPerTrack = 32
		g.RootEntries = 512
		switch {
		case size <= 4*1024*1024:
			g.SectorsPerCluster = 2
		case size <= 8*1024*1024:
			g.SectorsPerCluster = 4
		case size <= 16*1024*1024:
			g.SectorsPerCluster = 8
		default:
			g.SectorsPerCluster = 16
		}
		g.SetTotalSectors(ts)
		g.SectorsPerFAT16 = 32
		return g, nil
	}
	if t == FAT32 {
		g.Media = 0xF8
		g.RootEntries = 0
		g.ReservedSectors = 32
		g.FSInfoSector = 1
		g.BackupBootSector = 6
		g.RootCluster = 2
		g.SectorsPerTrack = 63
		g.NumHeads = 255
		switch {
		case size <= 8*1024*1024*1024:
			g.SectorsPerCluster = 8
		case size <= 32*1024*1024*1024:
			g.SectorsPerCluster = 16
		default:
			g.SectorsPerCluster = 32
		}
		g.SetTotalSectors(ts)
		return g, nil
	}
	return g, fmt.Errorf("unsupported size %d for %s", size, t)
}

func floppyPreset(t Type, size int64, g *Geometry) bool {
	switch size {
	case 360 * 1024:
		g.SectorsPerTrack, g.RootEntries, g.SectorsPerCluster, g.SectorsPerFAT16 = 9, 64, 2, 2
	case 720 * 1024:
		g.SectorsPerTrack, g.RootEntries, g.SectorsPerCluster, g.SectorsPerFAT16 = 9, 112, 2, 3
	case 1200 * 1024:
		g.SectorsPerTrack, g.RootEntries, g.SectorsPerCluster, g.SectorsPerFAT16 = 15, 224, 1, 7
	case 1440 * 1024:
		g.SectorsPerTrack, g.RootEntries, g.SectorsPerCluster, g.SectorsPerFAT16 = 18, 224, 1, 9
	case 2880 * 1024:
		g.SectorsPerTrack, g.RootEntries = 36, 240
		if t == FAT12 {
			g.SectorsPerCluster, g.SectorsPerFAT16 = 1, 9
		} else {
			g.SectorsPerCluster, g.SectorsPerFAT16 = 2, 18
		}
	default:
		return false
	}
	return true
}

// Layout is the result of sizing the FATs for a geometry.
type Layout struct {
	Type           Type
	FATSectors     uint32
	RootDirSectors uint32
	DataSectors    uint32
	Clusters       uint32
}

// ComputeLayout sizes the FATs for g, updating its sectors-per-FAT field,
// and checks the cluster count against the limits of t.
func ComputeLayout(t Type, g *Geometry) (Layout, error) {
	if g.BytesPerSector == 0 || g.SectorsPerCluster == 0 || g.NumFATs == 0 {
		return Layout{}, errors.New("incomplete geometry")
	}
	bps := uint32(g.BytesPerSector)
	l := Layout{Type: t}
	l.RootDirSectors = ((uint32(g.RootEntries) * 32) + bps - 1) / bps
	total := int64(g.TotalSectors())

	// dataSectors returns the data area left by fat sectors per FAT.
	dataSectors := func(fat uint32) (uint32, error) {
		n := total - int64(g.ReservedSectors) - int64(g.NumFATs)*int64(fat) - int64(l.RootDirSectors)
		if n <= 0 {
			return 0, fmt.Errorf("no room for data: %d sectors, %d reserved, %d per FAT", total, g.ReservedSectors, fat)
		}
		return uint32(n), nil
	}

	if t == FAT32 {
		l.RootDirSectors = 0
		if g.ReservedSectors < 32 {
			return Layout{}, errors.New("FAT32 requires >= 32 reserved sectors")
		}
		for i := 0; i < 8; i++ {
			l.FATSectors = g.SectorsPerFAT32
			if l.FATSectors == 0 {
				l.FATSectors = 1
			}
			var err error
			if l.DataSectors, err = dataSectors(l.FATSectors); err != nil {
				return Layout{}, err
			}
			l.Clusters = l.DataSectors / uint32(g.SectorsPerCluster)
			need := ((l.Clusters+2)*4 + bps - 1) / bps
			if need == l.FATSectors {
				break
			}
			g.SectorsPerFAT32 = need
		}
		if l.Clusters < 65525 {
			return Layout{}, fmt.Errorf("clusters=%d too small for FAT32", l.Clusters)
		}
		l.FATSectors = g.SectorsPerFAT32
		return l, nil
	}

	for i := 0; i < 8; i++ {
		l.FATSectors = uint32(g.SectorsPerFAT16)
		var err error
		if l.DataSectors, err = dataSectors(l.FATSectors); err != nil {
			return Layout{}, err
		}
		l.Clusters = l.DataSectors / uint32(g.SectorsPerCluster)
		entries := l.Clusters + 2
		var neededBytes uint32
		if t == FAT12 {
			neededBytes = ((entries * 3) + 1) / 2
		} else {
			neededBytes = entries * 2
		}
		need := (neededBytes + bps - 1) / bps
		if need == l.FATSectors {
			break
		}
		g.SectorsPerFAT16 = uint16(need)
	}
	if t == FAT12 && l.Clusters >= 4085 {
		return Layout{}, fmt.Errorf("clusters=%d invalid for FAT12", l.Clusters)
	}
	if t == FAT16 && (l.Clusters < 4085 || l.Clusters > 65524) {
		return Layout{}, fmt.Errorf("clusters=%d invalid for FAT16", l.Clusters)
	}
	return l, nil
}

// Span is an inclusive absolute sector range.
type Span struct {
	First, Last int64
}

// Sectors returns the number of sectors in the span.
func (s Span) Sectors() int64 {
	return s.Last - s.First + 1
}

// Regions holds the absolute sector ranges of the areas of a volume.
type Regions struct {
	Boot Span
	FAT1 Span
	FAT2 Span
	Root Span // First is -1 on FAT32
	Data Span
}

// Regions computes where each area of the volume lives.
func (l Layout) Regions(g *Geometry) Regions {
	fat1 := int64(g.ReservedSectors)
	fat2 := fat1 + int64(l.FATSectors)
	data := int64(g.ReservedSectors) + int64(g.NumFATs)*int64(l.FATSectors)
	root := Span{First: -1, Last: -2}
	if l.Type != FAT32 {
		root = Span{First: data, Last: data + int64(l.RootDirSectors) - 1}
		data += int64(l.RootDirSectors)
	}
	return Regions{
		Boot: Span{First: 0, Last: 0},
		FAT1: Span{First: fat1, Last: fat2 - 1},
		FAT2: Span{First: fat2, Last: fat2 + int64(l.FATSectors) - 1},
		Root: root,
		Data: Span{First: data, Last: int64(g.TotalSectors()) - 1},
	}
}

// System returns the system area spans, for progress maps.
func (r Regions) System() []Span {
	s := []Span{r.Boot, r.FAT1, r.FAT2}
	if r.Root.First >= 0 {
		s = append(s, r.Root)
	}
	return s
}
