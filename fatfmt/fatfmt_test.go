package fatfmt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"nordisk/blockdev"
	"nordisk/flashdrv"
	"nordisk/simflash"
)

// memDisk is an in-memory io.WriterAt and io.ReaderAt.
type memDisk struct {
	data []byte
	// drop makes writes to this byte offset disappear.
	drop int64
}

func newMemDisk(size int64) *memDisk {
	return &memDisk{data: make([]byte, size), drop: -1}
}

func (m *memDisk) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, errors.New("write out of range")
	}
	copy(m.data[off:], p)
	if m.drop >= off && m.drop < off+int64(len(p)) {
		m.data[m.drop] ^= 0xFF
	}
	return len(p), nil
}

func (m *memDisk) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, errors.New("read out of range")
	}
	return copy(p, m.data[off:]), nil
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"fat12", "FAT16", " fat32 "} {
		if _, err := ParseType(s); err != nil {
			t.Errorf("ParseType(%q) error = %v", s, err)
		}
	}
	if _, err := ParseType("exfat"); err == nil {
		t.Errorf("ParseType(exfat) error = nil")
	}
	if got := FAT16.String(); got != "FAT16" {
		t.Errorf("String() = %q", got)
	}
}

func TestPresetAndLayout(t *testing.T) {
	tests := []struct {
		name       string
		typ        Type
		size       int64
		sectorSize uint16
		want       Layout
		spc        uint8
	}{
		{
			name: "1440K floppy", typ: FAT12, size: 1440 * 1024, sectorSize: 512,
			want: Layout{Type: FAT12, FATSectors: 9, RootDirSectors: 14, DataSectors: 2847, Clusters: 2847},
			spc:  1,
		},
		{
			name: "360K floppy", typ: FAT12, size: 360 * 1024, sectorSize: 512,
			want: Layout{Type: FAT12, FATSectors: 2, RootDirSectors: 4, DataSectors: 711, Clusters: 355},
			spc:  2,
		},
		{
			name: "128K flash", typ: FAT12, size: 128 * 1024, sectorSize: 512,
			want: Layout{Type: FAT12, FATSectors: 1, RootDirSectors: 4, DataSectors: 249, Clusters: 249},
			spc:  1,
		},
		{
			name: "896K flash", typ: FAT12, size: 896 * 1024, sectorSize: 512,
			want: Layout{Type: FAT12, FATSectors: 6, RootDirSectors: 32, DataSectors: 1747, Clusters: 1747},
			spc:  1,
		},
		{
			name: "32M FAT16", typ: FAT16, size: 32 * 1024 * 1024, sectorSize: 512,
			want: Layout{Type: FAT16, FATSectors: 16, RootDirSectors: 32, DataSectors: 65471, Clusters: 4091},
			spc:  16,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Preset(tt.typ, tt.size, tt.sectorSize)
			if err != nil {
				t.Fatalf("Preset() error = %v", err)
			}
			if g.SectorsPerCluster != tt.spc {
				t.Errorf("SectorsPerCluster = %d, want %d", g.SectorsPerCluster, tt.spc)
			}
			if got := int64(g.TotalSectors()) * int64(tt.sectorSize); got != tt.size {
				t.Errorf("total sectors cover %d bytes, want %d", got, tt.size)
			}
			l, err := ComputeLayout(tt.typ, &g)
			if err != nil {
				t.Fatalf("ComputeLayout() error = %v", err)
			}
			if l != tt.want {
				t.Errorf("ComputeLayout() = %+v, want %+v", l, tt.want)
			}
		})
	}
}

func TestPresetRejects(t *testing.T) {
	tests := []struct {
		name       string
		typ        Type
		size       int64
		sectorSize uint16
	}{
		{name: "small sector", typ: FAT12, size: 64 * 1024, sectorSize: 256},
		{name: "odd sector", typ: FAT12, size: 64 * 1024, sectorSize: 600},
		{name: "ragged size", typ: FAT12, size: 64*1024 + 1, sectorSize: 512},
		{name: "FAT12 too big", typ: FAT12, size: 64 * 1024 * 1024, sectorSize: 512},
		{name: "FAT16 too big", typ: FAT16, size: 64 * 1024 * 1024, sectorSize: 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Preset(tt.typ, tt.size, tt.sectorSize); err == nil {
				t.Errorf("Preset() error = nil")
			}
		})
	}
}

func TestComputeLayoutTooSmall(t *testing.T) {
	g, err := Preset(FAT12, 2*1024, 512)
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if _, err := ComputeLayout(FAT12, &g); err == nil {
		t.Errorf("ComputeLayout() on 4 sectors error = nil")
	}
}

func TestComputeLayoutClusterLimits(t *testing.T) {
	// 4M with 2-sector clusters leaves too few clusters for FAT16.
	g, err := Preset(FAT16, 4*1024*1024, 512)
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if _, err := ComputeLayout(FAT16, &g); err == nil {
		t.Errorf("ComputeLayout(FAT16, 4M) error = nil")
	}
	g, err = Preset(FAT32, 64*1024*1024, 512)
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	if _, err := ComputeLayout(FAT32, &g); err == nil {
		t.Errorf("ComputeLayout(FAT32, 64M) error = nil")
	}
}

func TestComputeLayoutFAT32(t *testing.T) {
	size := int64(300 * 1024 * 1024)
	g, err := Preset(FAT32, size, 512)
	if err != nil {
		t.Fatalf("Preset() error = %v", err)
	}
	l, err := ComputeLayout(FAT32, &g)
	if err != nil {
		t.Fatalf("ComputeLayout() error = %v", err)
	}
	if l.RootDirSectors != 0 || l.Clusters < 65525 {
		t.Errorf("ComputeLayout() = %+v", l)
	}
	if l.FATSectors != g.SectorsPerFAT32 || (l.Clusters+2)*4 > l.FATSectors*512 {
		t.Errorf("FAT of %d sectors cannot hold %d clusters", l.FATSectors, l.Clusters)
	}
	reg := l.Regions(&g)
	if reg.Root.First != -1 || reg.Data.First != 32+2*int64(l.FATSectors) {
		t.Errorf("Regions() = %+v", reg)
	}

	boot := BootSector(FAT32, g, "FLASH", "", 0xCAFEF00D)
	if got := binary.LittleEndian.Uint32(boot[36:]); got != g.SectorsPerFAT32 {
		t.Errorf("BPB sectors/FAT = %d, want %d", got, g.SectorsPerFAT32)
	}
	if got := binary.LittleEndian.Uint32(boot[67:]); got != 0xCAFEF00D {
		t.Errorf("serial = 0x%X", got)
	}
	if got := string(boot[71:82]); got != "FLASH      " {
		t.Errorf("label = %q", got)
	}
	if got := string(boot[82:90]); got != "FAT32   " {
		t.Errorf("fs type = %q", got)
	}
	if got := string(boot[3:11]); got != "NORDISK " {
		t.Errorf("OEM = %q", got)
	}
}

func TestFormatFAT12(t *testing.T) {
	const size = 1440 * 1024
	disk := newMemDisk(size)
	var phases []Phase
	var written int64
	res, err := Format(disk, Options{
		Type:      FAT12,
		Size:      size,
		Label:     "NORDISK",
		ChunkSize: 1000,
		Verify:    true,
		Progress:  func(_ Phase, _, count int64) { written += count },
		PhaseDone: func(p Phase) { phases = append(phases, p) },
	})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	wantPhases := []Phase{PhaseBoot, PhaseFAT1, PhaseFAT2, PhaseRoot}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for i := range phases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phase %d = %s, want %s", i, phases[i], wantPhases[i])
		}
	}
	if want := int64(1 + 2*9 + 14); written != want {
		t.Errorf("sectors written = %d, want %d", written, want)
	}

	boot := disk.data[:512]
	if boot[0] != 0xEB || boot[510] != 0x55 || boot[511] != 0xAA {
		t.Errorf("boot sector jump/signature = % X ... % X", boot[:3], boot[510:])
	}
	if got := binary.LittleEndian.Uint16(boot[11:]); got != 512 {
		t.Errorf("bytes/sector = %d", got)
	}
	if got := binary.LittleEndian.Uint16(boot[19:]); got != 2880 {
		t.Errorf("total sectors = %d", got)
	}
	if got := binary.LittleEndian.Uint16(boot[22:]); got != 9 {
		t.Errorf("sectors/FAT = %d", got)
	}
	if got := string(boot[54:62]); got != "FAT12   " {
		t.Errorf("fs type = %q", got)
	}
	if !strings.HasPrefix(string(boot[119:]), "Non-system disk") {
		t.Errorf("boot message missing")
	}

	for _, fat := range []int64{res.Regions.FAT1.First, res.Regions.FAT2.First} {
		if got := disk.data[fat*512 : fat*512+3]; !bytes.Equal(got, []byte{0xF0, 0xFF, 0xFF}) {
			t.Errorf("FAT at sector %d starts % X", fat, got)
		}
	}
	root := disk.data[res.Regions.Root.First*512:]
	if got := string(root[:11]); got != "NORDISK    " || root[11] != 0x08 {
		t.Errorf("label entry = %q attr 0x%X", got, root[11])
	}
}

func TestFormatFull(t *testing.T) {
	const size = 128 * 1024
	disk := newMemDisk(size)
	for i := range disk.data {
		disk.data[i] = 0xE5
	}
	res, err := Format(disk, Options{Type: FAT12, Size: size, Full: true})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	data := disk.data[res.Regions.Data.First*512:]
	if !bytes.Equal(data, make([]byte, len(data))) {
		t.Errorf("data area not zeroed")
	}
	// Label entry is absent without a label.
	if disk.data[res.Regions.Root.First*512] != 0 {
		t.Errorf("root directory not empty")
	}
}

func TestFormatStop(t *testing.T) {
	disk := newMemDisk(1440 * 1024)
	calls := 0
	_, err := Format(disk, Options{
		Type:      FAT12,
		Size:      1440 * 1024,
		ChunkSize: 512,
		Stop: func() bool {
			calls++
			return calls == 3
		},
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Format() error = %v, want %v", err, ErrInterrupted)
	}
	if calls != 3 {
		t.Errorf("Stop polled %d times, want 3", calls)
	}
}

func TestFormatVerifyFindsBadSector(t *testing.T) {
	disk := newMemDisk(1440 * 1024)
	disk.drop = 3*512 + 7
	_, err := Format(disk, Options{Type: FAT12, Size: 1440 * 1024, Verify: true})
	if err == nil || !strings.Contains(err.Error(), "1 bad sector") {
		t.Fatalf("Format() error = %v, want one bad sector", err)
	}
}

type writeOnly struct{}

func (writeOnly) WriteAt(p []byte, _ int64) (int, error) { return len(p), nil }

func TestFormatVerifyNeedsReader(t *testing.T) {
	if _, err := Format(writeOnly{}, Options{Type: FAT12, Size: 1440 * 1024, Verify: true}); err == nil {
		t.Errorf("Format() error = nil")
	}
}

func TestWriteSummary(t *testing.T) {
	res, err := Plan(Options{Type: FAT12, Size: 1440 * 1024, OEM: "test"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	var out strings.Builder
	if err := res.WriteSummary(&out); err != nil {
		t.Fatalf("WriteSummary() error = %v", err)
	}
	for _, s := range []string{"GEOMETRY (FAT12)", "OEM: TEST", "Label: NO NAME", "FAT #1: [000001 … 000009]", "Root  : [000019 … 000032]"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("summary missing %q:\n%s", s, out.String())
		}
	}
}

// TestFormatOnFlash builds a volume through the flash driver and checks the
// flash image holds it.
func TestFormatOnFlash(t *testing.T) {
	const base = 0x08000000
	flash := simflash.New(simflash.Uniform(base, 4096, 32))
	drv, err := flashdrv.New(flashdrv.Config{
		Callbacks:         flashdrv.FromHAL(flash),
		Memory:            flash,
		StartDiskAddress:  base,
		EndDiskAddress:    flash.Layout().End(),
		LogicalSectorSize: 512,
	})
	if err != nil {
		t.Fatalf("flashdrv.New() error = %v", err)
	}
	dev, err := blockdev.New(drv)
	if err != nil {
		t.Fatalf("blockdev.New() error = %v", err)
	}

	res, err := Format(dev, Options{Type: FAT12, Size: dev.Size(), Label: "FLASH", Verify: true})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	mem := flash.Bytes()
	if mem[510] != 0x55 || mem[511] != 0xAA {
		t.Errorf("boot signature = % X", mem[510:512])
	}
	root := mem[res.Regions.Root.First*512:]
	if got := string(root[:11]); got != "FLASH      " {
		t.Errorf("label entry = %q", got)
	}
	if !flash.Locked() {
		t.Errorf("flash left unlocked")
	}
}
