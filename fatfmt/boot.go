package fatfmt

import "encoding/binary"

/* ===================== Boot/FAT builders ===================== */

// Defaults for empty label and OEM strings.
const (
	DefaultLabel  = "NO NAME"
	DefaultOEM    = "NORDISK"
	DefaultSerial = 0x12345678
)

const bootMessage = "Non-system disk or disk error\r\nReplace and press any key when ready\r\n\x00"

// bootCode prints the message at msg and reboots on a key press.
func bootCode(msg uint16) []byte {
	addr := 0x7C00 + msg
	return []byte{
		0x0E,                              // push cs
		0x1F,                              // pop ds
		0xBE, byte(addr), byte(addr >> 8), // mov si, message
		0xAC,                              // lodsb
		0x22, 0xC0,                        // and al, al
		0x74, 0x0B,                        // jz halt
		0x56,                              // push si
		0xB4, 0x0E,                        // mov ah, 0x0E (teletype output)
		0xBB, 0x07, 0x00,                  // mov bx, 0x0007
		0xCD, 0x10,                        // int 0x10
		0x5E,                              // pop si
		0xEB, 0xF0,                        // jmp loop
		0x32, 0xE4,                        // xor ah, ah
		0xCD, 0x16,                        // int 0x16 (wait for key)
		0xCD, 0x19,                        // int 0x19 (reboot)
		0xEB, 0xFE,                        // jmp $
	}
}

// BootSector builds the boot sector of a t volume. The sector is
// g.BytesPerSector long with the 0x55AA signature at offset 510.
func BootSector(t Type, g Geometry, label, oem string, serial uint32) []byte {
	if label == "" {
		label = DefaultLabel
	}
	if oem == "" {
		oem = DefaultOEM
	}
	sec := make([]byte, g.BytesPerSector)
	copy(sec[3:11], padRight(oem, 8))
	binary.LittleEndian.PutUint16(sec[11:], g.BytesPerSector)
	sec[13] = g.SectorsPerCluster
	binary.LittleEndian.PutUint16(sec[14:], g.ReservedSectors)
	sec[16] = g.NumFATs
	binary.LittleEndian.PutUint16(sec[19:], g.TotalSectors16)
	sec[21] = g.Media
	binary.LittleEndian.PutUint16(sec[24:], g.SectorsPerTrack)
	binary.LittleEndian.PutUint16(sec[26:], g.NumHeads)
	binary.LittleEndian.PutUint32(sec[28:], g.HiddenSectors)
	binary.LittleEndian.PutUint32(sec[32:], g.TotalSectors32)

	// Extended BPB offset and boot code placement differ for FAT32.
	ext, msg := 36, uint16(119)
	if t == FAT32 {
		sec[0], sec[1], sec[2] = 0xEB, 0x58, 0x90
		binary.LittleEndian.PutUint32(sec[36:], g.SectorsPerFAT32)
		binary.LittleEndian.PutUint32(sec[44:], g.RootCluster)
		binary.LittleEndian.PutUint16(sec[48:], g.FSInfoSector)
		binary.LittleEndian.PutUint16(sec[50:], g.BackupBootSector)
		ext, msg = 64, 163
	} else {
		sec[0], sec[1], sec[2] = 0xEB, 0x3C, 0x90
		binary.LittleEndian.PutUint16(sec[17:], g.RootEntries)
		binary.LittleEndian.PutUint16(sec[22:], g.SectorsPerFAT16)
	}
	sec[ext], sec[ext+1], sec[ext+2] = 0x80, 0x00, 0x29
	binary.LittleEndian.PutUint32(sec[ext+3:], serial)
	copy(sec[ext+7:ext+18], padRight(label, 11))
	copy(sec[ext+18:ext+26], padRight(t.String(), 8))

	copy(sec[ext+26:], bootCode(msg))
	copy(sec[msg:], bootMessage)

	sec[510], sec[511] = 0x55, 0xAA
	return sec
}

// FSInfo builds the FAT32 FSInfo sector with unknown free count and next
// free cluster hint 2.
func FSInfo(sectorSize uint16) []byte {
	fs := make([]byte, sectorSize)
	binary.LittleEndian.PutUint32(fs[0:], 0x41615252)
	binary.LittleEndian.PutUint32(fs[484:], 0x61417272)
	binary.LittleEndian.PutUint32(fs[488:], 0xFFFFFFFF)
	binary.LittleEndian.PutUint32(fs[492:], 0x00000002)
	binary.LittleEndian.PutUint32(fs[508:], 0xAA550000)
	return fs
}

// LabelEntry builds the root directory entry holding the volume label,
// or nil for an empty label.
func LabelEntry(label string) []byte {
	if label == "" {
		return nil
	}
	e := make([]byte, 32)
	copy(e[0:11], padRight(label, 11))
	e[11] = 0x08
	return e
}

// InitFAT writes the reserved leading entries into the first FAT sector b.
func InitFAT(t Type, b []byte, media byte) {
	switch t {
	case FAT12:
		if len(b) >= 3 {
			b[0], b[1], b[2] = media, 0xFF, 0xFF
		}
	case FAT16:
		if len(b) >= 4 {
			b[0], b[1], b[2], b[3] = media, 0xFF, 0xFF, 0xFF
		}
	case FAT32:
		put := func(i int, v uint32) {
			o := i * 4
			if o+4 <= len(b) {
				binary.LittleEndian.PutUint32(b[o:], v)
			}
		}
		put(0, 0x0FFFFF00|uint32(media))
		put(1, 0x0FFFFFFF)
		// End of chain for the root directory cluster.
		put(2, 0x0FFFFFFF)
	}
}

func padRight(s string, n int) []byte {
	if len(s) > n {
		s = s[:n]
	}
	b := make([]byte, n)
	copy(b, s)
	for i := len(s); i < n; i++ {
		b[i] = ' '
	}
	return b
}
