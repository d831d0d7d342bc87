package flashdrv

import "fmt"

// Command is a disk control command.
type Command uint8

// Control commands, numbered as in FatFs diskio.
const (
	CtrlSync       Command = 0 // complete pending writes (no-op)
	GetSectorCount Command = 1 // number of logical sectors on the disk
	GetSectorSize  Command = 2 // logical sector size in bytes
	GetBlockSize   Command = 3 // erase block size in logical sectors
	CtrlTrim       Command = 4 // sectors no longer in use (no-op)
)

// String returns a string representation of the command.
func (c Command) String() string {
	switch c {
	case CtrlSync:
		return "sync"
	case GetSectorCount:
		return "get sector count"
	case GetSectorSize:
		return "get sector size"
	case GetBlockSize:
		return "get block size"
	case CtrlTrim:
		return "trim"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}

// Ioctl executes a control command. The Get commands store their answer
// in out, which must not be nil. Ioctl does not take the in-progress flag.
func (d *Driver) Ioctl(cmd Command, out *uint32) error {
	cfg := d.config()
	if cfg == nil {
		return ErrNotReady
	}

	switch cmd {
	case CtrlSync, CtrlTrim:
		return nil
	case GetSectorCount, GetSectorSize, GetBlockSize:
		if out == nil {
			return fmt.Errorf("%w: %s without output", ErrInvalidParameter, cmd)
		}
	default:
		return fmt.Errorf("%w: unknown %s", ErrInvalidParameter, cmd)
	}

	switch cmd {
	case GetSectorCount:
		*out = (cfg.EndDiskAddress - cfg.StartDiskAddress) / cfg.LogicalSectorSize
	case GetSectorSize:
		*out = cfg.LogicalSectorSize
	case GetBlockSize:
		*out = cfg.SectorSize(0) / cfg.LogicalSectorSize
	}
	d.logDebug("ioctl", "cmd", cmd.String(), "value", *out)
	return nil
}

// Geometry is the disk shape reported by the Get ioctls.
type Geometry struct {
	SectorCount uint32 // logical sectors on the disk
	SectorSize  uint32 // bytes per logical sector
	BlockSize   uint32 // logical sectors per erase block
}

// Geometry queries the sector count, sector size and block size.
func (d *Driver) Geometry() (Geometry, error) {
	var g Geometry
	for _, q := range []struct {
		cmd Command
		out *uint32
	}{
		{GetSectorCount, &g.SectorCount},
		{GetSectorSize, &g.SectorSize},
		{GetBlockSize, &g.BlockSize},
	} {
		if err := d.Ioctl(q.cmd, q.out); err != nil {
			return Geometry{}, err
		}
	}
	return g, nil
}
