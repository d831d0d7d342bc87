// Package blockdev exposes a flash disk driver as a byte-addressed block
// device, as expected by tinyfs filesystems.
package blockdev

import (
	"errors"
	"fmt"
	"runtime"

	"tinygo.org/x/tinyfs"

	"nordisk/flashdrv"
)

// ErrUnaligned is returned for accesses that do not start and end on a
// logical sector boundary.
var ErrUnaligned = errors.New("blockdev: access not sector aligned")

// Device is a block device backed by a flash disk driver. Offsets are
// byte offsets from the start of the logical disk.
type Device struct {
	drv  *flashdrv.Driver
	geom flashdrv.Geometry
}

var _ tinyfs.BlockDevice = (*Device)(nil)

// New returns a device for an initialized driver.
func New(drv *flashdrv.Driver) (*Device, error) {
	geom, err := drv.Geometry()
	if err != nil {
		return nil, fmt.Errorf("blockdev: query geometry: %w", err)
	}
	if geom.SectorSize == 0 || geom.SectorCount == 0 {
		return nil, fmt.Errorf("blockdev: empty disk %+v", geom)
	}
	return &Device{drv: drv, geom: geom}, nil
}

// Geometry returns the disk geometry read when the device was created.
func (d *Device) Geometry() flashdrv.Geometry {
	return d.geom
}

// span converts a byte range to a sector range within the disk.
func (d *Device) span(n int, off int64) (sector, count uint32, err error) {
	ss := int64(d.geom.SectorSize)
	if off < 0 || off%ss != 0 || int64(n)%ss != 0 {
		return 0, 0, fmt.Errorf("%w: %d bytes at %d", ErrUnaligned, n, off)
	}
	if int64(n) > d.Size() || off > d.Size()-int64(n) {
		return 0, 0, fmt.Errorf("%w: %d bytes at %d past end of %d byte disk",
			flashdrv.ErrInvalidParameter, n, off, d.Size())
	}
	return uint32(off / ss), uint32(int64(n) / ss), nil
}

// ReadAt reads whole logical sectors into p.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	sector, count, err := d.span(len(p), off)
	if err != nil {
		return 0, err
	}
	if err := retry(func() error { return d.drv.Read(p, sector, count) }); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAt writes whole logical sectors from p.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	sector, count, err := d.span(len(p), off)
	if err != nil {
		return 0, err
	}
	if err := retry(func() error { return d.drv.Write(p, sector, count) }); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Size returns the disk size in bytes.
func (d *Device) Size() int64 {
	return int64(d.geom.SectorCount) * int64(d.geom.SectorSize)
}

// WriteBlockSize returns the logical sector size.
func (d *Device) WriteBlockSize() int64 {
	return int64(d.geom.SectorSize)
}

// EraseBlockSize returns the erase block size in bytes.
func (d *Device) EraseBlockSize() int64 {
	if d.geom.BlockSize == 0 {
		return int64(d.geom.SectorSize)
	}
	return int64(d.geom.BlockSize) * int64(d.geom.SectorSize)
}

// EraseBlocks marks blocks unused. The driver erases on demand when
// writing, so this only forwards a trim.
func (d *Device) EraseBlocks(start, length int64) error {
	return d.drv.Ioctl(flashdrv.CtrlTrim, nil)
}

// Sync completes pending writes.
func (d *Device) Sync() error {
	return d.drv.Ioctl(flashdrv.CtrlSync, nil)
}

// retry repeats op while another read or write holds the driver.
func retry(op func() error) error {
	for {
		err := op()
		if !errors.Is(err, flashdrv.ErrWriteProtected) {
			return err
		}
		runtime.Gosched()
	}
}
