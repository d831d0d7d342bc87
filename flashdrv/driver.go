package flashdrv

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Config describes the flash controller and the region of flash used as
// the logical disk.
type Config struct {
	Callbacks

	// Memory is the memory-mapped view of flash. Offsets passed to ReadAt
	// are absolute flash addresses.
	Memory io.ReaderAt

	// StartDiskAddress and EndDiskAddress bound the disk as the absolute
	// flash byte range [StartDiskAddress, EndDiskAddress).
	StartDiskAddress uint32
	EndDiskAddress   uint32

	// LogicalSectorSize is the sector size seen by the filesystem.
	LogicalSectorSize uint32
}

func (c *Config) validate() error {
	if name := c.Callbacks.missing(); name != "" {
		return fmt.Errorf("%w: missing %s capability", ErrInvalidConfig, name)
	}
	switch {
	case c.Memory == nil:
		return fmt.Errorf("%w: missing memory view", ErrInvalidConfig)
	case c.StartDiskAddress == 0:
		return fmt.Errorf("%w: zero start address", ErrInvalidConfig)
	case c.EndDiskAddress == 0:
		return fmt.Errorf("%w: zero end address", ErrInvalidConfig)
	case c.LogicalSectorSize == 0:
		return fmt.Errorf("%w: zero sector size", ErrInvalidConfig)
	case c.StartDiskAddress >= c.EndDiskAddress:
		return fmt.Errorf("%w: start 0x%08X not below end 0x%08X",
			ErrInvalidConfig, c.StartDiskAddress, c.EndDiskAddress)
	}
	return nil
}

// span translates a logical sector range to the flash byte range
// [start, stop). It fails if the range ends past EndDiskAddress.
func (c *Config) span(sector, count uint32) (start, stop uint32, ok bool) {
	base := uint64(c.StartDiskAddress)
	size := uint64(c.LogicalSectorSize)
	begin := base + uint64(sector)*size
	end := base + (uint64(sector)+uint64(count))*size
	if end > uint64(c.EndDiskAddress) {
		return 0, 0, false
	}
	return uint32(begin), uint32(end), true
}

// Driver translates logical sector I/O into erase and program operations
// on NOR flash. The zero value is an uninitialized driver; call Init
// before use. A Driver must not be copied after first use.
//
// Read and Write exclude each other through a single in-progress flag
// taken with an atomic compare-and-set: a call that finds the flag set
// fails with ErrWriteProtected instead of waiting. Ioctl does not take
// the flag.
type Driver struct {
	mu  sync.RWMutex
	cfg *Config

	busy atomic.Bool

	logger   atomic.Pointer[slog.Logger]
	logLevel atomic.Int32
}

// New returns a driver initialized with cfg.
func New(cfg Config) (*Driver, error) {
	d := &Driver{}
	if err := d.Init(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Init validates and installs cfg. Any previous configuration is dropped
// first, so a failed Init leaves the driver uninitialized. On success the
// in-progress flag is cleared. Init performs no hardware operations.
func (d *Driver) Init(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfg = nil
	if err := cfg.validate(); err != nil {
		d.logError("init rejected", "err", err)
		return err
	}
	c := cfg
	d.cfg = &c
	d.busy.Store(false)

	d.logInfo("initialized",
		"start", fmt.Sprintf("0x%08X", c.StartDiskAddress),
		"end", fmt.Sprintf("0x%08X", c.EndDiskAddress),
		"sectorSize", c.LogicalSectorSize)
	return nil
}

// IsWriteProtected reports whether a read or write is in progress.
func (d *Driver) IsWriteProtected() bool {
	return d.busy.Load()
}

// config returns the installed configuration, or nil if uninitialized.
func (d *Driver) config() *Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

func (d *Driver) acquire() bool {
	return d.busy.CompareAndSwap(false, true)
}

func (d *Driver) release() {
	d.busy.Store(false)
}

// checkRange validates a sector request against cfg and buf.
func checkRange(cfg *Config, buf []byte, sector, count uint32) (start, stop uint32, err error) {
	if len(buf) == 0 || count == 0 {
		return 0, 0, ErrInvalidParameter
	}
	start, stop, ok := cfg.span(sector, count)
	if !ok {
		return 0, 0, fmt.Errorf("%w: sectors %d+%d past end of disk", ErrInvalidParameter, sector, count)
	}
	if uint64(len(buf)) < uint64(stop-start) {
		return 0, 0, fmt.Errorf("%w: buffer holds %d bytes, need %d", ErrInvalidParameter, len(buf), stop-start)
	}
	return start, stop, nil
}
