package flashdrv_test

import (
	"errors"
	"fmt"
	"testing"

	"nordisk/flashdrv"
	"nordisk/simflash"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*flashdrv.Config)
	}{
		{name: "missing program", modify: func(c *flashdrv.Config) { c.Program = nil }},
		{name: "missing unlock", modify: func(c *flashdrv.Config) { c.Unlock = nil }},
		{name: "missing lock", modify: func(c *flashdrv.Config) { c.Lock = nil }},
		{name: "missing erase", modify: func(c *flashdrv.Config) { c.EraseSector = nil }},
		{name: "missing sector to address", modify: func(c *flashdrv.Config) { c.SectorToAddress = nil }},
		{name: "missing address to sector", modify: func(c *flashdrv.Config) { c.AddressToSector = nil }},
		{name: "missing sector size", modify: func(c *flashdrv.Config) { c.SectorSize = nil }},
		{name: "missing memory", modify: func(c *flashdrv.Config) { c.Memory = nil }},
		{name: "zero start", modify: func(c *flashdrv.Config) { c.StartDiskAddress = 0 }},
		{name: "zero end", modify: func(c *flashdrv.Config) { c.EndDiskAddress = 0 }},
		{name: "zero sector size", modify: func(c *flashdrv.Config) { c.LogicalSectorSize = 0 }},
		{name: "inverted range", modify: func(c *flashdrv.Config) {
			c.StartDiskAddress, c.EndDiskAddress = c.EndDiskAddress, c.StartDiskAddress
		}},
		{name: "empty range", modify: func(c *flashdrv.Config) { c.EndDiskAddress = c.StartDiskAddress }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv, hw := newTestDriver(t)
			cfg := hw.config()
			tt.modify(&cfg)

			err := drv.Init(cfg)
			if !errors.Is(err, flashdrv.ErrInvalidConfig) {
				t.Fatalf("Init() error = %v, want %v", err, flashdrv.ErrInvalidConfig)
			}
			// The previous configuration is gone.
			if err := drv.Read(make([]byte, logicalSize), 0, 1); !errors.Is(err, flashdrv.ErrNotReady) {
				t.Errorf("Read() after failed Init error = %v, want %v", err, flashdrv.ErrNotReady)
			}
			if _, err := flashdrv.New(cfg); !errors.Is(err, flashdrv.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want %v", err, flashdrv.ErrInvalidConfig)
			}
		})
	}
}

func TestInitPerformsNoHardwareCalls(t *testing.T) {
	hw := newFakeHW(t, simflash.Uniform(testBase, physSize, physicalCount))
	if _, err := flashdrv.New(hw.config()); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	hw.expect(t, counts{})
	if st := hw.flash.Stats(); st != (simflash.Stats{}) {
		t.Errorf("flash stats = %+v, want zero", st)
	}
}

func TestReinit(t *testing.T) {
	drv, hw := newTestDriver(t)
	if err := drv.Write(pattern(0, diskSize), 0, logicalCount); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Shrink the disk to the second half of flash.
	cfg := hw.config()
	cfg.StartDiskAddress = testBase + diskSize/2
	if err := drv.Init(cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	var n uint32
	if err := drv.Ioctl(flashdrv.GetSectorCount, &n); err != nil || n != logicalCount/2 {
		t.Fatalf("GetSectorCount = %d, %v, want %d, nil", n, err, logicalCount/2)
	}
	buf := make([]byte, logicalSize)
	if err := drv.Read(buf, 0, 1); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if want := pattern(diskSize/2, logicalSize); string(buf) != string(want) {
		t.Errorf("Read() = %v, want %v", buf, want)
	}
}

func TestUninitialized(t *testing.T) {
	var drv flashdrv.Driver
	buf := make([]byte, logicalSize)

	if err := drv.Write(buf, 0, 1); !errors.Is(err, flashdrv.ErrNotReady) {
		t.Errorf("Write() error = %v, want %v", err, flashdrv.ErrNotReady)
	}
	if err := drv.Read(buf, 0, 1); !errors.Is(err, flashdrv.ErrNotReady) {
		t.Errorf("Read() error = %v, want %v", err, flashdrv.ErrNotReady)
	}
	// Parameters are not looked at before readiness.
	if err := drv.Write(nil, 0, 0); !errors.Is(err, flashdrv.ErrNotReady) {
		t.Errorf("Write(nil) error = %v, want %v", err, flashdrv.ErrNotReady)
	}
	for _, cmd := range []flashdrv.Command{
		flashdrv.CtrlSync, flashdrv.GetSectorCount, flashdrv.GetSectorSize,
		flashdrv.GetBlockSize, flashdrv.CtrlTrim, 0xFF,
	} {
		var out uint32
		if err := drv.Ioctl(cmd, &out); !errors.Is(err, flashdrv.ErrNotReady) {
			t.Errorf("Ioctl(%v) error = %v, want %v", cmd, err, flashdrv.ErrNotReady)
		}
	}
	if drv.IsWriteProtected() {
		t.Errorf("IsWriteProtected() = true on zero Driver")
	}
}

func TestResultOf(t *testing.T) {
	tests := []struct {
		err  error
		want flashdrv.Result
	}{
		{err: nil, want: flashdrv.ResultOK},
		{err: flashdrv.ErrNotReady, want: flashdrv.ResultNotReady},
		{err: flashdrv.ErrWriteProtected, want: flashdrv.ResultWriteProtected},
		{err: fmt.Errorf("%w: detail", flashdrv.ErrInvalidParameter), want: flashdrv.ResultInvalidParameter},
		{err: fmt.Errorf("%w: detail", flashdrv.ErrIO), want: flashdrv.ResultError},
		{err: errors.New("other"), want: flashdrv.ResultError},
	}
	for _, tt := range tests {
		if got := flashdrv.ResultOf(tt.err); got != tt.want {
			t.Errorf("ResultOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
		if tt.want != flashdrv.ResultOK && flashdrv.ResultOf(tt.want.Err()) != tt.want {
			t.Errorf("%v.Err() does not map back", tt.want)
		}
	}
	if flashdrv.ResultOK.Err() != nil {
		t.Errorf("ResultOK.Err() = %v, want nil", flashdrv.ResultOK.Err())
	}
	if got := uint8(flashdrv.ResultInvalidParameter); got != 4 {
		t.Errorf("ResultInvalidParameter = %d, want 4", got)
	}
}
