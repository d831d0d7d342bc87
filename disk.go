package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/pflag"

	"nordisk/blockdev"
	"nordisk/flashdrv"
	"nordisk/simflash"
)

const defaultBase = "0x08000000"

// layoutFlags select the simulated flash part backing an image.
type layoutFlags struct {
	image     string
	layout    string
	base      string
	blockSize string
	blocks    int
}

func (f *layoutFlags) bind(flags *pflag.FlagSet) {
	flags.StringVar(&f.image, "image", os.Getenv(envImage), "flash image file (default $"+envImage+")")
	flags.StringVar(&f.layout, "layout", "uniform", "flash sector layout: uniform|stm32f4")
	flags.StringVar(&f.base, "base", defaultBase, "flash base address")
	flags.StringVar(&f.blockSize, "block-size", "4k", "erase block size (uniform layout)")
	flags.IntVar(&f.blocks, "blocks", 64, "number of erase blocks (uniform layout)")
}

func (f *layoutFlags) sectorLayout() (simflash.Layout, error) {
	base, err := parseAddr(f.base)
	if err != nil {
		return simflash.Layout{}, fmt.Errorf("--base: %w", err)
	}
	var l simflash.Layout
	switch f.layout {
	case "uniform":
		bs, err := parseSize(f.blockSize)
		if err != nil {
			return simflash.Layout{}, fmt.Errorf("--block-size: %w", err)
		}
		if bs <= 0 || bs > 1<<30 || f.blocks <= 0 {
			return simflash.Layout{}, fmt.Errorf("uniform layout needs a positive --block-size and --blocks")
		}
		l = simflash.Uniform(base, uint32(bs), f.blocks)
	case "stm32f4":
		l = simflash.STM32F4(base)
	default:
		return simflash.Layout{}, fmt.Errorf("unknown --layout %q (uniform|stm32f4)", f.layout)
	}
	if err := l.Validate(); err != nil {
		return simflash.Layout{}, err
	}
	return l, nil
}

func (f *layoutFlags) imagePath() (string, error) {
	if f.image == "" {
		return "", fmt.Errorf("--image is required (or set %s)", envImage)
	}
	return f.image, nil
}

// diskFlags place the logical disk inside the flash.
type diskFlags struct {
	layoutFlags
	start      string
	size       string
	sectorSize uint32
}

func (f *diskFlags) bind(flags *pflag.FlagSet) {
	f.layoutFlags.bind(flags)
	flags.StringVar(&f.start, "disk-start", "", "first flash address of the disk (default: flash base)")
	flags.StringVar(&f.size, "disk-size", "", "disk size (default: to the end of flash)")
	flags.Uint32Var(&f.sectorSize, "sector-size", 512, "logical sector size in bytes")
}

// diskRange returns [start, end) of the disk within l.
func (f *diskFlags) diskRange(l simflash.Layout) (start, end uint32, err error) {
	start = l.Base
	if f.start != "" {
		if start, err = parseAddr(f.start); err != nil {
			return 0, 0, fmt.Errorf("--disk-start: %w", err)
		}
	}
	if start < l.Base || start >= l.End() {
		return 0, 0, fmt.Errorf("disk start 0x%08X outside flash [0x%08X, 0x%08X)", start, l.Base, l.End())
	}
	size := int64(l.End() - start)
	if f.size != "" {
		if size, err = parseSize(f.size); err != nil {
			return 0, 0, fmt.Errorf("--disk-size: %w", err)
		}
	}
	if size <= 0 || int64(start)+size > int64(l.End()) {
		return 0, 0, fmt.Errorf("disk of %d bytes at 0x%08X does not fit flash ending at 0x%08X", size, start, l.End())
	}
	return start, start + uint32(size), nil
}

// session is an opened flash image with the driver initialized on it.
type session struct {
	flash *simflash.Flash
	drv   *flashdrv.Driver
	dev   *blockdev.Device
	start uint32
	end   uint32
}

func (a *app) openDisk(f *diskFlags) (*session, error) {
	path, err := f.imagePath()
	if err != nil {
		return nil, err
	}
	l, err := f.sectorLayout()
	if err != nil {
		return nil, err
	}
	start, end, err := f.diskRange(l)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("image %q does not exist (create it with: nordisk image create)", path)
	}
	fl, err := simflash.Open(path, l)
	if err != nil {
		return nil, err
	}

	drv := &flashdrv.Driver{}
	drv.SetLogger(a.logger)
	drv.SetLogLevel(a.level)
	err = drv.Init(flashdrv.Config{
		Callbacks:         flashdrv.FromHAL(fl),
		Memory:            fl,
		StartDiskAddress:  start,
		EndDiskAddress:    end,
		LogicalSectorSize: f.sectorSize,
	})
	if err != nil {
		_ = fl.Close()
		return nil, fmt.Errorf("init driver: %w", err)
	}
	dev, err := blockdev.New(drv)
	if err != nil {
		_ = fl.Close()
		return nil, err
	}
	return &session{flash: fl, drv: drv, dev: dev, start: start, end: end}, nil
}

func (s *session) Close() error {
	if err := s.dev.Sync(); err != nil {
		_ = s.flash.Close()
		return err
	}
	return s.flash.Close()
}
